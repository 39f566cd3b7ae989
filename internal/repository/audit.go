package repository

import (
	"fmt"

	"go-fairdice/internal/http-server/handlers/mysql"
	"go-fairdice/internal/http-server/model"
)

type AuditRepository struct {
	dbhandler mysql.Handler
}

func NewAuditRepository(dbhandler mysql.Handler) *AuditRepository {
	return &AuditRepository{dbhandler: dbhandler}
}

// AppendAudit inserts one immutable audit record. There is no update or
// delete path on audit_logs.
func (repo *AuditRepository) AppendAudit(entry model.AuditLog) error {
	const op = "repository.audit.AppendAudit"

	const query = "INSERT INTO audit_logs(actor_id, action, target, meta, created_at) " +
		"VALUES(?, ?, ?, ?, ?)"
	_, err := repo.dbhandler.PrepareAndExecute(query,
		entry.ActorID,
		entry.Action,
		entry.Target,
		[]byte(entry.Meta),
		entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
