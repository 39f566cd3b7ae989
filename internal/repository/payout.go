package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go-fairdice/internal/http-server/handlers/mysql"
	"go-fairdice/internal/http-server/handlers/payout"
	"go-fairdice/internal/http-server/model"
)

const payoutUpsert = "INSERT INTO payouts(tx_ref," +
	" user_id," +
	" amount," +
	" round_id," +
	" status," +
	" attempts," +
	" last_error," +
	" created_at," +
	" completed_at) " +
	"VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?) " +
	"ON DUPLICATE KEY UPDATE status = VALUES(status)," +
	" attempts = VALUES(attempts)," +
	" last_error = VALUES(last_error)," +
	" completed_at = VALUES(completed_at)"

type PayoutRepository struct {
	dbhandler mysql.Handler
}

func NewPayoutRepository(dbhandler mysql.Handler) *PayoutRepository {
	return &PayoutRepository{dbhandler: dbhandler}
}

// WithinUserTx serializes transfers to one user by taking a FOR UPDATE lock
// on the balance row as the first statement of the transaction. The lock is
// released on commit or rollback.
func (repo *PayoutRepository) WithinUserTx(userID int64, fn func(tx payout.LedgerTx) error) error {
	const op = "repository.payout.WithinUserTx"

	err := repo.dbhandler.WithinTransaction(func(tx *sql.Tx) error {
		row := tx.QueryRow("SELECT id FROM users WHERE id = ? FOR UPDATE", userID)

		var id int64
		if err := row.Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				return payout.ErrUserNotFound
			}

			return err
		}

		return fn(&ledgerTx{tx: tx})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (repo *PayoutRepository) SavePayoutRecord(p model.Payout) error {
	const op = "repository.payout.SavePayoutRecord"

	_, err := repo.dbhandler.PrepareAndExecute(payoutUpsert,
		p.TxRef,
		p.UserID,
		p.Amount,
		p.RoundID,
		string(p.Status),
		p.Attempts,
		p.LastError,
		p.CreatedAt,
		p.CompletedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (repo *PayoutRepository) FailedPayouts(maxAttempts int) ([]model.Payout, error) {
	const op = "repository.payout.FailedPayouts"

	const query = "SELECT id, tx_ref, user_id, amount, round_id, status, attempts, last_error, created_at, completed_at " +
		"FROM payouts WHERE status = ? AND attempts < ?"
	rows, err := repo.dbhandler.PrepareAndQuery(query, string(model.PayoutFailed), maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanPayouts(rows, op)
}

func (repo *PayoutRepository) PayoutHistory(userID int64, limit int) ([]model.Payout, error) {
	const op = "repository.payout.PayoutHistory"

	const query = "SELECT id, tx_ref, user_id, amount, round_id, status, attempts, last_error, created_at, completed_at " +
		"FROM payouts WHERE user_id = ? ORDER BY created_at DESC LIMIT ?"
	rows, err := repo.dbhandler.PrepareAndQuery(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanPayouts(rows, op)
}

func scanPayouts(rows *sql.Rows, op string) ([]model.Payout, error) {
	var payouts []model.Payout

	for rows.Next() {
		var (
			p           model.Payout
			status      string
			roundID     sql.NullString
			lastError   sql.NullString
			completedAt sql.NullTime
		)

		err := rows.Scan(
			&p.ID,
			&p.TxRef,
			&p.UserID,
			&p.Amount,
			&roundID,
			&status,
			&p.Attempts,
			&lastError,
			&p.CreatedAt,
			&completedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		p.Status = model.PayoutStatus(status)
		p.RoundID = roundID.String
		p.LastError = lastError.String

		if completedAt.Valid {
			p.CompletedAt = &completedAt.Time
		}

		payouts = append(payouts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return payouts, nil
}

// ledgerTx is the locked-transaction view handed to the payout engine.
type ledgerTx struct {
	tx *sql.Tx
}

func (l *ledgerTx) UserBalance(userID int64) (int64, error) {
	row := l.tx.QueryRow("SELECT balance FROM users WHERE id = ?", userID)

	var balance int64
	if err := row.Scan(&balance); err != nil {
		if err == sql.ErrNoRows {
			return 0, payout.ErrUserNotFound
		}

		return 0, err
	}

	return balance, nil
}

func (l *ledgerTx) SetUserBalance(userID int64, balance int64) error {
	_, err := l.tx.Exec("UPDATE users SET balance = ?, updated_at = ? WHERE id = ?",
		balance, time.Now(), userID)

	return err
}

func (l *ledgerTx) AddToPot(amount int64) error {
	_, err := l.tx.Exec("INSERT INTO pot(id, balance, updated_at) VALUES(1, ?, ?) "+
		"ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance), updated_at = VALUES(updated_at)",
		amount, time.Now())

	return err
}

func (l *ledgerTx) SavePayout(p model.Payout) error {
	_, err := l.tx.Exec(payoutUpsert,
		p.TxRef,
		p.UserID,
		p.Amount,
		p.RoundID,
		string(p.Status),
		p.Attempts,
		p.LastError,
		p.CreatedAt,
		p.CompletedAt)

	return err
}

func (l *ledgerTx) AppendAudit(entry model.AuditLog) error {
	_, err := l.tx.Exec("INSERT INTO audit_logs(actor_id, action, target, meta, created_at) VALUES(?, ?, ?, ?, ?)",
		entry.ActorID,
		entry.Action,
		entry.Target,
		[]byte(entry.Meta),
		entry.CreatedAt)

	return err
}
