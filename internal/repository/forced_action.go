package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go-fairdice/internal/config"
	"go-fairdice/internal/http-server/handlers/force"
	"go-fairdice/internal/http-server/handlers/mysql"
	"go-fairdice/internal/http-server/model"
)

type ForcedActionRepository struct {
	dbhandler mysql.Handler
}

func NewForcedActionRepository(dbhandler mysql.Handler) *ForcedActionRepository {
	return &ForcedActionRepository{dbhandler: dbhandler}
}

func (repo *ForcedActionRepository) SaveAction(action model.ForcedAction) (int64, error) {
	const op = "repository.forced_action.SaveAction"

	confirmations, err := json.Marshal(action.Confirmations)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	const query = "INSERT INTO forced_actions(chat_id," +
		" requested_by," +
		" target," +
		" requested_at," +
		" confirmations," +
		" required_confirmations," +
		" status," +
		" applied_round) " +
		"VALUES(?, ?, ?, ?, ?, ?, ?, ?)"
	res, err := repo.dbhandler.PrepareAndExecute(query,
		action.ChatID,
		action.RequestedBy,
		string(action.Target),
		action.RequestedAt,
		confirmations,
		action.RequiredConfirmations,
		string(action.Status),
		action.AppliedRound)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, _ := res.LastInsertId()

	return id, nil
}

// UpdateActionLocked serializes the read-modify-write on one action with a
// SELECT ... FOR UPDATE row lock, released on commit or rollback.
func (repo *ForcedActionRepository) UpdateActionLocked(
	id int64,
	fn func(action *model.ForcedAction) error,
) (*model.ForcedAction, error) {
	const op = "repository.forced_action.UpdateActionLocked"

	var action *model.ForcedAction

	err := repo.dbhandler.WithinTransaction(func(tx *sql.Tx) error {
		const selectQuery = "SELECT id," +
			" chat_id," +
			" requested_by," +
			" target," +
			" requested_at," +
			" confirmations," +
			" required_confirmations," +
			" status," +
			" applied_round " +
			"FROM forced_actions WHERE id = ? FOR UPDATE"

		row := tx.QueryRow(selectQuery, id)

		var (
			a             model.ForcedAction
			target        string
			status        string
			confirmations []byte
		)

		err := row.Scan(
			&a.ID,
			&a.ChatID,
			&a.RequestedBy,
			&target,
			&a.RequestedAt,
			&confirmations,
			&a.RequiredConfirmations,
			&status,
			&a.AppliedRound)
		if err != nil {
			if err == sql.ErrNoRows {
				return force.ErrActionNotFound
			}

			return err
		}

		a.Target = config.TargetClass(target)
		a.Status = model.ForcedActionStatus(status)

		if len(confirmations) > 0 {
			if err = json.Unmarshal(confirmations, &a.Confirmations); err != nil {
				return err
			}
		}

		if err = fn(&a); err != nil {
			return err
		}

		updated, err := json.Marshal(a.Confirmations)
		if err != nil {
			return err
		}

		const updateQuery = "UPDATE forced_actions SET confirmations = ?," +
			" status = ?," +
			" applied_round = ? " +
			"WHERE id = ?"
		if _, err = tx.Exec(updateQuery, updated, string(a.Status), a.AppliedRound, a.ID); err != nil {
			return err
		}

		action = &a

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return action, nil
}

func (repo *ForcedActionRepository) PendingActions(chatID int64) ([]model.ForcedAction, error) {
	const op = "repository.forced_action.PendingActions"

	query := "SELECT id," +
		" chat_id," +
		" requested_by," +
		" target," +
		" requested_at," +
		" confirmations," +
		" required_confirmations," +
		" status," +
		" applied_round " +
		"FROM forced_actions WHERE status = ?"
	args := []interface{}{string(model.ForcePending)}

	if chatID != 0 {
		query += " AND chat_id = ?"
		args = append(args, chatID)
	}

	query += " ORDER BY requested_at DESC"

	rows, err := repo.dbhandler.PrepareAndQuery(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanActions(rows, op)
}

func (repo *ForcedActionRepository) ActionHistory(chatID int64, limit int) ([]model.ForcedAction, error) {
	const op = "repository.forced_action.ActionHistory"

	query := "SELECT id," +
		" chat_id," +
		" requested_by," +
		" target," +
		" requested_at," +
		" confirmations," +
		" required_confirmations," +
		" status," +
		" applied_round " +
		"FROM forced_actions WHERE 1 = 1"
	args := make([]interface{}, 0, 2)

	if chatID != 0 {
		query += " AND chat_id = ?"
		args = append(args, chatID)
	}

	if limit <= 0 {
		limit = 100
	}

	query += " ORDER BY requested_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := repo.dbhandler.PrepareAndQuery(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanActions(rows, op)
}

func scanActions(rows *sql.Rows, op string) ([]model.ForcedAction, error) {
	var actions []model.ForcedAction

	for rows.Next() {
		var (
			a             model.ForcedAction
			target        string
			status        string
			confirmations []byte
		)

		err := rows.Scan(
			&a.ID,
			&a.ChatID,
			&a.RequestedBy,
			&target,
			&a.RequestedAt,
			&confirmations,
			&a.RequiredConfirmations,
			&status,
			&a.AppliedRound)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		a.Target = config.TargetClass(target)
		a.Status = model.ForcedActionStatus(status)

		if len(confirmations) > 0 {
			if err = json.Unmarshal(confirmations, &a.Confirmations); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}

		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return actions, nil
}
