package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go-fairdice/internal/http-server/handlers/mysql"
	"go-fairdice/internal/http-server/model"
)

type RoundRepository struct {
	dbhandler mysql.Handler
}

func NewRoundRepository(dbhandler mysql.Handler) *RoundRepository {
	return &RoundRepository{dbhandler: dbhandler}
}

func (repo *RoundRepository) SaveRound(round model.Round) (int64, error) {
	const op = "repository.round.SaveRound"

	const query = "INSERT INTO rounds(round_id," +
		" commitment," +
		" encrypted_seed," +
		" period_tag," +
		" client_seed_allowed," +
		" created_at) " +
		"VALUES(?, ?, ?, ?, ?, ?)"
	res, err := repo.dbhandler.PrepareAndExecute(query,
		round.RoundID,
		round.Commitment,
		round.EncryptedSeed,
		round.PeriodTag,
		round.ClientSeedAllowed,
		round.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, _ := res.LastInsertId()

	return id, nil
}

func (repo *RoundRepository) FindRoundByRoundID(roundID string) (*model.Round, error) {
	const op = "repository.round.FindRoundByRoundID"

	const query = "SELECT id," +
		" round_id," +
		" commitment," +
		" encrypted_seed," +
		" revealed_seed_hash," +
		" revealed_at," +
		" period_tag," +
		" client_seed_allowed," +
		" created_at " +
		"FROM rounds WHERE round_id = ?"
	row, err := repo.dbhandler.PrepareAndQueryRow(query, roundID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round := &model.Round{}

	var (
		revealedSeedHash sql.NullString
		revealedAt       sql.NullTime
	)

	err = row.Scan(
		&round.ID,
		&round.RoundID,
		&round.Commitment,
		&round.EncryptedSeed,
		&revealedSeedHash,
		&revealedAt,
		&round.PeriodTag,
		&round.ClientSeedAllowed,
		&round.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if revealedSeedHash.Valid {
		round.RevealedSeedHash = &revealedSeedHash.String
	}

	if revealedAt.Valid {
		round.RevealedAt = &revealedAt.Time
	}

	return round, nil
}

func (repo *RoundRepository) MarkRoundRevealed(roundID string, revealedSeedHash string, revealedAt time.Time) error {
	const op = "repository.round.MarkRoundRevealed"

	// revealed_at is set-once; an already revealed round is left untouched.
	const query = "UPDATE rounds SET revealed_seed_hash = ?, revealed_at = ? " +
		"WHERE round_id = ? AND revealed_at IS NULL"
	_, err := repo.dbhandler.PrepareAndExecute(query, revealedSeedHash, revealedAt, roundID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
