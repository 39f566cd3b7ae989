package fair

import (
	"errors"
	"fmt"
	"time"

	"go-fairdice/internal/http-server/model"
)

var ErrDraftConsumed = errors.New("draft round already committed")

// DraftRound is a handle to a round id that has no stored commitment yet.
// The seed grinder only accepts drafts, and a draft can only be obtained
// while no commitment exists, so searching for a seed after a round's
// commitment is published is unrepresentable.
type DraftRound struct {
	roundID  string
	consumed bool
}

func (d *DraftRound) RoundID() string {
	return d.roundID
}

// Draft hands out a handle for a round that does not exist yet.
func (e *Engine) Draft(roundID string) (*DraftRound, error) {
	const op = "fair.Engine.Draft"

	round, err := e.rounds.FindRoundByRoundID(roundID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if round != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrRoundExists)
	}

	return &DraftRound{roundID: roundID}, nil
}

// CommitDraft publishes the commitment for a ground seed and consumes the
// draft. The round_id uniqueness constraint backstops two racing drafts for
// the same id.
func (e *Engine) CommitDraft(draft *DraftRound, seed, periodTag string) (*model.Round, error) {
	const op = "fair.Engine.CommitDraft"

	if draft.consumed {
		return nil, fmt.Errorf("%s: %w", op, ErrDraftConsumed)
	}

	commitment := Commitment(seed)

	encryptedSeed, err := e.vault.Encrypt(seed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round := model.Round{
		RoundID:       draft.roundID,
		Commitment:    commitment,
		EncryptedSeed: encryptedSeed,
		PeriodTag:     periodTag,
		CreatedAt:     time.Now(),
	}

	id, err := e.rounds.SaveRound(round)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round.ID = id
	draft.consumed = true

	e.appendAudit("system", "round_committed", draft.roundID, map[string]interface{}{
		"commitment": commitment,
		"forced":     true,
	})

	return &round, nil
}
