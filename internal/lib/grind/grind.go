package grind

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/exp/slog"

	"go-fairdice/internal/config"
	"go-fairdice/internal/lib/fair"
	"go-fairdice/internal/lib/logger/sl"
	"go-fairdice/internal/lib/random"
)

var ErrExhausted = errors.New("seed search exhausted")

const seedByteLen = 32

// Grinder searches for a server seed whose final digit satisfies a target
// outcome class. It only accepts fair.DraftRound handles, which exist solely
// for rounds without a published commitment.
type Grinder struct {
	maxAttempts int
	digitCount  int
	log         *slog.Logger
}

type Result struct {
	Seed       string
	Commitment string
	Attempts   int
}

func New(maxAttempts, digitCount int, log *slog.Logger) *Grinder {
	if digitCount <= 0 {
		digitCount = fair.DefaultDigitCount
	}

	return &Grinder{
		maxAttempts: maxAttempts,
		digitCount:  digitCount,
		log:         log,
	}
}

// Find draws fresh random seeds until one matches the target or the attempt
// bound is exhausted. The loop never runs unboundedly and honors ctx
// cancellation between attempts.
func (g *Grinder) Find(ctx context.Context, draft *fair.DraftRound, target config.TargetClass) (*Result, error) {
	const op = "grind.Grinder.Find"

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		default:
		}

		seed := random.NewHexString(seedByteLen)
		digits := fair.ExtractDigits(seed, draft.RoundID(), "", g.digitCount)

		if target.Matches(digits[len(digits)-1]) {
			g.log.Info("ground seed found",
				sl.String("round_id", draft.RoundID()),
				sl.String("target", string(target)),
				sl.Int64("attempts", int64(attempt)))

			return &Result{
				Seed:       seed,
				Commitment: fair.Commitment(seed),
				Attempts:   attempt,
			}, nil
		}
	}

	g.log.Error("seed search exhausted",
		sl.String("round_id", draft.RoundID()),
		sl.String("target", string(target)),
		sl.Int64("max_attempts", int64(g.maxAttempts)))

	return nil, fmt.Errorf("%s: %w", op, ErrExhausted)
}
