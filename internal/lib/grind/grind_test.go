package grind_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"golang.org/x/exp/slog"

	"go-fairdice/internal/config"
	"go-fairdice/internal/lib/fair"
	"go-fairdice/internal/lib/grind"
	"go-fairdice/internal/lib/vault"
	"go-fairdice/internal/repository/memory"
)

func newDraft(t *testing.T, roundID string) *fair.DraftRound {
	t.Helper()

	store := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := fair.NewEngine(store, store, vault.New("test-secret"), fair.DefaultDigitCount, log)

	draft, err := engine.Draft(roundID)
	if err != nil {
		t.Fatalf("draft failed: %v", err)
	}

	return draft
}

func TestFindMatchesTarget(t *testing.T) {
	cases := []struct {
		name   string
		target config.TargetClass
	}{
		{name: "Small", target: config.Small},
		{name: "Big", target: config.Big},
		{name: "Even", target: config.Even},
		{name: "Odd", target: config.Odd},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	grinder := grind.New(10000, fair.DefaultDigitCount, log)

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			draft := newDraft(t, "grind_"+tc.name)

			result, err := grinder.Find(context.Background(), draft, tc.target)
			if err != nil {
				t.Fatalf("find failed: %v", err)
			}

			digits := fair.ExtractDigits(result.Seed, draft.RoundID(), "", fair.DefaultDigitCount)
			if !tc.target.Matches(digits[len(digits)-1]) {
				t.Errorf("ground seed does not match target %s, digits: %v", tc.target, digits)
			}

			if result.Commitment != fair.Commitment(result.Seed) {
				t.Errorf("result commitment does not hash the seed")
			}

			if result.Attempts < 1 || result.Attempts > 10000 {
				t.Errorf("attempts out of bound: %d", result.Attempts)
			}
		})
	}
}

func TestFindExhausted(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	grinder := grind.New(0, fair.DefaultDigitCount, log)

	draft := newDraft(t, "grind_exhausted")

	_, err := grinder.Find(context.Background(), draft, config.Small)
	if !errors.Is(err, grind.ErrExhausted) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFindHonorsContext(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	grinder := grind.New(1000000, fair.DefaultDigitCount, log)

	draft := newDraft(t, "grind_cancelled")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := grinder.Find(ctx, draft, config.Odd)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error: %v", err)
	}
}
