package fair_test

import (
	"errors"
	"io"
	"testing"

	"golang.org/x/exp/slog"

	"go-fairdice/internal/lib/fair"
	"go-fairdice/internal/lib/vault"
	"go-fairdice/internal/repository/memory"
)

func newEngine(t *testing.T) (*fair.Engine, *memory.Store) {
	t.Helper()

	store := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return fair.NewEngine(store, store, vault.New("test-secret"), fair.DefaultDigitCount, log), store
}

func TestGenerateRevealRoundtrip(t *testing.T) {
	engine, store := newEngine(t)

	round, err := engine.Generate("round_1", "2026-09-01", false)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if len(round.Commitment) != 64 {
		t.Fatalf("unexpected commitment length: %d", len(round.Commitment))
	}

	stored, err := store.FindRoundByRoundID("round_1")
	if err != nil || stored == nil {
		t.Fatalf("round was not persisted: %v", err)
	}

	if stored.RevealedAt != nil {
		t.Fatalf("round marked revealed before reveal")
	}

	reveal, err := engine.Reveal("round_1")
	if err != nil {
		t.Fatalf("reveal failed: %v", err)
	}

	if fair.Commitment(reveal.Seed) != round.Commitment {
		t.Errorf("revealed seed does not hash to the commitment")
	}

	if len(reveal.Digits) != fair.DefaultDigitCount {
		t.Errorf("unexpected digit count: %d", len(reveal.Digits))
	}

	match, _, _ := engine.Verify(reveal.Seed, "round_1", "", reveal.Digits)
	if !match {
		t.Errorf("revealed draw failed stateless verification")
	}

	stored, _ = store.FindRoundByRoundID("round_1")
	if stored.RevealedAt == nil {
		t.Errorf("reveal did not mark the round revealed")
	}
}

func TestRevealIsIdempotent(t *testing.T) {
	engine, _ := newEngine(t)

	if _, err := engine.Generate("round_2", "", false); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	first, err := engine.Reveal("round_2")
	if err != nil {
		t.Fatalf("first reveal failed: %v", err)
	}

	second, err := engine.Reveal("round_2")
	if err != nil {
		t.Fatalf("second reveal failed: %v", err)
	}

	if first.Seed != second.Seed {
		t.Errorf("repeated reveals returned different seeds")
	}
}

func TestRevealUnknownRound(t *testing.T) {
	engine, _ := newEngine(t)

	_, err := engine.Reveal("missing")
	if !errors.Is(err, fair.ErrRoundNotFound) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRevealDetectsCorruptedCommitment(t *testing.T) {
	engine, store := newEngine(t)

	if _, err := engine.Generate("round_3", "", false); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	store.CorruptRoundCommitment("round_3", fair.Commitment("tampered"))

	_, err := engine.Reveal("round_3")
	if !errors.Is(err, fair.ErrCommitmentMismatch) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGenerateDuplicateRound(t *testing.T) {
	engine, _ := newEngine(t)

	if _, err := engine.Generate("round_4", "", false); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	_, err := engine.Generate("round_4", "", false)
	if !errors.Is(err, fair.ErrRoundExists) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDraftRequiresUncommittedRound(t *testing.T) {
	engine, _ := newEngine(t)

	if _, err := engine.Generate("round_5", "", false); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	_, err := engine.Draft("round_5")
	if !errors.Is(err, fair.ErrRoundExists) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCommitDraftConsumesDraft(t *testing.T) {
	engine, _ := newEngine(t)

	draft, err := engine.Draft("round_6")
	if err != nil {
		t.Fatalf("draft failed: %v", err)
	}

	seed := "abababababababababababababababababababababababababababababababab"

	round, err := engine.CommitDraft(draft, seed, "")
	if err != nil {
		t.Fatalf("commit draft failed: %v", err)
	}

	if round.Commitment != fair.Commitment(seed) {
		t.Errorf("unexpected commitment: %s", round.Commitment)
	}

	_, err = engine.CommitDraft(draft, seed, "")
	if !errors.Is(err, fair.ErrDraftConsumed) {
		t.Errorf("unexpected error: %v", err)
	}
}
