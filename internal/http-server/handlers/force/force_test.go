package force_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"golang.org/x/exp/slog"

	"go-fairdice/internal/config"
	"go-fairdice/internal/http-server/handlers/force"
	"go-fairdice/internal/http-server/model"
	"go-fairdice/internal/lib/fair"
	"go-fairdice/internal/lib/grind"
	"go-fairdice/internal/lib/vault"
	"go-fairdice/internal/repository/memory"
)

func newWorkflow(t *testing.T, threshold int, grindAttempts int) (*force.Workflow, *memory.Store) {
	t.Helper()

	store := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := fair.NewEngine(store, store, vault.New("test-secret"), fair.DefaultDigitCount, log)
	grinder := grind.New(grindAttempts, fair.DefaultDigitCount, log)

	admins := config.Admin{
		AdminIDs:         []int64{1, 2, 3, 4, 5},
		ConfirmThreshold: threshold,
	}

	return force.NewWorkflow(store, store, engine, grinder, admins, log), store
}

func actionByID(t *testing.T, w *force.Workflow, chatID, id int64) *model.ForcedAction {
	t.Helper()

	actions, err := w.History(chatID, 0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}

	for i := range actions {
		if actions[i].ID == id {
			return &actions[i]
		}
	}

	t.Fatalf("action %d not found", id)

	return nil
}

func TestRequestRejectsNonAdmin(t *testing.T) {
	workflow, _ := newWorkflow(t, 2, 10000)

	_, err := workflow.Request(100, 999, config.Small)
	if !errors.Is(err, force.ErrNotAdmin) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequestRejectsUnknownTarget(t *testing.T) {
	workflow, _ := newWorkflow(t, 2, 10000)

	_, err := workflow.Request(100, 1, config.TargetClass("jackpot"))
	if !errors.Is(err, config.ErrUnknownTarget) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfirmRejectsNonAdmin(t *testing.T) {
	workflow, _ := newWorkflow(t, 2, 10000)

	action, err := workflow.Request(100, 1, config.Small)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	_, err = workflow.Confirm(context.Background(), action.ID, 999)
	if !errors.Is(err, force.ErrNotAdmin) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfirmUnknownAction(t *testing.T) {
	workflow, _ := newWorkflow(t, 2, 10000)

	_, err := workflow.Confirm(context.Background(), 42, 1)
	if !errors.Is(err, force.ErrActionNotFound) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDuplicateConfirmRejected(t *testing.T) {
	workflow, _ := newWorkflow(t, 3, 10000)

	action, err := workflow.Request(100, 1, config.Big)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if _, err = workflow.Confirm(context.Background(), action.ID, 2); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}

	_, err = workflow.Confirm(context.Background(), action.ID, 2)
	if !errors.Is(err, force.ErrAlreadyConfirmed) {
		t.Fatalf("unexpected error: %v", err)
	}

	got := actionByID(t, workflow, 100, action.ID)
	if len(got.Confirmations) != 1 {
		t.Errorf("duplicate confirm changed the count: %d", len(got.Confirmations))
	}

	if got.Status != model.ForcePending {
		t.Errorf("unexpected status: %s", got.Status)
	}
}

func TestThresholdAppliesAction(t *testing.T) {
	workflow, store := newWorkflow(t, 2, 10000)

	action, err := workflow.Request(100, 1, config.Odd)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	first, err := workflow.Confirm(context.Background(), action.ID, 1)
	if err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}

	if first.Status != model.ForcePending {
		t.Fatalf("action left pending state early: %s", first.Status)
	}

	applied, err := workflow.Confirm(context.Background(), action.ID, 2)
	if err != nil {
		t.Fatalf("second confirm failed: %v", err)
	}

	if applied.Status != model.ForceApplied {
		t.Fatalf("unexpected status: %s", applied.Status)
	}

	if applied.AppliedRound == "" {
		t.Fatalf("applied action has no round")
	}

	round, err := store.FindRoundByRoundID(applied.AppliedRound)
	if err != nil || round == nil {
		t.Fatalf("applied round has no stored commitment: %v", err)
	}

	if len(round.Commitment) != 64 {
		t.Errorf("unexpected commitment length: %d", len(round.Commitment))
	}
}

func TestConcurrentConfirmsCountDistinctAdmins(t *testing.T) {
	workflow, _ := newWorkflow(t, 5, 10000)

	action, err := workflow.Request(100, 1, config.Even)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	admins := []int64{1, 2, 3, 4}

	var wg sync.WaitGroup
	for _, adminID := range admins {
		adminID := adminID

		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := workflow.Confirm(context.Background(), action.ID, adminID); err != nil {
				t.Errorf("confirm by %d failed: %v", adminID, err)
			}
		}()
	}

	wg.Wait()

	got := actionByID(t, workflow, 100, action.ID)
	if len(got.Confirmations) != len(admins) {
		t.Errorf("unexpected confirmation count, want: %d, got: %d", len(admins), len(got.Confirmations))
	}

	if got.Status != model.ForcePending {
		t.Errorf("unexpected status: %s", got.Status)
	}
}

func TestGrindExhaustedLeavesActionApproved(t *testing.T) {
	workflow, _ := newWorkflow(t, 1, 0)

	action, err := workflow.Request(100, 1, config.Small)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	got, err := workflow.Confirm(context.Background(), action.ID, 2)
	if !errors.Is(err, grind.ErrExhausted) {
		t.Fatalf("unexpected error: %v", err)
	}

	if got == nil || got.Status != model.ForceApproved {
		t.Fatalf("action is not approved after exhausted search: %+v", got)
	}

	stored := actionByID(t, workflow, 100, action.ID)
	if stored.Status != model.ForceApproved {
		t.Errorf("stored status lost: %s", stored.Status)
	}
}

func TestRejectTerminatesAction(t *testing.T) {
	workflow, _ := newWorkflow(t, 2, 10000)

	action, err := workflow.Request(100, 1, config.Big)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	rejected, err := workflow.Reject(action.ID, 2)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if rejected.Status != model.ForceRejected {
		t.Fatalf("unexpected status: %s", rejected.Status)
	}

	_, err = workflow.Confirm(context.Background(), action.ID, 3)
	if !errors.Is(err, force.ErrNotPending) {
		t.Errorf("unexpected error: %v", err)
	}

	pending, err := workflow.Pending(100)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}

	if len(pending) != 0 {
		t.Errorf("rejected action still listed as pending")
	}
}
