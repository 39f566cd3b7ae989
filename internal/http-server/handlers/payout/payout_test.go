package payout_test

import (
	"io"
	"sync"
	"testing"

	"golang.org/x/exp/slog"

	"go-fairdice/internal/config"
	"go-fairdice/internal/http-server/handlers/payout"
	"go-fairdice/internal/http-server/model"
	"go-fairdice/internal/repository/memory"
)

func newEngine(t *testing.T, houseRateBps int64, maxAttempts int) (*payout.Engine, *memory.Store) {
	t.Helper()

	store := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Ledger{
		HouseRateBps:      houseRateBps,
		PayoutMaxAttempts: maxAttempts,
	}

	return payout.NewEngine(store, nil, cfg, log), store
}

func TestProcessWinSkimsHouseFee(t *testing.T) {
	engine, store := newEngine(t, 300, 3)
	store.SeedUser(7, 1000)

	result, err := engine.Process(7, 10000, "round_1", config.Win)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if result.NewBalance != 11000 {
		t.Errorf("unexpected balance, want: 11000, got: %d", result.NewBalance)
	}

	if result.NetAmount != 9700 {
		t.Errorf("unexpected net amount, want: 9700, got: %d", result.NetAmount)
	}

	if balance, _ := store.UserBalanceValue(7); balance != 11000 {
		t.Errorf("stored balance mismatch: %d", balance)
	}

	if pot := store.PotBalance(); pot != 300 {
		t.Errorf("unexpected pot balance, want: 300, got: %d", pot)
	}
}

func TestProcessRefundSkipsHouseFee(t *testing.T) {
	engine, store := newEngine(t, 300, 3)
	store.SeedUser(8, 0)

	result, err := engine.Process(8, 500, "round_2", config.Refund)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if result.NetAmount != 500 {
		t.Errorf("refund was skimmed: %d", result.NetAmount)
	}

	if pot := store.PotBalance(); pot != 0 {
		t.Errorf("refund fed the pot: %d", pot)
	}
}

func TestConcurrentPayoutsSameUser(t *testing.T) {
	engine, store := newEngine(t, 0, 3)
	store.SeedUser(9, 0)

	const workers = 2

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := engine.Process(9, 500, "round_3", config.Refund); err != nil {
				t.Errorf("process failed: %v", err)
			}
		}()
	}

	wg.Wait()

	if balance, _ := store.UserBalanceValue(9); balance != workers*500 {
		t.Errorf("lost update, want: %d, got: %d", workers*500, balance)
	}
}

func TestProcessUnknownUserPersistsFailedRecord(t *testing.T) {
	engine, store := newEngine(t, 300, 3)

	_, err := engine.Process(404, 500, "round_4", config.Win)
	if err == nil {
		t.Fatalf("payout to unknown user succeeded")
	}

	failed, err := store.FailedPayouts(3)
	if err != nil {
		t.Fatalf("failed payouts lookup: %v", err)
	}

	if len(failed) != 1 {
		t.Fatalf("unexpected failed record count: %d", len(failed))
	}

	record := failed[0]
	if record.Status != model.PayoutFailed {
		t.Errorf("unexpected status: %s", record.Status)
	}

	if record.Attempts != 1 {
		t.Errorf("unexpected attempts: %d", record.Attempts)
	}

	if record.LastError == "" {
		t.Errorf("failed record has no captured error")
	}
}

func TestRetryFailedRecovers(t *testing.T) {
	engine, store := newEngine(t, 300, 3)

	_, err := engine.Process(11, 500, "round_5", config.Win)
	if err == nil {
		t.Fatalf("payout to unknown user succeeded")
	}

	failed, _ := store.FailedPayouts(3)
	if len(failed) != 1 {
		t.Fatalf("unexpected failed record count: %d", len(failed))
	}

	txRef := failed[0].TxRef

	store.SeedUser(11, 0)

	recovered, err := engine.RetryFailed()
	if err != nil {
		t.Fatalf("retry pass failed: %v", err)
	}

	if recovered != 1 {
		t.Fatalf("unexpected recovered count: %d", recovered)
	}

	if balance, _ := store.UserBalanceValue(11); balance != 500 {
		t.Errorf("unexpected balance after retry: %d", balance)
	}

	// retries are not wins a second time, the pot gets nothing
	if pot := store.PotBalance(); pot != 0 {
		t.Errorf("retry fed the pot: %d", pot)
	}

	history, err := engine.History(11, 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}

	if len(history) != 1 {
		t.Fatalf("retry created a second record: %d", len(history))
	}

	if history[0].TxRef != txRef {
		t.Errorf("retry changed the tx_ref: %s vs %s", history[0].TxRef, txRef)
	}

	if history[0].Status != model.PayoutDone {
		t.Errorf("unexpected status after retry: %s", history[0].Status)
	}
}

func TestRetryRespectsAttemptCap(t *testing.T) {
	engine, store := newEngine(t, 300, 1)

	_, err := engine.Process(12, 500, "round_6", config.Win)
	if err == nil {
		t.Fatalf("payout to unknown user succeeded")
	}

	store.SeedUser(12, 0)

	recovered, err := engine.RetryFailed()
	if err != nil {
		t.Fatalf("retry pass failed: %v", err)
	}

	if recovered != 0 {
		t.Errorf("payout at the attempt cap was retried")
	}

	if balance, _ := store.UserBalanceValue(12); balance != 0 {
		t.Errorf("capped payout still credited: %d", balance)
	}
}
