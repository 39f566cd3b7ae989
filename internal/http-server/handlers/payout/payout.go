package payout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"go-fairdice/internal/config"
	"go-fairdice/internal/http-server/handlers/event"
	"go-fairdice/internal/http-server/model"
	"go-fairdice/internal/lib/converter"
	"go-fairdice/internal/lib/logger/sl"
)

// ErrUserNotFound is returned by ledger implementations when the target
// balance record does not exist.
var ErrUserNotFound = errors.New("user not found")

// Ledger is the storage contract for money movement. WithinUserTx serializes
// all transfers to one user: the implementation holds an exclusive lock on
// the user's balance record for the duration of fn and rolls every mutation
// back when fn errors. Transfers to distinct users may run fully in
// parallel.
type Ledger interface {
	WithinUserTx(userID int64, fn func(tx LedgerTx) error) error
	// SavePayoutRecord upserts a payout by tx_ref outside any transaction,
	// so FAILED records survive the rollback that produced them.
	SavePayoutRecord(payout model.Payout) error
	FailedPayouts(maxAttempts int) ([]model.Payout, error)
	PayoutHistory(userID int64, limit int) ([]model.Payout, error)
}

// LedgerTx is the view of the ledger inside one locked transaction.
type LedgerTx interface {
	UserBalance(userID int64) (int64, error)
	SetUserBalance(userID int64, balance int64) error
	AddToPot(amount int64) error
	SavePayout(payout model.Payout) error
	AppendAudit(entry model.AuditLog) error
}

type Result struct {
	TxRef      string `json:"tx_ref"`
	Amount     int64  `json:"amount"`
	NetAmount  int64  `json:"net_amount"`
	NewBalance int64  `json:"new_balance"`
}

// Engine moves money. Each payout is one atomic transaction keyed by a
// globally unique tx_ref; retries reuse the existing record and reference.
type Engine struct {
	ledger       Ledger
	notifier     event.Notifier
	houseRateBps int64
	maxAttempts  int
	log          *slog.Logger
}

func NewEngine(
	ledger Ledger,
	notifier event.Notifier,
	cfg config.Ledger,
	log *slog.Logger,
) *Engine {
	return &Engine{
		ledger:       ledger,
		notifier:     notifier,
		houseRateBps: cfg.HouseRateBps,
		maxAttempts:  cfg.PayoutMaxAttempts,
		log:          log,
	}
}

// Process credits amount to the user inside a single locked transaction.
// For "win" payouts with a configured house rate, floor(amount*rate) goes to
// the shared pot as a parallel bookkeeping skim; the user still receives the
// full amount and the net figure is only reported back. On failure every
// balance and pot mutation rolls back, but a FAILED payout record with the
// captured error is persisted outside the rollback.
func (e *Engine) Process(userID, amount int64, roundID string, reason config.PayoutReason) (*Result, error) {
	payout := model.Payout{
		TxRef:     uuid.New().String(),
		UserID:    userID,
		Amount:    amount,
		RoundID:   roundID,
		Status:    model.PayoutPending,
		CreatedAt: time.Now(),
	}

	return e.process(payout, reason)
}

func (e *Engine) process(payout model.Payout, reason config.PayoutReason) (*Result, error) {
	const op = "handlers.payout.Engine.Process"

	var result Result

	err := e.ledger.WithinUserTx(payout.UserID, func(tx LedgerTx) error {
		oldBalance, err := tx.UserBalance(payout.UserID)
		if err != nil {
			return err
		}

		payout.Status = model.PayoutPending
		if err = tx.SavePayout(payout); err != nil {
			return err
		}

		newBalance := oldBalance + payout.Amount
		if err = tx.SetUserBalance(payout.UserID, newBalance); err != nil {
			return err
		}

		netAmount := payout.Amount
		if reason == config.Win && e.houseRateBps > 0 {
			houseFee := payout.Amount * e.houseRateBps / 10000
			if err = tx.AddToPot(houseFee); err != nil {
				return err
			}

			netAmount = payout.Amount - houseFee
		}

		now := time.Now()
		payout.Status = model.PayoutDone
		payout.CompletedAt = &now
		payout.LastError = ""

		if err = tx.SavePayout(payout); err != nil {
			return err
		}

		meta, _ := json.Marshal(map[string]interface{}{
			"tx_ref":      payout.TxRef,
			"amount":      payout.Amount,
			"net_amount":  netAmount,
			"round_id":    payout.RoundID,
			"old_balance": oldBalance,
			"new_balance": newBalance,
		})

		if err = tx.AppendAudit(model.AuditLog{
			ActorID:   "system",
			Action:    "payout_" + string(reason),
			Target:    strconv.FormatInt(payout.UserID, 10),
			Meta:      meta,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		result = Result{
			TxRef:      payout.TxRef,
			Amount:     payout.Amount,
			NetAmount:  netAmount,
			NewBalance: newBalance,
		}

		return nil
	})
	if err != nil {
		e.log.Error("payout transaction failed",
			sl.Err(err),
			sl.String("tx_ref", payout.TxRef),
			sl.Int64("user_id", payout.UserID))

		payout.Status = model.PayoutFailed
		payout.Attempts++
		payout.LastError = err.Error()
		payout.CompletedAt = nil

		if saveErr := e.ledger.SavePayoutRecord(payout); saveErr != nil {
			e.log.Error("failed to persist failed payout record", sl.Err(saveErr))
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.notify(payout, result)

	return &result, nil
}

// RetryFailed re-runs FAILED payouts whose attempt count is below the cap,
// reusing each record's tx_ref. Payouts at the cap stay terminally FAILED.
// It returns the number of payouts recovered.
func (e *Engine) RetryFailed() (int, error) {
	const op = "handlers.payout.Engine.RetryFailed"

	failed, err := e.ledger.FailedPayouts(e.maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	recovered := 0

	for _, payout := range failed {
		if _, err = e.process(payout, config.Retry); err != nil {
			e.log.Error("payout retry failed",
				sl.Err(err),
				sl.String("tx_ref", payout.TxRef))

			continue
		}

		recovered++
	}

	return recovered, nil
}

func (e *Engine) History(userID int64, limit int) ([]model.Payout, error) {
	const op = "handlers.payout.Engine.History"

	payouts, err := e.ledger.PayoutHistory(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return payouts, nil
}

func (e *Engine) notify(payout model.Payout, result Result) {
	if e.notifier == nil {
		return
	}

	err := e.notifier.Notify("balance-channel", "payout-done", map[string]interface{}{
		"user_id":    payout.UserID,
		"tx_ref":     payout.TxRef,
		"amount":     converter.ConvertAmountIntToString(result.Amount),
		"net_amount": converter.ConvertAmountIntToString(result.NetAmount),
		"balance":    converter.ConvertAmountIntToString(result.NewBalance),
	})
	if err != nil {
		e.log.Error("failed to notify payout event", sl.Err(err))
	}
}

// RetryJob runs the bounded retry pass off the request path via the worker
// pool.
type RetryJob struct {
	Engine *Engine
	Log    *slog.Logger
}

func (j *RetryJob) Execute() {
	recovered, err := j.Engine.RetryFailed()
	if err != nil {
		j.Log.Error("payout retry pass failed", sl.Err(err))

		return
	}

	j.Log.Info("payout retry pass finished", sl.Int64("recovered", int64(recovered)))
}
