package force

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/exp/slog"

	"go-fairdice/internal/config"
	"go-fairdice/internal/http-server/model"
	"go-fairdice/internal/lib/fair"
	"go-fairdice/internal/lib/grind"
	"go-fairdice/internal/lib/logger/sl"
)

var (
	ErrNotAdmin         = errors.New("actor is not in the admin set")
	ErrActionNotFound   = errors.New("forced action not found")
	ErrNotPending       = errors.New("forced action is not pending")
	ErrAlreadyConfirmed = errors.New("admin already confirmed this action")
)

type ActionRepository interface {
	SaveAction(action model.ForcedAction) (int64, error)
	// UpdateActionLocked runs fn against the action under an exclusive
	// per-record lock; mutations are persisted only when fn returns nil.
	// Implementations return ErrActionNotFound for unknown ids.
	UpdateActionLocked(id int64, fn func(action *model.ForcedAction) error) (*model.ForcedAction, error)
	PendingActions(chatID int64) ([]model.ForcedAction, error)
	ActionHistory(chatID int64, limit int) ([]model.ForcedAction, error)
}

type AuditWriter interface {
	AppendAudit(entry model.AuditLog) error
}

type SeedCommitter interface {
	Draft(roundID string) (*fair.DraftRound, error)
	CommitDraft(draft *fair.DraftRound, seed, periodTag string) (*model.Round, error)
}

type SeedGrinder interface {
	Find(ctx context.Context, draft *fair.DraftRound, target config.TargetClass) (*grind.Result, error)
}

// Workflow is the multi-admin authorization state machine for forced
// outcomes: PENDING -> APPROVED -> APPLIED, or PENDING -> REJECTED, forward
// only.
type Workflow struct {
	actions ActionRepository
	audit   AuditWriter
	engine  SeedCommitter
	grinder SeedGrinder
	admins  config.Admin
	log     *slog.Logger
}

func NewWorkflow(
	actions ActionRepository,
	audit AuditWriter,
	engine SeedCommitter,
	grinder SeedGrinder,
	admins config.Admin,
	log *slog.Logger,
) *Workflow {
	return &Workflow{
		actions: actions,
		audit:   audit,
		engine:  engine,
		grinder: grinder,
		admins:  admins,
		log:     log,
	}
}

func (w *Workflow) Request(chatID, requestedBy int64, target config.TargetClass) (*model.ForcedAction, error) {
	const op = "handlers.force.Workflow.Request"

	if !w.admins.IsAdmin(requestedBy) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAdmin)
	}

	if _, err := config.ParseTargetClass(string(target)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	action := model.ForcedAction{
		ChatID:                chatID,
		RequestedBy:           requestedBy,
		Target:                target,
		RequestedAt:           time.Now(),
		Confirmations:         []model.Confirmation{},
		RequiredConfirmations: w.admins.ConfirmThreshold,
		Status:                model.ForcePending,
	}

	id, err := w.actions.SaveAction(action)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	action.ID = id

	w.appendAudit(requestedBy, "force_requested", chatID, map[string]interface{}{
		"target":           string(target),
		"forced_action_id": id,
	})

	w.log.Info("forced outcome requested",
		sl.Int64("chat_id", chatID),
		sl.Int64("requested_by", requestedBy),
		sl.String("target", string(target)))

	return &action, nil
}

// Confirm records one admin's confirmation under the action's exclusive
// lock. When distinct confirmations reach the threshold the action flips to
// APPROVED and the grind-then-commit sequence runs; on success the action
// becomes APPLIED. A grind that exhausts its bound leaves the action
// APPROVED and returns grind.ErrExhausted alongside the action so callers
// can surface the failure instead of silently discarding it.
func (w *Workflow) Confirm(ctx context.Context, actionID, confirmedBy int64) (*model.ForcedAction, error) {
	const op = "handlers.force.Workflow.Confirm"

	if !w.admins.IsAdmin(confirmedBy) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAdmin)
	}

	action, err := w.actions.UpdateActionLocked(actionID, func(a *model.ForcedAction) error {
		if a.Status != model.ForcePending {
			return ErrNotPending
		}

		if a.ConfirmedBy(confirmedBy) {
			return ErrAlreadyConfirmed
		}

		a.Confirmations = append(a.Confirmations, model.Confirmation{
			AdminID:     confirmedBy,
			ConfirmedAt: time.Now(),
		})

		if len(a.Confirmations) >= a.RequiredConfirmations {
			a.Status = model.ForceApproved
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	w.appendAudit(confirmedBy, "force_confirmed", action.ChatID, map[string]interface{}{
		"forced_action_id": action.ID,
		"confirmations":    len(action.Confirmations),
	})

	if action.Status != model.ForceApproved {
		return action, nil
	}

	applied, err := w.apply(ctx, action)
	if err != nil {
		return applied, fmt.Errorf("%s: %w", op, err)
	}

	return applied, nil
}

// Reject terminates a pending action. Only admins may reject.
func (w *Workflow) Reject(actionID, rejectedBy int64) (*model.ForcedAction, error) {
	const op = "handlers.force.Workflow.Reject"

	if !w.admins.IsAdmin(rejectedBy) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAdmin)
	}

	action, err := w.actions.UpdateActionLocked(actionID, func(a *model.ForcedAction) error {
		if a.Status != model.ForcePending {
			return ErrNotPending
		}

		a.Status = model.ForceRejected

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	w.appendAudit(rejectedBy, "force_rejected", action.ChatID, map[string]interface{}{
		"forced_action_id": action.ID,
	})

	return action, nil
}

// apply runs the grind-then-commit sequence for an approved action. The
// round id is derived from the scope and action id, so the commitment lands
// on a fresh round bound to the requesting chat.
func (w *Workflow) apply(ctx context.Context, action *model.ForcedAction) (*model.ForcedAction, error) {
	const op = "handlers.force.Workflow.apply"

	roundID := fmt.Sprintf("%d_forced_%d", action.ChatID, action.ID)

	draft, err := w.engine.Draft(roundID)
	if err != nil {
		return action, fmt.Errorf("%s: %w", op, err)
	}

	result, err := w.grinder.Find(ctx, draft, action.Target)
	if err != nil {
		if errors.Is(err, grind.ErrExhausted) {
			w.appendAudit(0, "force_grind_exhausted", action.ChatID, map[string]interface{}{
				"forced_action_id": action.ID,
				"target":           string(action.Target),
			})
		}

		return action, fmt.Errorf("%s: %w", op, err)
	}

	if _, err = w.engine.CommitDraft(draft, result.Seed, ""); err != nil {
		return action, fmt.Errorf("%s: %w", op, err)
	}

	applied, err := w.actions.UpdateActionLocked(action.ID, func(a *model.ForcedAction) error {
		if a.Status != model.ForceApproved {
			return ErrNotPending
		}

		a.Status = model.ForceApplied
		a.AppliedRound = roundID

		return nil
	})
	if err != nil {
		return action, fmt.Errorf("%s: %w", op, err)
	}

	w.appendAudit(0, "force_applied", action.ChatID, map[string]interface{}{
		"forced_action_id": action.ID,
		"target":           string(action.Target),
		"applied_round":    roundID,
		"grind_attempts":   result.Attempts,
	})

	w.log.Info("forced outcome applied",
		sl.Int64("forced_action_id", action.ID),
		sl.String("applied_round", roundID))

	return applied, nil
}

func (w *Workflow) Pending(chatID int64) ([]model.ForcedAction, error) {
	const op = "handlers.force.Workflow.Pending"

	actions, err := w.actions.PendingActions(chatID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return actions, nil
}

func (w *Workflow) History(chatID int64, limit int) ([]model.ForcedAction, error) {
	const op = "handlers.force.Workflow.History"

	actions, err := w.actions.ActionHistory(chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return actions, nil
}

// actor id 0 records the system as the actor.
func (w *Workflow) appendAudit(actorID int64, action string, chatID int64, meta map[string]interface{}) {
	actor := "system"
	if actorID != 0 {
		actor = strconv.FormatInt(actorID, 10)
	}

	entry := model.AuditLog{
		ActorID:   actor,
		Action:    action,
		Target:    strconv.FormatInt(chatID, 10),
		CreatedAt: time.Now(),
	}

	if meta != nil {
		raw, err := json.Marshal(meta)
		if err == nil {
			entry.Meta = raw
		}
	}

	if err := w.audit.AppendAudit(entry); err != nil {
		w.log.Error("failed to append audit record",
			sl.Err(err),
			sl.String("action", action))
	}
}
