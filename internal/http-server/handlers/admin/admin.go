package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"go-fairdice/internal/config"
	"go-fairdice/internal/http-server/handlers/force"
	"go-fairdice/internal/http-server/model"
	resp "go-fairdice/internal/lib/api/response"
	"go-fairdice/internal/lib/grind"
	"go-fairdice/internal/lib/logger/sl"
)

const defaultHistoryLimit = 10

type Handler struct {
	log       *slog.Logger
	validator *validator.Validate
	workflow  *force.Workflow
}

func New(log *slog.Logger, workflow *force.Workflow) *Handler {
	return &Handler{
		log:       log,
		validator: validator.New(),
		workflow:  workflow,
	}
}

type RequestForceRequest struct {
	ChatID  int64  `json:"chat_id" validate:"required"`
	AdminID int64  `json:"admin_id" validate:"required"`
	Target  string `json:"target" validate:"required,oneof=small big even odd"`
}

type RequestForceResponse struct {
	resp.Response
	ActionID              int64 `json:"action_id"`
	RequiredConfirmations int   `json:"required_confirmations"`
}

func (h *Handler) RequestForce() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.RequestForce"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req RequestForceRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		if err := h.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		action, err := h.workflow.Request(req.ChatID, req.AdminID, config.TargetClass(req.Target))
		if err != nil {
			if errors.Is(err, force.ErrNotAdmin) {
				log.Error("forced outcome requested by non-admin", sl.Int64("admin_id", req.AdminID))

				render.JSON(w, r, resp.Error("only admins can request forced outcomes", http.StatusForbidden))

				return
			}

			log.Error("failed to request forced outcome", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to request forced outcome", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, RequestForceResponse{
			Response:              resp.OK(),
			ActionID:              action.ID,
			RequiredConfirmations: action.RequiredConfirmations,
		})
	}
}

type ConfirmForceRequest struct {
	AdminID int64 `json:"admin_id" validate:"required"`
}

type ConfirmForceResponse struct {
	resp.Response
	ActionID              int64  `json:"action_id"`
	Confirmations         int    `json:"confirmations"`
	RequiredConfirmations int    `json:"required_confirmations"`
	Status                string `json:"status"`
	AppliedRound          string `json:"applied_round,omitempty"`
}

func (h *Handler) ConfirmForce() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.ConfirmForce"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actionID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.JSON(w, r, resp.Error("invalid action id", http.StatusBadRequest))

			return
		}

		var req ConfirmForceRequest

		if err = render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		if err = h.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		action, err := h.workflow.Confirm(r.Context(), actionID, req.AdminID)
		if err != nil {
			switch {
			case errors.Is(err, force.ErrNotAdmin):
				render.JSON(w, r, resp.Error("only admins can confirm forced outcomes", http.StatusForbidden))
			case errors.Is(err, force.ErrActionNotFound):
				render.JSON(w, r, resp.Error("forced action not found", http.StatusNotFound))
			case errors.Is(err, force.ErrNotPending):
				render.JSON(w, r, resp.Error("forced action is no longer pending", http.StatusBadRequest))
			case errors.Is(err, force.ErrAlreadyConfirmed):
				render.JSON(w, r, resp.Error("already confirmed by this admin", http.StatusBadRequest))
			case errors.Is(err, grind.ErrExhausted):
				// Approved but not applied: the caller has to act on this.
				log.Error("forced outcome approved but seed search exhausted",
					sl.Int64("action_id", actionID))

				render.JSON(w, r, resp.Error("approved but not applied: seed search exhausted", http.StatusConflict))
			default:
				log.Error("failed to confirm forced outcome", sl.Err(err))

				render.JSON(w, r, resp.Error("failed to confirm forced outcome", http.StatusInternalServerError))
			}

			return
		}

		render.JSON(w, r, ConfirmForceResponse{
			Response:              resp.OK(),
			ActionID:              action.ID,
			Confirmations:         len(action.Confirmations),
			RequiredConfirmations: action.RequiredConfirmations,
			Status:                string(action.Status),
			AppliedRound:          action.AppliedRound,
		})
	}
}

type RejectForceRequest struct {
	AdminID int64 `json:"admin_id" validate:"required"`
}

func (h *Handler) RejectForce() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.RejectForce"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actionID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.JSON(w, r, resp.Error("invalid action id", http.StatusBadRequest))

			return
		}

		var req RejectForceRequest

		if err = render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		if err = h.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		action, err := h.workflow.Reject(actionID, req.AdminID)
		if err != nil {
			switch {
			case errors.Is(err, force.ErrNotAdmin):
				render.JSON(w, r, resp.Error("only admins can reject forced outcomes", http.StatusForbidden))
			case errors.Is(err, force.ErrActionNotFound):
				render.JSON(w, r, resp.Error("forced action not found", http.StatusNotFound))
			case errors.Is(err, force.ErrNotPending):
				render.JSON(w, r, resp.Error("forced action is no longer pending", http.StatusBadRequest))
			default:
				log.Error("failed to reject forced outcome", sl.Err(err))

				render.JSON(w, r, resp.Error("failed to reject forced outcome", http.StatusInternalServerError))
			}

			return
		}

		render.JSON(w, r, ConfirmForceResponse{
			Response:              resp.OK(),
			ActionID:              action.ID,
			Confirmations:         len(action.Confirmations),
			RequiredConfirmations: action.RequiredConfirmations,
			Status:                string(action.Status),
		})
	}
}

type ActionsResponse struct {
	resp.Response
	Actions []model.ForcedAction `json:"actions"`
}

func (h *Handler) Pending() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.Pending"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		chatID, _ := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)

		actions, err := h.workflow.Pending(chatID)
		if err != nil {
			log.Error("failed to list pending actions", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to list pending actions", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, ActionsResponse{
			Response: resp.OK(),
			Actions:  actions,
		})
	}
}

func (h *Handler) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.History"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		chatID, _ := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)

		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = defaultHistoryLimit
		}

		actions, err := h.workflow.History(chatID, limit)
		if err != nil {
			log.Error("failed to list action history", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to list action history", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, ActionsResponse{
			Response: resp.OK(),
			Actions:  actions,
		})
	}
}
