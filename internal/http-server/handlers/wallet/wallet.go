package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"go-fairdice/internal/config"
	"go-fairdice/internal/http-server/handlers/payout"
	"go-fairdice/internal/http-server/model"
	resp "go-fairdice/internal/lib/api/response"
	"go-fairdice/internal/lib/converter"
	"go-fairdice/internal/lib/jobs"
	"go-fairdice/internal/lib/logger/sl"
)

const defaultHistoryLimit = 10

type Handler struct {
	log       *slog.Logger
	validator *validator.Validate
	engine    *payout.Engine
	queue     jobs.Queue
}

func New(log *slog.Logger, engine *payout.Engine, queue jobs.Queue) *Handler {
	return &Handler{
		log:       log,
		validator: validator.New(),
		engine:    engine,
		queue:     queue,
	}
}

type ProcessRequest struct {
	UserID  int64   `json:"user_id" validate:"required"`
	Amount  float64 `json:"amount" validate:"required,gt=0"`
	RoundID string  `json:"round_id"`
	Reason  string  `json:"reason" validate:"omitempty,oneof=win retry refund"`
}

type ProcessResponse struct {
	resp.Response
	TxRef      string `json:"tx_ref"`
	Amount     string `json:"amount"`
	NetAmount  string `json:"net_amount"`
	NewBalance string `json:"new_balance"`
}

func (h *Handler) Process() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.wallet.Process"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req ProcessRequest

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

		reason := config.PayoutReason(req.Reason)
		if reason == "" {
			reason = config.Win
		}

		amount := converter.ConvertAmountFloatToInt(req.Amount)

		result, err := h.engine.Process(req.UserID, amount, req.RoundID, reason)
		if err != nil {
			if errors.Is(err, payout.ErrUserNotFound) {
				log.Error("failed to find user", sl.Int64("user_id", req.UserID))

				render.JSON(w, r, resp.Error("failed to find user", http.StatusNotFound))

				return
			}

			// The failure is already captured as a FAILED payout record
			// and will be picked up by the retry pass.
			log.Error("payout failed", sl.Err(err))

			render.JSON(w, r, resp.Error("payout failed", http.StatusInternalServerError))

			return
		}

		log.Info("payout processed",
			sl.String("tx_ref", result.TxRef),
			sl.Int64("user_id", req.UserID))

		render.JSON(w, r, ProcessResponse{
			Response:   resp.OK(),
			TxRef:      result.TxRef,
			Amount:     converter.ConvertAmountIntToString(result.Amount),
			NetAmount:  converter.ConvertAmountIntToString(result.NetAmount),
			NewBalance: converter.ConvertAmountIntToString(result.NewBalance),
		})
	}
}

func (h *Handler) Retry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.wallet.Retry"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		jobs.Dispatch(h.queue, &payout.RetryJob{Engine: h.engine, Log: h.log}, 0)

		log.Info("payout retry pass dispatched")

		render.JSON(w, r, resp.OK())
	}
}

type HistoryResponse struct {
	resp.Response
	Payouts []model.Payout `json:"payouts"`
}

func (h *Handler) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.wallet.History"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			render.JSON(w, r, resp.Error("invalid user id", http.StatusBadRequest))

			return
		}

		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = defaultHistoryLimit
		}

		payouts, err := h.engine.History(userID, limit)
		if err != nil {
			log.Error("failed to load payout history", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to load payout history", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, HistoryResponse{
			Response: resp.OK(),
			Payouts:  payouts,
		})
	}
}
