package round

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"go-fairdice/internal/http-server/handlers/event"
	resp "go-fairdice/internal/lib/api/response"
	"go-fairdice/internal/lib/fair"
	"go-fairdice/internal/lib/logger/sl"
)

type Handler struct {
	log       *slog.Logger
	validator *validator.Validate
	engine    *fair.Engine
	notifier  event.Notifier
}

func New(log *slog.Logger, engine *fair.Engine, notifier event.Notifier) *Handler {
	return &Handler{
		log:       log,
		validator: validator.New(),
		engine:    engine,
		notifier:  notifier,
	}
}

type GenerateRequest struct {
	RoundID   string `json:"round_id"`
	PeriodTag string `json:"period_tag"`
}

type GenerateResponse struct {
	resp.Response
	RoundID    string `json:"round_id"`
	Commitment string `json:"commitment"`
}

func (h *Handler) Generate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.round.Generate"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req GenerateRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		round, err := h.engine.Generate(req.RoundID, req.PeriodTag, true)
		if err != nil {
			if errors.Is(err, fair.ErrRoundExists) {
				log.Error("round already committed", sl.String("round_id", req.RoundID))

				render.JSON(w, r, resp.Error("round already committed", http.StatusConflict))

				return
			}

			log.Error("failed to generate round", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to generate round", http.StatusInternalServerError))

			return
		}

		log.Info("round committed", sl.String("round_id", round.RoundID))

		render.JSON(w, r, GenerateResponse{
			Response:   resp.OK(),
			RoundID:    round.RoundID,
			Commitment: round.Commitment,
		})
	}
}

type RevealResponse struct {
	resp.Response
	RoundID    string `json:"round_id"`
	Seed       string `json:"seed"`
	Digits     []int  `json:"digits"`
	Commitment string `json:"commitment"`
}

func (h *Handler) Reveal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.round.Reveal"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roundID := chi.URLParam(r, "round_id")

		data, err := h.engine.Reveal(roundID)
		if err != nil {
			switch {
			case errors.Is(err, fair.ErrRoundNotFound):
				log.Error("round not found", sl.String("round_id", roundID))

				render.JSON(w, r, resp.Error("round not found", http.StatusNotFound))
			case errors.Is(err, fair.ErrCommitmentMismatch):
				log.Error("commitment verification failed", sl.String("round_id", roundID))

				render.JSON(w, r, resp.Error("commitment verification failed", http.StatusInternalServerError))
			default:
				log.Error("failed to reveal round", sl.Err(err))

				render.JSON(w, r, resp.Error("failed to reveal round", http.StatusInternalServerError))
			}

			return
		}

		log.Info("round revealed", sl.String("round_id", roundID))

		if h.notifier != nil {
			err = h.notifier.Notify("fairness-channel", "round-revealed", map[string]interface{}{
				"round_id":   roundID,
				"commitment": data.Commitment,
				"digits":     data.Digits,
			})
			if err != nil {
				log.Error("failed to notify reveal event", sl.Err(err))
			}
		}

		render.JSON(w, r, RevealResponse{
			Response:   resp.OK(),
			RoundID:    roundID,
			Seed:       data.Seed,
			Digits:     data.Digits,
			Commitment: data.Commitment,
		})
	}
}

type VerifyRequest struct {
	Seed           string `json:"seed" validate:"required"`
	RoundID        string `json:"round_id" validate:"required"`
	ClientSeed     string `json:"client_seed"`
	ExpectedDigits []int  `json:"expected_digits"`
}

type VerifyResponse struct {
	resp.Response
	Match      bool   `json:"match"`
	Digits     []int  `json:"digits"`
	Commitment string `json:"commitment"`
}

func (h *Handler) Verify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.round.Verify"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req VerifyRequest

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

		match, digits, commitment := h.engine.Verify(req.Seed, req.RoundID, req.ClientSeed, req.ExpectedDigits)

		render.JSON(w, r, VerifyResponse{
			Response:   resp.OK(),
			Match:      match,
			Digits:     digits,
			Commitment: commitment,
		})
	}
}
