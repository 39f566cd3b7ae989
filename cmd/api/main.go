package main

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/pusher/pusher-http-go/v5"
	"golang.org/x/exp/slog"

	"go-fairdice/internal/config"
	"go-fairdice/internal/http-server/handlers/admin"
	"go-fairdice/internal/http-server/handlers/event"
	"go-fairdice/internal/http-server/handlers/force"
	"go-fairdice/internal/http-server/handlers/mysql"
	"go-fairdice/internal/http-server/handlers/payout"
	"go-fairdice/internal/http-server/handlers/round"
	"go-fairdice/internal/http-server/handlers/wallet"
	mwlogger "go-fairdice/internal/http-server/middleware/logger"
	"go-fairdice/internal/lib/fair"
	"go-fairdice/internal/lib/grind"
	"go-fairdice/internal/lib/jobs"
	"go-fairdice/internal/lib/logger/sl"
	"go-fairdice/internal/lib/vault"
	"go-fairdice/internal/repository"
	"go-fairdice/internal/repository/memory"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting server", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	var (
		rounds      fair.RoundRepository
		roundAudit  fair.AuditWriter
		actions     force.ActionRepository
		actionAudit force.AuditWriter
		ledger      payout.Ledger
	)

	switch cfg.Storage.Driver {
	case "memory":
		store := memory.New()
		rounds, roundAudit, actions, actionAudit, ledger = store, store, store, store, store
	default:
		db, err := sql.Open("mysql", cfg.Storage.DSN)
		if err != nil {
			log.Error("failed to init storage", sl.Err(err))
			os.Exit(1)
		}

		if err = db.Ping(); err != nil {
			log.Error("failed to init storage", sl.Err(err))
			os.Exit(1)
		}

		handler := mysql.New(db)

		auditRepo := repository.NewAuditRepository(*handler)
		rounds = repository.NewRoundRepository(*handler)
		roundAudit = auditRepo
		actions = repository.NewForcedActionRepository(*handler)
		actionAudit = auditRepo
		ledger = repository.NewPayoutRepository(*handler)
	}

	notifier := setupNotifier(cfg, log)

	seedVault := vault.New(cfg.Fairness.VaultSecret)
	engine := fair.NewEngine(rounds, roundAudit, seedVault, cfg.Fairness.DigitCount, log)
	grinder := grind.New(cfg.Fairness.GrindMaxAttempts, cfg.Fairness.DigitCount, log)
	workflow := force.NewWorkflow(actions, actionAudit, engine, grinder, cfg.Admin, log)
	payoutEngine := payout.NewEngine(ledger, notifier, cfg.Ledger, log)

	queue := jobs.NewQueue(64)
	jobs.NewWorkerPool(4, queue).Start()

	roundHandler := round.New(log, engine, notifier)
	adminHandler := admin.New(log, workflow)
	walletHandler := wallet.New(log, payoutEngine, queue)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mwlogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Post("/round/generate", roundHandler.Generate())
	router.Post("/round/{round_id}/reveal", roundHandler.Reveal())
	router.Post("/round/verify", roundHandler.Verify())

	router.Post("/admin/force", adminHandler.RequestForce())
	router.Post("/admin/force/{id}/confirm", adminHandler.ConfirmForce())
	router.Post("/admin/force/{id}/reject", adminHandler.RejectForce())
	router.Get("/admin/force/pending", adminHandler.Pending())
	router.Get("/admin/force/history", adminHandler.History())

	router.Post("/wallet/payout", walletHandler.Process())
	router.Post("/wallet/payout/retry", walletHandler.Retry())
	router.Get("/wallet/payout/history", walletHandler.History())

	log.Info("server started", slog.String("address", cfg.Address))

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if err := srv.ListenAndServe(); err != nil {
		log.Error("server failed", sl.Err(err))
	}

	log.Error("server stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

func setupNotifier(cfg *config.Config, log *slog.Logger) event.Notifier {
	switch cfg.Events.Backend {
	case "websocket":
		conn, _, err := websocket.DefaultDialer.Dial(cfg.Events.WebsocketURL, nil)
		if err != nil {
			log.Error("failed to connect event websocket, events disabled", sl.Err(err))

			return nil
		}

		return event.NewWebsocketEvent(log, conn)
	case "pusher":
		client := &pusher.Client{
			AppID:   cfg.Events.PusherAppID,
			Key:     cfg.Events.PusherKey,
			Secret:  cfg.Events.PusherSecret,
			Cluster: cfg.Events.PusherCluster,
		}

		return event.NewPusherEvent(log, client)
	default:
		return nil
	}
}
