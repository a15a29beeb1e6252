package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vetriapp/vetri-backend/internal/api"
	"github.com/vetriapp/vetri-backend/internal/chat"
	"github.com/vetriapp/vetri-backend/internal/config"
	"github.com/vetriapp/vetri-backend/internal/messaging"
	"github.com/vetriapp/vetri-backend/internal/presence"
	"github.com/vetriapp/vetri-backend/internal/ratelimit"
	"github.com/vetriapp/vetri-backend/internal/security"
	"github.com/vetriapp/vetri-backend/internal/store"
	"github.com/vetriapp/vetri-backend/internal/ws"
)

func main() {
	// Missing .env is fine in containerized deployments.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogging(cfg)

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	// --- Postgres ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := store.Open(ctx, cfg.Database.DSN())
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer db.Close()

	if err := store.RunMigrations(cfg.Database.DSN(), "file://migrations"); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	users := store.NewUserStore(db)
	messages := store.NewMessageStore(db)

	// --- Redis ---
	presenceStore, err := presence.NewStore(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.InstanceName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer presenceStore.Close()

	limiter := ratelimit.NewLimiter(presenceStore.Client())

	// --- Auth ---
	tokens := security.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	verifier := security.NewVerifier(tokens, users)

	// --- Chat core ---
	registry := chat.NewRegistry()
	relay := chat.NewRelay(registry, messages)

	// --- NATS (optional) ---
	var natsClient *messaging.NATSClient
	if cfg.NATS.URL != "" {
		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = cfg.NATS.URL
		natsConfig.Name = cfg.NATS.Name

		natsClient, err = messaging.NewNATSClient(natsConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsClient.Close()

		relay.SetBridge(messaging.NewRoomBridge(natsClient, cfg.InstanceName))

		err = natsClient.SubscribeRoom(func(ev messaging.RoomEvent) {
			if ev.Origin == cfg.InstanceName {
				return // don't re-deliver our own broadcasts
			}
			relay.DeliverRemote(ev.Frame)
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to subscribe to room events")
		}
	}

	// --- WebSocket server ---
	wsConfig := ws.ServerConfig{
		MaxConnections: cfg.WS.MaxConnections,
		WriteTimeout:   cfg.WS.WriteTimeout,
	}
	wsServer := ws.NewServer(wsConfig, relay, verifier)
	wsServer.SetPresence(presenceStore)

	// --- HTTP ---
	router := api.NewRouter(cfg, db, tokens, wsServer, limiter, presenceStore)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr()).
			Str("instance", cfg.InstanceName).
			Bool("nats", natsClient != nil).
			Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	wsServer.Shutdown()
	log.Info().Msg("server stopped")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if cfg.Logging.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
