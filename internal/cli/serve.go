package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/99minutos/shipping-central/internal/api"
	"github.com/99minutos/shipping-central/internal/api/handler"
	"github.com/99minutos/shipping-central/internal/api/metrics"
	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
	"github.com/99minutos/shipping-central/internal/core/service"
	"github.com/99minutos/shipping-central/internal/dane"
	"github.com/99minutos/shipping-central/internal/infrastructure/backend"
	"github.com/99minutos/shipping-central/internal/infrastructure/cache"
	"github.com/99minutos/shipping-central/internal/infrastructure/config"
	mongostore "github.com/99minutos/shipping-central/internal/infrastructure/db/mongo"
	redisstore "github.com/99minutos/shipping-central/internal/infrastructure/db/redis"
	"github.com/99minutos/shipping-central/internal/infrastructure/queue"
	"github.com/99minutos/shipping-central/internal/infrastructure/sse"
	"github.com/99minutos/shipping-central/pkg/logger"
)

const (
	shutdownTimeout = 15 * time.Second
	sweepInterval   = time.Minute
	relayBuffer     = 64
)

// ServeCmd returns the serve command.
func ServeCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the shipping central HTTP server",
		Long: `Run the BFF: guide wizard, shipment list, tracking timeline and the
browser event relay. MongoDB and Redis are optional; without them the event
journal is disabled and event dedup does not survive a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			log := logger.Init(logger.Options{
				Level:   cfg.LogLevel,
				Pretty:  cfg.Development(),
				Service: "shipping-central",
			})
			return serve(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	return cmd
}

// loadEnvFile loads a dotenv file. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// instanceID names this replica in dedup keys: the configured id, else the
// hostname (the pod name under Kubernetes).
func instanceID(configured string) string {
	if configured != "" {
		return configured
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.NewString()
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	resolver, err := dane.New(cfg.Wizard.DaneFallbackCode)
	if err != nil {
		return err
	}
	recorder := metrics.NewRecorder()
	client := backend.New(backend.Config{
		BaseURL:      cfg.Backend.URL,
		ServiceToken: cfg.Backend.ServiceToken,
		Timeout:      cfg.Backend.Timeout,
		Observer:     recorder,
	}, logger.Component(log, "backend"))

	health := map[string]handler.Pinger{
		"backend": client,
		"mongodb": nil,
		"redis":   nil,
	}

	// --- Optional stores ---
	var journal ports.EventJournal
	if cfg.Mongo.URI != "" {
		mc, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			MaxPoolSize: cfg.Mongo.PoolSize,
		})
		if err != nil {
			log.Warn().Err(err).Msg("mongodb unavailable, event journal disabled")
		} else {
			defer func() {
				dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = mc.Disconnect(dctx)
			}()
			j := mongostore.NewEventJournal(db, 0)
			if err := j.EnsureIndexes(ctx); err != nil {
				log.Warn().Err(err).Msg("event journal indexes not created")
			}
			journal = j
			health["mongodb"] = mongostore.Pinger{Client: mc}
		}
	}

	var dedup ports.EventDeduper
	if cfg.Redis.Addr != "" {
		rc, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, event dedup kept in memory")
		} else {
			defer rc.Close()
			dedup = redisstore.NewDedupStore(rc, cfg.Events.DedupTTL)
			health["redis"] = redisstore.Pinger{Client: rc}
		}
	}
	if dedup == nil {
		dedup = cache.NewDedup(0, cfg.Events.DedupTTL)
	}

	// --- Event plumbing ---
	// The pipeline routes to the registry, which subscribes through the
	// manager, which feeds the dispatcher; the dispatcher reaches the
	// pipeline once it exists.
	var pipeline *service.EventPipeline
	dispatcher := queue.NewDispatcher(cfg.Events.Workers, queue.ProcessorFunc(func(ctx context.Context, evt domain.Event) error {
		return pipeline.Process(ctx, evt)
	}), logger.Component(log, "dispatcher"))

	manager := sse.NewManager(sse.ManagerConfig{
		Streamer: &sse.HTTPStreamer{
			BaseURL: cfg.Backend.URL,
			Path:    cfg.SSE.Path,
			Token:   cfg.Backend.ServiceToken,
			Client:  &http.Client{},
		},
		ReconnectDelay: cfg.SSE.ReconnectDelay,
		Sink:           dispatcher,
		Observer:       recorder,
	}, logger.Component(log, "sse"))

	broadcaster := sse.NewBroadcaster(relayBuffer, logger.Component(log, "relay"))
	validator := service.NewFormValidator(resolver)
	panel := service.NewTrackingPanel(client, cfg.Development(), logger.Component(log, "timeline"))
	list := service.NewShipmentList(client, client, logger.Component(log, "shipments"))

	registry := service.NewWizardRegistry(service.WizardDeps{
		Backend:   client,
		Dane:      resolver,
		Validator: validator,
		Observer:  recorder,
		Log:       logger.Component(log, "wizard"),
	}, manager, cfg.Wizard.SessionTTL, logger.Component(log, "sessions"))
	registry.OnGuideGenerated(func(sessionID string, businessID uint, g domain.Guide) {
		log.Info().
			Str("session_id", sessionID).
			Uint("business_id", businessID).
			Str("tracker", g.Tracker).
			Msg("guide generated")
	})

	pipeline = service.NewEventPipeline(service.PipelineDeps{
		Instance:   instanceID(cfg.Events.InstanceID),
		Dedup:      dedup,
		Journal:    journal,
		Publisher:  broadcaster,
		Processors: []ports.EventProcessor{registry, panel},
		Observer:   recorder,
		Log:        logger.Component(log, "events"),
	})

	workers, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	dispatcher.Start(workers)

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	go registry.Run(runCtx, sweepInterval)

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		JWTSecret:    cfg.JWTSecret,
		Log:          logger.Component(log, "http"),
		Validator:    validator,
		Sessions:     registry,
		Shipments:    list,
		Panel:        panel,
		Origins:      client,
		Dane:         resolver,
		Relay:        broadcaster,
		Subscriber:   manager,
		Journal:      journal,
		Heartbeat:    cfg.SSE.Heartbeat,
		Health:       health,
		ConsultRate:  cfg.Consult.RatePerSecond,
		ConsultBurst: cfg.Consult.Burst,
	})

	// Relay streams never finish on their own; they end when shutdown begins.
	streams, endStreams := context.WithCancel(context.Background())
	defer endStreams()
	e.Server.BaseContext = func(net.Listener) context.Context { return streams }
	e.Server.RegisterOnShutdown(endStreams)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		errCh <- e.Start(":" + cfg.Port)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	stopRun()
	if err := manager.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("sse manager stop")
	}
	stopWorkers()
	dispatcher.Wait()

	log.Info().Msg("server stopped")
	return serveErr
}
