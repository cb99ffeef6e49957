package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"cgu-connect/internal/config"
	"cgu-connect/internal/db"
	"cgu-connect/internal/grpcserver"
	"cgu-connect/internal/messaging"
	"cgu-connect/internal/rabbitmq"
	"cgu-connect/internal/repositories"
	"cgu-connect/internal/telemetry"
	"cgu-connect/internal/tracing"
	"cgu-connect/internal/ws"
)

const (
	auditRoutingKey     = "audit.logs"
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, websocket and gRPC health servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing.ServiceName, cfg.Environment, cfg.Tracing.Endpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	database, err := db.Connect(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.Tracing.ServiceName)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.Tracing.ServiceName, cfg.Environment)

	hub := ws.NewHub(publisher)
	var notifier messaging.Notifier = hub
	if cfg.Redis.URL != "" {
		fanout, err := ws.NewRedisFanout(ctx, cfg.Redis.URL, cfg.Redis.Channel, hub)
		if err != nil {
			log.Warn().Err(err).Msg("redis fan-out disabled, delivering locally")
		} else {
			defer fanout.Close()
			notifier = fanout
			go func() {
				if err := fanout.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("redis fan-out stopped")
				}
			}()
		}
	}

	conversations := repositories.NewConversationRepo(database)
	svc := messaging.NewService(
		repositories.NewUserRepo(database),
		conversations,
		repositories.NewMessageRepo(database),
		notifier,
		publisher,
		messaging.Options{
			RequireMedia: cfg.Messaging.RequireMedia,
			PageSize:     cfg.Messaging.PageSize,
			MaxPageSize:  cfg.Messaging.MaxPageSize,
		},
	)
	router := newRouter(cfg, routerDeps{
		store:         database,
		service:       svc,
		conversations: conversations,
		hub:           hub,
		audit:         audit,
		publisher:     publisher,
	})

	grpcSrv := grpcserver.New(database)
	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		return err
	}
	go grpcSrv.Watch(ctx, healthCheckInterval)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("port", cfg.GRPC.Port).Msg("grpc health server listening")
		errCh <- grpcSrv.Serve(lis)
	}()
	go func() {
		log.Info().Str("port", cfg.HTTP.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err = <-errCh:
		log.Error().Err(err).Msg("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := httpSrv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("http shutdown")
	}
	grpcSrv.Stop()
	return err
}
