// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/hiddencargo/internal/auth"
	"github.com/jason-s-yu/hiddencargo/internal/balance"
	"github.com/jason-s-yu/hiddencargo/internal/bids"
	"github.com/jason-s-yu/hiddencargo/internal/cache"
	"github.com/jason-s-yu/hiddencargo/internal/config"
	"github.com/jason-s-yu/hiddencargo/internal/containers"
	"github.com/jason-s-yu/hiddencargo/internal/database"
	"github.com/jason-s-yu/hiddencargo/internal/game"
	"github.com/jason-s-yu/hiddencargo/internal/handlers"
	"github.com/jason-s-yu/hiddencargo/internal/hub"
	"github.com/jason-s-yu/hiddencargo/internal/lobby"
	"github.com/jason-s-yu/hiddencargo/internal/session"
	_ "github.com/joho/godotenv/autoload"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	if err := run(logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if err := auth.Init(cfg.Auth.TokenTTL); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := connectBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	h := hub.New(64, logger.WithField("component", "hub"))
	directory := newDirectory(cfg, b)
	coord := game.NewCoordinator(cfg.Game, game.Deps{
		Broadcaster: h,
		Supply:      newSupply(cfg),
		Auditor:     newAuditor(cfg, b),
		Balances:    newBalances(cfg, b),
		Directory:   directory,
		Logger:      logger.WithField("component", "game"),
	})

	srv := &handlers.Server{
		Coordinator:  coord,
		Directory:    directory,
		Hub:          h,
		Registry:     session.NewRegistry(),
		Logger:       logger,
		AuthRequired: cfg.Auth.Required,
		CallTimeout:  cfg.Game.ExternalTimeout,
	}
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s (lobby=%s containers=%s audit=%s balance=%s)",
			server.Addr, cfg.Lobby.Backend, cfg.Containers.Backend, cfg.Audit.Backend, cfg.Balance.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if err := coord.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("coordinator shutdown: %v", err)
	}
	return nil
}

// backends holds the shared connections selected by the configuration.
type backends struct {
	rdb  *redis.Client
	nc   *nats.Conn
	pool *pgxpool.Pool
}

func connectBackends(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*backends, error) {
	b := &backends{}
	var err error

	if cfg.NeedsRedis() {
		if b.rdb, err = cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB); err != nil {
			return nil, err
		}
		logger.Infof("connected to Redis at %s", cfg.Redis.Addr)
	}

	if cfg.Audit.Backend == "nats" {
		opts := []nats.Option{
			nats.Name("hiddencargo"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2 * time.Second),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				logger.Warnf("NATS disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Infof("NATS reconnected to %s", nc.ConnectedUrl())
			}),
		}
		if b.nc, err = nats.Connect(cfg.NATS.URL, opts...); err != nil {
			b.close()
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
	}

	if cfg.Balance.Backend == "postgres" {
		if b.pool, err = database.Connect(ctx, cfg.Postgres.URL); err != nil {
			b.close()
			return nil, err
		}
		if err := database.EnsureSchema(ctx, b.pool); err != nil {
			b.close()
			return nil, err
		}
	}
	return b, nil
}

func (b *backends) close() {
	if b.nc != nil {
		_ = b.nc.Drain()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.rdb != nil {
		_ = b.rdb.Close()
	}
}

func newDirectory(cfg *config.Config, b *backends) lobby.Directory {
	if cfg.Lobby.Backend == "http" {
		return lobby.NewHTTPDirectory(cfg.Lobby.URL, cfg.APIKey)
	}
	return lobby.NewRedisDirectory(b.rdb)
}

func newSupply(cfg *config.Config) game.ContainerSupply {
	if cfg.Containers.Backend == "http" {
		return containers.NewHTTPSupply(cfg.Containers.URL, cfg.APIKey)
	}
	return containers.NewLocalSupply()
}

func newAuditor(cfg *config.Config, b *backends) game.BidAuditor {
	switch cfg.Audit.Backend {
	case "http":
		return bids.NewHTTPAuditor(cfg.Audit.URL, cfg.APIKey)
	case "redis":
		return bids.NewRedisAuditor(b.rdb, cfg.Audit.Queue)
	case "nats":
		return bids.NewNATSAuditor(b.nc, cfg.Audit.Subject)
	}
	return bids.NoopAuditor{}
}

func newBalances(cfg *config.Config, b *backends) game.BalanceService {
	switch cfg.Balance.Backend {
	case "http":
		return balance.NewHTTPService(cfg.Balance.URL, cfg.APIKey)
	case "postgres":
		return balance.NewPostgresService(b.pool, cfg.Game.DefaultBalance)
	}
	return nil
}
