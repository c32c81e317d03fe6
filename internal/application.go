package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/config"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/matchmaking"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/repository"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/repository/storage"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/session"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/transport/rest"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application until SIGINT/SIGTERM, then shuts down gracefully.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	matchRepo, closeStorage, err := openStorage(ctx, logger, conf, clock)
	if err != nil {
		return err
	}
	defer closeStorage()

	registry := session.NewRegistry(logger, clock, matchRepo, sessionConfig(conf))
	defer registry.Shutdown()

	matchmaker, err := matchmaking.New(logger, clock, registry, matchmakingConfig(conf))
	if err != nil {
		return fmt.Errorf("could not start matchmaking: %w", err)
	}

	defer func() {
		if err := matchmaker.Shutdown(); err != nil {
			log.Error("could not stop matchmaking", "error", err)
		}
	}()

	wsServer := websocket.New(logger, registry, websocketConfig(conf))
	router := rest.NewRouter(logger, matchmaker, registry, wsServer)

	server := rest.New(logger, rest.Config{
		Port:         conf.HTTP.Port,
		ReadTimeout:  conf.HTTP.ReadTimeout,
		WriteTimeout: conf.HTTP.WriteTimeout,
		IdleTimeout:  conf.HTTP.IdleTimeout,
	}, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return server.Start()
	})

	group.Go(func() error {
		<-groupCtx.Done()

		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.HTTP.ShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err = group.Wait(); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

func openStorage(ctx context.Context, logger *slog.Logger, conf *config.Config, clock clockwork.Clock) (repository.MatchRepository, func(), error) {
	log := logger.With("component", "storage")

	if conf.Storage == config.StorageMemory {
		log.Warn("using in-memory storage, matches do not survive a restart")
		return repository.NewMemoryMatchRepository(clock), func() {}, nil
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == ":" {
		return nil, nil, ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedis(ctx, redisAddrString, conf.Redis.Password, conf.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	closeStorage := func() {
		if err := redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}

	return repository.NewMatchRepository(redisStorage), closeStorage, nil
}

func sessionConfig(conf *config.Config) session.Config {
	return session.Config{
		TeardownBothGone:  conf.Session.TeardownBothGone,
		TeardownOneGone:   conf.Session.TeardownOneGone,
		CompletionCleanup: conf.Session.CompletionCleanup,
		FinishedRetention: conf.Session.FinishedRetention,
		MoveRateLimit:     conf.Session.MoveRateLimit,
		MoveRatePeriod:    conf.Session.MoveRatePeriod,
		DuplicateDepth:    conf.Session.DuplicateDepth,
		DuplicateWindow:   conf.Session.DuplicateWindow,
		StorageTimeout:    conf.Session.StorageTimeout,
	}
}

func matchmakingConfig(conf *config.Config) matchmaking.Config {
	return matchmaking.Config{
		WaitPerPosition: conf.Matchmaking.WaitPerPosition,
		SweepInterval:   conf.Matchmaking.SweepInterval,
		MaxQueueWait:    conf.Matchmaking.MaxQueueWait,
		RecordTTL:       conf.Matchmaking.RecordTTL,
		HibernateAfter:  conf.Matchmaking.HibernateAfter,
		InitTimeout:     conf.Matchmaking.InitTimeout,
		RateLimit:       conf.Matchmaking.RateLimit,
		RatePeriod:      conf.Matchmaking.RatePeriod,
	}
}

func websocketConfig(conf *config.Config) websocket.Config {
	return websocket.Config{
		ReadLimit:    conf.Websocket.ReadLimit,
		WriteWait:    conf.Websocket.WriteWait,
		PongWait:     conf.Websocket.PongWait,
		PingInterval: conf.Websocket.PingInterval,
		CallTimeout:  conf.Websocket.CallTimeout,
	}
}
