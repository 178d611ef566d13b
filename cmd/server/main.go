package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/accounts"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/archive"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/config"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/countdown"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/httpapi"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/registry"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/room"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store archive.HistoryStore
	if cfg.PostgresDSN != "" {
		gs, err := archive.NewGormStore(cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("opening history store", zap.Error(err))
		}
		store = gs
	} else {
		logger.Warn("no QUIZ_POSTGRES_DSN set, keeping game history in memory")
		store = archive.NewMemoryStore()
	}
	archiver := archive.New(store, logger)

	engine := countdown.NewEngine(clockwork.NewRealClock(), countdown.Config{
		TickPeriod:  cfg.TickPeriod,
		PanicFactor: cfg.PanicFactor,
	}, logger)

	reg := registry.New(ctx, registry.Config{
		MaxLobbies: cfg.MaxLobbies,
		PinLength:  cfg.PinLength,
	}, room.Deps{
		Accounts:      accounts.NewInMemory(),
		Engine:        engine,
		Archiver:      archiver,
		Log:           logger,
		WatchdogTicks: cfg.WatchdogTicks,
	}, logger)

	gw := ws.NewGateway(reg, engine, logger)
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(gw, archiver),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		reg.Inbox() <- registry.Shutdown{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
