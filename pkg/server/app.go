package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	"HotelRevenue/internal/usecase"
	"HotelRevenue/pkg/config"
	xhttp "HotelRevenue/pkg/http"
	pkgkafka "HotelRevenue/pkg/kafka"
	applogger "HotelRevenue/pkg/logger"
	"HotelRevenue/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	store      domrepo.Store
	uc         *usecase.RevenueUseCase
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	runs       *queue.RedisQueue
	rooms      []models.RoomType
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	store domrepo.Store,
	uc *usecase.RevenueUseCase,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	runs *queue.RedisQueue,
	rooms []models.RoomType,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		store:      store,
		uc:         uc,
		httpServer: httpServer,
		consumer:   consumer,
		runs:       runs,
		rooms:      rooms,
	}
}

// UseCase exposes the orchestrator for one-shot commands.
func (a *App) UseCase() *usecase.RevenueUseCase { return a.uc }

// Seed stores the configured room types.
func (a *App) Seed(ctx context.Context) error {
	return a.uc.SeedRoomTypes(ctx, a.rooms)
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Seed(ctx); err != nil {
		return err
	}

	// Start consumer if configured
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.cfg.Kafka.Topics.Status))
	}

	if a.runs != nil {
		if err := a.runs.Start(); err != nil {
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.Shutdown(ctx)
}

// Shutdown stops the HTTP server and consumer. Store, cache and producer
// are closed by the DI cleanup.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.runs != nil {
		if err := a.runs.Stop(shutdownCtx); err != nil {
			a.log.Warn("run queue stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
