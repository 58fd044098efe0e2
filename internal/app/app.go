package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/config"
	"github.com/Freeeeeet/school_scheduler/internal/controller"
	"github.com/Freeeeeet/school_scheduler/internal/controller/handlers"
	"github.com/Freeeeeet/school_scheduler/internal/metrics"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/repository"
	"github.com/Freeeeeet/school_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/school_scheduler/internal/service"
	"github.com/Freeeeeet/school_scheduler/internal/session"
	"github.com/go-telegram/bot"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Код администратора, который создаёт миграция 00002. В memory-режиме сеем его сами.
var seedAdmin = model.AccessCode{
	ID:          uuid.MustParse("00000000-0000-4000-8000-000000000001"),
	Code:        "ADMIN2024",
	Profile:     model.ProfileAdmin,
	DisplayName: "Administration",
	IsActive:    true,
}

// App собирает хранилища, сервисы и транспорт
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	pool  *pgxpool.Pool
	redis redis.UniversalClient

	Metrics  *metrics.Recorder
	Access   *service.AccessService
	Booking  *service.BookingService
	Meetings *service.MeetingService
	Sessions session.Store
}

// New подключается к хранилищам согласно конфигу
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		Metrics: metrics.New(),
	}

	var (
		codes    service.AccessCodeStore
		slots    service.SlotStore
		meetings service.MeetingStore
	)

	switch cfg.StoreDriver {
	case config.StoreMemory:
		store := memory.New()
		seed := seedAdmin
		if err := store.AccessCodes().Create(ctx, &seed); err != nil {
			return nil, fmt.Errorf("seed admin code: %w", err)
		}
		codes, slots, meetings = store.AccessCodes(), store.Slots(), store.Meetings()
		logger.Warn("⚠️ Using in-memory store, data is lost on restart")

	default:
		pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
		if err != nil {
			return nil, fmt.Errorf("create pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		a.pool = pool
		codes = repository.NewAccessCodeRepository(pool)
		slots = repository.NewSlotRepository(pool)
		meetings = repository.NewMeetingRepository(pool)
		logger.Info("✅ Connected to PostgreSQL")
	}

	if cfg.RedisAddr != "" {
		a.redis = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		a.Sessions = session.NewRedisStore(a.redis, cfg.SessionTTL)
		logger.Info("✅ Sessions stored in Redis", zap.String("addr", cfg.RedisAddr))
	} else {
		a.Sessions = session.NewManager(cfg.SessionTTL)
	}

	loc := cfg.Location()
	a.Access = service.NewAccessService(codes, logger)
	a.Booking = service.NewBookingService(slots, codes, a.Metrics, loc, logger)
	a.Meetings = service.NewMeetingService(meetings, a.Metrics, loc, logger)

	return a, nil
}

// Migrate применяет миграции. В memory-режиме ничего не делает.
func (a *App) Migrate(ctx context.Context) error {
	if a.pool == nil {
		a.logger.Info("No database configured, skipping migrations")
		return nil
	}

	migrator, err := NewMigrator(a.pool, a.cfg.MigrationsDir, a.logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Run(ctx)
}

// MigrationVersion текущая версия схемы
func (a *App) MigrationVersion(ctx context.Context) (int64, error) {
	if a.pool == nil {
		return 0, errors.New("migration version requires STORE_DRIVER=postgres")
	}

	migrator, err := NewMigrator(a.pool, a.cfg.MigrationsDir, a.logger)
	if err != nil {
		return 0, err
	}
	defer migrator.Close()

	return migrator.Version(ctx)
}

// Serve запускает бота, фоновый планировщик и HTTP с метриками до отмены ctx
func (a *App) Serve(ctx context.Context) error {
	if err := a.cfg.RequireTelegram(); err != nil {
		return err
	}

	b, err := bot.New(a.cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	cmdHandlers := handlers.NewHandlers(a.Access, a.Booking, a.Meetings, a.Sessions, a.cfg.Location(), a.logger)
	botController := controller.NewBotController(b, cmdHandlers, a.logger)
	if err := botController.RegisterHandlers(ctx); err != nil {
		return fmt.Errorf("register handlers: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return botController.Start(gctx)
	})

	g.Go(func() error {
		return NewScheduler(a.Booking, a.cfg.SweepInterval, a.logger).Run(gctx)
	})

	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.Metrics.Handler())
		srv := &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			a.logger.Info("📊 Metrics server listening", zap.String("addr", a.cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Close освобождает соединения
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
