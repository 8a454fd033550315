package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lys-mes/common/database"
	commonlogger "lys-mes/common/logger"
	commonredis "lys-mes/common/redis"
	"lys-mes/internal/config"
	httpapi "lys-mes/internal/http"
	"lys-mes/internal/repository"
	"lys-mes/internal/service"
	"lys-mes/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := commonlogger.NewLogger(cfg.Log.Level, cfg.Log.Format, "lys-mes")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	redisClient := commonredis.NewRedisClient(&cfg.Redis)

	var (
		db        *sql.DB
		calendar  repository.CalendarRepository
		schedules repository.ProductionSchedulesRepository
		runs      repository.OngoingRepository
		machines  repository.MachinesRepository
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			logger.Info("DB enabled for lys-mes", zap.String("database", cfg.Database.Database))
		} else {
			logger.Warn("DB enabled but connection failed, falling back to memory repositories", zap.Error(err))
		}
	}
	if db != nil {
		calendar = repository.NewPostgresCalendarRepository(db)
		schedules = repository.NewPostgresProductionSchedulesRepository(db)
		runs = repository.NewPostgresOngoingRepository(db)
		machines = repository.NewPostgresMachinesRepository(db)
	} else {
		// 内存 repo 只用于本地联调，重启即丢失
		memSchedules := repository.NewMemoryProductionSchedulesRepository()
		calendar = repository.NewMemoryCalendarRepository()
		schedules = memSchedules
		runs = repository.NewMemoryOngoingRepository(memSchedules)
		machines = repository.NewMemoryMachinesRepository()
	}

	var (
		provider service.CalendarProvider = service.NewRepoCalendarProvider(calendar, cfg.Calendar.Timeout)
		cache    service.CalendarCache
	)
	if cfg.Calendar.CacheTTL > 0 {
		cached := service.NewCachedCalendarProvider(provider, store.NewRedisKV(redisClient), cfg.Calendar.CacheTTL, cfg.Calendar.Timeout, logger)
		provider = cached
		cache = cached
	}

	smartSchedule := service.NewSmartScheduleClient(cfg.SmartSchedule.BaseURL, cfg.SmartSchedule.Timeout, cfg.SmartSchedule.RetryCount, logger)
	notifier := service.NewRetryQueueNotifier(smartSchedule, redisClient, cfg.SmartSchedule.RetryStream, logger)

	calendarService := service.NewCalendarService(calendar, provider, cache, logger)
	scheduleService := service.NewProductionScheduleService(schedules, machines, provider, logger)
	ongoingService := service.NewOngoingService(runs, schedules, notifier, smartSchedule.Budget(), nil, logger)
	machineService := service.NewMachineService(machines, logger)

	router := httpapi.NewRouter(logger)
	router.RegisterCalendarRoutes(httpapi.NewCalendarHandler(calendarService, logger))
	router.RegisterProductionScheduleRoutes(httpapi.NewProductionScheduleHandler(scheduleService, ongoingService, logger))
	router.RegisterOngoingRoutes(httpapi.NewOngoingHandler(ongoingService, logger))
	router.RegisterMachineRoutes(httpapi.NewMachineHandler(machineService, logger))
	router.RegisterHealthRoutes(func(r *http.Request) error {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := commonredis.Ping(ctx, redisClient); err != nil {
			return err
		}
		if db != nil {
			return db.PingContext(ctx)
		}
		return nil
	})

	srv := service.NewServer(cfg.HTTP.Addr, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	_ = commonredis.Close(redisClient)
	_ = database.Close(db)
	logger.Info("Service stopped")
}
