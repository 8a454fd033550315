package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	commonlogger "lys-mes/common/logger"
	commonredis "lys-mes/common/redis"
	"lys-mes/internal/config"
	"lys-mes/internal/consumer"
	"lys-mes/internal/service"

	"go.uber.org/zap"
)

// lys-mes-reconciler 补发 SmartSchedule 通知失败队列
func main() {
	cfg := config.Load()

	logger, err := commonlogger.NewLogger(cfg.Log.Level, cfg.Log.Format, "lys-mes-reconciler")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	if err := commonredis.Ping(ctx, redisClient); err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer commonredis.Close(redisClient)

	notifier := service.NewSmartScheduleClient(cfg.SmartSchedule.BaseURL, cfg.SmartSchedule.Timeout, cfg.SmartSchedule.RetryCount, logger)
	reconciler := consumer.NewReconciler(redisClient, notifier, consumer.ReconcilerOptions{
		Stream:      cfg.SmartSchedule.RetryStream,
		Group:       cfg.SmartSchedule.Group,
		Consumer:    cfg.SmartSchedule.Consumer,
		BatchSize:   10,
		Block:       5 * time.Second,
		SendTimeout: notifier.Budget(),
	}, logger)

	done := make(chan error, 1)
	go func() {
		done <- reconciler.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			logger.Error("Reconciler stopped", zap.Error(err))
		}
	}
	logger.Info("Service stopped")
}
