package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lys-mes/common/database"
	commonlogger "lys-mes/common/logger"
	commonredis "lys-mes/common/redis"
	"lys-mes/internal/config"
	"lys-mes/internal/consumer"
	"lys-mes/internal/repository"
	"lys-mes/internal/telemetry"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := commonlogger.NewLogger(cfg.Log.Level, cfg.Log.Format, "lys-mes-telemetry")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if !cfg.Telemetry.Enabled {
		logger.Info("Telemetry disabled (MQTT_ENABLED != true), exiting")
		return
	}

	logger.Info("Starting lys-mes-telemetry",
		zap.Int("gateways", len(cfg.MQTT.Brokers)),
		zap.String("topic", cfg.Telemetry.Topic),
		zap.String("stream", cfg.Telemetry.Stream),
	)

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	if err := commonredis.Ping(ctx, redisClient); err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer commonredis.Close(redisClient)

	pool := telemetry.NewConnPool(cfg.MQTT.Brokers, telemetry.MQTTDialer(cfg.MQTT, logger), logger)
	if err := pool.Init(); err != nil {
		logger.Fatal("Failed to initialize telemetry connections", zap.Error(err))
	}
	defer pool.Close()

	machines := repository.NewPostgresMachinesRepository(db)
	mqttConsumer := consumer.NewMQTTConsumer(pool, redisClient, machines, cfg.Telemetry.Topic, cfg.Telemetry.Stream, cfg.MQTT.QoS, logger)
	if err := mqttConsumer.Start(ctx); err != nil {
		logger.Fatal("Failed to start MQTT consumer", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	mqttConsumer.Stop()
	cancel()
	logger.Info("Service stopped")
}
