package config

import (
	"os"
	"strconv"
	"time"

	commoncfg "lys-mes/common/config"
)

// Config lys-mes 配置（HTTP API / telemetry / reconciler 共用）
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	Redis     commoncfg.RedisConfig
	Log       struct {
		Level  string
		Format string
	}

	// Calendar 假日日历
	Calendar struct {
		Timeout  time.Duration // 单次日历查询超时
		CacheTTL time.Duration // 日历窗口缓存时间，0 表示不缓存
	}

	// SmartSchedule 外部排程系统
	SmartSchedule struct {
		BaseURL     string
		Timeout     time.Duration
		RetryCount  int
		RetryStream string // 通知失败后写入的 Redis Stream，供 reconciler 补偿
		Group       string
		Consumer    string
	}

	MQTT      commoncfg.MQTTConfig
	Telemetry struct {
		Enabled bool
		Topic   string // 订阅主题，如 mes/+/telemetry
		Stream  string // 标准化后写入的 Redis Stream
	}
}

// Load 从环境变量加载配置
func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// DB 不可用时 lys-mes 会退回内存 repo，便于本地联调
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "lysmes"
	cfg.Database.SSLMode = "disable"
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Calendar.Timeout = parseDuration(getEnv("CALENDAR_TIMEOUT", "5s"), 5*time.Second)
	cfg.Calendar.CacheTTL = parseDuration(getEnv("CALENDAR_CACHE_TTL", "10m"), 10*time.Minute)

	cfg.SmartSchedule.BaseURL = getEnv("SMART_SCHEDULE_URL", "http://localhost:5000")
	cfg.SmartSchedule.Timeout = parseDuration(getEnv("SMART_SCHEDULE_TIMEOUT", "10s"), 10*time.Second)
	cfg.SmartSchedule.RetryCount = parseInt(getEnv("SMART_SCHEDULE_RETRY_COUNT", "2"), 2)
	cfg.SmartSchedule.RetryStream = getEnv("NOTIFY_RETRY_STREAM", "smart-schedule:retry")
	cfg.SmartSchedule.Group = getEnv("NOTIFY_RETRY_GROUP", "lys-mes-reconciler")
	cfg.SmartSchedule.Consumer = getEnv("NOTIFY_RETRY_CONSUMER", "reconciler-1")

	cfg.MQTT.Brokers = map[string]string{"default": "tcp://localhost:1883"}
	cfg.MQTT.ClientID = "lys-mes-telemetry"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Telemetry.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.Telemetry.Topic = getEnv("MQTT_TOPIC", "mes/+/telemetry")
	cfg.Telemetry.Stream = getEnv("TELEMETRY_STREAM", "machine:telemetry:stream")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}
