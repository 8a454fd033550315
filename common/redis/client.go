package redis

import (
	"context"

	"lys-mes/common/config"

	"github.com/go-redis/redis/v8"
)

// Client go-redis 客户端别名
type Client = redis.Client

// NewRedisClient 根据配置创建 Redis 客户端（不做连接检测）
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping 检查 Redis 连通性
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close 关闭 Redis 客户端（nil 安全）
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
