package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/mthirumalai2905/clubly-community-hub/config"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// NewClient 根据配置创建Redis客户端（不做连通性检查）
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		// 连接池配置
		PoolSize:     10,              // 连接池大小
		MinIdleConns: 5,               // 最小空闲连接
		MaxRetries:   3,               // 最大重试次数
		DialTimeout:  5 * time.Second, // 连接超时
		ReadTimeout:  3 * time.Second, // 读超时
		WriteTimeout: 3 * time.Second, // 写超时
	})
}

// InitRedis 初始化全局Redis连接
func InitRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	c := NewClient(cfg)

	// 测试连接
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis连接失败: %w", err)
	}

	client = c
	return c, nil
}

// GetClient 获取Redis客户端
func GetClient() *redis.Client {
	return client
}

// Close 关闭Redis连接
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// HealthCheck 检查Redis健康状态
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis连接异常: %w", err)
	}

	return nil
}
