package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options 연결 설정
type Options struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

const pingTimeout = 3 * time.Second

// NewClient Redis 클라이언트 생성
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	port := opts.Port
	if port == 0 {
		port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, port),
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	// 연결 테스트
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
