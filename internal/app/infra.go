package app

import (
	"context"
	"fmt"

	"portfolio-service/internal/config"
	"portfolio-service/internal/db"
	"portfolio-service/internal/logger"
	"portfolio-service/internal/redis"
	"portfolio-service/internal/storage"
)

type Infra struct {
	DB      *db.DB
	Redis   *redis.Client
	Avatars *storage.Bucket
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	database, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx, database.DB); err != nil {
		_ = database.Close()
		return nil, err
	}

	logger.Info("database ready", nil)

	redisClient, err := redis.New(ctx, redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	logger.Info("redis ready", map[string]any{
		"addr": cfg.RedisAddr,
	})

	avatars, err := storage.NewBucket(cfg.AvatarDir, avatarPrefix)
	if err != nil {
		_ = redisClient.Close()
		_ = database.Close()
		return nil, err
	}

	return &Infra{
		DB:      database,
		Redis:   redisClient,
		Avatars: avatars,
	}, nil
}

// Healthy reports the first backing store that does not answer.
func (i *Infra) Healthy(ctx context.Context) error {
	if err := i.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("db: ping: %w", err)
	}
	return i.Redis.Healthy(ctx)
}

func (i *Infra) Close() error {
	redisErr := i.Redis.Close()
	if err := i.DB.Close(); err != nil {
		return err
	}
	return redisErr
}
