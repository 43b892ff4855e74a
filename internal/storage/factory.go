package storage

import (
	"context"
	"fmt"

	"github.com/annel0/commoncore/internal/config"
	"github.com/annel0/commoncore/internal/logging"
)

// Open создаёт хранилище сохранений по имени драйвера из конфигурации
func Open(ctx context.Context, cfg config.StorageConfig) (SaveRepo, error) {
	log := logging.GetStorageLogger()

	switch cfg.Driver {
	case "", "memory":
		log.Warn("⚠️ Сохранения хранятся в памяти и будут потеряны при перезапуске")
		return NewMemoryRepo(), nil

	case "file":
		return NewFileRepo(cfg.Path)

	case "badger":
		return NewBadgerRepo(cfg.Path)

	case "redis":
		return NewRedisRepo(ctx, &RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.Prefix,
			TTL:       cfg.Redis.TTL,
		})

	case "maria":
		return NewMariaRepo(ctx, cfg.MariaDSN)

	case "mongo":
		return NewMongoRepo(ctx, MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})

	default:
		return nil, fmt.Errorf("неизвестный драйвер хранилища %q", cfg.Driver)
	}
}
