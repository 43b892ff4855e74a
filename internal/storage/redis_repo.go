package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/annel0/commoncore/internal/gamestate"
	"github.com/annel0/commoncore/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        `yaml:"addr"`       // Адрес Redis сервера
	Password  string        `yaml:"password"`   // Пароль (пустой если не требуется)
	DB        int           `yaml:"db"`         // Номер базы данных
	KeyPrefix string        `yaml:"key_prefix"` // Префикс для ключей
	TTL       time.Duration `yaml:"ttl"`        // Время жизни слота, 0 - бессрочно
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "commoncore:save:",
	}
}

// RedisRepo хранит сохранения в Redis: тело слота строкой, сведения о слотах хешем
type RedisRepo struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisRepo подключается к Redis и проверяет соединение
func NewRedisRepo(ctx context.Context, config *RedisConfig) (*RedisRepo, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	logging.GetStorageLogger().Info("🔴 Подключено к Redis %s", config.Addr)
	return NewRedisRepoWithClient(client, config.KeyPrefix, config.TTL), nil
}

// NewRedisRepoWithClient оборачивает готовый клиент
func NewRedisRepoWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisRepo {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisConfig().KeyPrefix
	}
	return &RedisRepo{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *RedisRepo) slotKey(slot string) string { return r.keyPrefix + slot }
func (r *RedisRepo) indexKey() string          { return r.keyPrefix + "index" }

func (r *RedisRepo) Save(ctx context.Context, slot string, store *gamestate.Store) (*SlotInfo, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	data, info, err := encodeStore(slot, store)
	if err != nil {
		return nil, err
	}
	infoData, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации сведений о слоте: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.slotKey(slot), data, r.ttl)
	pipe.HSet(ctx, r.indexKey(), slot, infoData)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("не удалось сохранить слот %s: %w", slot, err)
	}
	return info, nil
}

func (r *RedisRepo) Load(ctx context.Context, slot string) (*gamestate.Store, bool, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, false, err
	}

	data, err := r.client.Get(ctx, r.slotKey(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("не удалось прочитать слот %s: %w", slot, err)
	}

	f, err := Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("слот %s: %w", slot, err)
	}
	return f.Store, true, nil
}

func (r *RedisRepo) Delete(ctx context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.slotKey(slot))
	pipe.HDel(ctx, r.indexKey(), slot)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("не удалось удалить слот %s: %w", slot, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	return nil
}

// List читает индекс слотов. Слоты с истёкшим TTL убираются из индекса.
func (r *RedisRepo) List(ctx context.Context) ([]SlotInfo, error) {
	entries, err := r.client.HGetAll(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать индекс слотов: %w", err)
	}

	out := make([]SlotInfo, 0, len(entries))
	var stale []string
	for slot, raw := range entries {
		n, err := r.client.Exists(ctx, r.slotKey(slot)).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			stale = append(stale, slot)
			continue
		}
		var info SlotInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			logging.GetStorageLogger().Warn("⚠️ Повреждены сведения о слоте %s: %v", slot, err)
			continue
		}
		out = append(out, info)
	}
	if len(stale) > 0 {
		r.client.HDel(ctx, r.indexKey(), stale...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

// Close закрывает соединение с Redis
func (r *RedisRepo) Close() error {
	return r.client.Close()
}
