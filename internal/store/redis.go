package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkcut-io/linkcut/internal/apperrors"
	"github.com/linkcut-io/linkcut/internal/model"
)

// RedisConfig - конфигурация подключения к Redis
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
}

// RedisStore хранит всю коллекцию как JSON-массив под одним ключом.
// Это тот же однo-ключевой blob, что и у исходного клиента, только
// долговечный.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore создает хранилище и проверяет подключение.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, apperrors.NewStoreError("connect", fmt.Errorf("failed to connect to Redis: %w", err))
	}

	return &RedisStore{
		client: client,
		key:    CollectionKey,
	}, nil
}

func (s *RedisStore) GetAll(ctx context.Context) ([]model.URLRecord, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return []model.URLRecord{}, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get_all", err)
	}

	var records []model.URLRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, apperrors.NewStoreError("get_all", fmt.Errorf("failed to decode collection: %w", err))
	}
	if records == nil {
		records = []model.URLRecord{}
	}
	return records, nil
}

func (s *RedisStore) GetByID(ctx context.Context, id string) (*model.URLRecord, error) {
	records, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	records, err := s.GetAll(ctx)
	if err != nil {
		return false, err
	}

	for i := range records {
		if records[i].ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *RedisStore) Save(ctx context.Context, records []model.URLRecord) error {
	if records == nil {
		records = []model.URLRecord{}
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return apperrors.NewStoreError("save", fmt.Errorf("failed to encode collection: %w", err))
	}

	// Коллекция живет без TTL: записи никогда не вытесняются.
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return apperrors.NewStoreError("save", err)
	}
	return nil
}

// HealthCheck проверяет соединение с Redis
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return apperrors.NewStoreError("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
