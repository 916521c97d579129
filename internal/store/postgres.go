package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/linkcut-io/linkcut/internal/apperrors"
	"github.com/linkcut-io/linkcut/internal/model"
)

// CollectionKey - логический ключ, под которым хранится вся коллекция.
// Совпадает с ключом, который использовал исходный клиент.
const CollectionKey = "shortenedUrls"

// PostgresStore хранит коллекцию как один JSONB-документ под логическим
// ключом. Формат на диске - массив записей, как описывает контракт
// персистентности.
type PostgresStore struct {
	db  *sql.DB
	key string
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{
		db:  db,
		key: CollectionKey,
	}

	// Схема создается при открытии хранилища.
	query := `
	CREATE TABLE IF NOT EXISTS url_collections (
		key        TEXT PRIMARY KEY,
		records    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
	`
	if _, err := s.db.Exec(query); err != nil {
		return nil, apperrors.NewStoreError("init", fmt.Errorf("failed to create schema: %w", err))
	}

	return s, nil
}

func (s *PostgresStore) GetAll(ctx context.Context) ([]model.URLRecord, error) {
	query := `SELECT records FROM url_collections WHERE key = $1`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, s.key).Scan(&raw)
	if err == sql.ErrNoRows {
		return []model.URLRecord{}, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get_all", err)
	}

	var records []model.URLRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, apperrors.NewStoreError("get_all", fmt.Errorf("failed to decode collection: %w", err))
	}
	if records == nil {
		records = []model.URLRecord{}
	}
	return records, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*model.URLRecord, error) {
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

func (s *PostgresStore) Exists(ctx context.Context, id string) (bool, error) {
	// Точечная проверка по JSONB, без чтения всей коллекции.
	query := `
	SELECT EXISTS(
		SELECT 1 FROM url_collections, jsonb_array_elements(records) AS rec
		WHERE key = $1 AND rec->>'id' = $2
	)
	`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, s.key, id).Scan(&exists); err != nil {
		return false, apperrors.NewStoreError("exists", err)
	}
	return exists, nil
}

func (s *PostgresStore) Save(ctx context.Context, records []model.URLRecord) error {
	if records == nil {
		records = []model.URLRecord{}
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return apperrors.NewStoreError("save", fmt.Errorf("failed to encode collection: %w", err))
	}

	query := `
	INSERT INTO url_collections (key, records, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET records = EXCLUDED.records, updated_at = now()
	`
	if _, err := s.db.ExecContext(ctx, query, s.key, raw); err != nil {
		return apperrors.NewStoreError("save", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
