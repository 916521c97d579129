package store

import (
	"context"
	"sync"

	"github.com/linkcut-io/linkcut/internal/apperrors"
	"github.com/linkcut-io/linkcut/internal/model"
)

// MemoryStore - потокобезопасное хранилище в памяти. Используется по
// умолчанию и в тестах.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.URLRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: []model.URLRecord{},
	}
}

func (s *MemoryStore) GetAll(ctx context.Context) ([]model.URLRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStoreError("get_all", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Возвращаем копии, чтобы вызывающий не мог изменить хранимое состояние.
	out := make([]model.URLRecord, 0, len(s.records))
	for i := range s.records {
		out = append(out, *s.records[i].Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*model.URLRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStoreError("get_by_id", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.records {
		if s.records[i].ID == id {
			return s.records[i].Clone(), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.NewStoreError("exists", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.records {
		if s.records[i].ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Save(ctx context.Context, records []model.URLRecord) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreError("save", err)
	}

	replacement := make([]model.URLRecord, 0, len(records))
	for i := range records {
		replacement = append(replacement, *records[i].Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = replacement
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
