package store

import (
	"context"

	"github.com/linkcut-io/linkcut/internal/model"
)

// RecordStore - контракт персистентности, которого ядро требует от любого
// бэкенда. Коллекция читается и пишется целиком: Save заменяет весь набор
// записей, а не отдельные строки.
type RecordStore interface {
	// GetAll возвращает все записи в произвольном порядке.
	// Пустая коллекция - это пустой срез, не ошибка.
	GetAll(ctx context.Context) ([]model.URLRecord, error)

	// GetByID возвращает запись по shortcode или apperrors.ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.URLRecord, error)

	// Exists проверяет занятость shortcode.
	Exists(ctx context.Context, id string) (bool, error)

	// Save атомарно заменяет всю коллекцию переданным набором записей.
	Save(ctx context.Context, records []model.URLRecord) error

	Close() error
}
