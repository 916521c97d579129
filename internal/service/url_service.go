package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/linkcut-io/linkcut/internal/apperrors"
	"github.com/linkcut-io/linkcut/internal/model"
	"github.com/linkcut-io/linkcut/internal/store"
	"github.com/linkcut-io/linkcut/internal/telemetry"
	"github.com/linkcut-io/linkcut/internal/utils"
)

// Options - настройки аллокатора. Нулевые значения заменяются дефолтами.
type Options struct {
	BaseURL                string
	ShortCodeLength        int
	MaxGenerateAttempts    int
	DefaultValidityMinutes int
}

type URLService struct {
	recordStore store.RecordStore
	log         *telemetry.Logger
	opts        Options
	now         func() time.Time

	// mu сериализует все мутации (создание и запись клика): пара
	// GetAll/Save не транзакционна, поэтому read-modify-write нельзя
	// перемежать.
	mu sync.Mutex
}

func NewURLService(recordStore store.RecordStore, log *telemetry.Logger, opts Options) *URLService {
	if opts.ShortCodeLength <= 0 {
		opts.ShortCodeLength = utils.DefaultShortCodeLength
	}
	if opts.MaxGenerateAttempts <= 0 {
		opts.MaxGenerateAttempts = 5
	}
	if opts.DefaultValidityMinutes <= 0 {
		opts.DefaultValidityMinutes = utils.DefaultValidityMinutes
	}
	if log == nil {
		log = telemetry.NewLogger(nil, "service")
	}

	return &URLService{
		recordStore: recordStore,
		log:         log,
		opts:        opts,
		now:         time.Now,
	}
}

// NewURLServiceWithClock создает сервис с управляемыми часами (для тестов).
func NewURLServiceWithClock(recordStore store.RecordStore, log *telemetry.Logger, opts Options, now func() time.Time) *URLService {
	s := NewURLService(recordStore, log, opts)
	s.now = now
	return s
}

// CreateShortURL выделяет shortcode для нового URL: проверяет вход,
// гарантирует глобальную уникальность кода и сохраняет запись.
func (s *URLService) CreateShortURL(ctx context.Context, req *model.CreateURLRequest) (*model.URLResponse, error) {
	s.log.Debug("allocation attempt for %q", req.URL)

	sanitizedURL := utils.SanitizeInput(req.URL)
	if err := utils.ValidateURL(sanitizedURL); err != nil {
		s.log.Warn("invalid URL rejected: %v", err)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidURL, err)
	}

	validityMinutes := s.opts.DefaultValidityMinutes
	if req.ValidityMinutes != nil {
		if err := utils.ValidateValidity(*req.ValidityMinutes); err != nil {
			s.log.Warn("invalid validity rejected: %v", err)
			return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidValidity, err)
		}
		validityMinutes = *req.ValidityMinutes
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var shortCode string
	if req.CustomCode != "" {
		// Пользовательский код: одна попытка, без подбора.
		if err := utils.ValidateShortCode(req.CustomCode); err != nil {
			s.log.Warn("invalid custom code %q rejected", req.CustomCode)
			return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidCodeFormat, err)
		}

		exists, err := s.recordStore.Exists(ctx, req.CustomCode)
		if err != nil {
			return nil, fmt.Errorf("failed to check short code: %w", err)
		}
		if exists {
			s.log.Warn("custom code %q is already taken", req.CustomCode)
			return nil, fmt.Errorf("short code %q: %w", req.CustomCode, apperrors.ErrCodeTaken)
		}

		shortCode = req.CustomCode
	} else {
		code, err := s.generateUniqueShortCode(ctx)
		if err != nil {
			return nil, err
		}
		shortCode = code
	}

	now := s.now()
	record := model.URLRecord{
		ID:        shortCode,
		LongURL:   sanitizedURL,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(validityMinutes) * time.Minute),
		Clicks:    []model.ClickEvent{},
	}

	records, err := s.recordStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}

	records = append(records, record)
	if err := s.recordStore.Save(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to persist record: %w", err)
	}

	s.log.Info("created short URL %s for %s", shortCode, sanitizedURL)
	return s.toResponse(&record, now), nil
}

// ResolveURL возвращает исходный URL по shortcode и синхронно записывает
// клик. Если запись клика не удалась, long URL возвращается вместе с
// предупреждением ErrClickNotRecorded: редирект уже логически состоялся.
func (s *URLService) ResolveURL(ctx context.Context, shortCode string, click model.ClickContext) (string, error) {
	s.log.Debug("resolution attempt for %q", shortCode)

	record, err := s.recordStore.GetByID(ctx, shortCode)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.log.Warn("shortcode %q not found", shortCode)
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("failed to load record: %w", err)
	}

	now := s.now()
	if record.IsExpired(now) {
		s.log.Warn("attempted to access expired shortcode %q", shortCode)
		return "", apperrors.ErrExpired
	}

	if err := s.RecordClick(ctx, shortCode, click.Source, click.Location, now); err != nil {
		s.log.Error("failed to record click for %q: %v", shortCode, err)
		return record.LongURL, fmt.Errorf("%w: %w", apperrors.ErrClickNotRecorded, err)
	}

	s.log.Info("resolved %s to %s", shortCode, record.LongURL)
	return record.LongURL, nil
}

// RecordClick добавляет событие клика в историю записи. История только
// растет: прошлые события и остальные записи остаются нетронутыми.
func (s *URLService) RecordClick(ctx context.Context, shortCode, source, location string, timestamp time.Time) error {
	if source == "" {
		source = "Direct"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.recordStore.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	index := -1
	for i := range records {
		if records[i].ID == shortCode {
			index = i
			break
		}
	}
	if index == -1 {
		s.log.Warn("attempted to record click for non-existent shortcode %q", shortCode)
		return apperrors.ErrNotFound
	}

	records[index].Clicks = append(records[index].Clicks, model.ClickEvent{
		Timestamp: timestamp,
		Source:    source,
		Location:  location,
	})

	if err := s.recordStore.Save(ctx, records); err != nil {
		return fmt.Errorf("failed to persist click: %w", err)
	}

	s.log.Info("click recorded for shortcode %q", shortCode)
	return nil
}

// ListURLs возвращает все записи со статистикой кликов, отсортированные по
// времени создания по убыванию. Равные времена упорядочиваются по коду.
func (s *URLService) ListURLs(ctx context.Context) ([]model.URLStatsResponse, error) {
	records, err := s.recordStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	now := s.now()
	responses := make([]model.URLStatsResponse, 0, len(records))
	for i := range records {
		responses = append(responses, *s.toStatsResponse(&records[i], now))
	}
	return responses, nil
}

// GetURL возвращает статистику одной записи. Истекшие записи не скрываются:
// они остаются в каталоге, не разрешается только редирект.
func (s *URLService) GetURL(ctx context.Context, shortCode string) (*model.URLStatsResponse, error) {
	record, err := s.recordStore.GetByID(ctx, shortCode)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	return s.toStatsResponse(record, s.now()), nil
}

func (s *URLService) generateUniqueShortCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.opts.MaxGenerateAttempts; attempt++ {
		code, err := utils.GenerateShortCodeWithLength(s.opts.ShortCodeLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}

		exists, err := s.recordStore.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check short code: %w", err)
		}
		if !exists {
			return code, nil
		}

		s.log.Warn("short code collision on %q, retrying (%d/%d)", code, attempt+1, s.opts.MaxGenerateAttempts)
	}

	s.log.Error("exhausted %d generation attempts", s.opts.MaxGenerateAttempts)
	return "", fmt.Errorf("after %d attempts: %w", s.opts.MaxGenerateAttempts, apperrors.ErrGenerationCollision)
}

func (s *URLService) toResponse(record *model.URLRecord, now time.Time) *model.URLResponse {
	return &model.URLResponse{
		ID:         record.ID,
		ShortURL:   s.buildShortURL(record.ID),
		LongURL:    record.LongURL,
		CreatedAt:  record.CreatedAt,
		ExpiresAt:  record.ExpiresAt,
		Expired:    record.IsExpired(now),
		ClickCount: len(record.Clicks),
	}
}

func (s *URLService) toStatsResponse(record *model.URLRecord, now time.Time) *model.URLStatsResponse {
	clicks := make([]model.ClickEvent, len(record.Clicks))
	copy(clicks, record.Clicks)

	return &model.URLStatsResponse{
		URLResponse: *s.toResponse(record, now),
		Clicks:      clicks,
	}
}

func (s *URLService) buildShortURL(shortCode string) string {
	return fmt.Sprintf("%s/%s", s.opts.BaseURL, shortCode)
}
