package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkcut-io/linkcut/internal/apperrors"
	"github.com/linkcut-io/linkcut/internal/model"
	"github.com/linkcut-io/linkcut/internal/store"
)

// mockClock - управляемые часы для детерминированных проверок срока действия.
type mockClock struct {
	current time.Time
}

func newMockClock(t time.Time) *mockClock {
	return &mockClock{current: t}
}

func (c *mockClock) Now() time.Time {
	return c.current
}

func (c *mockClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

// flakyStore оборачивает MemoryStore и позволяет подделывать Exists и
// ронять Save.
type flakyStore struct {
	*store.MemoryStore
	existsQueue      []bool
	existsAlwaysTrue bool
	existsCalls      int
	failSave         bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: store.NewMemoryStore()}
}

func (s *flakyStore) Exists(ctx context.Context, id string) (bool, error) {
	s.existsCalls++
	if s.existsAlwaysTrue {
		return true, nil
	}
	if len(s.existsQueue) > 0 {
		result := s.existsQueue[0]
		s.existsQueue = s.existsQueue[1:]
		return result, nil
	}
	return s.MemoryStore.Exists(ctx, id)
}

func (s *flakyStore) Save(ctx context.Context, records []model.URLRecord) error {
	if s.failSave {
		return apperrors.NewStoreError("save", errors.New("disk full"))
	}
	return s.MemoryStore.Save(ctx, records)
}

func newTestService(recordStore store.RecordStore, clock *mockClock) *URLService {
	return NewURLServiceWithClock(recordStore, nil, Options{
		BaseURL: "http://localhost:8080",
	}, clock.Now)
}

func intPtr(v int) *int { return &v }

func TestCreateShortURL(t *testing.T) {
	clock := newMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	memStore := store.NewMemoryStore()
	svc := newTestService(memStore, clock)

	resp, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
		URL:             "https://example.com/some/path",
		ValidityMinutes: intPtr(45),
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9]{6}$`), resp.ID)
	assert.Equal(t, "https://example.com/some/path", resp.LongURL)
	assert.Equal(t, "http://localhost:8080/"+resp.ID, resp.ShortURL)
	assert.Equal(t, clock.Now(), resp.CreatedAt)
	assert.Equal(t, clock.Now().Add(45*time.Minute), resp.ExpiresAt)
	assert.False(t, resp.Expired)
	assert.Zero(t, resp.ClickCount)

	// Запись долговечно видна последующим чтениям.
	record, err := memStore.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/some/path", record.LongURL)
	assert.Empty(t, record.Clicks)
}

func TestCreateShortURLDefaultValidity(t *testing.T) {
	clock := newMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(store.NewMemoryStore(), clock)

	resp, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
		URL: "https://example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(30*time.Minute), resp.ExpiresAt)
}

func TestCreateShortURLInvalidURL(t *testing.T) {
	clock := newMockClock(time.Now())
	memStore := store.NewMemoryStore()
	svc := newTestService(memStore, clock)

	_, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
		URL: "not-a-url",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidURL)

	// Хранилище не должно измениться.
	records, storeErr := memStore.GetAll(context.Background())
	require.NoError(t, storeErr)
	assert.Empty(t, records)
}

func TestCreateShortURLInvalidValidity(t *testing.T) {
	clock := newMockClock(time.Now())
	svc := newTestService(store.NewMemoryStore(), clock)

	for _, minutes := range []int{0, -10} {
		_, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
			URL:             "https://example.com",
			ValidityMinutes: intPtr(minutes),
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidValidity)
	}
}

func TestCreateShortURLCustomCode(t *testing.T) {
	clock := newMockClock(time.Now())
	svc := newTestService(store.NewMemoryStore(), clock)

	resp, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
		URL:        "https://example.com",
		CustomCode: "MyCode42",
	})
	require.NoError(t, err)
	assert.Equal(t, "MyCode42", resp.ID)
}

func TestCreateShortURLInvalidCustomCode(t *testing.T) {
	clock := newMockClock(time.Now())
	memStore := store.NewMemoryStore()
	svc := newTestService(memStore, clock)

	for _, code := range []string{"ab", "with-dash", "тест1234", "waytoolongcode"} {
		_, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
			URL:        "https://example.com",
			CustomCode: code,
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidCodeFormat, "code %q", code)
	}

	records, err := memStore.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCreateShortURLCodeTaken(t *testing.T) {
	clock := newMockClock(time.Now())
	memStore := store.NewMemoryStore()
	svc := newTestService(memStore, clock)

	_, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
		URL:        "https://first.example.com",
		CustomCode: "abcd",
	})
	require.NoError(t, err)

	// Повторная аллокация занятого кода всегда отклоняется.
	_, err = svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
		URL:        "https://second.example.com",
		CustomCode: "abcd",
	})
	assert.ErrorIs(t, err, apperrors.ErrCodeTaken)

	records, storeErr := memStore.GetAll(context.Background())
	require.NoError(t, storeErr)
	assert.Len(t, records, 1)
	assert.Equal(t, "https://first.example.com", records[0].LongURL)
}

func TestCreateShortURLRetriesOnCollision(t *testing.T) {
	clock := newMockClock(time.Now())
	flaky := newFlakyStore()
	flaky.existsQueue = []bool{true, true, false}
	svc := newTestService(flaky, clock)

	resp, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
		URL: "https://example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, 3, flaky.existsCalls)
}

func TestCreateShortURLGenerationCollision(t *testing.T) {
	clock := newMockClock(time.Now())
	flaky := newFlakyStore()
	flaky.existsAlwaysTrue = true
	svc := newTestService(flaky, clock)

	_, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
		URL: "https://example.com",
	})
	assert.ErrorIs(t, err, apperrors.ErrGenerationCollision)
	assert.Equal(t, 5, flaky.existsCalls)
}

func TestCreateShortURLSequentialCodesDiffer(t *testing.T) {
	clock := newMockClock(time.Now())
	svc := newTestService(store.NewMemoryStore(), clock)

	first, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{URL: "https://example.com"})
	require.NoError(t, err)
	second, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{URL: "https://example.com"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestResolveURL(t *testing.T) {
	clock := newMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	memStore := store.NewMemoryStore()
	svc := newTestService(memStore, clock)

	created, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
		URL: "https://example.com/landing?utm=x",
	})
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)

	longURL, err := svc.ResolveURL(context.Background(), created.ID, model.ClickContext{
		Source:   "https://referrer.example",
		Location: "Berlin, DE",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/landing?utm=x", longURL)

	record, err := memStore.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, record.Clicks, 1)
	assert.Equal(t, clock.Now(), record.Clicks[0].Timestamp)
	assert.Equal(t, "https://referrer.example", record.Clicks[0].Source)
	assert.Equal(t, "Berlin, DE", record.Clicks[0].Location)
}

func TestResolveURLDirectSource(t *testing.T) {
	clock := newMockClock(time.Now())
	memStore := store.NewMemoryStore()
	svc := newTestService(memStore, clock)

	created, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{URL: "https://example.com"})
	require.NoError(t, err)

	// Отсутствующий referrer превращается в сентинел "Direct".
	_, err = svc.ResolveURL(context.Background(), created.ID, model.ClickContext{Location: "Tokyo, JP"})
	require.NoError(t, err)

	record, err := memStore.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, record.Clicks, 1)
	assert.Equal(t, "Direct", record.Clicks[0].Source)
}

func TestResolveURLNotFound(t *testing.T) {
	clock := newMockClock(time.Now())
	svc := newTestService(store.NewMemoryStore(), clock)

	_, err := svc.ResolveURL(context.Background(), "missing", model.ClickContext{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestResolveURLExpired(t *testing.T) {
	clock := newMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	memStore := store.NewMemoryStore()
	svc := newTestService(memStore, clock)

	created, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
		URL:             "https://example.com",
		ValidityMinutes: intPtr(1),
		CustomCode:      "abcd",
	})
	require.NoError(t, err)
	assert.Equal(t, "abcd", created.ID)

	// Через 61 секунду минутная запись уже истекла.
	clock.Advance(61 * time.Second)

	_, err = svc.ResolveURL(context.Background(), "abcd", model.ClickContext{})
	assert.ErrorIs(t, err, apperrors.ErrExpired)

	// Истекшее разрешение не оставляет кликов.
	record, storeErr := memStore.GetByID(context.Background(), "abcd")
	require.NoError(t, storeErr)
	assert.Empty(t, record.Clicks)
}

func TestResolveURLExpiresExactlyAtDeadline(t *testing.T) {
	clock := newMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(store.NewMemoryStore(), clock)

	created, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
		URL:             "https://example.com",
		ValidityMinutes: intPtr(10),
	})
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)

	_, err = svc.ResolveURL(context.Background(), created.ID, model.ClickContext{})
	assert.ErrorIs(t, err, apperrors.ErrExpired)
}

func TestResolveURLClickSaveFailure(t *testing.T) {
	clock := newMockClock(time.Now())
	flaky := newFlakyStore()
	svc := newTestService(flaky, clock)

	created, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{URL: "https://example.com"})
	require.NoError(t, err)

	flaky.failSave = true

	// Редирект логически состоялся: long URL возвращается вместе с
	// предупреждением, не вместо него.
	longURL, err := svc.ResolveURL(context.Background(), created.ID, model.ClickContext{})
	assert.ErrorIs(t, err, apperrors.ErrClickNotRecorded)
	assert.Equal(t, "https://example.com", longURL)
}

func TestRecordClickPreservesHistory(t *testing.T) {
	clock := newMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	memStore := store.NewMemoryStore()
	svc := newTestService(memStore, clock)

	first, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{URL: "https://first.example.com"})
	require.NoError(t, err)
	second, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{URL: "https://second.example.com"})
	require.NoError(t, err)

	// Повторные клики не дедуплицируются: каждый дает свое событие.
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		require.NoError(t, svc.RecordClick(context.Background(), first.ID, "Direct", "London, UK", clock.Now()))
	}

	firstRecord, err := memStore.GetByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Len(t, firstRecord.Clicks, 3)

	// Соседняя запись осталась нетронутой.
	secondRecord, err := memStore.GetByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Empty(t, secondRecord.Clicks)
	assert.Equal(t, "https://second.example.com", secondRecord.LongURL)
}

func TestRecordClickNotFound(t *testing.T) {
	clock := newMockClock(time.Now())
	svc := newTestService(store.NewMemoryStore(), clock)

	err := svc.RecordClick(context.Background(), "missing", "Direct", "", clock.Now())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListURLsSortedByCreatedAtDesc(t *testing.T) {
	clock := newMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(store.NewMemoryStore(), clock)

	oldest, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{URL: "https://oldest.example.com"})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	middle, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{URL: "https://middle.example.com"})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	newest, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{URL: "https://newest.example.com"})
	require.NoError(t, err)

	responses, err := svc.ListURLs(context.Background())
	require.NoError(t, err)
	require.Len(t, responses, 3)

	assert.Equal(t, newest.ID, responses[0].ID)
	assert.Equal(t, middle.ID, responses[1].ID)
	assert.Equal(t, oldest.ID, responses[2].ID)
}

func TestListURLsTieBreakIsDeterministic(t *testing.T) {
	clock := newMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(store.NewMemoryStore(), clock)

	_, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{URL: "https://example.com", CustomCode: "bbbb"})
	require.NoError(t, err)
	_, err = svc.CreateShortURL(context.Background(), &model.CreateURLRequest{URL: "https://example.com", CustomCode: "aaaa"})
	require.NoError(t, err)

	responses, err := svc.ListURLs(context.Background())
	require.NoError(t, err)
	require.Len(t, responses, 2)

	// Одинаковый createdAt упорядочивается по коду.
	assert.Equal(t, "aaaa", responses[0].ID)
	assert.Equal(t, "bbbb", responses[1].ID)
}

func TestListURLsNeverDuplicates(t *testing.T) {
	clock := newMockClock(time.Now())
	svc := newTestService(store.NewMemoryStore(), clock)

	for i := 0; i < 10; i++ {
		_, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{URL: "https://example.com"})
		require.NoError(t, err)
	}

	responses, err := svc.ListURLs(context.Background())
	require.NoError(t, err)
	require.Len(t, responses, 10)

	seen := make(map[string]bool)
	for _, resp := range responses {
		assert.False(t, seen[resp.ID], "duplicate id %s", resp.ID)
		seen[resp.ID] = true
	}
}

func TestGetURLIncludesExpired(t *testing.T) {
	clock := newMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(store.NewMemoryStore(), clock)

	created, err := svc.CreateShortURL(context.Background(), &model.CreateURLRequest{
		URL:             "https://example.com",
		ValidityMinutes: intPtr(1),
	})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	// Истекшая запись остается видимой в статистике.
	stats, err := svc.GetURL(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, stats.Expired)
	assert.Equal(t, "https://example.com", stats.LongURL)

	_, err = svc.GetURL(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
