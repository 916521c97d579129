package model

import "time"

// URLRecord - запись сокращенного URL. Shortcode является первичным ключом
// и не меняется после создания.
type URLRecord struct {
	ID        string       `json:"id"`
	LongURL   string       `json:"longUrl"`
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Clicks    []ClickEvent `json:"clicks"`
}

// ClickEvent - одно успешное разрешение shortcode.
type ClickEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Location  string    `json:"location"`
}

// IsExpired сообщает, истекла ли запись на момент now.
// Срок действия всегда вычисляется, никогда не хранится.
func (r *URLRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Clone возвращает глубокую копию записи, включая историю кликов.
func (r *URLRecord) Clone() *URLRecord {
	clicks := make([]ClickEvent, len(r.Clicks))
	copy(clicks, r.Clicks)

	return &URLRecord{
		ID:        r.ID,
		LongURL:   r.LongURL,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
		Clicks:    clicks,
	}
}

type CreateURLRequest struct {
	URL             string `json:"url" binding:"required"`
	ValidityMinutes *int   `json:"validity_minutes,omitempty"`
	CustomCode      string `json:"custom_code,omitempty"`
}

type URLResponse struct {
	ID         string    `json:"id"`
	ShortURL   string    `json:"short_url"`
	LongURL    string    `json:"long_url"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Expired    bool      `json:"expired"`
	ClickCount int       `json:"click_count"`
}

type URLStatsResponse struct {
	URLResponse
	Clicks []ClickEvent `json:"clicks"`
}

// ClickContext - данные о клике, которые поставляет слой представления.
type ClickContext struct {
	Source   string
	Location string
}
