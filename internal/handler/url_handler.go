package handler

import (
	"context"
	"errors"
	"hash/fnv"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkcut-io/linkcut/internal/apperrors"
	"github.com/linkcut-io/linkcut/internal/model"
	"github.com/linkcut-io/linkcut/internal/telemetry"
)

// URLService - контракт бизнес-слоя, который нужен обработчикам.
type URLService interface {
	CreateShortURL(ctx context.Context, req *model.CreateURLRequest) (*model.URLResponse, error)
	ResolveURL(ctx context.Context, shortCode string, click model.ClickContext) (string, error)
	ListURLs(ctx context.Context) ([]model.URLStatsResponse, error)
	GetURL(ctx context.Context, shortCode string) (*model.URLStatsResponse, error)
}

type URLHandler struct {
	urlService URLService
	log        *telemetry.Logger
}

func NewURLHandler(urlService URLService, log *telemetry.Logger) *URLHandler {
	if log == nil {
		log = telemetry.NewLogger(nil, "handler")
	}
	return &URLHandler{
		urlService: urlService,
		log:        log,
	}
}

func (h *URLHandler) CreateURL(c *gin.Context) {
	var req model.CreateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format",
		})
		return
	}

	response, err := h.urlService.CreateShortURL(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

func (h *URLHandler) ListURLs(c *gin.Context) {
	responses, err := h.urlService.ListURLs(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"urls":  responses,
		"count": len(responses),
	})
}

func (h *URLHandler) GetURL(c *gin.Context) {
	shortCode := c.Param("shortCode")
	if shortCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Short code is required",
		})
		return
	}

	response, err := h.urlService.GetURL(c.Request.Context(), shortCode)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *URLHandler) RedirectURL(c *gin.Context) {
	shortCode := c.Param("shortCode")
	if shortCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Short code is required",
		})
		return
	}

	click := model.ClickContext{
		Source:   c.Request.Referer(), // пустой referer станет "Direct" в ядре
		Location: locationLabel(c.ClientIP()),
	}

	// Клик записывается синхронно, до ответа: успешный редирект означает,
	// что клик долговечно сохранен.
	longURL, err := h.urlService.ResolveURL(c.Request.Context(), shortCode, click)
	if err != nil {
		if errors.Is(err, apperrors.ErrClickNotRecorded) {
			// Разрешение прошло, не сохранился только клик: предупреждаем
			// и все равно отдаем редирект.
			h.log.Warn("click lost for %q: %v", shortCode, err)
		} else {
			h.handleError(c, err)
			return
		}
	}

	c.Redirect(http.StatusFound, longURL)
}

// handleError транслирует ошибки ядра в HTTP-коды
func (h *URLHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidURL),
		errors.Is(err, apperrors.ErrInvalidValidity),
		errors.Is(err, apperrors.ErrInvalidCodeFormat):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": validationMessage(err),
		})
		return

	case errors.Is(err, apperrors.ErrCodeTaken):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "code_taken",
			"message": "Short code is already taken",
		})
		return

	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "url_not_found",
			"message": "This link does not exist or has been removed",
		})
		return

	case errors.Is(err, apperrors.ErrExpired):
		c.JSON(http.StatusGone, gin.H{
			"error":   "url_expired",
			"message": "This link has expired",
		})
		return

	case errors.Is(err, apperrors.ErrGenerationCollision):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "generation_collision",
			"message": "Failed to generate a unique short code",
		})
		return
	}

	if apperrors.IsStoreError(err) {
		h.log.Error("store failure: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "store_error",
			"message": "Storage operation failed",
		})
		return
	}

	h.log.Error("unexpected failure: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "An unexpected error occurred",
	})
}

func validationMessage(err error) string {
	if validationErr := apperrors.GetValidationError(err); validationErr != nil {
		return validationErr.Message
	}
	return err.Error()
}

// Настоящего сервиса геолокации нет: метка локации имитируется, но
// детерминированно для одного и того же клиента.
var mockLocations = []string{"New York, USA", "London, UK", "Tokyo, JP", "Sydney, AU", "Berlin, DE"}

func locationLabel(clientIP string) string {
	if clientIP == "" {
		return "Unknown"
	}
	h := fnv.New32a()
	h.Write([]byte(clientIP))
	return mockLocations[h.Sum32()%uint32(len(mockLocations))]
}
