package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/linkcut-io/linkcut/internal/apperrors"
)

const DefaultValidityMinutes = 30

var shortCodeRegexp = regexp.MustCompile(`^[A-Za-z0-9]{4,10}$`)

func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return apperrors.NewValidationError("url", "URL cannot be empty")
	}

	if len(rawURL) > 2048 {
		return apperrors.NewValidationError("url", "URL is too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.NewValidationError("url", fmt.Sprintf("invalid URL format: %v", err))
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return apperrors.NewValidationError("url", "URL must start with http:// or https://")
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("url", "URL must contain a valid host")
	}

	return nil
}

// ValidateShortCode проверяет пользовательский shortcode: 4-10 символов,
// только буквы и цифры.
func ValidateShortCode(code string) error {
	if !shortCodeRegexp.MatchString(code) {
		return apperrors.NewValidationError("custom_code", "short code must be 4-10 alphanumeric characters")
	}
	return nil
}

// ValidateValidity проверяет срок действия в минутах. Ноль и отрицательные
// значения недопустимы; отсутствие значения обрабатывается выше по стеку.
func ValidateValidity(minutes int) error {
	if minutes <= 0 {
		return apperrors.NewValidationError("validity_minutes", "validity must be a positive number of minutes")
	}
	return nil
}

func SanitizeInput(input string) string {
	// Удаляем управляющие символы и обрезаем пробелы
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, input)

	return strings.TrimSpace(result)
}
