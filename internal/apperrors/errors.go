package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL          = errors.New("invalid URL")
	ErrInvalidValidity     = errors.New("validity must be a positive number of minutes")
	ErrInvalidCodeFormat   = errors.New("short code must be 4-10 alphanumeric characters")
	ErrCodeTaken           = errors.New("short code is already taken")
	ErrGenerationCollision = errors.New("failed to generate unique short code")
	ErrNotFound            = errors.New("URL not found")
	ErrExpired             = errors.New("URL has expired")
)

// ErrClickNotRecorded - предупреждение: разрешение кода прошло успешно,
// но клик не удалось сохранить. Редирект все равно может состояться.
var ErrClickNotRecorded = errors.New("click was not recorded")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

type BusinessError struct {
	Code    string
	Message string
	Cause   error
}

func (e *BusinessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Cause
}

func NewBusinessError(code, message string, cause error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// StoreError - ошибка ввода-вывода хранилища записей.
type StoreError struct {
	Op  string // "get_all", "get_by_id", "exists", "save"
	Err error
}

func (e *StoreError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// IsValidationError проверяет является ли ошибка ошибкой валидации
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsBusinessError проверяет является ли ошибка бизнес-ошибкой
func IsBusinessError(err error) bool {
	var businessErr *BusinessError
	return errors.As(err, &businessErr)
}

// IsStoreError проверяет является ли ошибка ошибкой хранилища
func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}

func GetValidationError(err error) *ValidationError {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr
	}
	return nil
}

// GetBusinessError извлекает BusinessError из ошибки
func GetBusinessError(err error) *BusinessError {
	var businessErr *BusinessError
	if errors.As(err, &businessErr) {
		return businessErr
	}
	return nil
}
