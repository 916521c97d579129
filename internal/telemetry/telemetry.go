package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Level - уровень важности записи телеметрии.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// Stack у бэкенда всегда один.
const stackBackend = "backend"

// Record - структурированная запись для внешнего приемника телеметрии.
type Record struct {
	Stack   string `json:"stack"`
	Level   Level  `json:"level"`
	Package string `json:"package"`
	Message string `json:"message"`
}

// Sink принимает записи телеметрии. Доставка fire-and-forget: сбои доставки
// никогда не влияют на результат операции, которая записала событие.
type Sink interface {
	Send(record Record)
	Close() error
}

// HTTPSink отправляет записи POST-запросом на внешний endpoint.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

func NewHTTPSink(endpoint string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
	}
}

// Send отправляет запись в отдельной горутине и не блокирует вызывающего.
func (s *HTTPSink) Send(record Record) {
	go s.post(record)
}

func (s *HTTPSink) post(record Record) {
	payload, err := json.Marshal(record)
	if err != nil {
		log.Printf("telemetry: failed to encode record: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		log.Printf("telemetry: failed to build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// Единственное место, где допустим локальный лог о сбое телеметрии.
		log.Printf("telemetry: failed to send record: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		log.Printf("telemetry: sink responded with status %d", resp.StatusCode)
	}
}

func (s *HTTPSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// NopSink - заглушка для работы без внешнего приемника (Null Object Pattern)
type NopSink struct{}

func NewNopSink() *NopSink {
	return &NopSink{}
}

func (NopSink) Send(record Record) {}

func (NopSink) Close() error { return nil }

// Logger привязывает приемник к имени пакета-источника.
type Logger struct {
	sink Sink
	pkg  string
}

func NewLogger(sink Sink, pkg string) *Logger {
	if sink == nil {
		sink = NewNopSink()
	}
	return &Logger{sink: sink, pkg: pkg}
}

// WithPackage возвращает логгер с тем же приемником, но другим источником.
func (l *Logger) WithPackage(pkg string) *Logger {
	return &Logger{sink: l.sink, pkg: pkg}
}

func (l *Logger) log(level Level, format string, args ...any) {
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	l.sink.Send(Record{
		Stack:   stackBackend,
		Level:   level,
		Package: l.pkg,
		Message: message,
	})
}

func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }
func (l *Logger) Fatal(format string, args ...any) { l.log(LevelFatal, format, args...) }
