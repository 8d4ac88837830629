package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyDocumentID = errors.New("empty document id")
	ErrInvalidMode     = errors.New("invalid processing mode")
	ErrInvalidMeta     = errors.New("pages and tables must be non-negative")
	ErrInvalidOCRHint  = errors.New("ocr confidence must be in [0, 1]")
)

var (
	ErrUnknownProcessor = errors.New("no processor registered for mode")
)

// TransientError помечает ошибку как потенциально восстановимую ретраем.
// Processing-функции оборачивают в него connectivity/timeout-класс отказов.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so the default retry predicate treats it as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// CircuitOpenError - backend закрыт на cooldown, вызов даже не начинался.
// Считается rejection, не failure; ретраить его бессмысленно.
type CircuitOpenError struct {
	Backend    string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for backend %q, retry after %s", e.Backend, e.RetryAfter)
}

// RateLimitTimeoutError - не дождались токенов в пределах таймаута
type RateLimitTimeoutError struct {
	Backend string
	Timeout time.Duration
	Err     error
}

func (e *RateLimitTimeoutError) Error() string {
	return fmt.Sprintf("rate limit timeout for backend %q after %s", e.Backend, e.Timeout)
}

func (e *RateLimitTimeoutError) Unwrap() error { return e.Err }

// RetriesExhaustedError оборачивает последнюю transient-ошибку после max retries
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

// RoutingExhaustedError - единственный случай, когда Route возвращает ошибку:
// и основной режим, и fallback (если он был) не смогли обработать документ.
type RoutingExhaustedError struct {
	DocumentID   string
	PrimaryMode  ProcessingMode
	PrimaryErr   error
	FallbackMode ProcessingMode
	FallbackErr  error
}

func (e *RoutingExhaustedError) Error() string {
	if e.FallbackErr == nil {
		return fmt.Sprintf("document %s: mode %s failed: %v", e.DocumentID, e.PrimaryMode, e.PrimaryErr)
	}
	return fmt.Sprintf("document %s: mode %s failed: %v; fallback %s failed: %v",
		e.DocumentID, e.PrimaryMode, e.PrimaryErr, e.FallbackMode, e.FallbackErr)
}

func (e *RoutingExhaustedError) Unwrap() []error {
	errs := []error{e.PrimaryErr}
	if e.FallbackErr != nil {
		errs = append(errs, e.FallbackErr)
	}
	return errs
}
