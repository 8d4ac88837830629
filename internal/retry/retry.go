package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kitbuilder587/docrouter/internal/config"
	"github.com/kitbuilder587/docrouter/internal/domain"
)

// Policy - значение, не мутируемая сущность; безопасно копировать
type Policy struct {
	// MaxRetries - число повторов после первой попытки
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
	// Retryable классифицирует ошибку; все прочие пролетают без ретраев
	Retryable func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Retryable:       domain.IsTransient,
	}
}

// FromConfig строит политику из типизированного конфига
func FromConfig(cfg config.RetryConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxRetries > 0 {
		p.MaxRetries = cfg.MaxRetries
	}
	if cfg.InitialDelay > 0 {
		p.InitialDelay = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		p.MaxDelay = cfg.MaxDelay
	}
	if cfg.ExponentialBase > 1 {
		p.ExponentialBase = cfg.ExponentialBase
	}
	p.Jitter = cfg.Jitter
	return p
}

// NotifyFunc вызывается на каждый ретрай; только для логов/метрик,
// на управление потоком не влияет
type NotifyFunc func(attempt int, err error, delay time.Duration)

type Executor struct {
	logger *zap.Logger
	notify NotifyFunc
}

func New(logger *zap.Logger, notify NotifyFunc) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger, notify: notify}
}

// Execute гоняет op с экспоненциальным backoff. Попытка n (с единицы) ждет
// min(initial * base^(n-1), max) перед следующей; jitter умножает задержку
// на случайный фактор [0.5, 1.5) независимо на каждую попытку.
func (e *Executor) Execute(ctx context.Context, policy Policy, op func(ctx context.Context) (any, error)) (any, error) {
	return e.ExecuteNotify(ctx, policy, op, nil)
}

// ExecuteNotify - то же, но с дополнительным notify на этот конкретный вызов
// (вдобавок к notify самого executor'а)
func (e *Executor) ExecuteNotify(ctx context.Context, policy Policy, op func(ctx context.Context) (any, error), callNotify NotifyFunc) (any, error) {
	if policy.Retryable == nil {
		policy.Retryable = domain.IsTransient
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.InitialDelay
	bo.MaxInterval = policy.MaxDelay
	bo.Multiplier = policy.ExponentialBase
	bo.MaxElapsedTime = 0 // ограничиваемся числом попыток, не временем
	if policy.Jitter {
		bo.RandomizationFactor = 0.5
	} else {
		bo.RandomizationFactor = 0
	}
	bo.Reset()

	var result any
	attempt := 0

	operation := func() error {
		attempt++
		res, err := op(ctx)
		if err == nil {
			result = res
			return nil
		}
		if !policy.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		e.logger.Debug("retrying after transient failure",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if e.notify != nil {
			e.notify(attempt, err, delay)
		}
		if callNotify != nil {
			callNotify(attempt, err, delay)
		}
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(policy.MaxRetries)), ctx),
		notify,
	)
	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("retry aborted: %w", ctxErr)
	}

	// retryable ошибка дожила до выхода = попытки исчерпаны
	if policy.Retryable(err) {
		return nil, &domain.RetriesExhaustedError{Attempts: attempt, Err: err}
	}

	return nil, err
}
