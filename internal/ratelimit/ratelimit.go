package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kitbuilder587/docrouter/internal/config"
	"github.com/kitbuilder587/docrouter/internal/domain"
)

// Status - снапшот бакета для мониторинга
type Status struct {
	Backend         string
	Capacity        int
	TokensRemaining float64
	RefillRate      float64
}

// Limiter - token bucket на backend. Бакеты создаются лениво и живут
// до конца процесса; учет токенов линеаризуем внутри rate.Limiter,
// ниже нуля и выше capacity не уходит.
type Limiter struct {
	defaults   config.RateLimitConfig
	perBackend map[string]config.RateLimitConfig
	logger     *zap.Logger

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New создает реестр бакетов. perBackend переопределяет defaults
// для отдельных backend'ов, может быть nil.
func New(defaults config.RateLimitConfig, perBackend map[string]config.RateLimitConfig, logger *zap.Logger) *Limiter {
	if defaults.Rate <= 0 {
		defaults.Rate = 10
	}
	if defaults.Capacity <= 0 {
		defaults.Capacity = 20
	}
	if defaults.AcquireTimeout <= 0 {
		defaults.AcquireTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Limiter{
		defaults:   defaults,
		perBackend: perBackend,
		logger:     logger,
		buckets:    make(map[string]*rate.Limiter),
	}
}

// Acquire забирает tokens из бакета backend'а, ожидая пополнения не дольше
// AcquireTimeout. По таймауту возвращает RateLimitTimeoutError - для роутера
// это отказ режима, не отказ backend'а.
func (l *Limiter) Acquire(ctx context.Context, backend string, tokens int) error {
	if tokens <= 0 {
		tokens = 1
	}

	cfg, bucket := l.bucket(backend)

	waitCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()

	if err := bucket.WaitN(waitCtx, tokens); err != nil {
		l.logger.Warn("rate limit acquire failed",
			zap.String("backend", backend),
			zap.Int("tokens", tokens),
			zap.Duration("timeout", cfg.AcquireTimeout),
		)
		return &domain.RateLimitTimeoutError{Backend: backend, Timeout: cfg.AcquireTimeout, Err: err}
	}
	return nil
}

// Status возвращает снапшот бакета; для еще не использованного backend'а
// показывает полный бакет с его конфигом.
func (l *Limiter) Status(backend string) Status {
	_, bucket := l.bucket(backend)

	return Status{
		Backend:         backend,
		Capacity:        bucket.Burst(),
		TokensRemaining: bucket.Tokens(),
		RefillRate:      float64(bucket.Limit()),
	}
}

// Statuses - снапшоты всех созданных бакетов, по имени
func (l *Limiter) Statuses() []Status {
	l.mu.Lock()
	names := make([]string, 0, len(l.buckets))
	for name := range l.buckets {
		names = append(names, name)
	}
	l.mu.Unlock()

	sort.Strings(names)
	statuses := make([]Status, len(names))
	for i, name := range names {
		statuses[i] = l.Status(name)
	}
	return statuses
}

func (l *Limiter) bucket(backend string) (config.RateLimitConfig, *rate.Limiter) {
	cfg := l.defaults
	if override, ok := l.perBackend[backend]; ok {
		if override.Rate > 0 {
			cfg.Rate = override.Rate
		}
		if override.Capacity > 0 {
			cfg.Capacity = override.Capacity
		}
		if override.AcquireTimeout > 0 {
			cfg.AcquireTimeout = override.AcquireTimeout
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[backend]; ok {
		return cfg, b
	}

	b := rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Capacity)
	l.buckets[backend] = b
	return cfg, b
}
