package breaker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/docrouter/internal/config"
	"github.com/kitbuilder587/docrouter/internal/domain"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Snapshot - read-only копия состояния брейкера для мониторинга
type Snapshot struct {
	Name            string
	State           State
	FailureCount    int
	LastFailure     time.Time
	TotalRequests   uint64
	TotalSuccesses  uint64
	TotalFailures   uint64
	TotalRejections uint64
}

// Breaker - автомат Closed -> Open -> HalfOpen на один backend.
// Все переходы и счетчики под одним мьютексом; сам вызов operation
// выполняется без удержания блокировки.
type Breaker struct {
	name   string
	cfg    config.BreakerConfig
	logger *zap.Logger

	mu           sync.Mutex
	state        State
	failureCount int
	lastFailure  time.Time
	trialActive  bool
	trialStarted time.Time

	totalRequests   uint64
	totalSuccesses  uint64
	totalFailures   uint64
	totalRejections uint64
}

func New(name string, cfg config.BreakerConfig, logger *zap.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.HalfOpenTimeout <= 0 {
		cfg.HalfOpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger,
		state:  StateClosed,
	}
}

// Call пропускает operation через брейкер. В Open возвращает CircuitOpenError
// не вызывая operation; в HalfOpen допускает ровно один пробный вызов.
func (b *Breaker) Call(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	if err := b.admit(); err != nil {
		return nil, err
	}

	result, err := op(ctx)
	b.settle(err == nil)
	return result, err
}

// admit решает, можно ли начинать вызов, и резервирует trial-слот в HalfOpen
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		elapsed := time.Since(b.lastFailure)
		if elapsed < b.cfg.OpenTimeout {
			b.totalRejections++
			return &domain.CircuitOpenError{Backend: b.name, RetryAfter: b.cfg.OpenTimeout - elapsed}
		}
		// cooldown истек - этот вызов становится пробным
		b.state = StateHalfOpen
		b.trialActive = true
		b.trialStarted = time.Now()
		b.logger.Info("circuit half-open, allowing trial call", zap.String("backend", b.name))
		return nil

	case StateHalfOpen:
		if b.trialActive && time.Since(b.trialStarted) < b.cfg.HalfOpenTimeout {
			// пробный вызов уже в полете, конкурентов не ставим в очередь
			b.totalRejections++
			return &domain.CircuitOpenError{Backend: b.name, RetryAfter: b.cfg.HalfOpenTimeout - time.Since(b.trialStarted)}
		}
		// предыдущий trial завис дольше HalfOpenTimeout - даем слот новому
		b.trialActive = true
		b.trialStarted = time.Now()
		return nil
	}

	return nil
}

// settle фиксирует исход допущенного вызова
func (b *Breaker) settle(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trialActive = false

	if success {
		b.totalSuccesses++
		if b.state != StateClosed {
			b.logger.Info("circuit closed after successful trial", zap.String("backend", b.name))
		}
		b.state = StateClosed
		b.failureCount = 0
		return
	}

	b.totalFailures++
	b.lastFailure = time.Now()

	if b.state == StateHalfOpen {
		// исход пробного вызова авторитетен: неудача возвращает Open
		b.state = StateOpen
		b.logger.Warn("trial call failed, circuit reopened", zap.String("backend", b.name))
		return
	}

	b.failureCount++
	if b.failureCount >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.logger.Warn("failure threshold reached, circuit opened",
			zap.String("backend", b.name),
			zap.Int("failures", b.failureCount),
		)
	}
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:            b.name,
		State:           b.state,
		FailureCount:    b.failureCount,
		LastFailure:     b.lastFailure,
		TotalRequests:   b.totalRequests,
		TotalSuccesses:  b.totalSuccesses,
		TotalFailures:   b.totalFailures,
		TotalRejections: b.totalRejections,
	}
}
