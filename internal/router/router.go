package router

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitbuilder587/docrouter/internal/breaker"
	"github.com/kitbuilder587/docrouter/internal/complexity"
	"github.com/kitbuilder587/docrouter/internal/config"
	"github.com/kitbuilder587/docrouter/internal/domain"
	"github.com/kitbuilder587/docrouter/internal/metrics"
	"github.com/kitbuilder587/docrouter/internal/processor"
	"github.com/kitbuilder587/docrouter/internal/ratelimit"
	"github.com/kitbuilder587/docrouter/internal/retry"
	"github.com/kitbuilder587/docrouter/internal/stats"
)

// Deps - зависимости роутера. Реестры передаются снаружи,
// тесты собирают свежие на каждый кейс.
type Deps struct {
	Analyzer   *complexity.Analyzer
	Breakers   *breaker.Registry
	Limiter    *ratelimit.Limiter
	Retry      *retry.Executor
	Policy     retry.Policy
	Stats      *stats.Registry
	Processors processor.Set

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Router выбирает режим обработки по сложности документа и прогоняет вызов
// через rate limiter -> circuit breaker -> retry, с fallback'ом на
// MultiAgent при отказе дешевого пути.
type Router struct {
	analyzer   *complexity.Analyzer
	breakers   *breaker.Registry
	limiter    *ratelimit.Limiter
	retry      *retry.Executor
	policy     retry.Policy
	stats      *stats.Registry
	processors processor.Set
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func New(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Stats == nil {
		deps.Stats = stats.New()
	}
	if deps.Retry == nil {
		deps.Retry = retry.New(deps.Logger, nil)
	}
	if deps.Policy.Retryable == nil {
		deps.Policy = retry.DefaultPolicy()
	}
	if deps.Analyzer == nil {
		deps.Analyzer = complexity.New(config.ComplexityConfig{KnownVendors: config.DefaultKnownVendors})
	}
	if deps.Breakers == nil {
		deps.Breakers = breaker.NewRegistry(config.BreakerConfig{}, deps.Logger)
	}

	return &Router{
		analyzer:   deps.Analyzer,
		breakers:   deps.Breakers,
		limiter:    deps.Limiter,
		retry:      deps.Retry,
		policy:     deps.Policy,
		stats:      deps.Stats,
		processors: deps.Processors,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// Route обрабатывает один документ. Возвращает ошибку только если отказали
// и выбранный режим, и его fallback - документ молча не теряется никогда.
func (r *Router) Route(ctx context.Context, req domain.RouteRequest) (*domain.RoutingResult, error) {
	start := time.Now()

	if r.metrics != nil {
		r.metrics.IncInFlight()
		defer r.metrics.DecInFlight()
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	score, primary, fallback := r.decide(req)

	r.logger.Info("routing document",
		zap.String("document_id", req.DocumentID),
		zap.String("level", score.Level.String()),
		zap.Int("complexity", score.Total),
		zap.String("mode", primary.String()),
		zap.Bool("forced", req.ForceMode != ""),
	)
	if r.metrics != nil && req.ForceMode == "" {
		r.metrics.RecordComplexity(score.Total)
	}

	payload, err := r.invoke(ctx, primary, req)
	modeUsed := primary
	fallbackUsed := false

	if err != nil && fallback != "" {
		r.logger.Warn("primary mode failed, falling back",
			zap.String("document_id", req.DocumentID),
			zap.String("from", primary.String()),
			zap.String("to", fallback.String()),
			zap.Error(err),
		)
		if r.metrics != nil {
			r.metrics.RecordFallback()
		}

		fbPayload, fbErr := r.invoke(ctx, fallback, req)
		if fbErr != nil {
			r.recordOutcome(primary, "exhausted", start)
			return nil, &domain.RoutingExhaustedError{
				DocumentID:   req.DocumentID,
				PrimaryMode:  primary,
				PrimaryErr:   err,
				FallbackMode: fallback,
				FallbackErr:  fbErr,
			}
		}

		payload = fbPayload
		modeUsed = fallback
		fallbackUsed = true
		err = nil
	}

	if err != nil {
		r.recordOutcome(primary, "exhausted", start)
		return nil, &domain.RoutingExhaustedError{
			DocumentID:  req.DocumentID,
			PrimaryMode: primary,
			PrimaryErr:  err,
		}
	}

	r.stats.Record(modeUsed, fallbackUsed)
	status := "success"
	if fallbackUsed {
		status = "fallback"
	}
	r.recordOutcome(modeUsed, status, start)

	reasons := append([]string{}, score.Reasons...)
	if fallbackUsed {
		reasons = append(reasons, "fallback to "+fallback.String()+" after "+primary.String()+" failure")
	}

	result := &domain.RoutingResult{
		TraceID:        uuid.New(),
		DocumentID:     req.DocumentID,
		ModeUsed:       modeUsed,
		Complexity:     score,
		Confidence:     r.confidence(req, score, fallbackUsed),
		Reasons:        reasons,
		Payload:        payload,
		ProcessingTime: time.Since(start),
		FallbackUsed:   fallbackUsed,
		Timestamp:      time.Now(),
	}

	r.logger.Info("document routed",
		zap.String("document_id", req.DocumentID),
		zap.String("mode", modeUsed.String()),
		zap.Bool("fallback", fallbackUsed),
		zap.Duration("took", result.ProcessingTime),
	)

	return result, nil
}

// decide выбирает основной режим и fallback по уровню сложности.
// MCP автоматически не выбирается, только через ForceMode.
func (r *Router) decide(req domain.RouteRequest) (domain.ComplexityScore, domain.ProcessingMode, domain.ProcessingMode) {
	if req.ForceMode != "" {
		score := domain.ComplexityScore{
			Reasons: []string{"analysis skipped: mode forced to " + req.ForceMode.String()},
		}
		return score, req.ForceMode, ""
	}

	score := r.analyzer.Analyze(req.Meta, req.OCR)

	switch score.Level {
	case domain.LevelComplex:
		// уже самый точный путь, падать дальше некуда
		return score, domain.ModeMultiAgent, ""
	default:
		return score, domain.ModeTraditional, domain.ModeMultiAgent
	}
}

// invoke прогоняет processing-функцию режима через цепочку guard'ов:
// rate limiter (ограниченное ожидание) -> circuit breaker (fail-fast) ->
// retry (только transient-ошибки).
func (r *Router) invoke(ctx context.Context, mode domain.ProcessingMode, req domain.RouteRequest) (any, error) {
	proc, ok := r.processors[mode]
	if !ok || proc == nil {
		return nil, domain.ErrUnknownProcessor
	}

	backend := mode.String()

	if r.limiter != nil {
		if err := r.limiter.Acquire(ctx, backend, 1); err != nil {
			if r.metrics != nil {
				r.metrics.RecordRateLimitTimeout(backend)
			}
			return nil, err
		}
	}

	var onRetry retry.NotifyFunc
	if r.metrics != nil {
		onRetry = func(attempt int, err error, delay time.Duration) {
			r.metrics.RecordRetry(backend)
		}
	}

	br := r.breakers.Get(backend)
	payload, err := br.Call(ctx, func(ctx context.Context) (any, error) {
		return r.retry.ExecuteNotify(ctx, r.policy, func(ctx context.Context) (any, error) {
			return proc(ctx, req.DocumentID, req.Meta)
		}, onRetry)
	})

	if r.metrics != nil {
		snap := br.Snapshot()
		r.metrics.SetBreakerState(backend, string(snap.State))

		var open *domain.CircuitOpenError
		if errors.As(err, &open) {
			r.metrics.RecordRejection(backend)
		}
	}

	return payload, err
}

// confidence - простая производная оценка для вызывающей стороны:
// 0.9 для простых документов известных вендоров, вниз к 0.5 с ростом
// сложности и при fallback'е.
func (r *Router) confidence(req domain.RouteRequest, score domain.ComplexityScore, fallbackUsed bool) float64 {
	if req.ForceMode != "" {
		return 0.8
	}

	var conf float64
	switch score.Level {
	case domain.LevelSimple:
		conf = 0.9
	case domain.LevelMedium:
		conf = 0.75
	default:
		conf = 0.6
	}

	if fallbackUsed {
		conf -= 0.1
	}
	if score.Dimensions.Standardization > 0 {
		conf -= 0.05
	}

	if conf < 0.5 {
		conf = 0.5
	}
	return conf
}

func (r *Router) recordOutcome(mode domain.ProcessingMode, status string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordRouted(mode.String(), status, time.Since(start))
}

// Statistics - снапшот счетчиков без блокировки роутинга
func (r *Router) Statistics() stats.Snapshot {
	return r.stats.Snapshot()
}

// BreakerStates - снапшоты брейкеров для мониторингового эндпоинта
func (r *Router) BreakerStates() []breaker.Snapshot {
	return r.breakers.States()
}

// RateLimitStatus - состояние бакета backend'а
func (r *Router) RateLimitStatus(backend string) ratelimit.Status {
	return r.limiter.Status(backend)
}
