package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitbuilder587/docrouter/internal/breaker"
	"github.com/kitbuilder587/docrouter/internal/complexity"
	"github.com/kitbuilder587/docrouter/internal/config"
	"github.com/kitbuilder587/docrouter/internal/domain"
	"github.com/kitbuilder587/docrouter/internal/processor"
	procmock "github.com/kitbuilder587/docrouter/internal/processor/mock"
	"github.com/kitbuilder587/docrouter/internal/ratelimit"
	"github.com/kitbuilder587/docrouter/internal/retry"
)

// тестовая сборка: свежие реестры, быстрые ретраи, щедрый rate limit
type fixture struct {
	router      *Router
	traditional *procmock.Processor
	multiAgent  *procmock.Processor
	mcp         *procmock.Processor
	breakers    *breaker.Registry
	limiter     *ratelimit.Limiter
}

func newFixture(t *testing.T, maxRetries int) *fixture {
	t.Helper()

	f := &fixture{
		traditional: procmock.New().WithPayload("traditional-result"),
		multiAgent:  procmock.New().WithPayload("multi-agent-result"),
		mcp:         procmock.New().WithPayload("mcp-result"),
	}

	f.breakers = breaker.NewRegistry(config.BreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      time.Minute,
	}, nil)
	f.limiter = ratelimit.New(config.RateLimitConfig{
		Rate:           1000,
		Capacity:       1000,
		AcquireTimeout: 100 * time.Millisecond,
	}, nil, nil)

	f.router = New(Deps{
		Analyzer: complexity.New(config.ComplexityConfig{
			SimpleThreshold:  30,
			ComplexThreshold: 61,
			KnownVendors:     config.DefaultKnownVendors,
		}),
		Breakers: f.breakers,
		Limiter:  f.limiter,
		Policy: retry.Policy{
			MaxRetries:      maxRetries,
			InitialDelay:    time.Millisecond,
			MaxDelay:        5 * time.Millisecond,
			ExponentialBase: 2.0,
			Retryable:       domain.IsTransient,
		},
		Processors: processor.Set{
			domain.ModeTraditional: f.traditional.Process,
			domain.ModeMultiAgent:  f.multiAgent.Process,
			domain.ModeMCP:         f.mcp.Process,
		},
	})

	return f
}

func simpleMeta() domain.DocumentMeta {
	return domain.DocumentMeta{Vendor: "Amazon", Pages: 1, Tables: 1}
}

// 38 баллов: unknown vendor c форматом (15) + degraded ocr (15) + одно поле (8)
func mediumMeta() domain.DocumentMeta {
	return domain.DocumentMeta{Vendor: "Acme", Format: "pdf", Pages: 1, Tables: 1, MissingFields: []string{"total"}}
}

func complexMeta() domain.DocumentMeta {
	return domain.DocumentMeta{
		Vendor:        "Unknown",
		Pages:         2,
		Tables:        0,
		MissingFields: []string{"total", "date", "tax_id", "currency"},
	}
}

func hint(conf float64) *domain.OCRHint {
	return &domain.OCRHint{Confidence: conf}
}

func TestRoute_SimpleGoesTraditional(t *testing.T) {
	f := newFixture(t, 2)

	res, err := f.router.Route(context.Background(), domain.RouteRequest{
		DocumentID: "doc-1",
		Meta:       simpleMeta(),
		OCR:        hint(0.98),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeTraditional, res.ModeUsed)
	assert.Equal(t, domain.LevelSimple, res.Complexity.Level)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, "traditional-result", res.Payload)
	assert.Equal(t, 1, f.traditional.Calls())
	assert.Equal(t, 0, f.multiAgent.Calls())
	assert.InDelta(t, 0.9, res.Confidence, 0.001)
}

func TestRoute_ComplexGoesMultiAgentDirectly(t *testing.T) {
	f := newFixture(t, 2)

	res, err := f.router.Route(context.Background(), domain.RouteRequest{
		DocumentID: "doc-2",
		Meta:       complexMeta(),
		OCR:        hint(0.65),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeMultiAgent, res.ModeUsed)
	assert.Equal(t, domain.LevelComplex, res.Complexity.Level)
	assert.False(t, res.FallbackUsed)
	// traditional не должен был даже пробоваться
	assert.Equal(t, 0, f.traditional.Calls())
	assert.Equal(t, 1, f.multiAgent.Calls())
}

func TestRoute_MediumFallsBackAfterRetriesExhausted(t *testing.T) {
	f := newFixture(t, 2)
	f.traditional.WithError(domain.Transient(errors.New("ocr backend down")))

	res, err := f.router.Route(context.Background(), domain.RouteRequest{
		DocumentID: "doc-3",
		Meta:       mediumMeta(),
		OCR:        hint(0.80),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.LevelMedium, res.Complexity.Level)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, domain.ModeMultiAgent, res.ModeUsed)
	assert.Equal(t, "multi-agent-result", res.Payload)

	// 1 попытка + 2 ретрая по дешевому пути, дорогой ровно один раз
	assert.Equal(t, 3, f.traditional.Calls())
	assert.Equal(t, 1, f.multiAgent.Calls())
}

func TestRoute_PermanentErrorSkipsRetries(t *testing.T) {
	f := newFixture(t, 5)
	f.traditional.WithError(errors.New("document rejected by backend"))

	res, err := f.router.Route(context.Background(), domain.RouteRequest{
		DocumentID: "doc-4",
		Meta:       mediumMeta(),
		OCR:        hint(0.80),
	})
	require.NoError(t, err)

	// постоянная ошибка не ретраится, но fallback все равно срабатывает
	assert.Equal(t, 1, f.traditional.Calls())
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, domain.ModeMultiAgent, res.ModeUsed)
}

func TestRoute_BothModesFail(t *testing.T) {
	f := newFixture(t, 1)
	f.traditional.WithError(domain.Transient(errors.New("traditional down")))
	f.multiAgent.WithError(domain.Transient(errors.New("multi-agent down")))

	_, err := f.router.Route(context.Background(), domain.RouteRequest{
		DocumentID: "doc-5",
		Meta:       mediumMeta(),
		OCR:        hint(0.80),
	})

	var exhausted *domain.RoutingExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "doc-5", exhausted.DocumentID)
	assert.Equal(t, domain.ModeTraditional, exhausted.PrimaryMode)
	assert.Equal(t, domain.ModeMultiAgent, exhausted.FallbackMode)
	assert.Error(t, exhausted.PrimaryErr)
	assert.Error(t, exhausted.FallbackErr)
}

func TestRoute_ComplexFailureHasNoFallback(t *testing.T) {
	f := newFixture(t, 1)
	f.multiAgent.WithError(domain.Transient(errors.New("multi-agent down")))

	_, err := f.router.Route(context.Background(), domain.RouteRequest{
		DocumentID: "doc-6",
		Meta:       complexMeta(),
		OCR:        hint(0.65),
	})

	var exhausted *domain.RoutingExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, domain.ModeMultiAgent, exhausted.PrimaryMode)
	assert.Nil(t, exhausted.FallbackErr)
	assert.Equal(t, 0, f.traditional.Calls())
}

func TestRoute_ForceMode(t *testing.T) {
	f := newFixture(t, 2)

	res, err := f.router.Route(context.Background(), domain.RouteRequest{
		DocumentID: "doc-7",
		Meta:       complexMeta(), // метаданные игнорируются при ForceMode
		ForceMode:  domain.ModeMCP,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeMCP, res.ModeUsed)
	assert.Equal(t, "mcp-result", res.Payload)
	assert.False(t, res.FallbackUsed)
	assert.InDelta(t, 0.8, res.Confidence, 0.001)
	assert.Equal(t, 0, f.traditional.Calls())
	assert.Equal(t, 0, f.multiAgent.Calls())
	require.NotEmpty(t, res.Reasons)
	assert.Contains(t, res.Reasons[0], "analysis skipped")
}

func TestRoute_ForceModeWithoutProcessor(t *testing.T) {
	f := newFixture(t, 2)
	delete(f.router.processors, domain.ModeMCP)

	_, err := f.router.Route(context.Background(), domain.RouteRequest{
		DocumentID: "doc-8",
		Meta:       simpleMeta(),
		ForceMode:  domain.ModeMCP,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownProcessor)
}

func TestRoute_OpenCircuitTriggersImmediateFallback(t *testing.T) {
	f := newFixture(t, 2)

	// выбиваем брейкер traditional заранее
	br := f.breakers.Get(domain.ModeTraditional.String())
	for i := 0; i < 5; i++ {
		br.Call(context.Background(), func(ctx context.Context) (any, error) {
			return nil, errors.New("down")
		})
	}
	require.Equal(t, breaker.StateOpen, br.Snapshot().State)

	res, err := f.router.Route(context.Background(), domain.RouteRequest{
		DocumentID: "doc-9",
		Meta:       mediumMeta(),
		OCR:        hint(0.80),
	})
	require.NoError(t, err)

	// rejection не должен был дойти до processing-функции и не ретраится
	assert.Equal(t, 0, f.traditional.Calls())
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, domain.ModeMultiAgent, res.ModeUsed)
}

func TestRoute_RateLimitTimeoutTriggersFallback(t *testing.T) {
	f := newFixture(t, 2)

	// отдельный лимитер: traditional мгновенно пустеет и не пополняется
	f.limiter = ratelimit.New(
		config.RateLimitConfig{Rate: 1000, Capacity: 1000, AcquireTimeout: 30 * time.Millisecond},
		map[string]config.RateLimitConfig{
			"traditional": {Rate: 0.001, Capacity: 1},
		},
		nil,
	)
	f.router.limiter = f.limiter
	require.NoError(t, f.limiter.Acquire(context.Background(), "traditional", 1))

	res, err := f.router.Route(context.Background(), domain.RouteRequest{
		DocumentID: "doc-10",
		Meta:       mediumMeta(),
		OCR:        hint(0.80),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, f.traditional.Calls())
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, domain.ModeMultiAgent, res.ModeUsed)

	// таймаут лимитера не считается отказом backend'а
	snap, ok := f.breakers.State("traditional")
	if ok {
		assert.Equal(t, uint64(0), snap.TotalFailures)
	}
}

func TestRoute_ValidationError(t *testing.T) {
	f := newFixture(t, 2)

	_, err := f.router.Route(context.Background(), domain.RouteRequest{DocumentID: " "})
	assert.ErrorIs(t, err, domain.ErrEmptyDocumentID)
	assert.Equal(t, 0, f.traditional.Calls())
}

func TestRoute_Statistics(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	f.router.Route(ctx, domain.RouteRequest{DocumentID: "d1", Meta: simpleMeta(), OCR: hint(0.98)})
	f.router.Route(ctx, domain.RouteRequest{DocumentID: "d2", Meta: simpleMeta(), OCR: hint(0.98)})
	f.router.Route(ctx, domain.RouteRequest{DocumentID: "d3", Meta: complexMeta(), OCR: hint(0.65)})

	f.traditional.WithError(domain.Transient(errors.New("down")))
	f.router.Route(ctx, domain.RouteRequest{DocumentID: "d4", Meta: mediumMeta(), OCR: hint(0.80)})

	s := f.router.Statistics()
	assert.Equal(t, uint64(2), s.TraditionalCount)
	assert.Equal(t, uint64(2), s.MultiAgentCount) // complex напрямую + fallback
	assert.Equal(t, uint64(1), s.FallbackCount)
	assert.Equal(t, uint64(4), s.TotalProcessed)
	assert.InDelta(t, 50.0, s.TraditionalPercentage, 0.001)
	assert.InDelta(t, 25.0, s.FallbackRate, 0.001)
}

func TestRoute_ConfidenceDescendsWithComplexity(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	simple, err := f.router.Route(ctx, domain.RouteRequest{DocumentID: "d1", Meta: simpleMeta(), OCR: hint(0.98)})
	require.NoError(t, err)

	complexRes, err := f.router.Route(ctx, domain.RouteRequest{DocumentID: "d2", Meta: complexMeta(), OCR: hint(0.65)})
	require.NoError(t, err)

	assert.Greater(t, simple.Confidence, complexRes.Confidence)
	assert.GreaterOrEqual(t, complexRes.Confidence, 0.5)

	f.traditional.WithError(domain.Transient(errors.New("down")))
	fallback, err := f.router.Route(ctx, domain.RouteRequest{DocumentID: "d3", Meta: mediumMeta(), OCR: hint(0.80)})
	require.NoError(t, err)
	assert.Less(t, fallback.Confidence, 0.75)
}

func TestRoute_ResultFields(t *testing.T) {
	f := newFixture(t, 1)

	before := time.Now()
	res, err := f.router.Route(context.Background(), domain.RouteRequest{
		DocumentID: "doc-x", Meta: simpleMeta(), OCR: hint(0.98),
	})
	require.NoError(t, err)

	assert.Equal(t, "doc-x", res.DocumentID)
	assert.NotEqual(t, res.TraceID.String(), "00000000-0000-0000-0000-000000000000")
	assert.False(t, res.Timestamp.Before(before))
	assert.GreaterOrEqual(t, res.ProcessingTime, time.Duration(0))
	assert.Equal(t, res.Complexity.Total, res.Complexity.Dimensions.Sum())
}

func TestRouteBatch(t *testing.T) {
	f := newFixture(t, 1)

	reqs := make([]domain.RouteRequest, 20)
	for i := range reqs {
		reqs[i] = domain.RouteRequest{
			DocumentID: "batch-" + string(rune('a'+i)),
			Meta:       simpleMeta(),
			OCR:        hint(0.98),
		}
	}
	// один заведомо невалидный
	reqs[7] = domain.RouteRequest{DocumentID: ""}

	results := f.router.RouteBatch(context.Background(), reqs, 4)
	require.Len(t, results, 20)

	for i, br := range results {
		if i == 7 {
			assert.Error(t, br.Err)
			continue
		}
		require.NoError(t, br.Err, "request %d", i)
		assert.Equal(t, reqs[i].DocumentID, br.Result.DocumentID)
	}

	s := f.router.Statistics()
	assert.Equal(t, uint64(19), s.TotalProcessed)
}

func TestRouteBatch_Empty(t *testing.T) {
	f := newFixture(t, 1)
	assert.Nil(t, f.router.RouteBatch(context.Background(), nil, 4))
}
