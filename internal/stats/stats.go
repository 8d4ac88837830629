package stats

import (
	"sync/atomic"

	"github.com/kitbuilder587/docrouter/internal/domain"
)

// Snapshot - копия счетчиков на момент чтения; читатели ее не мутируют
type Snapshot struct {
	TraditionalCount uint64
	MultiAgentCount  uint64
	MCPCount         uint64
	FallbackCount    uint64
	TotalProcessed   uint64

	TraditionalPercentage float64
	MultiAgentPercentage  float64
	FallbackRate          float64
}

// Registry - потокобезопасные счетчики маршрутизации. Атомарные инкременты
// без общей транзакции: итог eventually consistent, роутинг не блокируется.
type Registry struct {
	traditional atomic.Uint64
	multiAgent  atomic.Uint64
	mcp         atomic.Uint64
	fallbacks   atomic.Uint64
	total       atomic.Uint64
}

func New() *Registry {
	return &Registry{}
}

// Record фиксирует терминальный исход одного документа
func (r *Registry) Record(mode domain.ProcessingMode, fallbackUsed bool) {
	switch mode {
	case domain.ModeTraditional:
		r.traditional.Add(1)
	case domain.ModeMultiAgent:
		r.multiAgent.Add(1)
	case domain.ModeMCP:
		r.mcp.Add(1)
	}
	if fallbackUsed {
		r.fallbacks.Add(1)
	}
	r.total.Add(1)
}

func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		TraditionalCount: r.traditional.Load(),
		MultiAgentCount:  r.multiAgent.Load(),
		MCPCount:         r.mcp.Load(),
		FallbackCount:    r.fallbacks.Load(),
		TotalProcessed:   r.total.Load(),
	}

	if s.TotalProcessed > 0 {
		total := float64(s.TotalProcessed)
		s.TraditionalPercentage = 100 * float64(s.TraditionalCount) / total
		s.MultiAgentPercentage = 100 * float64(s.MultiAgentCount) / total
		s.FallbackRate = 100 * float64(s.FallbackCount) / total
	}

	return s
}

// Reset обнуляет счетчики; нужен тестам и операционке
func (r *Registry) Reset() {
	r.traditional.Store(0)
	r.multiAgent.Store(0)
	r.mcp.Store(0)
	r.fallbacks.Store(0)
	r.total.Store(0)
}
