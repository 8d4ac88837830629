package breaker

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kitbuilder587/docrouter/internal/config"
)

// Registry держит по одному брейкеру на backend, создает лениво.
// Передается в роутер явно - никаких глобальных синглтонов, тесты
// получают свежий реестр.
type Registry struct {
	cfg    config.BreakerConfig
	logger *zap.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewRegistry(cfg config.BreakerConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// Get возвращает брейкер для backend, создавая его при первом обращении.
// Для одного имени все вызывающие делят один экземпляр.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	b := New(name, r.cfg, r.logger)
	r.breakers[name] = b
	return b
}

// State возвращает снапшот брейкера, если он уже создан
func (r *Registry) State(name string) (Snapshot, bool) {
	r.mu.Lock()
	b, ok := r.breakers[name]
	r.mu.Unlock()

	if !ok {
		return Snapshot{}, false
	}
	return b.Snapshot(), true
}

// States - снапшоты всех брейкеров, отсортированные по имени
func (r *Registry) States() []Snapshot {
	r.mu.Lock()
	list := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b)
	}
	r.mu.Unlock()

	snapshots := make([]Snapshot, len(list))
	for i, b := range list {
		snapshots[i] = b.Snapshot()
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Name < snapshots[j].Name })
	return snapshots
}
