package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/docrouter/internal/domain"
	"github.com/kitbuilder587/docrouter/internal/processor"
)

// Processor - настраиваемая processing-функция для тестов
type Processor struct {
	Payload any
	Error   error
	Delay   time.Duration
	// FailFirst: первые N вызовов возвращают Error, дальше успех
	FailFirst int

	mu       sync.Mutex
	calls    int
	lastID   string
	lastMeta domain.DocumentMeta
}

func New() *Processor {
	return &Processor{Payload: map[string]string{"status": "processed"}}
}

func (p *Processor) WithPayload(payload any) *Processor {
	p.Payload = payload
	return p
}

func (p *Processor) WithError(err error) *Processor {
	p.Error = err
	return p
}

func (p *Processor) WithDelay(delay time.Duration) *Processor {
	p.Delay = delay
	return p
}

func (p *Processor) WithFailFirst(n int) *Processor {
	p.FailFirst = n
	return p
}

func (p *Processor) Process(ctx context.Context, documentID string, meta domain.DocumentMeta) (any, error) {
	p.mu.Lock()
	p.calls++
	calls := p.calls
	p.lastID = documentID
	p.lastMeta = meta
	p.mu.Unlock()

	if p.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.Delay):
		}
	}

	if p.Error != nil && (p.FailFirst == 0 || calls <= p.FailFirst) {
		return nil, p.Error
	}

	return p.Payload, nil
}

func (p *Processor) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *Processor) LastDocumentID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastID
}

func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = 0
	p.lastID = ""
	p.lastMeta = domain.DocumentMeta{}
}

var _ processor.Func = (*Processor)(nil).Process
