package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoutingResult создается один раз на вызов Route и после возврата не мутируется
type RoutingResult struct {
	TraceID        uuid.UUID
	DocumentID     string
	ModeUsed       ProcessingMode
	Complexity     ComplexityScore
	Confidence     float64
	Reasons        []string
	Payload        any
	ProcessingTime time.Duration
	FallbackUsed   bool
	Timestamp      time.Time
}
