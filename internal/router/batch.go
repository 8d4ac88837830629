package router

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/docrouter/internal/domain"
)

const defaultBatchConcurrency = 8

// BatchResult - исход одного документа из пачки
type BatchResult struct {
	Result *domain.RoutingResult
	Err    error
}

// RouteBatch маршрутизирует документы параллельно с ограничением
// одновременности. Отказ одного документа не прерывает пачку:
// на каждый запрос ровно один слот в ответе, в исходном порядке.
func (r *Router) RouteBatch(ctx context.Context, reqs []domain.RouteRequest, concurrency int) []BatchResult {
	if len(reqs) == 0 {
		return nil
	}
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	results := make([]BatchResult, len(reqs))

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, err := r.Route(ctx, req)
			results[i] = BatchResult{Result: res, Err: err}
			if err != nil {
				r.logger.Warn("batch document failed",
					zap.String("document_id", req.DocumentID),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	g.Wait()
	return results
}
