package screenshot

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hexiro/csinspect/internal/domain"
)

// Coordinator fans out one render request per item and aggregates the
// results. Requests for distinct items run concurrently; a shared token
// bucket keeps the request rate to the rendering service bounded.
type Coordinator struct {
	renderer Renderer
	limiter  *rate.Limiter
}

// NewCoordinator builds a Coordinator over the given renderer with a
// token-bucket limit on render request starts.
func NewCoordinator(r Renderer, rps float64, burst int) *Coordinator {
	return &Coordinator{
		renderer: r,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// RenderAll renders every item concurrently and returns one bool per item,
// in input order, true iff that item's image URL was obtained. Zero items
// yields an empty slice and no requests. A single item's failure never
// affects its siblings.
func (c *Coordinator) RenderAll(ctx context.Context, items []*domain.Item) []bool {
	tr := otel.Tracer("screenshot/Coordinator")
	ctx, span := tr.Start(ctx, "RenderAll",
		trace.WithAttributes(attribute.Int("items", len(items))),
	)
	defer span.End()

	results := make([]bool, len(items))
	if len(items) == 0 {
		return results
	}

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item *domain.Item) {
			defer wg.Done()
			if err := c.limiter.Wait(ctx); err != nil {
				// Shutdown while queued; the item was never attempted.
				item.MarkFailed()
				return
			}
			results[i] = c.renderer.Render(ctx, item)
		}(i, item)
	}
	wg.Wait()

	return results
}
