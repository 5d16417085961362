package aggregate

import (
	"context"

	"go.uber.org/zap"

	"github.com/rsavell/place_scout/internal/engine/geo"
)

// DeepCount counts matches for text within a region by subdividing its
// bounding box into divisions×divisions sub-boxes and counting each one
// separately. The upstream API saturates around a few dozen results per
// bounded request, so subdivision buys recall at the cost of divisions²
// requests. A place sitting on a shared sub-box edge may be counted once per
// adjacent sub-box; that overlap is an accepted approximation and is not
// corrected.
//
// An unregistered code returns 0: there is nothing to subdivide.
func (a *Aggregator) DeepCount(ctx context.Context, text, code string) int {
	box, ok := a.registry.Resolve(code)
	if !ok {
		return 0
	}

	total := 0
	for _, sub := range geo.Divide(box, a.divisions) {
		count, err := a.client.SearchCount(ctx, text, &sub)
		if err != nil {
			a.logger.Warn("sub-box count truncated",
				zap.String("query", text), zap.String("code", code), zap.Error(err))
		}
		total += count
	}
	return total
}
