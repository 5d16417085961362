package aggregate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rsavell/place_scout/internal/engine/geo"
	"github.com/rsavell/place_scout/internal/model"
)

// DefaultDivisions is the per-axis subdivision factor for deep counting.
// 3×3 sub-boxes trades nine requests per region for recall past the API's
// per-request result cap.
const DefaultDivisions = 3

// Searcher is the slice of the place search client the aggregator drives.
type Searcher interface {
	SearchFull(ctx context.Context, text string, box *model.BoundingBox, category string) ([]model.PlaceRecord, error)
	SearchCount(ctx context.Context, text string, box *model.BoundingBox) (int, error)
}

// Aggregator runs each input query through the strategy for its mode and
// assembles the result table. Upstream failures degrade to partial rows;
// only the caller's inability to supply queries fails a job.
type Aggregator struct {
	client    Searcher
	registry  *geo.Registry
	divisions int
	logger    *zap.Logger
}

func New(client Searcher, registry *geo.Registry, divisions int, logger *zap.Logger) *Aggregator {
	if divisions < 1 {
		divisions = DefaultDivisions
	}
	return &Aggregator{
		client:    client,
		registry:  registry,
		divisions: divisions,
		logger:    logger,
	}
}

// Aggregate produces one result table for a job. Queries are trimmed, blank
// lines skipped, and row order follows input order. code may be unregistered:
// shallow searches then run unrestricted, deep counts come back zero.
func (a *Aggregator) Aggregate(ctx context.Context, mode model.Mode, queries []string, code, category string, deep bool) (*model.Table, error) {
	table := &model.Table{Mode: mode}
	if mode == model.ModeStateCount {
		table.StateCodes = a.registry.StateCodes()
	}

	for _, raw := range queries {
		query := strings.TrimSpace(raw)
		if query == "" {
			continue
		}

		switch mode {
		case model.ModeSpecificLocation:
			records, err := a.client.SearchFull(ctx, query, a.resolve(code), category)
			if err != nil {
				a.logger.Warn("search truncated, keeping partial results",
					zap.String("query", query), zap.Error(err))
			}
			table.Places = append(table.Places, records...)

		case model.ModeSpecificCount:
			table.Counts = append(table.Counts, model.CountRow{
				Query:    query,
				Location: code,
				Count:    a.countFor(ctx, query, code, deep),
			})

		case model.ModeStateCount:
			counts := make(map[string]int, len(table.StateCodes))
			for _, state := range table.StateCodes {
				counts[state] = a.countFor(ctx, query, state, deep)
			}
			table.StateRows = append(table.StateRows, model.StateCountRow{
				Query:  query,
				Counts: counts,
			})

		default:
			return nil, fmt.Errorf("unknown aggregation mode %q", mode)
		}
	}

	return table, nil
}

func (a *Aggregator) resolve(code string) *model.BoundingBox {
	if box, ok := a.registry.Resolve(code); ok {
		return &box
	}
	return nil
}

func (a *Aggregator) countFor(ctx context.Context, text, code string, deep bool) int {
	if deep {
		return a.DeepCount(ctx, text, code)
	}
	count, err := a.client.SearchCount(ctx, text, a.resolve(code))
	if err != nil {
		a.logger.Warn("count truncated, keeping partial sum",
			zap.String("query", text), zap.String("code", code), zap.Error(err))
	}
	return count
}
