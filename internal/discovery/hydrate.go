package discovery

import (
	"context"
	"fmt"

	"github.com/agentgrid/backend/internal/models"
	"github.com/agentgrid/backend/internal/store"
)

// Hydrator swaps lightweight projections for the full stored documents.
type Hydrator struct {
	store store.Store
}

func NewHydrator(s store.Store) *Hydrator {
	return &Hydrator{store: s}
}

// Hydrate fetches the full document for up to max candidates, preserving
// ranked order. Candidates whose document has vanished between retrieval and
// hydration are skipped, not an error.
func (h *Hydrator) Hydrate(ctx context.Context, candidates []*models.AgentRecord, max int) ([]*models.AgentRecord, error) {
	if max > len(candidates) {
		max = len(candidates)
	}
	out := make([]*models.AgentRecord, 0, max)
	for _, c := range candidates[:max] {
		if c.AgentID == "" {
			continue
		}
		full, err := h.store.Get(ctx, c.AgentID)
		if err != nil {
			return nil, fmt.Errorf("hydrate %q: %w", c.AgentID, err)
		}
		if full != nil {
			out = append(out, full)
		}
	}
	return out, nil
}
