// Package maintenance holds background jobs that keep stored records
// consistent, run on the shared job queue.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/riverqueue/river"

	"github.com/agentgrid/backend/internal/discovery"
	"github.com/agentgrid/backend/internal/models"
	"github.com/agentgrid/backend/internal/store"
)

// reindexScanLimit bounds one reindex pass. Directory sizes are small; a
// pass that hits the limit leaves the remainder to the next run.
const reindexScanLimit = 1000

type ReindexArgs struct {
	RequestedBy string `json:"requested_by"`
}

func (ReindexArgs) Kind() string { return "registry_reindex" }

// ReindexWorker re-derives the lowercase search fields for every stored
// record. Records written through the service are always normalized; this
// repairs rows imported or edited out-of-band, restoring the invariant that
// shadow fields match their source fields.
type ReindexWorker struct {
	river.WorkerDefaults[ReindexArgs]
	store store.Store
	log   *slog.Logger
}

func NewReindexWorker(st store.Store, log *slog.Logger) *ReindexWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ReindexWorker{store: st, log: log}
}

func (w *ReindexWorker) Work(ctx context.Context, job *river.Job[ReindexArgs]) error {
	projections, err := w.store.Query(ctx, store.Filter{Kind: store.MatchAll}, reindexScanLimit)
	if err != nil {
		return fmt.Errorf("scan agents: %w", err)
	}

	repaired := 0
	for _, p := range projections {
		if !shadowStale(p) {
			continue
		}
		full, err := w.store.Get(ctx, p.AgentID)
		if err != nil {
			return fmt.Errorf("read agent %q: %w", p.AgentID, err)
		}
		if full == nil {
			continue // deleted mid-scan
		}
		discovery.Normalize(full)
		if err := w.store.Replace(ctx, full.AgentID, full); err != nil {
			return fmt.Errorf("replace agent %q: %w", full.AgentID, err)
		}
		repaired++
	}
	w.log.Info("reindex pass complete",
		"requested_by", job.Args.RequestedBy,
		"scanned", len(projections),
		"repaired", repaired)
	return nil
}

// shadowStale reports whether any derived field disagrees with its source.
func shadowStale(rec *models.AgentRecord) bool {
	want := rec.Clone()
	discovery.Normalize(want)
	return rec.AgentIDLC != want.AgentIDLC ||
		rec.NameLC != want.NameLC ||
		rec.AppIDLC != want.AppIDLC ||
		rec.TestLC != want.TestLC ||
		!slices.Equal(rec.RolesLC, want.RolesLC)
}
