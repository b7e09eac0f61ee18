package discovery

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/agentgrid/backend/internal/models"
	"github.com/agentgrid/backend/internal/store"
)

// Options are the parsed parameters of one discovery request.
type Options struct {
	Q           string
	Debug       bool
	IncludeFull bool
	// TopK caps candidates per stage; 0 means the service default.
	TopK int
}

// Timing is the per-stage latency breakdown returned with every response,
// including error responses, in milliseconds rounded to 2 decimals.
type Timing struct {
	StoreQueryMs float64 `json:"store_query_ms"`
	RankingMs    float64 `json:"ranking_ms"`
	HydrationMs  float64 `json:"hydration_ms"`
	TotalMs      float64 `json:"total_ms"`
}

// Result is the assembled outcome of one discovery request. For an empty
// query only Agents is populated; for a non-empty query Ranked, Best,
// BestAgent and Justification are.
type Result struct {
	Q             string
	Count         int
	Agents        []*models.AgentRecord
	Ranked        []models.MatchResult
	Best          *models.MatchResult
	BestAgent     *models.AgentRecord
	Justification string
	Diagnostics   Diagnostics
	Timing        Timing
}

// Service is the discovery pipeline: retrieve, rank, optionally hydrate.
// Each call is an independent, stateless read; the store is the only shared
// state and provides its own concurrency control.
type Service struct {
	retriever   *Retriever
	hydrator    *Hydrator
	defaultTopK int
	hydrateMax  int
	log         *slog.Logger
}

func NewService(s store.Store, defaultTopK, hydrateMax int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		retriever:   NewRetriever(s),
		hydrator:    NewHydrator(s),
		defaultTopK: defaultTopK,
		hydrateMax:  hydrateMax,
		log:         log,
	}
}

// Discover runs the pipeline. On a store failure the returned Result still
// carries whatever timing was collected up to the failure point, so the
// transport can report it alongside the error.
func (s *Service) Discover(ctx context.Context, opts Options) (*Result, error) {
	totalStart := time.Now()
	res := &Result{Q: opts.Q}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	queryStart := time.Now()
	candidates, diag, err := s.retriever.Candidates(ctx, opts.Q, topK)
	res.Timing.StoreQueryMs = roundMs(time.Since(queryStart))
	res.Diagnostics = diag
	if err != nil {
		res.Timing.TotalMs = roundMs(time.Since(totalStart))
		s.log.Error("discovery retrieval failed", "q", opts.Q, "error", err)
		return res, err
	}
	res.Count = len(candidates)

	if FoldCase(opts.Q) == "" {
		res.Agents = candidates
		if opts.IncludeFull {
			hydrateStart := time.Now()
			full, err := s.hydrator.Hydrate(ctx, candidates, min(topK, s.hydrateMax))
			res.Timing.HydrationMs = roundMs(time.Since(hydrateStart))
			if err != nil {
				res.Timing.TotalMs = roundMs(time.Since(totalStart))
				s.log.Error("discovery hydration failed", "q", opts.Q, "error", err)
				return res, err
			}
			res.Agents = full
		}
		res.Timing.TotalMs = roundMs(time.Since(totalStart))
		return res, nil
	}

	rankStart := time.Now()
	res.Ranked = Rank(candidates, opts.Q)
	res.Timing.RankingMs = roundMs(time.Since(rankStart))

	if len(res.Ranked) > 0 {
		res.Best = &res.Ranked[0]
		res.BestAgent = res.Best.Agent
		if opts.IncludeFull {
			hydrateStart := time.Now()
			full, err := s.hydrator.Hydrate(ctx, []*models.AgentRecord{res.Best.Agent}, 1)
			res.Timing.HydrationMs = roundMs(time.Since(hydrateStart))
			if err != nil {
				res.Timing.TotalMs = roundMs(time.Since(totalStart))
				s.log.Error("discovery hydration failed", "q", opts.Q, "error", err)
				return res, err
			}
			if len(full) > 0 {
				res.BestAgent = full[0]
			}
		}
	}
	res.Justification = Justify(opts.Q, res.Best)
	res.Timing.TotalMs = roundMs(time.Since(totalStart))
	return res, nil
}

func roundMs(d time.Duration) float64 {
	ms := float64(d.Microseconds()) / 1000.0
	return math.Round(ms*100) / 100
}
