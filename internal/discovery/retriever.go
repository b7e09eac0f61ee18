package discovery

import (
	"context"
	"fmt"

	"github.com/agentgrid/backend/internal/models"
	"github.com/agentgrid/backend/internal/store"
)

// MaxTopK is the hard cap on candidates per stage, bounding store cost no
// matter what the caller asks for.
const MaxTopK = 100

// Diagnostics reports which retrieval path produced the candidate set.
type Diagnostics struct {
	Strategy  string `json:"strategy"`
	StageUsed string `json:"stage_used"`
}

// Retriever runs the escalating match strategy against the store. Stages run
// strictly in order exact, prefix, contains; the first stage returning at
// least one record wins and later stages are never executed. Exact and prefix
// hits are the common case for identifier-like queries, so escalation keeps
// the expensive substring scan off the hot path.
type Retriever struct {
	store store.Store
}

func NewRetriever(s store.Store) *Retriever {
	return &Retriever{store: s}
}

var stages = []store.Match{store.MatchExact, store.MatchPrefix, store.MatchContains}

// Candidates returns up to topK projections for the query. An empty q is the
// list path: an unfiltered scan in storage order. topK is clamped to
// [1, MaxTopK].
func (r *Retriever) Candidates(ctx context.Context, q string, topK int) ([]*models.AgentRecord, Diagnostics, error) {
	if topK < 1 {
		topK = 1
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	qn := FoldCase(q)
	if qn == "" {
		list, err := r.store.Query(ctx, store.Filter{Kind: store.MatchAll}, topK)
		if err != nil {
			return nil, Diagnostics{}, fmt.Errorf("list query: %w", err)
		}
		return list, Diagnostics{Strategy: "list", StageUsed: "all"}, nil
	}

	var (
		candidates []*models.AgentRecord
		stageUsed  store.Match
	)
	for _, stage := range stages {
		found, err := r.store.Query(ctx, store.Filter{Kind: stage, Term: qn}, topK)
		if err != nil {
			return nil, Diagnostics{}, fmt.Errorf("%s stage query: %w", stage, err)
		}
		stageUsed = stage
		if len(found) > 0 {
			candidates = found
			break
		}
	}
	return candidates, Diagnostics{Strategy: "staged", StageUsed: string(stageUsed)}, nil
}
