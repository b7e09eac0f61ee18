package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentgrid/backend/internal/models"
)

// maxJustificationReasons bounds how many reasons the justification sentence
// quotes.
const maxJustificationReasons = 4

// Rank scores every candidate against q and orders them by descending score.
// The sort is stable: among equal scores the candidate seen first in the
// input ranks first.
func Rank(candidates []*models.AgentRecord, q string) []models.MatchResult {
	qn := FoldCase(q)
	ranked := make([]models.MatchResult, 0, len(candidates))
	for _, c := range candidates {
		score, reasons := Score(c, qn)
		ranked = append(ranked, models.MatchResult{Agent: c, Score: score, Reasons: reasons})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Justify renders the human-readable explanation for the best match. A nil
// best means nothing matched.
func Justify(q string, best *models.MatchResult) string {
	if best == nil {
		return fmt.Sprintf("No agents matched '%s'.", q)
	}
	nameOrID := best.Agent.Name
	if nameOrID == "" {
		nameOrID = best.Agent.AgentID
	}
	reasons := best.Reasons
	if len(reasons) > maxJustificationReasons {
		reasons = reasons[:maxJustificationReasons]
	}
	return fmt.Sprintf("Based on your search '%s', the best agent fit is '%s' (agent_id=%s) with score %d. Reason(s): %s.",
		q, nameOrID, best.Agent.AgentID, best.Score, strings.Join(reasons, "; "))
}
