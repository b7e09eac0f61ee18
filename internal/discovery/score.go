package discovery

import (
	"fmt"
	"strings"

	"github.com/agentgrid/backend/internal/models"
)

// Scalar field weights: only the highest tier that fires contributes, per
// field. Name outranks agent_id, which outranks appid; the optional test
// field is the weakest signal.
type fieldWeights struct {
	Exact, Prefix, Contains int
}

type fieldRule struct {
	label   string
	value   func(*models.AgentRecord) (lc, display string)
	weights fieldWeights
}

var scalarRules = []fieldRule{
	{
		label: "name",
		value: func(a *models.AgentRecord) (string, string) {
			return shadowOrFolded(a.NameLC, a.Name), a.Name
		},
		weights: fieldWeights{Exact: 120, Prefix: 85, Contains: 70},
	},
	{
		label: "agent_id",
		value: func(a *models.AgentRecord) (string, string) {
			return shadowOrFolded(a.AgentIDLC, a.AgentID), a.AgentID
		},
		weights: fieldWeights{Exact: 115, Prefix: 80, Contains: 65},
	},
	{
		label: "appid",
		value: func(a *models.AgentRecord) (string, string) {
			return shadowOrFolded(a.AppIDLC, a.AppID), a.AppID
		},
		weights: fieldWeights{Exact: 95, Prefix: 70, Contains: 55},
	},
	{
		label: "test",
		value: func(a *models.AgentRecord) (string, string) {
			return shadowOrFolded(a.TestLC, a.Test), a.Test
		},
		weights: fieldWeights{Exact: 85, Prefix: 55, Contains: 40},
	},
}

// Role tier weights. Exact is flat; prefix and contains scale with the number
// of matching roles up to a cap.
const (
	roleExactScore  = 80
	rolePrefixPer   = 25
	rolePrefixCap   = 60
	roleContainsPer = 20
	roleContainsCap = 50
	enabledScore    = 10
	reasonEnabled   = "agent is enabled"
	reasonDisabled  = "agent is disabled"
)

// Score rates one candidate against the case-folded query qn. Scoring is
// additive over independent signals; each signal that fires appends exactly
// one reason, scalar fields first in rule order, then roles, then the enabled
// flag. An empty qn scores 0 with no reasons.
func Score(rec *models.AgentRecord, qn string) (int, []string) {
	if qn == "" {
		return 0, nil
	}

	score := 0
	var reasons []string

	for _, rule := range scalarRules {
		lc, display := rule.value(rec)
		if lc == "" {
			continue
		}
		switch {
		case lc == qn:
			score += rule.weights.Exact
			reasons = append(reasons, fmt.Sprintf("exact %s match ('%s')", rule.label, display))
		case strings.HasPrefix(lc, qn):
			score += rule.weights.Prefix
			reasons = append(reasons, fmt.Sprintf("%s prefix match", rule.label))
		case strings.Contains(lc, qn):
			score += rule.weights.Contains
			reasons = append(reasons, fmt.Sprintf("%s contains search term", rule.label))
		}
	}

	roleScore, roleReason := scoreRoles(candidateRoles(rec), qn)
	if roleReason != "" {
		score += roleScore
		reasons = append(reasons, roleReason)
	}

	if rec.Enabled {
		score += enabledScore
		reasons = append(reasons, reasonEnabled)
	} else {
		reasons = append(reasons, reasonDisabled)
	}
	return score, reasons
}

// scoreRoles applies the single highest role tier that fires.
func scoreRoles(roles []string, qn string) (int, string) {
	var exact, prefix, contains []string
	for _, r := range roles {
		switch {
		case r == qn:
			exact = append(exact, r)
			prefix = append(prefix, r)
			contains = append(contains, r)
		case strings.HasPrefix(r, qn):
			prefix = append(prefix, r)
			contains = append(contains, r)
		case strings.Contains(r, qn):
			contains = append(contains, r)
		}
	}
	switch {
	case len(exact) > 0:
		return roleExactScore, fmt.Sprintf("exact role match: %s", exact[0])
	case len(prefix) > 0:
		return capped(len(prefix)*rolePrefixPer, rolePrefixCap),
			fmt.Sprintf("role prefix match: %s", prefix[0])
	case len(contains) > 0:
		shown := contains
		if len(shown) > 3 {
			shown = shown[:3]
		}
		return capped(len(contains)*roleContainsPer, roleContainsCap),
			fmt.Sprintf("matched role(s): %s", strings.Join(shown, ", "))
	}
	return 0, ""
}

func candidateRoles(rec *models.AgentRecord) []string {
	if len(rec.RolesLC) > 0 {
		return rec.RolesLC
	}
	out := make([]string, 0, len(rec.Roles))
	for _, r := range rec.Roles {
		if lc := FoldCase(r); lc != "" {
			out = append(out, lc)
		}
	}
	return out
}

func shadowOrFolded(shadow, source string) string {
	if shadow != "" {
		return shadow
	}
	return FoldCase(source)
}

func capped(n, max int) int {
	if n > max {
		return max
	}
	return n
}
