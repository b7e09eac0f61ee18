// Package discovery implements the directory's discovery and ranking engine:
// search-field normalization, staged candidate retrieval, heuristic match
// scoring, ranking with a human-readable justification, and optional
// hydration of the winning records.
package discovery

import (
	"strings"

	"github.com/agentgrid/backend/internal/models"
)

// FoldCase is the engine's case-folding: trim then lowercase. Queries and
// shadow fields go through the same transform so comparisons never need
// LOWER() at query time.
func FoldCase(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalize recomputes the denormalized lowercase search fields from their
// source fields. Absent sources yield empty strings and empty sets, never
// nil-vs-present ambiguity. Every write path must call this so readers never
// observe a stale shadow field. Pure, idempotent.
func Normalize(rec *models.AgentRecord) {
	rec.Roles = models.NormalizeRoles(rec.Roles)
	rec.AgentIDLC = FoldCase(rec.AgentID)
	rec.NameLC = FoldCase(rec.Name)
	rec.AppIDLC = FoldCase(rec.AppID)
	rec.TestLC = FoldCase(rec.Test)
	rolesLC := make([]string, 0, len(rec.Roles))
	for _, r := range rec.Roles {
		if lc := FoldCase(r); lc != "" {
			rolesLC = append(rolesLC, lc)
		}
	}
	rec.RolesLC = rolesLC
}
