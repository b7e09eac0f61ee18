// Package store provides durable keyed storage of agent records with the
// filtered query primitives the staged retriever needs. The Postgres
// implementation is the production store; Memory backs tests.
package store

import (
	"context"
	"errors"

	"github.com/agentgrid/backend/internal/models"
)

// ErrNotFound is returned by Replace when the target record does not exist.
var ErrNotFound = errors.New("agent not found")

// Match is the filter kind a Query applies to the denormalized search fields.
type Match string

const (
	// MatchAll is an unfiltered scan in storage order.
	MatchAll Match = "all"
	// MatchExact matches a shadow field (or a roles_lc element) equal to the term.
	MatchExact Match = "exact"
	// MatchPrefix matches a shadow field (or a roles_lc element) starting with the term.
	MatchPrefix Match = "prefix"
	// MatchContains matches a shadow field (or a roles_lc element) containing the term.
	MatchContains Match = "contains"
)

// Filter describes one staged-retrieval predicate. Term must already be
// case-folded; the store compares it against the *_lc fields as-is.
type Filter struct {
	Kind Match
	Term string
}

// Store is the record store consumed by the discovery engine and the
// registry CRUD service. Implementations provide their own concurrency
// control; the engine adds no transactions on top.
type Store interface {
	// Get returns the full stored document, or (nil, nil) when absent.
	Get(ctx context.Context, agentID string) (*models.AgentRecord, error)

	// Upsert writes the whole document keyed by rec.AgentID, replacing any
	// existing document.
	Upsert(ctx context.Context, rec *models.AgentRecord) error

	// Replace updates an existing document; returns ErrNotFound when absent.
	Replace(ctx context.Context, agentID string, rec *models.AgentRecord) error

	// Delete removes the document. The bool reports whether it existed.
	Delete(ctx context.Context, agentID string) (bool, error)

	// Query returns up to limit lightweight projections matching the filter,
	// in storage order.
	Query(ctx context.Context, f Filter, limit int) ([]*models.AgentRecord, error)
}
