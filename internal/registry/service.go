// Package registry implements agent registration, lookup, patch and delete,
// plus the HTTP handlers for the directory's registry and discovery
// endpoints. Every write path re-derives the lowercase search fields before
// it touches the store, so readers never observe a stale shadow field.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentgrid/backend/internal/discovery"
	"github.com/agentgrid/backend/internal/models"
	"github.com/agentgrid/backend/internal/store"
)

// ErrValidation marks rejected writes (missing required fields, bad shapes).
// Detect with errors.Is; surfaced to callers as a 400.
var ErrValidation = errors.New("validation failed")

// ErrNotFound marks reads, patches and deletes of an absent agent_id.
var ErrNotFound = errors.New("agent not found")

type Service interface {
	Register(ctx context.Context, rec *models.AgentRecord) (*models.AgentRecord, error)
	Get(ctx context.Context, agentID string) (*models.AgentRecord, error)
	Patch(ctx context.Context, agentID string, patch PatchRequest) (*models.AgentRecord, error)
	Delete(ctx context.Context, agentID string) error
}

// PatchRequest carries a partial update. Pointer fields distinguish "not
// supplied" from zero values; identity fields are not patchable.
type PatchRequest struct {
	Name    *string          `json:"name"`
	AppID   *string          `json:"appid"`
	Test    *string          `json:"test"`
	Enabled *bool            `json:"enabled"`
	Roles   *models.RoleList `json:"roles"`
}

type service struct {
	store store.Store
	now   func() time.Time
}

func NewService(st store.Store) *service {
	return &service{store: st, now: time.Now}
}

var _ Service = (*service)(nil)

// Register upserts the whole document keyed by agent_id (falling back to
// appid when agent_id is absent). Re-registering an existing agent_id
// replaces the document but preserves the original createdAt.
func (s *service) Register(ctx context.Context, rec *models.AgentRecord) (*models.AgentRecord, error) {
	if rec.AgentID == "" {
		rec.AgentID = rec.AppID
	}
	if rec.AgentID == "" || rec.Name == "" {
		return nil, fmt.Errorf("%w: missing required fields: agent_id (or appid), name", ErrValidation)
	}
	if rec.AppID == "" {
		rec.AppID = rec.AgentID
	}

	now := s.now().UTC()
	existing, err := s.store.Get(ctx, rec.AgentID)
	if err != nil {
		return nil, fmt.Errorf("read existing agent %q: %w", rec.AgentID, err)
	}
	if existing != nil {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	discovery.Normalize(rec)

	if err := s.store.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("upsert agent %q: %w", rec.AgentID, err)
	}
	return rec, nil
}

func (s *service) Get(ctx context.Context, agentID string) (*models.AgentRecord, error) {
	rec, err := s.store.Get(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("get agent %q: %w", agentID, err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Patch merges only the supplied fields into the stored document, bumps
// updatedAt, re-derives the search fields and replaces the whole document.
// agent_id is immutable and never patched.
func (s *service) Patch(ctx context.Context, agentID string, patch PatchRequest) (*models.AgentRecord, error) {
	existing, err := s.store.Get(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("read agent %q: %w", agentID, err)
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		existing.Name = *patch.Name
	}
	if patch.AppID != nil {
		existing.AppID = *patch.AppID
	}
	if patch.Test != nil {
		existing.Test = *patch.Test
	}
	if patch.Enabled != nil {
		existing.Enabled = *patch.Enabled
	}
	if patch.Roles != nil {
		existing.Roles = []string(*patch.Roles)
	}

	existing.AgentID = agentID
	existing.UpdatedAt = s.now().UTC()
	discovery.Normalize(existing)

	if err := s.store.Replace(ctx, agentID, existing); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("replace agent %q: %w", agentID, err)
	}
	return existing, nil
}

func (s *service) Delete(ctx context.Context, agentID string) error {
	deleted, err := s.store.Delete(ctx, agentID)
	if err != nil {
		return fmt.Errorf("delete agent %q: %w", agentID, err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}
