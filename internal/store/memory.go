package store

import (
	"context"
	"strings"
	"sync"

	"github.com/agentgrid/backend/internal/models"
)

// Memory is an in-memory Store keeping records in insertion order. It backs
// tests and lets the engine run without Postgres; semantics mirror the
// Postgres implementation, including projections from Query.
type Memory struct {
	mu    sync.RWMutex
	byID  map[string]*models.AgentRecord
	order []string
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]*models.AgentRecord)}
}

var _ Store = (*Memory)(nil)

func (s *Memory) Get(_ context.Context, agentID string) (*models.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[agentID].Clone(), nil
}

func (s *Memory) Upsert(_ context.Context, rec *models.AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rec.AgentID]; !ok {
		s.order = append(s.order, rec.AgentID)
	}
	s.byID[rec.AgentID] = rec.Clone()
	return nil
}

func (s *Memory) Replace(_ context.Context, agentID string, rec *models.AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[agentID]; !ok {
		return ErrNotFound
	}
	s.byID[agentID] = rec.Clone()
	return nil
}

func (s *Memory) Delete(_ context.Context, agentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[agentID]; !ok {
		return false, nil
	}
	delete(s.byID, agentID)
	for i, id := range s.order {
		if id == agentID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *Memory) Query(_ context.Context, f Filter, limit int) ([]*models.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []*models.AgentRecord
	for _, id := range s.order {
		if len(list) >= limit {
			break
		}
		rec := s.byID[id]
		if matches(rec, f) {
			list = append(list, rec.Projection())
		}
	}
	return list, nil
}

func matches(rec *models.AgentRecord, f Filter) bool {
	switch f.Kind {
	case MatchAll:
		return true
	case MatchExact:
		return matchFields(rec, f.Term, func(field, term string) bool { return field == term })
	case MatchPrefix:
		return matchFields(rec, f.Term, strings.HasPrefix)
	case MatchContains:
		return matchFields(rec, f.Term, strings.Contains)
	default:
		return false
	}
}

func matchFields(rec *models.AgentRecord, term string, match func(field, term string) bool) bool {
	for _, field := range []string{rec.AgentIDLC, rec.NameLC, rec.AppIDLC, rec.TestLC} {
		if field != "" && match(field, term) {
			return true
		}
	}
	for _, r := range rec.RolesLC {
		if match(r, term) {
			return true
		}
	}
	return false
}
