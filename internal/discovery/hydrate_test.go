package discovery

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentgrid/backend/internal/models"
	"github.com/agentgrid/backend/internal/store"
)

func seedFull(t *testing.T, st store.Store, agentID, name string, extra map[string]json.RawMessage) {
	t.Helper()
	rec := &models.AgentRecord{AgentID: agentID, Name: name, Enabled: true, Extra: extra}
	Normalize(rec)
	if err := st.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("seed %s: %v", agentID, err)
	}
}

func TestHydrateReplacesProjectionsInOrder(t *testing.T) {
	st := store.NewMemory()
	seedFull(t, st, "a1", "A", map[string]json.RawMessage{"description": json.RawMessage(`"one"`)})
	seedFull(t, st, "a2", "B", map[string]json.RawMessage{"description": json.RawMessage(`"two"`)})

	projections := []*models.AgentRecord{
		{AgentID: "a2"},
		{AgentID: "a1"},
	}
	full, err := NewHydrator(st).Hydrate(context.Background(), projections, 10)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if len(full) != 2 {
		t.Fatalf("hydrated = %d, want 2", len(full))
	}
	if full[0].AgentID != "a2" || full[1].AgentID != "a1" {
		t.Errorf("order not preserved: %s, %s", full[0].AgentID, full[1].AgentID)
	}
	if full[0].Extra == nil {
		t.Error("hydrated record should carry the full document extras")
	}
}

func TestHydrateSkipsMissingDocuments(t *testing.T) {
	st := store.NewMemory()
	seedFull(t, st, "a1", "A", nil)

	projections := []*models.AgentRecord{
		{AgentID: "deleted-meanwhile"},
		{AgentID: "a1"},
	}
	full, err := NewHydrator(st).Hydrate(context.Background(), projections, 10)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if len(full) != 1 || full[0].AgentID != "a1" {
		t.Errorf("hydrated = %+v, want just a1", full)
	}
}

func TestHydrateHonorsMax(t *testing.T) {
	st := store.NewMemory()
	seedFull(t, st, "a1", "A", nil)
	seedFull(t, st, "a2", "B", nil)
	seedFull(t, st, "a3", "C", nil)

	projections := []*models.AgentRecord{{AgentID: "a1"}, {AgentID: "a2"}, {AgentID: "a3"}}
	full, err := NewHydrator(st).Hydrate(context.Background(), projections, 2)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if len(full) != 2 {
		t.Errorf("hydrated = %d, want 2", len(full))
	}
}
