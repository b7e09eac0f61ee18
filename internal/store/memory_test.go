package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/agentgrid/backend/internal/models"
)

func memAgent(agentID, name string, roles []string) *models.AgentRecord {
	lcRoles := make([]string, len(roles))
	copy(lcRoles, roles)
	return &models.AgentRecord{
		AgentID:   agentID,
		Name:      name,
		AppID:     agentID,
		Roles:     roles,
		Enabled:   true,
		AgentIDLC: agentID,
		NameLC:    name,
		AppIDLC:   agentID,
		RolesLC:   lcRoles,
	}
}

func TestMemoryGetMissing(t *testing.T) {
	st := NewMemory()
	rec, err := st.Get(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if rec != nil {
		t.Errorf("rec = %+v, want nil", rec)
	}
}

func TestMemoryUpsertGetRoundTrip(t *testing.T) {
	st := NewMemory()
	rec := memAgent("a1", "billing bot", []string{"finance"})
	rec.Extra = map[string]json.RawMessage{"meta": json.RawMessage(`{"x":1}`)}
	if err := st.Upsert(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	got, err := st.Get(context.Background(), "a1")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Name != "billing bot" || string(got.Extra["meta"]) != `{"x":1}` {
		t.Errorf("got = %+v", got)
	}

	// The store keeps its own copy; mutating the returned record must not
	// leak back in.
	got.Name = "mutated"
	again, _ := st.Get(context.Background(), "a1")
	if again.Name != "billing bot" {
		t.Errorf("store observed caller mutation: %q", again.Name)
	}
}

func TestMemoryReplace(t *testing.T) {
	st := NewMemory()
	if err := st.Replace(context.Background(), "a1", memAgent("a1", "x", nil)); !errors.Is(err, ErrNotFound) {
		t.Errorf("replace missing: err = %v, want ErrNotFound", err)
	}

	if err := st.Upsert(context.Background(), memAgent("a1", "before", nil)); err != nil {
		t.Fatal(err)
	}
	if err := st.Replace(context.Background(), "a1", memAgent("a1", "after", nil)); err != nil {
		t.Fatal(err)
	}
	got, _ := st.Get(context.Background(), "a1")
	if got.Name != "after" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestMemoryDelete(t *testing.T) {
	st := NewMemory()
	if deleted, err := st.Delete(context.Background(), "ghost"); err != nil || deleted {
		t.Errorf("delete missing = %v, %v", deleted, err)
	}

	if err := st.Upsert(context.Background(), memAgent("a1", "x", nil)); err != nil {
		t.Fatal(err)
	}
	if deleted, err := st.Delete(context.Background(), "a1"); err != nil || !deleted {
		t.Errorf("delete = %v, %v", deleted, err)
	}
	if rec, _ := st.Get(context.Background(), "a1"); rec != nil {
		t.Error("record still readable after delete")
	}

	list, _ := st.Query(context.Background(), Filter{Kind: MatchAll}, 10)
	if len(list) != 0 {
		t.Errorf("query after delete = %d records", len(list))
	}
}

func TestMemoryQueryKinds(t *testing.T) {
	st := NewMemory()
	seed := []*models.AgentRecord{
		memAgent("billing-bot", "billing bot", []string{"finance"}),
		memAgent("ops-bot", "ops bot", []string{"ops", "billing-reports"}),
		memAgent("helper", "helper", nil),
	}
	for _, rec := range seed {
		if err := st.Upsert(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		name string
		f    Filter
		want []string
	}{
		{"all", Filter{Kind: MatchAll}, []string{"billing-bot", "ops-bot", "helper"}},
		{"exact name", Filter{Kind: MatchExact, Term: "billing bot"}, []string{"billing-bot"}},
		{"exact role", Filter{Kind: MatchExact, Term: "ops"}, []string{"ops-bot"}},
		{"prefix", Filter{Kind: MatchPrefix, Term: "billing"}, []string{"billing-bot", "ops-bot"}},
		{"contains", Filter{Kind: MatchContains, Term: "illing"}, []string{"billing-bot", "ops-bot"}},
		{"no hit", Filter{Kind: MatchContains, Term: "zzz"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := st.Query(context.Background(), tc.f, 10)
			if err != nil {
				t.Fatal(err)
			}
			var ids []string
			for _, rec := range got {
				ids = append(ids, rec.AgentID)
			}
			if fmt.Sprint(ids) != fmt.Sprint(tc.want) {
				t.Errorf("ids = %v, want %v", ids, tc.want)
			}
		})
	}
}

func TestMemoryQueryInsertionOrderAndLimit(t *testing.T) {
	st := NewMemory()
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("agent-%02d", i)
		if err := st.Upsert(context.Background(), memAgent(id, id, nil)); err != nil {
			t.Fatal(err)
		}
	}

	list, err := st.Query(context.Background(), Filter{Kind: MatchAll}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	for i, rec := range list {
		if want := fmt.Sprintf("agent-%02d", i); rec.AgentID != want {
			t.Errorf("list[%d] = %q, want %q", i, rec.AgentID, want)
		}
	}

	// Re-upserting an existing id keeps its original position.
	if err := st.Upsert(context.Background(), memAgent("agent-00", "renamed", nil)); err != nil {
		t.Fatal(err)
	}
	list, _ = st.Query(context.Background(), Filter{Kind: MatchAll}, 10)
	if list[0].AgentID != "agent-00" || list[0].Name != "renamed" {
		t.Errorf("list[0] = %+v", list[0])
	}
}

func TestMemoryQueryReturnsProjections(t *testing.T) {
	st := NewMemory()
	rec := memAgent("a1", "billing bot", nil)
	rec.Extra = map[string]json.RawMessage{"big": json.RawMessage(`"blob"`)}
	if err := st.Upsert(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	list, err := st.Query(context.Background(), Filter{Kind: MatchAll}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if list[0].Extra != nil {
		t.Errorf("projection carries extras: %v", list[0].Extra)
	}

	full, _ := st.Get(context.Background(), "a1")
	if full.Extra == nil {
		t.Error("full document lost extras")
	}
}

func TestMemoryEmptyScalarFieldsNeverMatch(t *testing.T) {
	st := NewMemory()
	rec := memAgent("a1", "billing bot", nil)
	rec.TestLC = ""
	if err := st.Upsert(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	// An empty term would prefix-match every record if blank fields were
	// compared.
	list, err := st.Query(context.Background(), Filter{Kind: MatchExact, Term: ""}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("empty term matched %d records", len(list))
	}
}
