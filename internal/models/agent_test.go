package models

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestUnmarshalRolesList(t *testing.T) {
	var rec AgentRecord
	err := json.Unmarshal([]byte(`{"agent_id":"a1","name":"A","roles":[" finance ","support",""]}`), &rec)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"finance", "support"}
	if !reflect.DeepEqual(rec.Roles, want) {
		t.Errorf("roles = %v, want %v", rec.Roles, want)
	}
}

func TestUnmarshalRolesCommaString(t *testing.T) {
	var rec AgentRecord
	err := json.Unmarshal([]byte(`{"agent_id":"a1","name":"A","roles":"finance, support ,,"}`), &rec)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"finance", "support"}
	if !reflect.DeepEqual(rec.Roles, want) {
		t.Errorf("roles = %v, want %v", rec.Roles, want)
	}
}

func TestUnmarshalRolesBadShape(t *testing.T) {
	var rec AgentRecord
	err := json.Unmarshal([]byte(`{"agent_id":"a1","name":"A","roles":42}`), &rec)
	if err == nil {
		t.Fatal("expected error for numeric roles")
	}
}

func TestEnabledDefaultsTrue(t *testing.T) {
	var rec AgentRecord
	if err := json.Unmarshal([]byte(`{"agent_id":"a1","name":"A"}`), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !rec.Enabled {
		t.Error("enabled should default to true when absent")
	}

	if err := json.Unmarshal([]byte(`{"agent_id":"a1","name":"A","enabled":false}`), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.Enabled {
		t.Error("explicit enabled=false should stick")
	}
}

func TestExtraFieldsRoundTrip(t *testing.T) {
	in := []byte(`{"agent_id":"a1","name":"A","description":"helps with billing","endpoint":{"url":"https://x"}}`)
	var rec AgentRecord
	if err := json.Unmarshal(in, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rec.Extra) != 2 {
		t.Fatalf("extra = %v, want 2 entries", rec.Extra)
	}

	out, err := json.Marshal(&rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if string(m["description"]) != `"helps with billing"` {
		t.Errorf("description lost: %s", m["description"])
	}
	if _, ok := m["endpoint"]; !ok {
		t.Error("endpoint extra lost on marshal")
	}
}

func TestMarshalTimestampsRFC3339(t *testing.T) {
	rec := AgentRecord{
		AgentID:   "a1",
		Name:      "A",
		Enabled:   true,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}
	out, err := json.Marshal(&rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded AgentRecord
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if !decoded.CreatedAt.Equal(rec.CreatedAt) || !decoded.UpdatedAt.Equal(rec.UpdatedAt) {
		t.Errorf("timestamps changed in round trip: %v / %v", decoded.CreatedAt, decoded.UpdatedAt)
	}
}

func TestCloneIsDeep(t *testing.T) {
	rec := &AgentRecord{
		AgentID: "a1",
		Roles:   []string{"finance"},
		Extra:   map[string]json.RawMessage{"k": json.RawMessage(`1`)},
	}
	cp := rec.Clone()
	cp.Roles[0] = "changed"
	cp.Extra["k2"] = json.RawMessage(`2`)
	if rec.Roles[0] != "finance" {
		t.Error("clone shares roles slice")
	}
	if _, ok := rec.Extra["k2"]; ok {
		t.Error("clone shares extra map")
	}
}

func TestProjectionDropsExtras(t *testing.T) {
	rec := &AgentRecord{
		AgentID: "a1",
		Name:    "A",
		Extra:   map[string]json.RawMessage{"description": json.RawMessage(`"x"`)},
	}
	p := rec.Projection()
	if p.Extra != nil {
		t.Errorf("projection kept extras: %v", p.Extra)
	}
	if p.AgentID != "a1" || p.Name != "A" {
		t.Error("projection lost core fields")
	}
}

func TestRoleListUnmarshal(t *testing.T) {
	var rl RoleList
	if err := json.Unmarshal([]byte(`"a, b"`), &rl); err != nil {
		t.Fatalf("string form: %v", err)
	}
	if !reflect.DeepEqual([]string(rl), []string{"a", "b"}) {
		t.Errorf("rl = %v", rl)
	}
	if err := json.Unmarshal([]byte(`["c"]`), &rl); err != nil {
		t.Fatalf("list form: %v", err)
	}
	if !reflect.DeepEqual([]string(rl), []string{"c"}) {
		t.Errorf("rl = %v", rl)
	}
}
