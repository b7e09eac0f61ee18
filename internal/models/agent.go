package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AgentRecord is the unit of storage and retrieval in the directory.
// agent_id doubles as the storage key and never changes after creation.
// The *_lc fields are derived lowercase copies of the searchable fields;
// they are recomputed on every write and never supplied by clients.
// Extra holds payload fields the registry does not interpret; clients may
// register arbitrary metadata and get it back on hydration.
type AgentRecord struct {
	AgentID   string
	Name      string
	AppID     string
	Roles     []string
	Test      string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time

	AgentIDLC string
	NameLC    string
	AppIDLC   string
	TestLC    string
	RolesLC   []string

	Extra map[string]json.RawMessage
}

// MatchResult pairs a candidate with its relevance score and the
// human-readable reasons the scorer produced. Derived per query, never stored.
type MatchResult struct {
	Agent   *AgentRecord `json:"agent"`
	Score   int          `json:"score"`
	Reasons []string     `json:"reasons"`
}

// NormalizeRoles trims each role and drops empty entries, preserving order.
func NormalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// RoleList unmarshals from either a JSON array of strings or a single
// comma-separated string, normalized on the way in.
type RoleList []string

func (r *RoleList) UnmarshalJSON(data []byte) error {
	roles, err := decodeRoles(data)
	if err != nil {
		return err
	}
	*r = roles
	return nil
}

// decodeRoles accepts roles as either a JSON array of strings or a single
// comma-separated string ("a,b,c"), the two shapes registrants send.
func decodeRoles(raw json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return NormalizeRoles(list), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return NormalizeRoles(strings.Split(s, ",")), nil
	}
	return nil, fmt.Errorf("roles must be a list of strings or a comma-separated string")
}

func (a *AgentRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = AgentRecord{Enabled: true}
	for k, v := range raw {
		var err error
		switch k {
		case "agent_id":
			err = json.Unmarshal(v, &a.AgentID)
		case "name":
			err = json.Unmarshal(v, &a.Name)
		case "appid":
			err = json.Unmarshal(v, &a.AppID)
		case "test":
			err = json.Unmarshal(v, &a.Test)
		case "enabled":
			err = json.Unmarshal(v, &a.Enabled)
		case "roles":
			a.Roles, err = decodeRoles(v)
		case "createdAt":
			a.CreatedAt, err = decodeTime(v)
		case "updatedAt":
			a.UpdatedAt, err = decodeTime(v)
		case "agent_id_lc":
			err = json.Unmarshal(v, &a.AgentIDLC)
		case "name_lc":
			err = json.Unmarshal(v, &a.NameLC)
		case "appid_lc":
			err = json.Unmarshal(v, &a.AppIDLC)
		case "test_lc":
			err = json.Unmarshal(v, &a.TestLC)
		case "roles_lc":
			err = json.Unmarshal(v, &a.RolesLC)
		case "id":
			// legacy document id, always equal to agent_id; dropped
		default:
			if a.Extra == nil {
				a.Extra = make(map[string]json.RawMessage)
			}
			a.Extra[k] = v
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	return nil
}

func (a AgentRecord) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(a.Extra)+13)
	for k, v := range a.Extra {
		m[k] = v
	}
	m["agent_id"] = a.AgentID
	m["name"] = a.Name
	m["appid"] = a.AppID
	m["roles"] = emptyIfNil(a.Roles)
	m["enabled"] = a.Enabled
	if a.Test != "" {
		m["test"] = a.Test
	}
	if !a.CreatedAt.IsZero() {
		m["createdAt"] = a.CreatedAt.UTC()
	}
	if !a.UpdatedAt.IsZero() {
		m["updatedAt"] = a.UpdatedAt.UTC()
	}
	m["agent_id_lc"] = a.AgentIDLC
	m["name_lc"] = a.NameLC
	m["appid_lc"] = a.AppIDLC
	m["test_lc"] = a.TestLC
	m["roles_lc"] = emptyIfNil(a.RolesLC)
	return json.Marshal(m)
}

func decodeTime(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Clone returns a deep copy. Stores hand out clones so callers can mutate
// results without racing the store's own copy.
func (a *AgentRecord) Clone() *AgentRecord {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Roles = append([]string(nil), a.Roles...)
	cp.RolesLC = append([]string(nil), a.RolesLC...)
	if a.Extra != nil {
		cp.Extra = make(map[string]json.RawMessage, len(a.Extra))
		for k, v := range a.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

// Projection returns the lightweight discovery view of the record: every
// searchable and display field, but none of the uninterpreted extras.
// Hydration swaps a projection back for the full document.
func (a *AgentRecord) Projection() *AgentRecord {
	cp := a.Clone()
	cp.Extra = nil
	return cp
}
