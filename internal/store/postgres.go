package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentgrid/backend/internal/models"
)

// Postgres stores agent documents in a single table: typed columns carry the
// projection and the denormalized search fields the staged queries filter on,
// and a doc JSONB column carries the full registered document (extras
// included) for point reads and hydration.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ Store = (*Postgres)(nil)

// Migrate creates the agents table and the search-field indexes.
func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS agents (
			agent_id    TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			appid       TEXT NOT NULL DEFAULT '',
			roles       TEXT[] NOT NULL DEFAULT '{}',
			test        TEXT NOT NULL DEFAULT '',
			enabled     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			agent_id_lc TEXT NOT NULL,
			name_lc     TEXT NOT NULL,
			appid_lc    TEXT NOT NULL,
			test_lc     TEXT NOT NULL,
			roles_lc    TEXT[] NOT NULL DEFAULT '{}',
			doc         JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS agents_agent_id_lc_idx ON agents (agent_id_lc);
		CREATE INDEX IF NOT EXISTS agents_name_lc_idx ON agents (name_lc);
		CREATE INDEX IF NOT EXISTS agents_appid_lc_idx ON agents (appid_lc);
		CREATE INDEX IF NOT EXISTS agents_roles_lc_idx ON agents USING GIN (roles_lc);
	`)
	if err != nil {
		return fmt.Errorf("migrate agents table: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, agentID string) (*models.AgentRecord, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM agents WHERE agent_id = $1`, agentID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var rec models.AgentRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode stored doc for %q: %w", agentID, err)
	}
	return &rec, nil
}

func (s *Postgres) Upsert(ctx context.Context, rec *models.AgentRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode doc for %q: %w", rec.AgentID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO agents (agent_id, name, appid, roles, test, enabled, created_at, updated_at,
			agent_id_lc, name_lc, appid_lc, test_lc, roles_lc, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (agent_id) DO UPDATE SET
			name = EXCLUDED.name, appid = EXCLUDED.appid, roles = EXCLUDED.roles,
			test = EXCLUDED.test, enabled = EXCLUDED.enabled,
			created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at,
			agent_id_lc = EXCLUDED.agent_id_lc, name_lc = EXCLUDED.name_lc,
			appid_lc = EXCLUDED.appid_lc, test_lc = EXCLUDED.test_lc,
			roles_lc = EXCLUDED.roles_lc, doc = EXCLUDED.doc
	`, rec.AgentID, rec.Name, rec.AppID, rec.Roles, rec.Test, rec.Enabled,
		rec.CreatedAt, rec.UpdatedAt,
		rec.AgentIDLC, rec.NameLC, rec.AppIDLC, rec.TestLC, rec.RolesLC, doc)
	return err
}

func (s *Postgres) Replace(ctx context.Context, agentID string, rec *models.AgentRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode doc for %q: %w", agentID, err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents SET
			name = $2, appid = $3, roles = $4, test = $5, enabled = $6,
			created_at = $7, updated_at = $8,
			agent_id_lc = $9, name_lc = $10, appid_lc = $11, test_lc = $12,
			roles_lc = $13, doc = $14
		WHERE agent_id = $1
	`, agentID, rec.Name, rec.AppID, rec.Roles, rec.Test, rec.Enabled,
		rec.CreatedAt, rec.UpdatedAt,
		rec.AgentIDLC, rec.NameLC, rec.AppIDLC, rec.TestLC, rec.RolesLC, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, agentID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agents WHERE agent_id = $1`, agentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const projectionColumns = `agent_id, name, appid, roles, test, enabled, created_at, updated_at,
	agent_id_lc, name_lc, appid_lc, test_lc, roles_lc`

func (s *Postgres) Query(ctx context.Context, f Filter, limit int) ([]*models.AgentRecord, error) {
	var (
		where string
		args  []any
	)
	switch f.Kind {
	case MatchAll:
		where = "TRUE"
	case MatchExact:
		where = `agent_id_lc = $2 OR name_lc = $2 OR appid_lc = $2 OR test_lc = $2
			OR $2 = ANY(roles_lc)`
		args = append(args, f.Term)
	case MatchPrefix:
		where = `agent_id_lc LIKE $2 OR name_lc LIKE $2 OR appid_lc LIKE $2 OR test_lc LIKE $2
			OR EXISTS (SELECT 1 FROM unnest(roles_lc) AS r WHERE r LIKE $2)`
		args = append(args, escapeLike(f.Term)+"%")
	case MatchContains:
		where = `agent_id_lc LIKE $2 OR name_lc LIKE $2 OR appid_lc LIKE $2 OR test_lc LIKE $2
			OR EXISTS (SELECT 1 FROM unnest(roles_lc) AS r WHERE r LIKE $2)`
		args = append(args, "%"+escapeLike(f.Term)+"%")
	default:
		return nil, fmt.Errorf("unknown filter kind %q", f.Kind)
	}

	query := `SELECT ` + projectionColumns + ` FROM agents WHERE (` + where + `)
		ORDER BY created_at, agent_id LIMIT $1`
	rows, err := s.pool.Query(ctx, query, append([]any{limit}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.AgentRecord
	for rows.Next() {
		var rec models.AgentRecord
		if err := rows.Scan(&rec.AgentID, &rec.Name, &rec.AppID, &rec.Roles, &rec.Test,
			&rec.Enabled, &rec.CreatedAt, &rec.UpdatedAt,
			&rec.AgentIDLC, &rec.NameLC, &rec.AppIDLC, &rec.TestLC, &rec.RolesLC); err != nil {
			return nil, err
		}
		list = append(list, &rec)
	}
	return list, rows.Err()
}

// escapeLike neutralizes LIKE metacharacters so a query term is matched
// literally.
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
