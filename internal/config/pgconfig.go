package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OverrideStore persists per-tenant overrides of the tunable
// thresholds in Config. It stores only numeric thresholds and solver
// limits keyed by an opaque tenant identifier — never stop,
// coordinate, or patient data — so it does not reopen the "persistent
// storage of protected identifiers" non-goal.
type OverrideStore struct {
	db *sql.DB
}

// NewOverrideStore opens a connection pool against dsn. Callers
// should only construct this when DATABASE_URL is configured; its
// absence is not an error for the service as a whole.
func NewOverrideStore(dsn string) (*OverrideStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &OverrideStore{db: db}, nil
}

// Migrate creates the override table if it does not already exist.
func (s *OverrideStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS optimizer_overrides (
		tenant_id TEXT PRIMARY KEY,
		overrides JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	return err
}

// Get returns the stored override map for a tenant, or nil if none
// has been saved.
func (s *OverrideStore) Get(ctx context.Context, tenantID string) (map[string]float64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT overrides FROM optimizer_overrides WHERE tenant_id=$1`, tenantID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var out map[string]float64
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Save upserts the override map for a tenant.
func (s *OverrideStore) Save(ctx context.Context, tenantID string, overrides map[string]float64) error {
	raw, err := json.Marshal(overrides)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO optimizer_overrides (tenant_id, overrides, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (tenant_id) DO UPDATE SET overrides = $2, updated_at = now()`, tenantID, raw)
	return err
}

// Apply returns a copy of base with any matching override fields
// replaced. Unknown keys in overrides are ignored.
func Apply(base Config, overrides map[string]float64) Config {
	out := base
	if v, ok := overrides["delayThresholdMinutes"]; ok {
		out.DelayThresholdMinutes = v
	}
	if v, ok := overrides["trafficIncreaseRatio"]; ok {
		out.TrafficIncreaseRatio = v
	}
	if v, ok := overrides["minRerouteIntervalSeconds"]; ok {
		out.MinRerouteIntervalSeconds = int(v)
	}
	if v, ok := overrides["solverWallClockSeconds"]; ok {
		out.SolverWallClockSeconds = int(v)
	}
	if v, ok := overrides["routeBudgetMinutes"]; ok {
		out.RouteBudgetMinutes = int(v)
	}
	if v, ok := overrides["slackMinutes"]; ok {
		out.SlackMinutes = int(v)
	}
	return out
}
