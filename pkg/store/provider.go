package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider is a configured upstream endpoint for one CLI type.
type Provider struct {
	ID                  int64      `json:"id"`
	CLIType             string     `json:"cli_type"`
	Name                string     `json:"name"`
	BaseURL             string     `json:"base_url"`
	APIKey              string     `json:"api_key"`
	Enabled             bool       `json:"enabled"`
	FailureThreshold    int64      `json:"failure_threshold"`
	BlacklistMinutes    int64      `json:"blacklist_minutes"`
	ConsecutiveFailures int64      `json:"consecutive_failures"`
	BlacklistedUntil    *int64     `json:"blacklisted_until"`
	SortOrder           int64      `json:"sort_order"`
	CreatedAt           int64      `json:"created_at"`
	UpdatedAt           int64      `json:"updated_at"`
	ModelMaps           []ModelMap `json:"model_maps"`
}

// IsBlacklisted reports whether the provider is blacklisted at now
// (unix seconds). A past blacklisted_until means the blacklist expired.
func (p *Provider) IsBlacklisted(now int64) bool {
	return p.BlacklistedUntil != nil && *p.BlacklistedUntil > now
}

// ModelMap rewrites a requested model to a provider-specific one.
// SourceModel may contain * and ? wildcards.
type ModelMap struct {
	ID          int64  `json:"id"`
	ProviderID  int64  `json:"provider_id"`
	SourceModel string `json:"source_model"`
	TargetModel string `json:"target_model"`
	Enabled     bool   `json:"enabled"`
}

// ModelMapInput is one requested mapping in a create or update call.
type ModelMapInput struct {
	SourceModel string `json:"source_model"`
	TargetModel string `json:"target_model"`
	Enabled     bool   `json:"enabled"`
}

// ProviderCreate carries the fields for a new provider. Zero CLIType
// defaults to claude_code; nil Enabled defaults to true; nil
// FailureThreshold and BlacklistMinutes default to 3 and 10.
type ProviderCreate struct {
	CLIType          string          `json:"cli_type"`
	Name             string          `json:"name"`
	BaseURL          string          `json:"base_url"`
	APIKey           string          `json:"api_key"`
	Enabled          *bool           `json:"enabled"`
	FailureThreshold *int64          `json:"failure_threshold"`
	BlacklistMinutes *int64          `json:"blacklist_minutes"`
	ModelMaps        []ModelMapInput `json:"model_maps"`
}

// ProviderUpdate carries a partial update; nil fields are left unchanged.
// A non-nil ModelMaps replaces the provider's whole mapping set.
type ProviderUpdate struct {
	Name             *string          `json:"name"`
	BaseURL          *string          `json:"base_url"`
	APIKey           *string          `json:"api_key"`
	Enabled          *bool            `json:"enabled"`
	FailureThreshold *int64           `json:"failure_threshold"`
	BlacklistMinutes *int64           `json:"blacklist_minutes"`
	ModelMaps        *[]ModelMapInput `json:"model_maps"`
}

const providerColumns = "id, cli_type, name, base_url, api_key, enabled, " +
	"failure_threshold, blacklist_minutes, consecutive_failures, " +
	"blacklisted_until, sort_order, created_at, updated_at"

// ListProviders returns providers ordered by sort_order then id, with their
// model mappings loaded. An empty cliType returns providers of every type.
func (s *Store) ListProviders(ctx context.Context, cliType string) ([]*Provider, error) {
	query := "SELECT " + providerColumns + " FROM providers ORDER BY sort_order, id"
	var args []any
	if cliType != "" {
		query = "SELECT " + providerColumns + " FROM providers WHERE cli_type = ? ORDER BY sort_order, id"
		args = append(args, cliType)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var providers []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range providers {
		maps, err := s.providerModelMaps(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.ModelMaps = maps
	}
	return providers, nil
}

// GetProvider returns the provider with the given id and its model mappings.
func (s *Store) GetProvider(ctx context.Context, id int64) (*Provider, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+providerColumns+" FROM providers WHERE id = ?", id)
	p, err := scanProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ProviderNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get provider %d: %w", id, err)
	}

	maps, err := s.providerModelMaps(ctx, id)
	if err != nil {
		return nil, err
	}
	p.ModelMaps = maps
	return p, nil
}

// CreateProvider inserts a provider and its model mappings in one
// transaction. The new provider is appended to the end of the sort order.
func (s *Store) CreateProvider(ctx context.Context, in ProviderCreate) (*Provider, error) {
	cliType := in.CLIType
	if cliType == "" {
		cliType = "claude_code"
	}
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	threshold := int64(3)
	if in.FailureThreshold != nil {
		threshold = *in.FailureThreshold
	}
	minutes := int64(10)
	if in.BlacklistMinutes != nil {
		minutes = *in.BlacklistMinutes
	}
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO providers (cli_type, name, base_url, api_key, enabled, failure_threshold, blacklist_minutes, consecutive_failures, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM providers), ?, ?)`,
		cliType, in.Name, in.BaseURL, in.APIKey, boolToInt(enabled), threshold, minutes, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert provider: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := insertModelMaps(ctx, tx, id, in.ModelMaps); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetProvider(ctx, id)
}

// UpdateProvider applies a partial update in one transaction and returns the
// updated provider plus whether anything was actually modified.
func (s *Store) UpdateProvider(ctx context.Context, id int64, in ProviderUpdate) (*Provider, bool, error) {
	now := time.Now().Unix()

	sets := []string{"updated_at = ?"}
	args := []any{now}
	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *in.Name)
	}
	if in.BaseURL != nil {
		sets = append(sets, "base_url = ?")
		args = append(args, *in.BaseURL)
	}
	if in.APIKey != nil {
		sets = append(sets, "api_key = ?")
		args = append(args, *in.APIKey)
	}
	if in.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, boolToInt(*in.Enabled))
	}
	if in.FailureThreshold != nil {
		sets = append(sets, "failure_threshold = ?")
		args = append(args, *in.FailureThreshold)
	}
	if in.BlacklistMinutes != nil {
		sets = append(sets, "blacklist_minutes = ?")
		args = append(args, *in.BlacklistMinutes)
	}
	changed := len(sets) > 1 || in.ModelMaps != nil

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	if len(sets) > 1 {
		query := "UPDATE providers SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		args = append(args, id)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, false, fmt.Errorf("update provider %d: %w", id, err)
		}
	}

	if in.ModelMaps != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM provider_model_map WHERE provider_id = ?", id); err != nil {
			return nil, false, fmt.Errorf("clear model maps: %w", err)
		}
		if err := insertModelMaps(ctx, tx, id, *in.ModelMaps); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	p, err := s.GetProvider(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return p, changed, nil
}

// DeleteProvider removes a provider and its model mappings in one
// transaction and returns the deleted provider's name.
func (s *Store) DeleteProvider(ctx context.Context, id int64) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var name string
	err = tx.QueryRowContext(ctx, "SELECT name FROM providers WHERE id = ?", id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &ProviderNotFoundError{ID: id}
	}
	if err != nil {
		return "", fmt.Errorf("delete provider %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM provider_model_map WHERE provider_id = ?", id); err != nil {
		return "", fmt.Errorf("delete model maps: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM providers WHERE id = ?", id); err != nil {
		return "", fmt.Errorf("delete provider %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return name, nil
}

// ReorderProviders assigns sort_order by position in ids. Unknown ids are
// ignored.
func (s *Store) ReorderProviders(ctx context.Context, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for idx, id := range ids {
		if _, err := tx.ExecContext(ctx, "UPDATE providers SET sort_order = ? WHERE id = ?", idx, id); err != nil {
			return fmt.Errorf("reorder provider %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *Store) providerModelMaps(ctx context.Context, providerID int64) ([]ModelMap, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, provider_id, source_model, target_model, enabled FROM provider_model_map WHERE provider_id = ? ORDER BY id",
		providerID)
	if err != nil {
		return nil, fmt.Errorf("list model maps: %w", err)
	}
	defer rows.Close()

	maps := make([]ModelMap, 0)
	for rows.Next() {
		var (
			m       ModelMap
			enabled int64
		)
		if err := rows.Scan(&m.ID, &m.ProviderID, &m.SourceModel, &m.TargetModel, &enabled); err != nil {
			return nil, fmt.Errorf("scan model map: %w", err)
		}
		m.Enabled = enabled != 0
		maps = append(maps, m)
	}
	return maps, rows.Err()
}

func insertModelMaps(ctx context.Context, tx *sql.Tx, providerID int64, maps []ModelMapInput) error {
	for _, m := range maps {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO provider_model_map (provider_id, source_model, target_model, enabled) VALUES (?, ?, ?, ?)",
			providerID, m.SourceModel, m.TargetModel, boolToInt(m.Enabled)); err != nil {
			return fmt.Errorf("insert model map: %w", err)
		}
	}
	return nil
}

func scanProvider(row interface{ Scan(dest ...any) error }) (*Provider, error) {
	var (
		p       Provider
		enabled int64
		until   sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.CLIType, &p.Name, &p.BaseURL, &p.APIKey, &enabled,
		&p.FailureThreshold, &p.BlacklistMinutes, &p.ConsecutiveFailures, &until,
		&p.SortOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Enabled = enabled != 0
	if until.Valid {
		v := until.Int64
		p.BlacklistedUntil = &v
	}
	return &p, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
