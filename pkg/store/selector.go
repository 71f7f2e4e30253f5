package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SelectProvider returns the first provider eligible to serve a request for
// the given CLI type: enabled, not currently blacklisted, ordered by
// sort_order then id. Only the provider's enabled model mappings are loaded.
// Returns a NoProviderError when no provider qualifies.
//
// The query reads fresh state on every call, so a blacklist set by a
// concurrent request is visible immediately.
func (s *Store) SelectProvider(ctx context.Context, cliType string) (*Provider, error) {
	now := time.Now().Unix()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+providerColumns+` FROM providers
		WHERE cli_type = ?
		  AND enabled = 1
		  AND (blacklisted_until IS NULL OR blacklisted_until <= ?)
		ORDER BY sort_order, id
		LIMIT 1`,
		cliType, now)

	p, err := scanProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NoProviderError{CLIType: cliType}
	}
	if err != nil {
		return nil, fmt.Errorf("select provider: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, provider_id, source_model, target_model, enabled FROM provider_model_map WHERE provider_id = ? AND enabled = 1 ORDER BY id",
		p.ID)
	if err != nil {
		return nil, fmt.Errorf("load model maps: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	p.ModelMaps = maps
	return p, nil
}
