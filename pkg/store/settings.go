package store

import (
	"context"
	"fmt"
	"time"
)

// GatewaySettings is the gateway_settings singleton row.
type GatewaySettings struct {
	DebugLog bool `json:"debug_log"`
}

// TimeoutSettings is the timeout_settings singleton row. All values are in
// seconds.
type TimeoutSettings struct {
	StreamFirstByteTimeout int64 `json:"stream_first_byte_timeout"`
	StreamIdleTimeout      int64 `json:"stream_idle_timeout"`
	NonStreamTimeout       int64 `json:"non_stream_timeout"`
}

// TimeoutSettingsUpdate is a partial timeout update; nil fields keep their
// current value.
type TimeoutSettingsUpdate struct {
	StreamFirstByteTimeout *int64 `json:"stream_first_byte_timeout"`
	StreamIdleTimeout      *int64 `json:"stream_idle_timeout"`
	NonStreamTimeout       *int64 `json:"non_stream_timeout"`
}

// GatewaySettings returns the singleton gateway settings row.
func (s *Store) GatewaySettings(ctx context.Context) (GatewaySettings, error) {
	var debugLog int64
	err := s.db.QueryRowContext(ctx,
		"SELECT debug_log FROM gateway_settings WHERE id = 1").Scan(&debugLog)
	if err != nil {
		return GatewaySettings{}, fmt.Errorf("get gateway settings: %w", err)
	}
	return GatewaySettings{DebugLog: debugLog != 0}, nil
}

// UpdateGatewaySettings sets the debug_log flag.
func (s *Store) UpdateGatewaySettings(ctx context.Context, debugLog bool) error {
	now := time.Now().Unix()
	if _, err := s.db.ExecContext(ctx,
		"UPDATE gateway_settings SET debug_log = ?, updated_at = ? WHERE id = 1",
		boolToInt(debugLog), now); err != nil {
		return fmt.Errorf("update gateway settings: %w", err)
	}
	return nil
}

// TimeoutSettings returns the singleton timeout settings row.
func (s *Store) TimeoutSettings(ctx context.Context) (TimeoutSettings, error) {
	var t TimeoutSettings
	err := s.db.QueryRowContext(ctx,
		"SELECT stream_first_byte_timeout, stream_idle_timeout, non_stream_timeout FROM timeout_settings WHERE id = 1").
		Scan(&t.StreamFirstByteTimeout, &t.StreamIdleTimeout, &t.NonStreamTimeout)
	if err != nil {
		return TimeoutSettings{}, fmt.Errorf("get timeout settings: %w", err)
	}
	return t, nil
}

// UpdateTimeoutSettings applies a partial update, filling absent fields from
// the current row, and returns the merged settings.
func (s *Store) UpdateTimeoutSettings(ctx context.Context, in TimeoutSettingsUpdate) (TimeoutSettings, error) {
	current, err := s.TimeoutSettings(ctx)
	if err != nil {
		return TimeoutSettings{}, err
	}

	merged := current
	if in.StreamFirstByteTimeout != nil {
		merged.StreamFirstByteTimeout = *in.StreamFirstByteTimeout
	}
	if in.StreamIdleTimeout != nil {
		merged.StreamIdleTimeout = *in.StreamIdleTimeout
	}
	if in.NonStreamTimeout != nil {
		merged.NonStreamTimeout = *in.NonStreamTimeout
	}

	now := time.Now().Unix()
	if _, err := s.db.ExecContext(ctx,
		"UPDATE timeout_settings SET stream_first_byte_timeout = ?, stream_idle_timeout = ?, non_stream_timeout = ?, updated_at = ? WHERE id = 1",
		merged.StreamFirstByteTimeout, merged.StreamIdleTimeout, merged.NonStreamTimeout, now); err != nil {
		return TimeoutSettings{}, fmt.Errorf("update timeout settings: %w", err)
	}
	return merged, nil
}
