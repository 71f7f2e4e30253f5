package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"ccg-hq/gateway/internal/sqlitex"
)

// Store is the telemetry store backed by ccg_logs.db.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the telemetry database at path and
// reconciles the schema.
func Open(path string) (*Store, error) {
	db, err := sqlitex.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry store: %w", err)
	}

	if _, err := sqlitex.EnsureSchema(db, logSchema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure telemetry schema: %w", err)
	}

	s := &Store{
		db:     db,
		logger: slog.Default().With("component", "telemetry"),
	}
	s.logger.Info("telemetry store ready",
		"path", path,
		"schema_version", logSchemaVersion,
	)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertRequestLog writes one request log row.
func (s *Store) InsertRequestLog(ctx context.Context, l *RequestLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO request_logs (created_at, cli_type, provider_name, model_id, status_code, elapsed_ms, input_tokens, output_tokens, client_method, client_path, client_headers, client_body, forward_url, forward_headers, forward_body, provider_headers, provider_body, response_headers, response_body, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.CreatedAt, l.CLIType, l.ProviderName, l.ModelID, l.StatusCode,
		l.ElapsedMs, l.InputTokens, l.OutputTokens, l.ClientMethod, l.ClientPath,
		l.ClientHeaders, l.ClientBody, l.ForwardURL, l.ForwardHeaders, l.ForwardBody,
		l.ProviderHeaders, l.ProviderBody, l.ResponseHeaders, l.ResponseBody, l.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// UpsertDailyUsage increments the usage rollup for (date, provider, CLI
// type). The upsert is a single statement, so concurrent increments for the
// same key never lose counts.
func (s *Store) UpsertDailyUsage(ctx context.Context, date, providerName, cliType string, success bool, inputTokens, outputTokens int64) error {
	successInc, failureInc := 1, 0
	if !success {
		successInc, failureInc = 0, 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_daily (usage_date, provider_name, cli_type, request_count, success_count, failure_count, input_tokens, output_tokens)
		VALUES (?, ?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT(usage_date, provider_name, cli_type) DO UPDATE SET
			request_count = request_count + 1,
			success_count = success_count + excluded.success_count,
			failure_count = failure_count + excluded.failure_count,
			input_tokens = input_tokens + excluded.input_tokens,
			output_tokens = output_tokens + excluded.output_tokens`,
		date, providerName, cliType, successInc, failureInc, inputTokens, outputTokens)
	if err != nil {
		return fmt.Errorf("upsert daily usage: %w", err)
	}
	return nil
}

// InsertSystemLog writes one system event row.
func (s *Store) InsertSystemLog(ctx context.Context, e *SystemEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_logs (created_at, level, event_type, message, provider_name, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.CreatedAt, e.Level, e.EventType, e.Message, e.ProviderName, e.Details)
	if err != nil {
		return fmt.Errorf("insert system log: %w", err)
	}
	return nil
}

// ClearRequestLogs deletes all request log rows.
func (s *Store) ClearRequestLogs(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM request_logs"); err != nil {
		return fmt.Errorf("clear request logs: %w", err)
	}
	return nil
}

// ClearSystemLogs deletes all system event rows.
func (s *Store) ClearSystemLogs(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM system_logs"); err != nil {
		return fmt.Errorf("clear system logs: %w", err)
	}
	return nil
}

// PruneBefore deletes request and system logs created before the cutoff and
// returns how many rows each delete removed. The usage_daily rollup is kept;
// it stays small and is the long-term record.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (requestRows, systemRows int64, err error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM request_logs WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, 0, fmt.Errorf("prune request logs: %w", err)
	}
	requestRows, _ = res.RowsAffected()

	res, err = s.db.ExecContext(ctx, "DELETE FROM system_logs WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return requestRows, 0, fmt.Errorf("prune system logs: %w", err)
	}
	systemRows, _ = res.RowsAffected()
	return requestRows, systemRows, nil
}

// usageDate formats a unix timestamp as the UTC calendar date used as the
// usage_daily primary key.
func usageDate(unixSeconds int64) string {
	return time.Unix(unixSeconds, 0).UTC().Format("2006-01-02")
}
