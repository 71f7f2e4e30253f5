package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested log row does not exist.
var ErrNotFound = errors.New("log not found")

const summaryColumns = "id, created_at, cli_type, provider_name, model_id, " +
	"status_code, elapsed_ms, input_tokens, output_tokens, client_method, client_path"

// ListRequestLogs returns one page of request log summaries, newest first,
// optionally filtered by CLI type. Page numbers start at 1; the page size is
// clamped to [1, 100].
func (s *Store) ListRequestLogs(ctx context.Context, page, pageSize int64, cliType string) (*RequestLogPage, error) {
	page, pageSize = clampPage(page, pageSize)
	offset := (page - 1) * pageSize

	query := "SELECT " + summaryColumns + " FROM request_logs"
	countQuery := "SELECT COUNT(*) FROM request_logs"
	var args []any
	if cliType != "" {
		query += " WHERE cli_type = ?"
		countQuery += " WHERE cli_type = ?"
		args = append(args, cliType)
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"

	rows, err := s.db.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	defer rows.Close()

	items := make([]RequestLogSummary, 0, pageSize)
	for rows.Next() {
		var it RequestLogSummary
		if err := rows.Scan(&it.ID, &it.CreatedAt, &it.CLIType, &it.ProviderName,
			&it.ModelID, &it.StatusCode, &it.ElapsedMs, &it.InputTokens,
			&it.OutputTokens, &it.ClientMethod, &it.ClientPath); err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count request logs: %w", err)
	}

	return &RequestLogPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// GetRequestLog returns the full request log row for id, including the body
// and header captures.
func (s *Store) GetRequestLog(ctx context.Context, id int64) (*RequestLog, error) {
	var l RequestLog
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, cli_type, provider_name, model_id, status_code, elapsed_ms, input_tokens, output_tokens, client_method, client_path, client_headers, client_body, forward_url, forward_headers, forward_body, provider_headers, provider_body, response_headers, response_body, error_message
		FROM request_logs WHERE id = ?`, id).
		Scan(&l.ID, &l.CreatedAt, &l.CLIType, &l.ProviderName, &l.ModelID,
			&l.StatusCode, &l.ElapsedMs, &l.InputTokens, &l.OutputTokens,
			&l.ClientMethod, &l.ClientPath, &l.ClientHeaders, &l.ClientBody,
			&l.ForwardURL, &l.ForwardHeaders, &l.ForwardBody, &l.ProviderHeaders,
			&l.ProviderBody, &l.ResponseHeaders, &l.ResponseBody, &l.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request log %d: %w", id, err)
	}
	return &l, nil
}

// ListSystemLogs returns one page of system events, newest first. Empty
// filter values are ignored.
func (s *Store) ListSystemLogs(ctx context.Context, page, pageSize int64, level, eventType, providerName string) (*SystemLogPage, error) {
	page, pageSize = clampPage(page, pageSize)
	offset := (page - 1) * pageSize

	where := " WHERE 1=1"
	var args []any
	if level != "" {
		where += " AND level = ?"
		args = append(args, level)
	}
	if eventType != "" {
		where += " AND event_type = ?"
		args = append(args, eventType)
	}
	if providerName != "" {
		where += " AND provider_name = ?"
		args = append(args, providerName)
	}

	query := "SELECT id, created_at, level, event_type, message, provider_name, details FROM system_logs" +
		where + " ORDER BY id DESC LIMIT ? OFFSET ?"

	rows, err := s.db.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list system logs: %w", err)
	}
	defer rows.Close()

	items := make([]SystemEvent, 0, pageSize)
	for rows.Next() {
		var e SystemEvent
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Level, &e.EventType,
			&e.Message, &e.ProviderName, &e.Details); err != nil {
			return nil, fmt.Errorf("scan system log: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM system_logs"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count system logs: %w", err)
	}

	return &SystemLogPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// DailyStats returns usage_daily rows, newest date first. Dates are
// YYYY-MM-DD strings compared lexically; empty bounds and CLI type are
// ignored.
func (s *Store) DailyStats(ctx context.Context, startDate, endDate, cliType string) ([]DailyStat, error) {
	query := "SELECT usage_date, provider_name, cli_type, request_count, success_count, failure_count, input_tokens, output_tokens FROM usage_daily WHERE 1=1"
	var args []any
	if startDate != "" {
		query += " AND usage_date >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND usage_date <= ?"
		args = append(args, endDate)
	}
	if cliType != "" {
		query += " AND cli_type = ?"
		args = append(args, cliType)
	}
	query += " ORDER BY usage_date DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	defer rows.Close()

	stats := make([]DailyStat, 0)
	for rows.Next() {
		var d DailyStat
		if err := rows.Scan(&d.UsageDate, &d.ProviderName, &d.CLIType,
			&d.RequestCount, &d.SuccessCount, &d.FailureCount,
			&d.InputTokens, &d.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		stats = append(stats, d)
	}
	return stats, rows.Err()
}

// ProviderStats aggregates request_logs per (provider, CLI type): request
// and success/failure counts, success rate percentage, and total tokens.
// Success means a status in [200, 300); a NULL status counts as failure.
func (s *Store) ProviderStats(ctx context.Context, startDate, endDate, cliType string) ([]ProviderStat, error) {
	query := `
		SELECT
			provider_name,
			cli_type,
			COUNT(*) AS total_requests,
			SUM(CASE WHEN status_code >= 200 AND status_code < 300 THEN 1 ELSE 0 END) AS total_success,
			SUM(CASE WHEN status_code IS NULL OR status_code < 200 OR status_code >= 300 THEN 1 ELSE 0 END) AS total_failure,
			SUM(input_tokens + output_tokens) AS total_tokens
		FROM request_logs
		WHERE 1=1`
	var args []any
	if startDate != "" {
		query += " AND DATE(created_at, 'unixepoch') >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND DATE(created_at, 'unixepoch') <= ?"
		args = append(args, endDate)
	}
	if cliType != "" {
		query += " AND cli_type = ?"
		args = append(args, cliType)
	}
	query += " GROUP BY provider_name, cli_type ORDER BY total_requests DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("provider stats: %w", err)
	}
	defer rows.Close()

	stats := make([]ProviderStat, 0)
	for rows.Next() {
		var p ProviderStat
		if err := rows.Scan(&p.ProviderName, &p.CLIType, &p.TotalRequests,
			&p.TotalSuccess, &p.TotalFailure, &p.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan provider stat: %w", err)
		}
		if p.TotalRequests > 0 {
			p.SuccessRate = float64(p.TotalSuccess) / float64(p.TotalRequests) * 100.0
		}
		stats = append(stats, p)
	}
	return stats, rows.Err()
}

func clampPage(page, pageSize int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	} else if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
