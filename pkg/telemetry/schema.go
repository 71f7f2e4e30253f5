package telemetry

import "ccg-hq/gateway/internal/sqlitex"

// logSchemaVersion is bumped whenever the declared tables below change.
const logSchemaVersion = 1

// logSchema declares the expected shape of ccg_logs.db.
func logSchema() sqlitex.Schema {
	return sqlitex.Schema{
		Version: logSchemaVersion,
		Tables: []sqlitex.Table{
			{
				Name: "request_logs",
				Columns: []sqlitex.Column{
					{Name: "id", Type: "INTEGER"},
					{Name: "created_at", Type: "INTEGER"},
					{Name: "cli_type", Type: "TEXT"},
					{Name: "provider_name", Type: "TEXT"},
					{Name: "model_id", Type: "TEXT", Nullable: true},
					{Name: "status_code", Type: "INTEGER", Nullable: true},
					{Name: "elapsed_ms", Type: "INTEGER", Default: "0"},
					{Name: "input_tokens", Type: "INTEGER", Default: "0"},
					{Name: "output_tokens", Type: "INTEGER", Default: "0"},
					{Name: "client_method", Type: "TEXT"},
					{Name: "client_path", Type: "TEXT"},
					{Name: "client_headers", Type: "TEXT", Nullable: true},
					{Name: "client_body", Type: "TEXT", Nullable: true},
					{Name: "forward_url", Type: "TEXT", Nullable: true},
					{Name: "forward_headers", Type: "TEXT", Nullable: true},
					{Name: "forward_body", Type: "TEXT", Nullable: true},
					{Name: "provider_headers", Type: "TEXT", Nullable: true},
					{Name: "provider_body", Type: "TEXT", Nullable: true},
					{Name: "response_headers", Type: "TEXT", Nullable: true},
					{Name: "response_body", Type: "TEXT", Nullable: true},
					{Name: "error_message", Type: "TEXT", Nullable: true},
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name: "system_logs",
				Columns: []sqlitex.Column{
					{Name: "id", Type: "INTEGER"},
					{Name: "created_at", Type: "INTEGER"},
					{Name: "level", Type: "TEXT"},
					{Name: "event_type", Type: "TEXT"},
					{Name: "message", Type: "TEXT"},
					{Name: "provider_name", Type: "TEXT", Nullable: true},
					{Name: "details", Type: "TEXT", Nullable: true},
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name: "usage_daily",
				Columns: []sqlitex.Column{
					{Name: "usage_date", Type: "TEXT"},
					{Name: "provider_name", Type: "TEXT"},
					{Name: "cli_type", Type: "TEXT"},
					{Name: "request_count", Type: "INTEGER", Default: "0"},
					{Name: "success_count", Type: "INTEGER", Default: "0"},
					{Name: "failure_count", Type: "INTEGER", Default: "0"},
					{Name: "input_tokens", Type: "INTEGER", Default: "0"},
					{Name: "output_tokens", Type: "INTEGER", Default: "0"},
				},
				PrimaryKey: []string{"usage_date", "provider_name", "cli_type"},
			},
		},
	}
}
