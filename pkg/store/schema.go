package store

import "ccg-hq/gateway/internal/sqlitex"

// configSchemaVersion is bumped whenever the declared tables below change.
const configSchemaVersion = 2

// configSchema declares the expected shape of ccg_gateway.db. The schema is
// reconciled against the live database on open; see sqlitex.EnsureSchema.
func configSchema() sqlitex.Schema {
	return sqlitex.Schema{
		Version: configSchemaVersion,
		Tables: []sqlitex.Table{
			{
				Name: "providers",
				Columns: []sqlitex.Column{
					{Name: "id", Type: "INTEGER"},
					{Name: "cli_type", Type: "TEXT", Default: "'claude_code'"},
					{Name: "name", Type: "TEXT"},
					{Name: "base_url", Type: "TEXT"},
					{Name: "api_key", Type: "TEXT"},
					{Name: "enabled", Type: "INTEGER", Default: "1"},
					{Name: "failure_threshold", Type: "INTEGER", Default: "3"},
					{Name: "blacklist_minutes", Type: "INTEGER", Default: "10"},
					{Name: "consecutive_failures", Type: "INTEGER", Default: "0"},
					{Name: "blacklisted_until", Type: "INTEGER", Nullable: true},
					{Name: "sort_order", Type: "INTEGER", Default: "0"},
					{Name: "created_at", Type: "INTEGER"},
					{Name: "updated_at", Type: "INTEGER"},
				},
				PrimaryKey: []string{"id"},
				Uniques:    [][]string{{"cli_type", "name"}},
			},
			{
				Name: "provider_model_map",
				Columns: []sqlitex.Column{
					{Name: "id", Type: "INTEGER"},
					{Name: "provider_id", Type: "INTEGER"},
					{Name: "source_model", Type: "TEXT"},
					{Name: "target_model", Type: "TEXT"},
					{Name: "enabled", Type: "INTEGER", Default: "1"},
				},
				PrimaryKey: []string{"id"},
				Uniques:    [][]string{{"provider_id", "source_model"}},
			},
			{
				Name: "gateway_settings",
				Columns: []sqlitex.Column{
					{Name: "id", Type: "INTEGER", Default: "1"},
					{Name: "debug_log", Type: "INTEGER", Default: "0"},
					{Name: "updated_at", Type: "INTEGER"},
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name: "timeout_settings",
				Columns: []sqlitex.Column{
					{Name: "id", Type: "INTEGER", Default: "1"},
					{Name: "stream_first_byte_timeout", Type: "INTEGER", Default: "30"},
					{Name: "stream_idle_timeout", Type: "INTEGER", Default: "60"},
					{Name: "non_stream_timeout", Type: "INTEGER", Default: "120"},
					{Name: "updated_at", Type: "INTEGER"},
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name: "cli_settings",
				Columns: []sqlitex.Column{
					{Name: "cli_type", Type: "TEXT"},
					{Name: "default_json_config", Type: "TEXT", Nullable: true},
					{Name: "updated_at", Type: "INTEGER"},
				},
				PrimaryKey: []string{"cli_type"},
			},
			{
				Name: "mcp_configs",
				Columns: []sqlitex.Column{
					{Name: "id", Type: "INTEGER"},
					{Name: "name", Type: "TEXT"},
					{Name: "config_json", Type: "TEXT"},
					{Name: "updated_at", Type: "INTEGER"},
				},
				PrimaryKey: []string{"id"},
				Uniques:    [][]string{{"name"}},
			},
			{
				Name: "prompt_presets",
				Columns: []sqlitex.Column{
					{Name: "id", Type: "INTEGER"},
					{Name: "name", Type: "TEXT"},
					{Name: "content", Type: "TEXT"},
					{Name: "updated_at", Type: "INTEGER"},
				},
				PrimaryKey: []string{"id"},
				Uniques:    [][]string{{"name"}},
			},
			{
				Name: "webdav_settings",
				Columns: []sqlitex.Column{
					{Name: "id", Type: "INTEGER", Default: "1"},
					{Name: "url", Type: "TEXT", Nullable: true},
					{Name: "username", Type: "TEXT", Nullable: true},
					{Name: "password", Type: "TEXT", Nullable: true},
					{Name: "path", Type: "TEXT", Nullable: true},
					{Name: "enabled", Type: "INTEGER", Default: "0"},
					{Name: "updated_at", Type: "INTEGER"},
				},
				PrimaryKey: []string{"id"},
			},
		},
	}
}
