package telemetry

// RequestLog is one request_logs row: the full capture of a single proxied
// request, written exactly once when the request terminates. Nil pointer
// fields become NULL columns.
type RequestLog struct {
	ID           int64   `json:"id"`
	CreatedAt    int64   `json:"created_at"`
	CLIType      string  `json:"cli_type"`
	ProviderName string  `json:"provider_name"`
	ModelID      *string `json:"model_id"`
	StatusCode   *int64  `json:"status_code"`
	ElapsedMs    int64   `json:"elapsed_ms"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	ClientMethod string  `json:"client_method"`
	ClientPath   string  `json:"client_path"`

	// Body and header captures, truncated before storage. The provider_*
	// and response_* pairs carry the same upstream response values; both
	// column sets are kept for contract compatibility.
	ClientHeaders   *string `json:"client_headers"`
	ClientBody      *string `json:"client_body"`
	ForwardURL      *string `json:"forward_url"`
	ForwardHeaders  *string `json:"forward_headers"`
	ForwardBody     *string `json:"forward_body"`
	ProviderHeaders *string `json:"provider_headers"`
	ProviderBody    *string `json:"provider_body"`
	ResponseHeaders *string `json:"response_headers"`
	ResponseBody    *string `json:"response_body"`
	ErrorMessage    *string `json:"error_message"`
}

// Success reports whether the logged status code is in [200, 300). A nil
// status (no upstream response) counts as failure.
func (l *RequestLog) Success() bool {
	return l.StatusCode != nil && *l.StatusCode >= 200 && *l.StatusCode < 300
}

// RequestLogSummary is the list-view projection of a request log, without
// the bulky capture columns.
type RequestLogSummary struct {
	ID           int64   `json:"id"`
	CreatedAt    int64   `json:"created_at"`
	CLIType      string  `json:"cli_type"`
	ProviderName string  `json:"provider_name"`
	ModelID      *string `json:"model_id"`
	StatusCode   *int64  `json:"status_code"`
	ElapsedMs    int64   `json:"elapsed_ms"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	ClientMethod string  `json:"client_method"`
	ClientPath   string  `json:"client_path"`
}

// SystemEvent is one system_logs row.
type SystemEvent struct {
	ID           int64   `json:"id"`
	CreatedAt    int64   `json:"created_at"`
	Level        string  `json:"level"`
	EventType    string  `json:"event_type"`
	Message      string  `json:"message"`
	ProviderName *string `json:"provider_name"`
	Details      *string `json:"details"`
}

// DailyStat is one usage_daily row.
type DailyStat struct {
	UsageDate    string `json:"usage_date"`
	ProviderName string `json:"provider_name"`
	CLIType      string `json:"cli_type"`
	RequestCount int64  `json:"request_count"`
	SuccessCount int64  `json:"success_count"`
	FailureCount int64  `json:"failure_count"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

// ProviderStat is the per-provider aggregate computed over request_logs.
type ProviderStat struct {
	ProviderName  string  `json:"provider_name"`
	CLIType       string  `json:"cli_type"`
	TotalRequests int64   `json:"total_requests"`
	TotalSuccess  int64   `json:"total_success"`
	TotalFailure  int64   `json:"total_failure"`
	SuccessRate   float64 `json:"success_rate"`
	TotalTokens   int64   `json:"total_tokens"`
}

// RequestLogPage is a page of request log summaries.
type RequestLogPage struct {
	Items    []RequestLogSummary `json:"items"`
	Total    int64               `json:"total"`
	Page     int64               `json:"page"`
	PageSize int64               `json:"page_size"`
}

// SystemLogPage is a page of system events.
type SystemLogPage struct {
	Items    []SystemEvent `json:"items"`
	Total    int64         `json:"total"`
	Page     int64         `json:"page"`
	PageSize int64         `json:"page_size"`
}
