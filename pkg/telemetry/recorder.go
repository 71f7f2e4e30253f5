package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RecorderConfig tunes the async recorder.
type RecorderConfig struct {
	// Buffer is the size of the async write channel.
	// Default: 1000
	Buffer int

	// WriteTimeout bounds each storage write, and how long an enqueue
	// waits on a full channel before dropping the record.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Buffer:       1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes telemetry asynchronously so the request path never blocks
// on disk. A single worker goroutine drains the channels; Close waits for
// outstanding writes to finish.
type Recorder struct {
	store  *Store
	config RecorderConfig
	logs   chan *RequestLog
	events chan *SystemEvent
	done   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewRecorder creates a recorder on top of the telemetry store and starts
// its background worker.
func NewRecorder(store *Store, config RecorderConfig) *Recorder {
	if config.Buffer <= 0 {
		config.Buffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		store:  store,
		config: config,
		logs:   make(chan *RequestLog, config.Buffer),
		events: make(chan *SystemEvent, config.Buffer),
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "telemetry.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("telemetry recorder started",
		"buffer", config.Buffer,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// Record enqueues one request log row. Call it exactly once per terminated
// request; the worker also folds the row into the daily usage rollup. A zero
// CreatedAt is stamped with the current time.
func (r *Recorder) Record(l *RequestLog) {
	if l.CreatedAt == 0 {
		l.CreatedAt = time.Now().Unix()
	}

	select {
	case r.logs <- l:
	case <-time.After(r.config.WriteTimeout):
		r.logger.Error("request log channel full, dropping record",
			"provider", l.ProviderName,
			"path", l.ClientPath,
		)
	case <-r.done:
		r.logger.Warn("recorder shutting down, dropping record",
			"provider", l.ProviderName,
		)
	}
}

// Event enqueues one system event. Empty providerName and details become
// NULL columns.
func (r *Recorder) Event(level, eventType, message, providerName, details string) {
	e := &SystemEvent{
		CreatedAt:    time.Now().Unix(),
		Level:        level,
		EventType:    eventType,
		Message:      message,
		ProviderName: nullIfEmpty(providerName),
		Details:      nullIfEmpty(details),
	}

	select {
	case r.events <- e:
	case <-time.After(r.config.WriteTimeout):
		r.logger.Error("system event channel full, dropping event",
			"event_type", eventType,
		)
	case <-r.done:
		r.logger.Warn("recorder shutting down, dropping event",
			"event_type", eventType,
		)
	}
}

// Close stops the recorder after draining both channels.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()
	return nil
}

// worker drains the channels and writes rows until shutdown.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case l := <-r.logs:
			r.writeLog(l)
		case e := <-r.events:
			r.writeEvent(e)
		case <-r.done:
			r.drain()
			return
		}
	}
}

// drain empties both channels before the worker exits.
func (r *Recorder) drain() {
	for {
		select {
		case l := <-r.logs:
			r.writeLog(l)
		case e := <-r.events:
			r.writeEvent(e)
		default:
			return
		}
	}
}

// writeLog persists one request log row and its daily usage increment.
// Failures are logged and swallowed; telemetry must never fail a request.
func (r *Recorder) writeLog(l *RequestLog) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.store.InsertRequestLog(ctx, l); err != nil {
		r.logger.Error("failed to write request log",
			"provider", l.ProviderName,
			"error", err,
		)
	}
	if err := r.store.UpsertDailyUsage(ctx, usageDate(l.CreatedAt), l.ProviderName, l.CLIType, l.Success(), l.InputTokens, l.OutputTokens); err != nil {
		r.logger.Error("failed to update daily usage",
			"provider", l.ProviderName,
			"error", err,
		)
	}
}

// writeEvent persists one system event row.
func (r *Recorder) writeEvent(e *SystemEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.store.InsertSystemLog(ctx, e); err != nil {
		r.logger.Error("failed to write system event",
			"event_type", e.EventType,
			"error", err,
		)
	}
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
