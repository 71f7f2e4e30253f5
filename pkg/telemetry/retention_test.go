package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestPruner_RunPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -40).Unix()
	fresh := time.Now().Unix()
	s.InsertRequestLog(ctx, sampleLog(old, "main", int64Ptr(200), 1, 1))
	s.InsertRequestLog(ctx, sampleLog(fresh, "main", int64Ptr(200), 1, 1))

	p := NewPruner(s, 30, "0 3 * * *")
	p.runPrune()

	page, err := s.ListRequestLogs(ctx, 1, 10, "")
	if err != nil {
		t.Fatalf("ListRequestLogs() failed: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("rows after prune = %d, want 1", page.Total)
	}
}

func TestPruner_StartValidation(t *testing.T) {
	s := openTestStore(t)

	p := NewPruner(s, 30, "not a cron expr")
	if err := p.Start(); err == nil {
		t.Error("expected error for invalid schedule")
	}

	// Zero retention disables scheduling entirely, even with a bad schedule.
	p = NewPruner(s, 0, "not a cron expr")
	if err := p.Start(); err != nil {
		t.Errorf("disabled pruner should not validate schedule: %v", err)
	}
	p.Stop()

	p = NewPruner(s, 30, "0 3 * * *")
	if err := p.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	p.Stop()
}
