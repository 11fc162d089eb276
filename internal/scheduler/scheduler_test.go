package scheduler

import (
	"sync/atomic"
	"testing"
)

type countingFlusher struct {
	calls int32
}

func (f *countingFlusher) Flush() error {
	atomic.AddInt32(&f.calls, 1)
	return nil
}

func TestNewCheckpointerRejectsBadExpr(t *testing.T) {
	if _, err := NewCheckpointer(&countingFlusher{}, "not a cron expr"); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}

func TestCheckpointerStartStopIdempotent(t *testing.T) {
	f := &countingFlusher{}
	ck, err := NewCheckpointer(f, "*/5 * * * *")
	if err != nil {
		t.Fatalf("NewCheckpointer: %v", err)
	}
	ck.Start()
	ck.Start() // must not double-start or panic
	ck.Stop()
	ck.Stop() // must not panic on repeated Stop
}

func TestRunCheckpointInvokesFlush(t *testing.T) {
	f := &countingFlusher{}
	ck, err := NewCheckpointer(f, "*/5 * * * *")
	if err != nil {
		t.Fatalf("NewCheckpointer: %v", err)
	}
	ck.runCheckpoint()
	if atomic.LoadInt32(&f.calls) != 1 {
		t.Fatalf("Flush calls: got %d, want 1", f.calls)
	}
}
