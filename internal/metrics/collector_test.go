package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpDiscovery, 10*time.Millisecond, false)
	c.RecordTiming(OpDiscovery, 30*time.Millisecond, true)

	snap := c.Snapshot()
	if snap.Discovery == nil {
		t.Fatal("discovery snapshot missing")
	}
	if snap.Discovery.Count != 2 || snap.Discovery.Failures != 1 {
		t.Errorf("count/failures = %d/%d", snap.Discovery.Count, snap.Discovery.Failures)
	}
	if snap.Discovery.MinTimeMs != 10 || snap.Discovery.MaxTimeMs != 30 {
		t.Errorf("min/max = %d/%d", snap.Discovery.MinTimeMs, snap.Discovery.MaxTimeMs)
	}
	if snap.Run != nil {
		t.Error("unrecorded op must snapshot as nil")
	}
}

func TestObserve(t *testing.T) {
	c := NewCollector()
	wantErr := errors.New("boom")

	if err := c.Observe(OpRun, func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("Observe must pass the error through, got %v", err)
	}
	if err := c.Observe(OpRun, func() error { return nil }); err != nil {
		t.Errorf("unexpected error %v", err)
	}

	snap := c.Snapshot()
	if snap.Run.Count != 2 || snap.Run.Failures != 1 {
		t.Errorf("count/failures = %d/%d", snap.Run.Count, snap.Run.Failures)
	}
}
