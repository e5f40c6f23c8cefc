package observability

import (
	"testing"
	"time"
)

func TestStageWindowSnapshot(t *testing.T) {
	w := NewStageWindow(4)
	w.Observe("reply", 100*time.Millisecond)
	w.Observe("reply", 300*time.Millisecond)
	w.Observe("speak", 50*time.Millisecond)
	w.ObserveIndicator("model_retry")
	w.ObserveIndicator("model_retry")

	snap := w.Snapshot()
	if len(snap.Stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(snap.Stages))
	}
	reply := snap.Stages[0]
	if reply.Stage != "reply" {
		t.Fatalf("first stage = %q, want reply (sorted)", reply.Stage)
	}
	if reply.Samples != 2 {
		t.Fatalf("reply samples = %d, want 2", reply.Samples)
	}
	if reply.LastMS != 300 {
		t.Fatalf("reply last = %v, want 300", reply.LastMS)
	}
	if reply.AvgMS != 200 {
		t.Fatalf("reply avg = %v, want 200", reply.AvgMS)
	}
	if len(snap.Indicators) != 1 || snap.Indicators[0].Count != 2 {
		t.Fatalf("indicators = %+v, want one model_retry count of 2", snap.Indicators)
	}
}

func TestStageWindowWraps(t *testing.T) {
	w := NewStageWindow(2)
	w.Observe("listen", 10*time.Millisecond)
	w.Observe("listen", 20*time.Millisecond)
	w.Observe("listen", 30*time.Millisecond)

	snap := w.Snapshot()
	if len(snap.Stages) != 1 {
		t.Fatalf("stages = %d, want 1", len(snap.Stages))
	}
	if snap.Stages[0].Samples != 2 {
		t.Fatalf("samples = %d, want window size 2", snap.Stages[0].Samples)
	}
	if snap.Stages[0].LastMS != 30 {
		t.Fatalf("last = %v, want 30", snap.Stages[0].LastMS)
	}
}

func TestStageWindowIgnoresEmptyStage(t *testing.T) {
	w := NewStageWindow(4)
	w.Observe("", time.Second)
	if len(w.Snapshot().Stages) != 0 {
		t.Fatalf("expected no stages recorded")
	}
}
