package obs

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRecordSaveAndRestore(t *testing.T) {
	before := Snapshot()

	RecordSave("marketplace", nil)
	RecordSave("marketplace", errors.New("boom"))
	RecordRestore(nil)
	RecordMarkSafe()
	done := TrackFeedClient()

	after := Snapshot()
	if after["saves_total"] != before["saves_total"]+1 {
		t.Fatalf("saves_total = %d, want %d", after["saves_total"], before["saves_total"]+1)
	}
	if after["save_errors_total"] != before["save_errors_total"]+1 {
		t.Fatalf("save_errors_total not incremented")
	}
	if after["restores_total"] != before["restores_total"]+1 || after["mark_safe_total"] != before["mark_safe_total"]+1 {
		t.Fatalf("restore/mark-safe counters not incremented: %v", after)
	}
	if after["active_feed_clients"] != before["active_feed_clients"]+1 {
		t.Fatalf("feed client not tracked")
	}
	done()
	if Snapshot()["active_feed_clients"] != before["active_feed_clients"] {
		t.Fatalf("feed client not released")
	}
	if v := saveResults.Get("marketplace_error"); v == nil {
		t.Fatalf("save_results_total missing marketplace_error: %v", v)
	}
}

func TestNewLoggerTo_DebugInDev(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "dev").Debug("调试")
	if !strings.Contains(buf.String(), "调试") {
		t.Fatalf("expected debug line in dev, got %q", buf.String())
	}
	buf.Reset()
	NewLoggerTo(&buf, "prod").Debug("调试")
	if buf.Len() != 0 {
		t.Fatalf("expected no debug line in prod, got %q", buf.String())
	}
}
