package gridline

import (
	"sync"
	"testing"

	"github.com/gridline-db/gridline/internal/testutil"
)

func TestTelemetryStore_AddPoint(t *testing.T) {
	s := NewTelemetryStore()

	s.AddPoint("adc/sum", Number(1), testutil.Nanos(0))
	s.AddPoint("adc/sum", Number(2), testutil.Nanos(1))
	s.AddPoint("adc/gate", Boolean(true), testutil.Nanos(0.5))

	if s.ChannelCount("adc/sum") != 2 {
		t.Errorf("expected 2 points, got %d", s.ChannelCount("adc/sum"))
	}
	if s.ChannelCount("adc/gate") != 1 {
		t.Errorf("expected 1 point, got %d", s.ChannelCount("adc/gate"))
	}
	if s.TotalPoints() != 3 {
		t.Errorf("expected 3 total points, got %d", s.TotalPoints())
	}
	if len(s.ChannelIDs()) != 2 {
		t.Errorf("expected 2 channels, got %d", len(s.ChannelIDs()))
	}
}

func TestTelemetryStore_GlobalReference(t *testing.T) {
	s := NewTelemetryStore()

	// Invalid timestamps never claim the global reference.
	s.AddPoint("a", Number(1), 0)
	if _, ok := s.GlobalFirstTimestamp(); ok {
		t.Fatal("invalid timestamp should not set the global reference")
	}

	s.AddPoint("a", Number(2), testutil.Nanos(5))
	ref, ok := s.GlobalFirstTimestamp()
	if !ok || ref != testutil.Nanos(5) {
		t.Fatalf("unexpected global reference %d (ok=%v)", ref, ok)
	}

	// A later channel derives elapsed against the shared reference, even for
	// its own first point.
	s.AddPoint("b", Number(3), testutil.Nanos(7))
	pts := s.Ledger("b").snapshot()
	testutil.AssertClose(t, pts[0].Elapsed, 2, 1e-9)
}

func TestTelemetryStore_Ledger(t *testing.T) {
	s := NewTelemetryStore()
	if s.Ledger("nope") != nil {
		t.Error("unknown channel should return nil ledger")
	}
	s.AddPoint("a", Number(1), testutil.Nanos(0))
	if s.Ledger("a") == nil {
		t.Error("expected ledger after first point")
	}
	if s.ChannelCount("nope") != 0 {
		t.Error("unknown channel should count 0")
	}
}

func TestTelemetryStore_SnapshotAt(t *testing.T) {
	s := NewTelemetryStore()
	for i := 0; i < 10; i++ {
		s.AddPoint("a", Number(float64(i)), testutil.Nanos(float64(i)))
	}
	s.AddPoint("b", Text("ok"), testutil.Nanos(3))

	snap := s.SnapshotAt(3.1, 0.5)
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap))
	}
	if snap["a"] == nil {
		t.Fatal("expected a match for channel a")
	}
	if f, _ := snap["a"].Value.Float(); f != 3 {
		t.Errorf("expected value 3, got %v", f)
	}
	if snap["b"] == nil {
		t.Fatal("expected a match for channel b")
	}

	// No channel within tolerance maps to nil.
	snap = s.SnapshotAt(100, 0.5)
	if snap["a"] != nil || snap["b"] != nil {
		t.Error("out-of-tolerance channels should map to nil")
	}
}

func TestTelemetryStore_Prune(t *testing.T) {
	s := NewTelemetryStore()
	for i := 0; i < 500; i++ {
		s.AddPoint("a", Number(float64(i)), testutil.Nanos(float64(i)))
	}
	s.AddPoint("b", Number(0), testutil.Nanos(0))

	removed := s.Prune(0, 100)
	if removed["a"] != 400 {
		t.Errorf("expected 400 removed from a, got %d", removed["a"])
	}
	if _, present := removed["b"]; present {
		t.Error("untouched channel should be omitted from the result")
	}
	if s.ChannelCount("a") != 100 {
		t.Errorf("expected 100 remaining, got %d", s.ChannelCount("a"))
	}
}

func TestTelemetryStore_ConcurrentAddPoint(t *testing.T) {
	s := NewTelemetryStore()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			channel := ChannelID(rune('a' + w))
			for i := 0; i < 250; i++ {
				s.AddPoint(channel, Number(float64(i)), testutil.Nanos(float64(i)*0.01))
			}
		}(w)
	}
	wg.Wait()

	if s.TotalPoints() != 1000 {
		t.Errorf("expected 1000 points, got %d", s.TotalPoints())
	}
}

func TestTelemetryStore_Statistics(t *testing.T) {
	s := NewTelemetryStore()
	for i := 0; i < 5; i++ {
		s.AddPoint("a", Number(float64(i)), testutil.Nanos(float64(i)))
	}

	stats := s.Statistics()
	if stats.TotalChannels != 1 || stats.TotalPoints != 5 {
		t.Errorf("unexpected totals %+v", stats)
	}
	if stats.SessionID != s.SessionID() {
		t.Error("statistics should carry the session id")
	}
	if stats.Channels["a"].Count != 5 {
		t.Errorf("unexpected channel stats %+v", stats.Channels["a"])
	}
}

func TestTelemetryStore_Clear(t *testing.T) {
	s := NewTelemetryStore()
	s.AddPoint("a", Number(1), testutil.Nanos(0))
	oldSession := s.SessionID()

	s.Clear()

	if s.TotalPoints() != 0 {
		t.Error("clear should drop all points")
	}
	if _, ok := s.GlobalFirstTimestamp(); ok {
		t.Error("clear should reset the global reference")
	}
	if s.SessionID() == oldSession {
		t.Error("clear should start a new session")
	}
}
