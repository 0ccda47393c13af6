package gridline

import (
	"testing"

	"github.com/gridline-db/gridline/internal/testutil"
)

func TestStatsAggregator_Sample(t *testing.T) {
	s := fixtureStore()
	table := newFixtureTable(t, s, nil)
	if err := table.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	agg := NewStatsAggregator(s, table, 2)
	stats := agg.Sample()

	if stats.SessionID != s.SessionID() {
		t.Error("sample should carry the session id")
	}
	if stats.TotalChannels != 4 {
		t.Errorf("expected 4 channels, got %d", stats.TotalChannels)
	}
	if stats.TotalPoints != s.TotalPoints() {
		t.Errorf("expected %d points, got %d", s.TotalPoints(), stats.TotalPoints)
	}
	if stats.RowCount != 11 {
		t.Errorf("expected 11 rows, got %d", stats.RowCount)
	}
	if stats.IngestRate != 0 {
		t.Errorf("first sample should have no ingest rate, got %v", stats.IngestRate)
	}
}

func TestStatsAggregator_Stability(t *testing.T) {
	s := fixtureStore()
	table := newFixtureTable(t, s, nil)
	if err := table.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	agg := NewStatsAggregator(s, table, 2)
	agg.Sample()
	if agg.Stable() {
		t.Fatal("one sample cannot be stable")
	}
	agg.Sample()
	agg.Sample()
	if !agg.Stable() {
		t.Fatal("expected stability after unchanged samples")
	}

	// New data resets stability.
	s.AddPoint("adc/clock", Number(11), testutil.Nanos(1.1))
	agg.Sample()
	if agg.Stable() {
		t.Error("new points should break stability")
	}
}

func TestStatsAggregator_Reset(t *testing.T) {
	s := fixtureStore()
	table := newFixtureTable(t, s, nil)
	if err := table.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	agg := NewStatsAggregator(s, table, 1)
	agg.Sample()
	agg.Sample()
	if !agg.Stable() {
		t.Fatal("expected stability")
	}

	agg.Reset()
	if agg.Stable() {
		t.Error("reset should clear stability")
	}
}

func TestNewStatsAggregator_DefaultThreshold(t *testing.T) {
	agg := NewStatsAggregator(NewTelemetryStore(), &VirtualTable{}, 0)
	if agg.stableAfter != 15 {
		t.Errorf("expected default threshold 15, got %d", agg.stableAfter)
	}
}
