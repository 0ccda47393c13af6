package gridline

import (
	"testing"

	"github.com/gridline-db/gridline/internal/testutil"
)

func TestValidatePoint(t *testing.T) {
	clean := Point{Value: Number(1), Timestamp: testutil.Nanos(0), Elapsed: 1.5}
	if issues := ValidatePoint(clean); len(issues) != 0 {
		t.Errorf("clean point should have no issues, got %v", issues)
	}

	tests := []struct {
		name  string
		point Point
		want  int
	}{
		{"zero timestamp", Point{Value: Number(1), Timestamp: 0, Elapsed: 1}, 1},
		{"sub-nanosecond epoch", Point{Value: Number(1), Timestamp: 12345, Elapsed: 1}, 1},
		{"negative elapsed", Point{Value: Number(1), Timestamp: testutil.Nanos(0), Elapsed: -2}, 1},
		{"huge elapsed", Point{Value: Number(1), Timestamp: testutil.Nanos(0), Elapsed: 1e9}, 1},
		{"missing value", Point{Value: Missing(), Timestamp: testutil.Nanos(0), Elapsed: 1}, 1},
		{"everything wrong", Point{Value: Missing(), Timestamp: -1, Elapsed: -1e10}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if issues := ValidatePoint(tt.point); len(issues) != tt.want {
				t.Errorf("expected %d issues, got %v", tt.want, issues)
			}
		})
	}
}

func TestDiagnoseStore(t *testing.T) {
	s := fixtureStore()
	diag := DiagnoseStore(s)

	if !diag.Healthy {
		t.Errorf("fixture store should be healthy: %+v", diag.Channels)
	}
	if diag.TotalChannels != 4 {
		t.Errorf("expected 4 channels, got %d", diag.TotalChannels)
	}
	if diag.TotalPoints != s.TotalPoints() {
		t.Errorf("expected %d points, got %d", s.TotalPoints(), diag.TotalPoints)
	}
}

func TestDiagnoseStore_Unhealthy(t *testing.T) {
	s := NewTelemetryStore()
	for i := 0; i < 10; i++ {
		s.AddPoint("bad", Missing(), 0)
	}
	diag := DiagnoseStore(s)

	if diag.Healthy {
		t.Fatal("store with invalid points should be unhealthy")
	}
	var bad ChannelDiagnosis
	for _, cd := range diag.Channels {
		if cd.Channel == "bad" {
			bad = cd
		}
	}
	if bad.IssueCount == 0 {
		t.Fatal("expected issues on the bad channel")
	}
	// Representative issues are bounded even when every point is bad.
	if len(bad.Issues) > maxReportedIssues {
		t.Errorf("expected at most %d reported issues, got %d", maxReportedIssues, len(bad.Issues))
	}
}

func TestDiagnoseTable(t *testing.T) {
	table := newFixtureTable(t, fixtureStore(), nil)
	if err := table.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	diag := DiagnoseTable(table)
	if !diag.Built {
		t.Error("expected a built table")
	}
	if diag.RowCount != 11 {
		t.Errorf("expected 11 rows, got %d", diag.RowCount)
	}
	if !diag.HasWatermark {
		t.Error("expected a watermark")
	}
	if len(diag.GridIssues) != 0 {
		t.Errorf("regular grid should have no issues, got %v", diag.GridIssues)
	}
}

func TestDiagnoseTable_Unbuilt(t *testing.T) {
	table := newFixtureTable(t, NewTelemetryStore(), nil)
	diag := DiagnoseTable(table)
	if diag.Built || diag.HasWatermark || diag.RowCount != 0 {
		t.Errorf("unexpected diagnosis for unbuilt table: %+v", diag)
	}
}
