package gridline

import "fmt"

// Plausibility bounds for point validation. A year of elapsed time or a
// pre-2001 nanosecond timestamp both indicate unit confusion upstream.
const (
	maxPlausibleElapsed = 86_400.0 * 365
	minPlausibleNanos   = int64(1e15)
)

// ValidatePoint inspects one observation and returns human-readable issues,
// empty when the point looks sane. Used when chasing timing anomalies.
func ValidatePoint(p Point) []string {
	var issues []string
	if p.Timestamp <= 0 {
		issues = append(issues, fmt.Sprintf("invalid timestamp: %d", p.Timestamp))
	} else if p.Timestamp < minPlausibleNanos {
		issues = append(issues, fmt.Sprintf("timestamp %d is too small for nanoseconds since 1970", p.Timestamp))
	}
	if p.Elapsed < 0 {
		issues = append(issues, fmt.Sprintf("negative elapsed time: %g", p.Elapsed))
	}
	if absFloat(p.Elapsed) > maxPlausibleElapsed {
		issues = append(issues, fmt.Sprintf("elapsed time %g is unreasonably large", p.Elapsed))
	}
	if p.Value.IsMissing() {
		issues = append(issues, "value is missing")
	}
	return issues
}

// ChannelDiagnosis reports per-channel validation findings.
type ChannelDiagnosis struct {
	Channel    ChannelID
	Count      int
	IssueCount int
	// Issues holds up to a handful of representative findings.
	Issues []string
}

// StoreDiagnosis is a read-only health report over a TelemetryStore.
type StoreDiagnosis struct {
	TotalChannels int
	TotalPoints   int
	Channels      []ChannelDiagnosis
	Healthy       bool
}

// maxReportedIssues bounds the representative issues kept per channel.
const maxReportedIssues = 5

// DiagnoseStore validates every stored point and summarizes findings per
// channel.
func DiagnoseStore(store *TelemetryStore) StoreDiagnosis {
	diag := StoreDiagnosis{Healthy: true}
	for _, id := range store.ChannelIDs() {
		ledger := store.Ledger(id)
		if ledger == nil {
			continue
		}
		pts := ledger.snapshot()
		cd := ChannelDiagnosis{Channel: id, Count: len(pts)}
		for _, p := range pts {
			issues := ValidatePoint(p)
			if len(issues) == 0 {
				continue
			}
			cd.IssueCount += len(issues)
			for _, issue := range issues {
				if len(cd.Issues) < maxReportedIssues {
					cd.Issues = append(cd.Issues, issue)
				}
			}
		}
		if cd.IssueCount > 0 {
			diag.Healthy = false
		}
		diag.TotalPoints += cd.Count
		diag.Channels = append(diag.Channels, cd)
	}
	diag.TotalChannels = len(diag.Channels)
	return diag
}

// TableDiagnosis is a read-only health report over a VirtualTable.
type TableDiagnosis struct {
	Built         bool
	RowCount      int
	LastBuiltTime float64
	HasWatermark  bool
	GridIssues    []string
	Diagnostics   BuildDiagnostics
}

// DiagnoseTable checks the row grid for spacing violations and reports the
// table's failure counters.
func DiagnoseTable(table *VirtualTable) TableDiagnosis {
	diag := TableDiagnosis{
		Built:       table.Built(),
		Diagnostics: table.Diagnostics(),
	}
	diag.LastBuiltTime, diag.HasWatermark = table.LastBuiltTime()

	rows := table.Rows()
	diag.RowCount = len(rows)
	interval := 0.0
	if stats := table.Statistics(); stats.SamplingRate > 0 {
		interval = 1.0 / stats.SamplingRate
	}
	for i := 1; i < len(rows); i++ {
		gap := rows[i].Timestamp - rows[i-1].Timestamp
		if absFloat(gap-interval) > gridEpsilon {
			if len(diag.GridIssues) < maxReportedIssues {
				diag.GridIssues = append(diag.GridIssues, fmt.Sprintf(
					"row %d gap %.9f differs from interval %.9f", i, gap, interval))
			}
		}
	}
	return diag
}
