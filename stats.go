package gridline

import "time"

// SessionStats is one sample of overall collection progress, combining the
// ingest side (store) with the output side (table).
type SessionStats struct {
	SampledAt     time.Time
	SessionID     string
	TotalChannels int
	TotalPoints   int
	RowCount      int
	Coverage      float64
	// IngestRate is points per second since the previous sample, 0 on the
	// first sample.
	IngestRate float64
}

// StatsAggregator periodically samples a TelemetryStore and VirtualTable into
// SessionStats and detects when the pipeline has gone quiet. Hosts draining a
// stopped session poll Sample until Stable reports true.
type StatsAggregator struct {
	store *TelemetryStore
	table *VirtualTable

	// stableAfter is how many consecutive unchanged samples count as stable.
	stableAfter int

	prevPoints  int
	prevRows    int
	prevAt      time.Time
	unchanged   int
	haveSampled bool
}

// NewStatsAggregator creates an aggregator over a store and table.
// stableAfter <= 0 defaults to 15 consecutive unchanged samples.
func NewStatsAggregator(store *TelemetryStore, table *VirtualTable, stableAfter int) *StatsAggregator {
	if stableAfter <= 0 {
		stableAfter = 15
	}
	return &StatsAggregator{store: store, table: table, stableAfter: stableAfter}
}

// Sample reads the current counters and updates stability tracking.
func (a *StatsAggregator) Sample() SessionStats {
	now := time.Now()
	points := a.store.TotalPoints()
	tableStats := a.table.Statistics()

	stats := SessionStats{
		SampledAt:     now,
		SessionID:     a.store.SessionID(),
		TotalChannels: len(a.store.ChannelIDs()),
		TotalPoints:   points,
		RowCount:      tableStats.RowCount,
		Coverage:      tableStats.Coverage,
	}

	if a.haveSampled {
		if points == a.prevPoints && tableStats.RowCount == a.prevRows {
			a.unchanged++
		} else {
			a.unchanged = 0
		}
		if dt := now.Sub(a.prevAt).Seconds(); dt > 0 {
			stats.IngestRate = float64(points-a.prevPoints) / dt
		}
	}

	a.prevPoints = points
	a.prevRows = tableStats.RowCount
	a.prevAt = now
	a.haveSampled = true
	return stats
}

// Stable reports whether point and row counts have been unchanged for the
// configured number of consecutive samples.
func (a *StatsAggregator) Stable() bool {
	return a.unchanged >= a.stableAfter
}

// Reset clears stability tracking, e.g. after resuming collection.
func (a *StatsAggregator) Reset() {
	a.unchanged = 0
	a.haveSampled = false
	a.prevPoints = 0
	a.prevRows = 0
}
