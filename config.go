package gridline

import "fmt"

// TableConfig configures a VirtualTable.
type TableConfig struct {
	// SamplingRate is the row rate in rows per second. Must be > 0.
	SamplingRate float64

	// Limits bounds per-call work.
	Limits LimitsConfig

	// Tolerances groups alignment tolerances.
	Tolerances ToleranceConfig

	// Plausibility bounds the corruption guard.
	Plausibility PlausibilityConfig

	// Burst configures the rebuild window extension under bursty arrival.
	Burst BurstConfig

	// Diagnostics configures failure logging cadence.
	Diagnostics DiagnosticsConfig
}

// LimitsConfig bounds per-call working-set size and row production.
type LimitsConfig struct {
	// MaxRowsPerRebuild caps rows appended by a single Rebuild call so one
	// call cannot block indefinitely; repeated calls catch up.
	// Default: 10,000.
	MaxRowsPerRebuild int

	// MaxSnapshotPoints caps each per-channel snapshot at the most recent N
	// points. Default: 100,000.
	MaxSnapshotPoints int

	// RowOverrunFactor multiplies the estimated row count to cap total loop
	// iterations, guarding against floating-point drift producing an
	// unbounded loop. Default: 2.
	RowOverrunFactor int

	// LookbackIntervals is how many row intervals of history a rebuild
	// snapshot keeps below the window start for bracket lookups.
	// Default: 8.
	LookbackIntervals int

	// ProgressEvery emits an Info diagnostic after every N rows on large
	// builds. Default: 10,000.
	ProgressEvery int
}

// ToleranceConfig groups alignment tolerances. Elapsed-time tolerances are
// derived from the row interval at build time; only the absolute-timestamp
// tolerance for Synchronized columns is configured directly.
type ToleranceConfig struct {
	// SyncTimestampNanos is the absolute-timestamp tolerance for
	// Synchronized-column matching, in nanoseconds. Default: 1,000 (1µs).
	SyncTimestampNanos int64
}

// PlausibilityConfig bounds the corruption guard on the reference span.
type PlausibilityConfig struct {
	// MaxSpanSeconds is the ceiling on a plausible reference elapsed span.
	// Spans beyond it trigger recomputation from absolute timestamps.
	// Default: 86,400 (24h).
	MaxSpanSeconds float64

	// MaxFirstElapsedSeconds is the ceiling on a plausible first elapsed
	// value. Default: 86,400.
	MaxFirstElapsedSeconds float64
}

// BurstConfig names the rebuild window-extension policy: when the reference
// channel's point count grows far faster than the row count (bursts arriving
// at nearly the same elapsed time), rows are still produced even though the
// newest elapsed time has not reached the next grid slot.
type BurstConfig struct {
	// MinPointsPerRow is the number of unconsumed reference points that
	// justify producing one extra row. Negative disables the extension.
	// Default: 4.
	MinPointsPerRow int
}

// DiagnosticsConfig configures failure logging cadence.
type DiagnosticsConfig struct {
	// LogEvery rate-limits repeated failure logging: the first occurrence is
	// always logged, then every Nth. Default: 100.
	LogEvery int

	// EscalateAfter promotes soft-failure warnings to errors after this many
	// consecutive failures. Default: 10.
	EscalateAfter int
}

// DefaultTableConfig returns a configuration with sensible defaults for the
// given sampling rate.
func DefaultTableConfig(samplingRate float64) TableConfig {
	cfg := TableConfig{SamplingRate: samplingRate}
	cfg.normalize()
	return cfg
}

// normalize back-fills zero values with defaults.
func (c *TableConfig) normalize() {
	if c.Limits.MaxRowsPerRebuild <= 0 {
		c.Limits.MaxRowsPerRebuild = 10_000
	}
	if c.Limits.MaxSnapshotPoints <= 0 {
		c.Limits.MaxSnapshotPoints = 100_000
	}
	if c.Limits.RowOverrunFactor <= 0 {
		c.Limits.RowOverrunFactor = 2
	}
	if c.Limits.LookbackIntervals <= 0 {
		c.Limits.LookbackIntervals = 8
	}
	if c.Limits.ProgressEvery <= 0 {
		c.Limits.ProgressEvery = 10_000
	}
	if c.Tolerances.SyncTimestampNanos <= 0 {
		c.Tolerances.SyncTimestampNanos = 1_000
	}
	if c.Plausibility.MaxSpanSeconds <= 0 {
		c.Plausibility.MaxSpanSeconds = 86_400
	}
	if c.Plausibility.MaxFirstElapsedSeconds <= 0 {
		c.Plausibility.MaxFirstElapsedSeconds = 86_400
	}
	if c.Burst.MinPointsPerRow == 0 {
		c.Burst.MinPointsPerRow = 4
	}
	if c.Diagnostics.LogEvery <= 0 {
		c.Diagnostics.LogEvery = 100
	}
	if c.Diagnostics.EscalateAfter <= 0 {
		c.Diagnostics.EscalateAfter = 10
	}
}

// validate rejects unusable configuration.
func (c *TableConfig) validate() error {
	if c.SamplingRate <= 0 {
		return fmt.Errorf("%w: sampling rate must be > 0, got %v", ErrInvalidConfig, c.SamplingRate)
	}
	return nil
}

// rowInterval returns the grid spacing in seconds.
func (c *TableConfig) rowInterval() float64 {
	return 1.0 / c.SamplingRate
}
