package gridline

import (
	"fmt"
	"math"
	"sync"
)

// gridEpsilon absorbs floating-point error when comparing grid times against
// the reference span.
const gridEpsilon = 1e-9

// VirtualRow is one synthesized row on the regular timebase.
type VirtualRow struct {
	// Timestamp is the row's grid position in elapsed seconds.
	Timestamp float64
	// Data maps column names to resolved values. Unresolved cells are absent;
	// iterate in Headers() order.
	Data map[string]Value
}

// Cell returns the resolved value for a column, if any.
func (r VirtualRow) Cell(name string) (Value, bool) {
	v, ok := r.Data[name]
	return v, ok
}

// TableStats summarizes a table's row coverage.
type TableStats struct {
	RowCount       int
	FirstTimestamp float64
	LastTimestamp  float64
	TimeSpan       float64
	SamplingRate   float64
	ExpectedRows   int
	// Coverage is actual rows over expected rows for the span, 0 when the
	// span is empty.
	Coverage float64
}

// VirtualTable projects a TelemetryStore onto a regular timebase. The
// reference channel's arrival cadence defines the grid; each column resolves
// its source channel against that grid under its alignment policy.
//
// One table serves one logging session: Build materializes the initial rows,
// periodic Rebuild calls extend them as data arrives, and PruneRows releases
// rows the consumer has durably persisted. Build and Rebuild must be
// serialized by the caller (a single polling loop is the expected usage);
// concurrent readers of Rows/RowCount are safe.
type VirtualTable struct {
	store     *TelemetryStore
	reference ChannelID
	columns   []ColumnSpec
	config    TableConfig
	sink      DiagSink

	mu          sync.RWMutex
	rows        []VirtualRow
	built       bool
	gridOrigin  float64
	nextIndex   int64
	forward     map[string]Value
	corrected   bool
	refEpoch    int64
	refConsumed int
	tracker     *failureTracker
}

// NewVirtualTable creates a table over store. The reference channel defines
// the row grid; columns define the output in order. A nil sink discards
// diagnostics.
func NewVirtualTable(store *TelemetryStore, reference ChannelID, cfg TableConfig, columns []ColumnSpec, sink DiagSink) (*VirtualTable, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if reference == "" {
		return nil, fmt.Errorf("%w: reference channel is required", ErrInvalidConfig)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cols, err := validateColumns(columns)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = NopSink
	}
	return &VirtualTable{
		store:     store,
		reference: reference,
		columns:   cols,
		config:    cfg,
		sink:      sink,
		tracker:   newFailureTracker(cfg.Diagnostics.LogEvery, cfg.Diagnostics.EscalateAfter),
	}, nil
}

// emit delivers a diagnostic to the sink. Sink panics are swallowed: a broken
// callback must never abort a build.
func (vt *VirtualTable) emit(level DiagLevel, msg string) {
	defer func() { _ = recover() }()
	vt.sink(level, msg)
}

// Headers returns the column names in output order.
func (vt *VirtualTable) Headers() []string {
	names := make([]string, len(vt.columns))
	for i, col := range vt.columns {
		names[i] = col.Name
	}
	return names
}

// Built reports whether the table has materialized rows.
func (vt *VirtualTable) Built() bool {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	return vt.built
}

// LastBuiltTime returns the timestamp of the most recently materialized row.
// It is the incremental-rebuild watermark, not a data timestamp, and is
// monotonically non-decreasing across build/rebuild calls.
func (vt *VirtualTable) LastBuiltTime() (float64, bool) {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	return vt.lastBuiltLocked()
}

func (vt *VirtualTable) lastBuiltLocked() (float64, bool) {
	if vt.nextIndex == 0 {
		return 0, false
	}
	return vt.gridOrigin + float64(vt.nextIndex-1)*vt.config.rowInterval(), true
}

// RowCount returns the number of materialized rows.
func (vt *VirtualTable) RowCount() int {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	return len(vt.rows)
}

// Rows returns the materialized rows in timestamp order. The returned slice
// is a copy; the rows themselves are immutable once materialized.
func (vt *VirtualTable) Rows() []VirtualRow {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	out := make([]VirtualRow, len(vt.rows))
	copy(out, vt.rows)
	return out
}

// RowAt returns the row at index, if present.
func (vt *VirtualTable) RowAt(index int) (VirtualRow, bool) {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	if index < 0 || index >= len(vt.rows) {
		return VirtualRow{}, false
	}
	return vt.rows[index], true
}

// RowNear returns the row closest to the target elapsed time within
// tolerance.
func (vt *VirtualTable) RowNear(target, tolerance float64) (VirtualRow, bool) {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	best := -1
	bestDiff := 0.0
	for i := range vt.rows {
		diff := absFloat(vt.rows[i].Timestamp - target)
		if diff > tolerance {
			continue
		}
		if best < 0 || diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	if best < 0 {
		return VirtualRow{}, false
	}
	return vt.rows[best], true
}

// Diagnostics returns the failure counters.
func (vt *VirtualTable) Diagnostics() BuildDiagnostics {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	return vt.tracker.snapshot()
}

// Statistics summarizes row coverage against the configured sampling rate.
func (vt *VirtualTable) Statistics() TableStats {
	vt.mu.RLock()
	defer vt.mu.RUnlock()

	stats := TableStats{SamplingRate: vt.config.SamplingRate, RowCount: len(vt.rows)}
	if len(vt.rows) == 0 {
		return stats
	}
	stats.FirstTimestamp = vt.rows[0].Timestamp
	stats.LastTimestamp = vt.rows[len(vt.rows)-1].Timestamp
	stats.TimeSpan = stats.LastTimestamp - stats.FirstTimestamp
	stats.ExpectedRows = int(stats.TimeSpan*vt.config.SamplingRate) + 1
	if stats.ExpectedRows > 0 {
		stats.Coverage = float64(stats.RowCount) / float64(stats.ExpectedRows)
	}
	return stats
}

// Build materializes the initial rows. It is an idempotent no-op once the
// table is built. A missing or empty reference channel is a soft failure
// recorded through the diagnostic sink; the call returns nil and the next
// call retries. Structural and configuration failures return a BuildError
// and leave the table unchanged.
func (vt *VirtualTable) Build() error {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	if vt.built {
		return nil
	}
	return vt.buildLocked()
}

func (vt *VirtualTable) buildLocked() error {
	if err := vt.config.validate(); err != nil {
		vt.tracker.failure(vt.emit, DiagError, err.Error())
		return newBuildError(BuildErrorConfiguration, "unusable table configuration", err)
	}

	ledger := vt.store.Ledger(vt.reference)
	if ledger == nil || ledger.Count() == 0 {
		// Expected during warm-up; must not be noisy.
		vt.tracker.failure(vt.emit, DiagWarning,
			fmt.Sprintf("reference channel %q not primed", vt.reference))
		return nil
	}

	refCount := ledger.Count()
	refPts := capTail(ledger.snapshot(), vt.config.Limits.MaxSnapshotPoints)
	if len(refPts) == 0 {
		msg := fmt.Sprintf("reference channel %q reports %d points but has an empty sequence", vt.reference, refCount)
		vt.tracker.failure(vt.emit, DiagError, msg)
		return newBuildError(BuildErrorStructural, msg, ErrStructural)
	}

	first := refPts[0].Elapsed
	last := refPts[len(refPts)-1].Elapsed
	if last < first {
		msg := fmt.Sprintf("reference channel %q elapsed span is reversed (%.6f..%.6f)", vt.reference, first, last)
		vt.tracker.failure(vt.emit, DiagError, msg)
		return newBuildError(BuildErrorStructural, msg, ErrStructural)
	}

	// Corruption guard: an implausible span usually means stored elapsed
	// values were derived against a bad reference while the absolute
	// timestamps stayed sane. Recompute with the first point as t=0.
	if span := last - first; span > vt.config.Plausibility.MaxSpanSeconds ||
		first < 0 || first > vt.config.Plausibility.MaxFirstElapsedSeconds {
		corrected := correctedElapsed(refPts, refPts[0].Timestamp)
		cFirst := corrected[0].Elapsed
		cLast := corrected[len(corrected)-1].Elapsed
		if cLast < cFirst || cLast-cFirst > vt.config.Plausibility.MaxSpanSeconds {
			msg := fmt.Sprintf("reference channel %q span is implausible even after recomputation (%.1fs)", vt.reference, cLast-cFirst)
			vt.tracker.failure(vt.emit, DiagError, msg)
			return newBuildError(BuildErrorTimingAnomaly, msg, ErrTimingAnomaly)
		}
		vt.emit(DiagWarning, fmt.Sprintf(
			"recovered implausible reference span (%.1fs) by recomputing elapsed time from absolute timestamps", span))
		vt.corrected = true
		vt.refEpoch = refPts[0].Timestamp
		refPts = corrected
		first, last = cFirst, cLast
	}

	vt.forward = make(map[string]Value)
	view := newBuildView(vt.store, refPts, vt.columns, math.Inf(-1),
		vt.config.Limits.MaxSnapshotPoints, vt.corrected, vt.refEpoch)
	resolver := &rowResolver{
		view:     view,
		columns:  vt.columns,
		interval: vt.config.rowInterval(),
		syncTol:  vt.config.Tolerances.SyncTimestampNanos,
		forward:  vt.forward,
	}

	// Degenerate span: every reference point shares one instant. Synthesize
	// exactly one row at that instant.
	if last == first {
		vt.rows = []VirtualRow{{Timestamp: first, Data: resolver.resolveRow(first)}}
		vt.finishBuild(first, 1, refCount)
		return nil
	}

	interval := vt.config.rowInterval()
	estRows := int64((last-first)/interval) + 1
	maxIter := estRows*int64(vt.config.Limits.RowOverrunFactor) + 1

	rows := make([]VirtualRow, 0, estRows)
	for i := int64(0); ; i++ {
		t := first + float64(i)*interval
		if t > last+gridEpsilon {
			break
		}
		if i >= maxIter {
			vt.emit(DiagWarning, fmt.Sprintf("row production stopped at iteration cap (%d rows)", len(rows)))
			break
		}
		rows = append(rows, VirtualRow{Timestamp: t, Data: resolver.resolveRow(t)})
		if len(rows)%vt.config.Limits.ProgressEvery == 0 {
			vt.emit(DiagInfo, fmt.Sprintf("build progress: %d rows", len(rows)))
		}
	}

	vt.rows = rows
	vt.finishBuild(first, int64(len(rows)), refCount)
	return nil
}

func (vt *VirtualTable) finishBuild(origin float64, produced int64, refCount int) {
	vt.gridOrigin = origin
	vt.nextIndex = produced
	vt.built = true
	vt.refConsumed = refCount
	vt.tracker.success(vt.emit)
}

// Rebuild incrementally extends a built table with rows for data that arrived
// since the last call. It delegates to Build when the table has not been
// built yet. Rebuild never reorders or mutates rows below the watermark, and
// never shrinks the table; transient emptiness of the ingest path preserves
// existing rows.
func (vt *VirtualTable) Rebuild() error {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	if !vt.built {
		return vt.buildLocked()
	}
	return vt.rebuildLocked()
}

func (vt *VirtualTable) rebuildLocked() error {
	if err := vt.config.validate(); err != nil {
		vt.tracker.failure(vt.emit, DiagError, err.Error())
		return newBuildError(BuildErrorConfiguration, "unusable table configuration", err)
	}

	ledger := vt.store.Ledger(vt.reference)
	if ledger == nil || ledger.Count() == 0 {
		// Once built, transient emptiness must not discard history.
		vt.tracker.failure(vt.emit, DiagWarning,
			fmt.Sprintf("reference channel %q empty during rebuild; keeping %d rows", vt.reference, len(vt.rows)))
		return nil
	}

	refCount := ledger.Count()
	refPts := ledger.snapshot()
	if len(refPts) == 0 {
		msg := fmt.Sprintf("reference channel %q reports %d points but has an empty sequence", vt.reference, refCount)
		vt.tracker.failure(vt.emit, DiagError, msg)
		return newBuildError(BuildErrorStructural, msg, ErrStructural)
	}

	// Same corruption guard as Build, against the newest point only.
	newest := refPts[len(refPts)-1]
	newestElapsed := newest.Elapsed
	if vt.corrected {
		newestElapsed = elapsedSince(newest.Timestamp, vt.refEpoch)
	}
	if newestElapsed < 0 || newestElapsed > vt.config.Plausibility.MaxSpanSeconds {
		epoch := refPts[0].Timestamp
		recomputed := elapsedSince(newest.Timestamp, epoch)
		if recomputed < 0 || recomputed > vt.config.Plausibility.MaxSpanSeconds {
			msg := fmt.Sprintf("newest reference point has implausible elapsed time (%.1fs) even after recomputation", recomputed)
			vt.tracker.failure(vt.emit, DiagError, msg)
			return newBuildError(BuildErrorTimingAnomaly, msg, ErrTimingAnomaly)
		}
		vt.emit(DiagWarning, fmt.Sprintf(
			"recovered implausible newest elapsed time (%.1fs) by recomputing from absolute timestamps", newestElapsed))
		vt.corrected = true
		vt.refEpoch = epoch
		newestElapsed = recomputed
	}

	interval := vt.config.rowInterval()
	start := vt.gridOrigin + float64(vt.nextIndex)*interval
	target := newestElapsed

	if target+gridEpsilon < start {
		// The newest data has not reached the next grid slot. Normally a
		// no-op, unless points are piling up at nearly the same elapsed
		// time, in which case the window is extended so bursts still
		// produce rows.
		pending := refCount - vt.refConsumed
		minPts := vt.config.Burst.MinPointsPerRow
		if minPts <= 0 || pending < minPts {
			return nil
		}
		extra := int64(pending / minPts)
		target = vt.gridOrigin + float64(vt.nextIndex+extra-1)*interval
		vt.emit(DiagInfo, fmt.Sprintf(
			"extending rebuild window for burst arrival: %d pending points, %d extra rows", pending, extra))
	}

	if vt.corrected {
		refPts = correctedElapsed(refPts, vt.refEpoch)
	}
	lookback := start - float64(vt.config.Limits.LookbackIntervals)*interval
	refWindow := capTail(tailFromElapsed(refPts, lookback), vt.config.Limits.MaxSnapshotPoints)

	if vt.forward == nil {
		// Seed forward-fill from the last materialized row instead of from
		// scratch.
		vt.forward = make(map[string]Value)
		if len(vt.rows) > 0 {
			for name, v := range vt.rows[len(vt.rows)-1].Data {
				vt.forward[name] = v
			}
		}
	}

	view := newBuildView(vt.store, refWindow, vt.columns, lookback,
		vt.config.Limits.MaxSnapshotPoints, vt.corrected, vt.refEpoch)
	resolver := &rowResolver{
		view:     view,
		columns:  vt.columns,
		interval: interval,
		syncTol:  vt.config.Tolerances.SyncTimestampNanos,
		forward:  vt.forward,
	}

	appended := 0
	for {
		t := vt.gridOrigin + float64(vt.nextIndex)*interval
		if t > target+gridEpsilon {
			break
		}
		if appended >= vt.config.Limits.MaxRowsPerRebuild {
			vt.emit(DiagInfo, fmt.Sprintf(
				"rebuild row cap reached (%d rows); catching up on the next call", appended))
			break
		}
		vt.rows = append(vt.rows, VirtualRow{Timestamp: t, Data: resolver.resolveRow(t)})
		vt.nextIndex++
		appended++
		if appended%vt.config.Limits.ProgressEvery == 0 {
			vt.emit(DiagInfo, fmt.Sprintf("rebuild progress: %d rows", appended))
		}
	}

	vt.refConsumed = refCount
	vt.tracker.success(vt.emit)
	return nil
}

// PruneRows removes the oldest rows beyond keepLastN and returns the number
// removed. Purely a memory-management operation: built state and the
// watermark are unaffected. Callers must only prune rows they have durably
// consumed.
func (vt *VirtualTable) PruneRows(keepLastN int) int {
	if keepLastN < 0 {
		keepLastN = 0
	}
	vt.mu.Lock()
	defer vt.mu.Unlock()

	if !vt.built || len(vt.rows) <= keepLastN {
		return 0
	}
	removed := len(vt.rows) - keepLastN
	kept := make([]VirtualRow, keepLastN)
	copy(kept, vt.rows[removed:])
	vt.rows = kept
	return removed
}

// Clear discards all rows and returns the table to the empty state. The next
// Build starts a fresh grid.
func (vt *VirtualTable) Clear() {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	vt.rows = nil
	vt.built = false
	vt.gridOrigin = 0
	vt.nextIndex = 0
	vt.forward = nil
	vt.corrected = false
	vt.refEpoch = 0
	vt.refConsumed = 0
	vt.tracker.reset()
}
