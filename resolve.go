package gridline

import (
	"math"
	"sort"
)

// buildView is the builder-scoped snapshot structure created once per
// Build/Rebuild call and threaded through column resolution as a plain
// argument. It pins every channel involved in the build to an immutable point
// sequence so resolution never races the ingest path.
type buildView struct {
	ref      []Point
	channels map[ChannelID][]Point
}

// newBuildView snapshots every channel referenced by the columns. fromElapsed
// bounds the look-back window (use math.Inf(-1) for a full build); each
// snapshot is capped to the most recent maxPoints. In corrected mode every
// channel's elapsed times are recomputed against epoch: the corruption that
// poisoned the reference came from the shared session reference, so the same
// repair applies to every channel aligned against it.
func newBuildView(store *TelemetryStore, ref []Point, columns []ColumnSpec, fromElapsed float64, maxPoints int, corrected bool, epoch int64) *buildView {
	view := &buildView{
		ref:      ref,
		channels: make(map[ChannelID][]Point, len(columns)),
	}
	for _, col := range columns {
		if col.computed() {
			continue
		}
		if _, done := view.channels[col.Channel]; done {
			continue
		}
		ledger := store.Ledger(col.Channel)
		if ledger == nil {
			continue
		}
		pts := ledger.snapshot()
		if corrected {
			pts = correctedElapsed(pts, epoch)
		}
		if !math.IsInf(fromElapsed, -1) {
			pts = tailFromElapsed(pts, fromElapsed)
		}
		view.channels[col.Channel] = capTail(pts, maxPoints)
	}
	return view
}

// rowResolver resolves all columns for one grid time against a buildView.
// forward holds the last successfully resolved and converted value per
// column, carried across rows (and across rebuild calls) for forward-fill.
type rowResolver struct {
	view     *buildView
	columns  []ColumnSpec
	interval float64
	syncTol  int64
	forward  map[string]Value
}

// resolveRow produces the cell data for grid time t. Unresolved cells are
// absent from the returned map.
func (r *rowResolver) resolveRow(t float64) map[string]Value {
	data := make(map[string]Value, len(r.columns))

	// The reference anchor's absolute timestamp gates Synchronized matching:
	// it identifies the update burst this row is aligned to.
	var anchorTS int64
	anchor, hasAnchor := nearestByElapsed(r.view.ref, t, r.interval/2)
	if hasAnchor {
		anchorTS = anchor.Timestamp
	}

	for _, col := range r.columns {
		if col.computed() {
			// Computed columns (row timestamp, note fields) are populated by
			// the consumer, not by this engine.
			continue
		}
		pts := r.view.channels[col.Channel]

		var raw Value
		var resolved bool
		switch col.Policy {
		case Synchronized:
			if hasAnchor {
				raw, resolved = valueAtTimestamp(pts, anchorTS, r.syncTol)
			}
		case Interpolated:
			raw, resolved = interpolateAt(pts, t, 2*r.interval)
		case Asynchronous:
			if p, ok := nearestByElapsed(pts, t, 2*r.interval); ok {
				raw, resolved = p.Value, true
			}
		}

		if !resolved {
			// Synchronized cells are never approximated; the others carry
			// the last successfully converted value forward.
			if col.Policy != Synchronized {
				if prev, ok := r.forward[col.Name]; ok {
					data[col.Name] = prev
				}
			}
			continue
		}

		converted, err := col.Convert(raw)
		if err != nil {
			// Conversion failure marks only this cell unresolved; the
			// forward-fill state keeps the previous good value.
			continue
		}
		data[col.Name] = converted
		r.forward[col.Name] = converted
	}
	return data
}

// interpolateAt resolves an Interpolated column at time t: bracketing points
// within tolerance interpolate linearly for numeric values (the nearer point
// wins for non-numeric), a single side is used as-is.
func interpolateAt(pts []Point, t, tolerance float64) (Value, bool) {
	before, hasBefore, after, hasAfter := bracketByElapsed(pts, t, tolerance)
	switch {
	case hasBefore && hasAfter:
		return interpolateBetween(t, before, after), true
	case hasBefore:
		return before.Value, true
	case hasAfter:
		return after.Value, true
	default:
		return Value{}, false
	}
}

// interpolateBetween blends two bracketing points at time t.
func interpolateBetween(t float64, before, after Point) Value {
	v1, ok1 := before.Value.Float()
	v2, ok2 := after.Value.Float()
	if !ok1 || !ok2 {
		// Non-numeric values snap to the nearer point, earlier on a tie.
		if t-before.Elapsed <= after.Elapsed-t {
			return before.Value
		}
		return after.Value
	}
	t1, t2 := before.Elapsed, after.Elapsed
	if absFloat(t2-t1) < 1e-9 {
		return before.Value
	}
	return Number(v1 + (v2-v1)*(t-t1)/(t2-t1))
}

// bracketByElapsed finds the nearest points at-or-before and strictly-after t
// within tolerance.
func bracketByElapsed(pts []Point, t, tolerance float64) (before Point, hasBefore bool, after Point, hasAfter bool) {
	if len(pts) == 0 {
		return
	}
	idx := sort.Search(len(pts), func(i int) bool { return pts[i].Elapsed > t })
	if idx > 0 && t-pts[idx-1].Elapsed <= tolerance {
		before, hasBefore = pts[idx-1], true
	}
	if idx < len(pts) && pts[idx].Elapsed-t <= tolerance {
		after, hasAfter = pts[idx], true
	}
	return
}

// valueAtTimestamp finds a point whose absolute timestamp matches target
// within tolerance nanoseconds. Ties prefer the earlier point.
func valueAtTimestamp(pts []Point, target, tolerance int64) (Value, bool) {
	if len(pts) == 0 {
		return Value{}, false
	}

	if len(pts) < smallScanThreshold {
		best := -1
		var bestDiff int64
		for i, p := range pts {
			diff := absInt64(p.Timestamp - target)
			if diff > tolerance {
				continue
			}
			if best < 0 || diff < bestDiff {
				best = i
				bestDiff = diff
			}
		}
		if best < 0 {
			return Value{}, false
		}
		return pts[best].Value, true
	}

	idx := sort.Search(len(pts), func(i int) bool { return pts[i].Timestamp >= target })
	best := -1
	var bestDiff int64
	for _, cand := range [2]int{idx - 1, idx} {
		if cand < 0 || cand >= len(pts) {
			continue
		}
		diff := absInt64(pts[cand].Timestamp - target)
		if diff > tolerance {
			continue
		}
		if best < 0 || diff < bestDiff {
			best = cand
			bestDiff = diff
		}
	}
	if best < 0 {
		return Value{}, false
	}
	return pts[best].Value, true
}

// tailFromElapsed returns the suffix of pts with elapsed time >= from.
func tailFromElapsed(pts []Point, from float64) []Point {
	lo := sort.Search(len(pts), func(i int) bool { return pts[i].Elapsed >= from })
	return pts[lo:]
}

// capTail keeps at most limit of the most recent points.
func capTail(pts []Point, limit int) []Point {
	if limit > 0 && len(pts) > limit {
		return pts[len(pts)-limit:]
	}
	return pts
}

// correctedElapsed rebuilds a point sequence with elapsed time recomputed
// from absolute timestamps against epoch. Used by the corruption guard when
// stored elapsed values are implausible while absolute timestamps remain
// sane.
func correctedElapsed(pts []Point, epoch int64) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{Value: p.Value, Timestamp: p.Timestamp, Elapsed: elapsedSince(p.Timestamp, epoch)}
	}
	return out
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
