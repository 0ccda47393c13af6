package gridline

import (
	"sort"
	"sync"
)

// smallScanThreshold is the ledger size below which queries use a linear scan
// instead of a binary search. Small scans win on cache locality.
const smallScanThreshold = 64

// ChannelLedger is the append-mostly ordered point store for one channel.
//
// A single producer appends via the owning TelemetryStore while readers run
// nearest/range queries concurrently. Every read path captures an immutable
// snapshot under the mutex before scanning; materialized points are never
// mutated in place, and pruning replaces the backing array, so a snapshot
// stays valid for the full scan even while appends continue.
type ChannelLedger struct {
	mu      sync.Mutex
	channel ChannelID
	points  []Point
	first   int64
	last    int64
	count   int
}

// LedgerStats summarizes one channel's ledger.
type LedgerStats struct {
	Channel        ChannelID
	Count          int
	FirstTimestamp int64
	LastTimestamp  int64
	// TimeSpan is (last-first) in seconds, 0 for empty ledgers.
	TimeSpan float64
	// Rate is points per second over the span, 0 when the span is 0.
	Rate float64
}

func newChannelLedger(channel ChannelID) *ChannelLedger {
	return &ChannelLedger{channel: channel}
}

// Channel returns the channel id this ledger stores.
func (l *ChannelLedger) Channel() ChannelID { return l.channel }

// Count returns the number of stored points.
func (l *ChannelLedger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// FirstTimestamp returns the oldest stored timestamp, if any.
func (l *ChannelLedger) FirstTimestamp() (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return 0, false
	}
	return l.first, true
}

// LastTimestamp returns the newest stored timestamp, if any.
func (l *ChannelLedger) LastTimestamp() (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return 0, false
	}
	return l.last, true
}

// append stores one observation. globalRef is the store-wide reference
// timestamp (valid when hasGlobal); invalid timestamps (<= 0) always fall
// back to the channel's own first timestamp so a bad sample cannot produce a
// hugely negative elapsed time against a valid global reference.
func (l *ChannelLedger) append(v Value, timestamp, globalRef int64, hasGlobal bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		l.first = timestamp
	}
	l.last = timestamp

	ref := l.first
	if hasGlobal && timestamp > 0 {
		ref = globalRef
	}

	l.points = append(l.points, Point{
		Value:     v,
		Timestamp: timestamp,
		Elapsed:   elapsedSince(timestamp, ref),
	})
	l.count++
}

// snapshot is the single snapshot-then-query primitive. It returns a view of
// the point sequence that is safe to scan without holding the lock. The view
// is a slice-header copy: appends past its length and prunes (which swap the
// backing array) cannot disturb it.
func (l *ChannelLedger) snapshot() []Point {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.points
}

// NearestPoint returns the stored point closest in elapsed time to target,
// provided the distance is within tolerance. When two candidates are exactly
// equidistant the earlier point wins.
func (l *ChannelLedger) NearestPoint(target, tolerance float64) (Point, bool) {
	return nearestByElapsed(l.snapshot(), target, tolerance)
}

// PointsInRange returns the contiguous run of points with elapsed time in
// [start, end].
func (l *ChannelLedger) PointsInRange(start, end float64) []Point {
	pts := l.snapshot()
	if len(pts) == 0 || end < start {
		return nil
	}

	if len(pts) < smallScanThreshold {
		var out []Point
		for _, p := range pts {
			if p.Elapsed >= start && p.Elapsed <= end {
				out = append(out, p)
			}
		}
		return out
	}

	lo := sort.Search(len(pts), func(i int) bool { return pts[i].Elapsed >= start })
	hi := sort.Search(len(pts), func(i int) bool { return pts[i].Elapsed > end })
	if lo >= hi {
		return nil
	}
	return pts[lo:hi]
}

// PruneOlderThan removes points from the oldest end while their elapsed time
// is below minElapsed. Returns the number of points removed.
func (l *ChannelLedger) PruneOlderThan(minElapsed float64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	drop := 0
	for drop < len(l.points) && l.points[drop].Elapsed < minElapsed {
		drop++
	}
	return l.dropOldestLocked(drop)
}

// PruneToCap trims from the oldest end until at most maxPoints remain,
// independent of time. Returns the number of points removed.
func (l *ChannelLedger) PruneToCap(maxPoints int) int {
	if maxPoints < 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.points) <= maxPoints {
		return 0
	}
	return l.dropOldestLocked(len(l.points) - maxPoints)
}

// dropOldestLocked removes n points from the front. The survivors are copied
// into a fresh backing array so outstanding snapshots keep their view.
func (l *ChannelLedger) dropOldestLocked(n int) int {
	if n <= 0 {
		return 0
	}
	if n >= len(l.points) {
		removed := len(l.points)
		l.points = nil
		l.count = 0
		l.first = 0
		l.last = 0
		return removed
	}

	kept := make([]Point, len(l.points)-n)
	copy(kept, l.points[n:])
	l.points = kept
	l.count = len(kept)
	l.first = kept[0].Timestamp
	return n
}

// Statistics returns a summary of the ledger.
func (l *ChannelLedger) Statistics() LedgerStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := LedgerStats{Channel: l.channel, Count: l.count}
	if l.count == 0 {
		return stats
	}
	stats.FirstTimestamp = l.first
	stats.LastTimestamp = l.last
	stats.TimeSpan = elapsedSince(l.last, l.first)
	if stats.TimeSpan > 0 {
		stats.Rate = float64(l.count) / stats.TimeSpan
	}
	return stats
}

// nearestByElapsed finds the point in pts closest to target within tolerance.
// Ties prefer the earlier point.
func nearestByElapsed(pts []Point, target, tolerance float64) (Point, bool) {
	if len(pts) == 0 {
		return Point{}, false
	}

	if len(pts) < smallScanThreshold {
		best := -1
		bestDiff := 0.0
		for i, p := range pts {
			diff := absFloat(p.Elapsed - target)
			if diff > tolerance {
				continue
			}
			if best < 0 || diff < bestDiff {
				best = i
				bestDiff = diff
			}
		}
		if best < 0 {
			return Point{}, false
		}
		return pts[best], true
	}

	// Ordered search: locate the insertion point, then only the immediate
	// neighbors can be closest. Checking the earlier neighbor first with a
	// strict improvement test pins the equidistant tie to the earlier point.
	idx := sort.Search(len(pts), func(i int) bool { return pts[i].Elapsed >= target })
	best := -1
	bestDiff := 0.0
	for _, cand := range [2]int{idx - 1, idx} {
		if cand < 0 || cand >= len(pts) {
			continue
		}
		diff := absFloat(pts[cand].Elapsed - target)
		if diff > tolerance {
			continue
		}
		if best < 0 || diff < bestDiff {
			best = cand
			bestDiff = diff
		}
	}
	if best < 0 {
		return Point{}, false
	}
	return pts[best], true
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
