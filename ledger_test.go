package gridline

import (
	"sync"
	"testing"

	"github.com/gridline-db/gridline/internal/testutil"
)

// rampLedger fills a ledger with n points spaced one second apart, value equal
// to the point index, elapsed starting at 0.
func rampLedger(n int) *ChannelLedger {
	l := newChannelLedger("test/ramp")
	ref := testutil.Nanos(0)
	for i := 0; i < n; i++ {
		l.append(Number(float64(i)), testutil.Nanos(float64(i)), ref, true)
	}
	return l
}

func TestChannelLedger_Append(t *testing.T) {
	l := newChannelLedger("adc/sum")
	ref := testutil.Nanos(0)

	l.append(Number(1), testutil.Nanos(0), ref, true)
	l.append(Number(2), testutil.Nanos(1.5), ref, true)

	if l.Count() != 2 {
		t.Fatalf("expected 2 points, got %d", l.Count())
	}
	pts := l.snapshot()
	testutil.AssertClose(t, pts[0].Elapsed, 0, 1e-9)
	testutil.AssertClose(t, pts[1].Elapsed, 1.5, 1e-9)

	first, ok := l.FirstTimestamp()
	if !ok || first != testutil.Nanos(0) {
		t.Errorf("unexpected first timestamp %d (ok=%v)", first, ok)
	}
	last, ok := l.LastTimestamp()
	if !ok || last != testutil.Nanos(1.5) {
		t.Errorf("unexpected last timestamp %d (ok=%v)", last, ok)
	}
}

func TestChannelLedger_AppendInvalidTimestamp(t *testing.T) {
	l := newChannelLedger("adc/sum")
	ref := testutil.Nanos(0)

	// An invalid timestamp must fall back to the channel's own first
	// timestamp instead of producing a huge negative elapsed value.
	l.append(Number(1), 0, ref, true)
	l.append(Number(2), -5, ref, true)

	pts := l.snapshot()
	testutil.AssertClose(t, pts[0].Elapsed, 0, 1e-9)
	testutil.AssertClose(t, pts[1].Elapsed, -5e-9, 1e-12)
}

func TestChannelLedger_AppendNoGlobalReference(t *testing.T) {
	l := newChannelLedger("adc/sum")

	l.append(Number(1), testutil.Nanos(10), 0, false)
	l.append(Number(2), testutil.Nanos(12), 0, false)

	pts := l.snapshot()
	testutil.AssertClose(t, pts[0].Elapsed, 0, 1e-9)
	testutil.AssertClose(t, pts[1].Elapsed, 2, 1e-9)
}

func TestChannelLedger_NearestPoint(t *testing.T) {
	l := rampLedger(10)

	p, ok := l.NearestPoint(3.2, 0.5)
	if !ok {
		t.Fatal("expected a match")
	}
	if f, _ := p.Value.Float(); f != 3 {
		t.Errorf("expected value 3, got %v", f)
	}

	// Outside tolerance
	if _, ok := l.NearestPoint(3.4, 0.1); ok {
		t.Error("expected no match outside tolerance")
	}

	// Empty ledger
	empty := newChannelLedger("empty")
	if _, ok := empty.NearestPoint(0, 1); ok {
		t.Error("expected no match for empty ledger")
	}
}

func TestChannelLedger_NearestPointTieBreak(t *testing.T) {
	// Equidistant candidates: the earlier point must win, for both the linear
	// and the binary search path.
	for _, n := range []int{10, 200} {
		l := rampLedger(n)
		p, ok := l.NearestPoint(4.5, 1)
		if !ok {
			t.Fatalf("n=%d: expected a match", n)
		}
		if f, _ := p.Value.Float(); f != 4 {
			t.Errorf("n=%d: tie should pick earlier point, got value %v", n, f)
		}
	}
}

func TestChannelLedger_NearestPointLargeLedger(t *testing.T) {
	l := rampLedger(500)

	p, ok := l.NearestPoint(123.4, 0.5)
	if !ok {
		t.Fatal("expected a match")
	}
	if f, _ := p.Value.Float(); f != 123 {
		t.Errorf("expected value 123, got %v", f)
	}
}

func TestChannelLedger_PointsInRange(t *testing.T) {
	for _, n := range []int{10, 200} {
		l := rampLedger(n)

		pts := l.PointsInRange(2, 5)
		if len(pts) != 4 {
			t.Fatalf("n=%d: expected 4 points, got %d", n, len(pts))
		}
		testutil.AssertClose(t, pts[0].Elapsed, 2, 1e-9)
		testutil.AssertClose(t, pts[3].Elapsed, 5, 1e-9)

		if got := l.PointsInRange(5, 2); got != nil {
			t.Errorf("n=%d: reversed range should return nil", n)
		}
		if got := l.PointsInRange(float64(n)+10, float64(n)+20); len(got) != 0 {
			t.Errorf("n=%d: out-of-range query should be empty", n)
		}
	}
}

func TestChannelLedger_PruneOlderThan(t *testing.T) {
	l := rampLedger(10)

	removed := l.PruneOlderThan(4)
	if removed != 4 {
		t.Fatalf("expected 4 removed, got %d", removed)
	}
	if l.Count() != 6 {
		t.Errorf("expected 6 remaining, got %d", l.Count())
	}
	pts := l.snapshot()
	testutil.AssertClose(t, pts[0].Elapsed, 4, 1e-9)

	// First timestamp tracks the new oldest point.
	first, _ := l.FirstTimestamp()
	if first != testutil.Nanos(4) {
		t.Errorf("unexpected first timestamp %d", first)
	}
}

func TestChannelLedger_PruneToCap(t *testing.T) {
	l := rampLedger(500)

	removed := l.PruneToCap(100)
	if removed != 400 {
		t.Fatalf("expected 400 removed, got %d", removed)
	}
	if l.Count() != 100 {
		t.Errorf("expected 100 remaining, got %d", l.Count())
	}
	pts := l.snapshot()
	testutil.AssertClose(t, pts[0].Elapsed, 400, 1e-9)

	// Under the cap already
	if removed := l.PruneToCap(200); removed != 0 {
		t.Errorf("expected no removal under cap, got %d", removed)
	}
}

func TestChannelLedger_PruneAll(t *testing.T) {
	l := rampLedger(5)

	removed := l.PruneOlderThan(100)
	if removed != 5 {
		t.Fatalf("expected 5 removed, got %d", removed)
	}
	if l.Count() != 0 {
		t.Errorf("expected empty ledger, got %d", l.Count())
	}
	if _, ok := l.FirstTimestamp(); ok {
		t.Error("empty ledger should have no first timestamp")
	}
}

func TestChannelLedger_SnapshotSurvivesPrune(t *testing.T) {
	l := rampLedger(10)

	snap := l.snapshot()
	l.PruneOlderThan(5)
	l.append(Number(99), testutil.Nanos(20), testutil.Nanos(0), true)

	// The pre-prune snapshot must still see its original view.
	if len(snap) != 10 {
		t.Fatalf("snapshot length changed to %d", len(snap))
	}
	for i, p := range snap {
		if f, _ := p.Value.Float(); f != float64(i) {
			t.Fatalf("snapshot point %d mutated: %v", i, p.Value)
		}
	}
}

func TestChannelLedger_ConcurrentReadWrite(t *testing.T) {
	l := newChannelLedger("concurrent")
	ref := testutil.Nanos(0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			l.append(Number(float64(i)), testutil.Nanos(float64(i)*0.001), ref, true)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			l.NearestPoint(float64(i)*0.001, 0.01)
			l.PointsInRange(0, 1)
		}
	}()
	wg.Wait()

	if l.Count() != 1000 {
		t.Errorf("expected 1000 points, got %d", l.Count())
	}
}

func TestChannelLedger_Statistics(t *testing.T) {
	l := rampLedger(11)

	stats := l.Statistics()
	if stats.Channel != "test/ramp" {
		t.Errorf("unexpected channel %q", stats.Channel)
	}
	if stats.Count != 11 {
		t.Errorf("expected count 11, got %d", stats.Count)
	}
	testutil.AssertClose(t, stats.TimeSpan, 10, 1e-9)
	testutil.AssertClose(t, stats.Rate, 1.1, 1e-9)

	empty := newChannelLedger("empty")
	stats = empty.Statistics()
	if stats.Count != 0 || stats.Rate != 0 {
		t.Errorf("unexpected empty stats %+v", stats)
	}
}
