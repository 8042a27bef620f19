package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/feedtriage/triage/internal/model"
)

func entry(msg, producer string) model.LogEntry {
	return model.LogEntry{Timestamp: time.Now(), Message: msg, Producer: producer}
}

func TestPushAssignsMonotoneUniqueSeq(t *testing.T) {
	s := New(100, 0)
	seen := make(map[uint64]bool)
	var prev uint64
	for i := 0; i < 1000; i++ {
		seq := s.Push(entry(fmt.Sprintf("line %d", i), "p"))
		if i > 0 && seq <= prev {
			t.Fatalf("seq %d not greater than previous %d", seq, prev)
		}
		if seen[seq] {
			t.Fatalf("duplicate seq %d", seq)
		}
		seen[seq] = true
		prev = seq
	}
}

func TestEvictionAtCapacity(t *testing.T) {
	s := New(3, 0)
	for _, msg := range []string{"a", "b", "c", "d"} {
		s.Push(entry(msg, "p"))
	}
	if got := s.Len(); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}
	if _, ok := s.Get(0); ok {
		t.Fatal("seq 0 should have been evicted")
	}
	e, ok := s.Get(3)
	if !ok || e.Message != "d" {
		t.Fatalf("get(3) = %+v, %v; want \"d\" entry", e, ok)
	}
	minSeq, nextSeq := s.Bounds()
	if minSeq != 1 {
		t.Errorf("minSeq = %d, want 1", minSeq)
	}
	if nextSeq != 4 {
		t.Errorf("nextSeq = %d, want 4", nextSeq)
	}
}

func TestEvictedEntriesAreOldest(t *testing.T) {
	s := New(5, 0)
	for i := 0; i < 12; i++ {
		s.Push(entry(fmt.Sprintf("%d", i), "p"))
	}
	for seq := uint64(0); seq < 7; seq++ {
		if _, ok := s.Get(seq); ok {
			t.Errorf("seq %d should be evicted", seq)
		}
	}
	for seq := uint64(7); seq < 12; seq++ {
		if _, ok := s.Get(seq); !ok {
			t.Errorf("seq %d should be resident", seq)
		}
	}
}

func TestGetBeyondNextSeqIsAbsent(t *testing.T) {
	s := New(10, 0)
	s.Push(entry("a", "p"))
	if _, ok := s.Get(5); ok {
		t.Fatal("get of future seq should be absent")
	}
}

func TestRangeFromGreaterOrEqualToYieldsNothing(t *testing.T) {
	s := New(10, 0)
	for i := 0; i < 5; i++ {
		s.Push(entry("x", "p"))
	}
	var got []model.LogEntry
	s.Range(3, 3, Filter{}, func(e model.LogEntry) bool {
		got = append(got, e)
		return true
	})
	if len(got) != 0 {
		t.Fatalf("range(3,3) yielded %d entries, want 0", len(got))
	}
	s.Range(4, 1, Filter{}, func(e model.LogEntry) bool {
		got = append(got, e)
		return true
	})
	if len(got) != 0 {
		t.Fatalf("range(4,1) yielded %d entries, want 0", len(got))
	}
}

func TestRangeClampsToResidentWindow(t *testing.T) {
	s := New(3, 0)
	for i := 0; i < 5; i++ {
		s.Push(entry(fmt.Sprintf("%d", i), "p"))
	}
	var seqs []uint64
	s.Range(0, 100, Filter{}, func(e model.LogEntry) bool {
		seqs = append(seqs, e.Seq)
		return true
	})
	want := []uint64{2, 3, 4}
	if len(seqs) != len(want) {
		t.Fatalf("seqs = %v, want %v", seqs, want)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("seqs = %v, want %v", seqs, want)
		}
	}
}

func TestRangeStopsOnFalse(t *testing.T) {
	s := New(10, 0)
	for i := 0; i < 5; i++ {
		s.Push(entry("x", "p"))
	}
	count := 0
	s.Range(0, 5, Filter{}, func(e model.LogEntry) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestProducerFilterPreservesOrder(t *testing.T) {
	s := New(100, 0)
	s.Push(entry("a1", "a"))
	s.Push(entry("b1", "b"))
	s.Push(entry("a2", "a"))
	s.Push(entry("b2", "b"))
	s.Push(entry("a3", "a"))

	var msgs []string
	s.Range(0, 5, Filter{Producers: ProducerSet("a")}, func(e model.LogEntry) bool {
		msgs = append(msgs, e.Message)
		return true
	})
	want := []string{"a1", "a2", "a3"}
	for i, w := range want {
		if i >= len(msgs) || msgs[i] != w {
			t.Fatalf("msgs = %v, want %v", msgs, want)
		}
	}
}

func TestLevelFilterIsMembership(t *testing.T) {
	s := New(100, 0)
	levels := []model.Level{model.LevelInfo, model.LevelError, model.LevelWarn, model.LevelFatal}
	for _, l := range levels {
		e := entry(l.String(), "p")
		e.Level = l
		s.Push(e)
	}
	filter := Filter{Levels: LevelSet(model.LevelError, model.LevelFatal)}
	var got []model.Level
	s.Range(0, 4, filter, func(e model.LogEntry) bool {
		got = append(got, e.Level)
		return true
	})
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 entries", got)
	}
}

func TestProducersReflectsCurrentWindow(t *testing.T) {
	s := New(2, 0)
	s.Push(entry("1", "a"))
	s.Push(entry("2", "b"))
	s.Push(entry("3", "c")) // evicts "a"

	producers := s.Producers()
	if len(producers) != 2 {
		t.Fatalf("producers = %v, want 2 entries", producers)
	}
	for _, p := range producers {
		if p == "a" {
			t.Fatalf("evicted producer %q should not be reported", p)
		}
	}
}

func TestLatestReturnsOldestFirst(t *testing.T) {
	s := New(100, 0)
	for i := 0; i < 5; i++ {
		s.Push(entry(fmt.Sprintf("%d", i), "p"))
	}
	got := s.Latest(3, Filter{})
	want := []string{"2", "3", "4"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Message != w {
			t.Fatalf("got[%d] = %q, want %q", i, got[i].Message, w)
		}
	}
}

func TestConcurrentPushAndRead(t *testing.T) {
	s := New(1000, 0)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			s.Push(entry(fmt.Sprintf("%d", i), "writer"))
		}
		close(stop)
	}()

	for r := 0; r < 5; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_, next := s.Bounds()
					if next > 0 {
						s.Get(next - 1)
					}
					s.Range(0, next, Filter{}, func(model.LogEntry) bool { return true })
				}
			}
		}()
	}
	wg.Wait()
}

func TestSubscribeDeliversSeqInOrder(t *testing.T) {
	s := New(100, 4)
	_, sub := s.Subscribe()
	defer sub.Close()

	for i := 0; i < 3; i++ {
		s.Push(entry(fmt.Sprintf("%d", i), "p"))
	}

	for want := uint64(0); want < 3; want++ {
		n, ok := sub.Recv()
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		if n.Lagged {
			t.Fatalf("unexpected lag signal at seq %d", want)
		}
		if n.Seq != want {
			t.Fatalf("got seq %d, want %d", n.Seq, want)
		}
	}
}

func TestLagRecoveryAfterOverflow(t *testing.T) {
	s := New(1000, 4)
	_, sub := s.Subscribe()
	defer sub.Close()

	for i := 0; i < 10; i++ {
		s.Push(entry(fmt.Sprintf("%d", i), "p"))
	}

	var sawLag bool
	for i := 0; i < 20; i++ {
		n, ok := sub.Recv()
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		if n.Lagged {
			sawLag = true
			break
		}
	}
	if !sawLag {
		t.Fatal("expected a lag signal after overflowing the broadcast channel")
	}

	minSeq, nextSeq := s.Bounds()
	if minSeq != 0 || nextSeq != 10 {
		t.Fatalf("store bounds = [%d,%d), want [0,10) — no data should be lost", minSeq, nextSeq)
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	s := New(100, 0)
	_, sub := s.Subscribe()
	sub.Close()
	s.Push(entry("x", "p"))
	if _, ok := sub.Recv(); ok {
		t.Fatal("closed subscription should not deliver further notifications")
	}
}
