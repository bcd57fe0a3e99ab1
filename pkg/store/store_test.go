package store

import (
	"context"
	"testing"
	"time"

	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/telegram"
)

func mustSnapshot(t *testing.T, s *Store) telegram.Snapshot {
	t.Helper()
	snap, ok := s.Snapshot(context.Background())
	if !ok {
		t.Fatal("Snapshot returned ok=false")
	}
	return snap
}

func TestCommitPublishesSnapshotAndSignals(t *testing.T) {
	s := New(DefaultShortTermCapacity, DefaultLongTermCapacity)

	if _, ok := s.Snapshot(context.Background()); ok {
		t.Fatal("expected no snapshot before any Commit")
	}

	done := make(chan struct{})
	go func() {
		_ = s.WaitTelegram(context.Background())
		close(done)
	}()

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Commit(telegram.Snapshot{MsgTimestamp: ts, CurrentPowerUsage: 1.5})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitTelegram did not unblock after Commit")
	}

	snap := mustSnapshot(t, s)
	if snap.CurrentPowerUsage != 1.5 {
		t.Errorf("CurrentPowerUsage = %v, want 1.5", snap.CurrentPowerUsage)
	}
}

// TestTwoIdenticalTelegramsSameBucket is scenario S3: two identical
// telegrams, same quarter-hour bucket, back to back. Expect short-term
// count = 2, long-term count = 1.
func TestTwoIdenticalTelegramsSameBucket(t *testing.T) {
	s := New(DefaultShortTermCapacity, DefaultLongTermCapacity)

	ts := time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC)
	snap := telegram.Snapshot{MsgTimestamp: ts, ElectricityDeliveredTariff1: 10}
	s.Commit(snap)
	s.Commit(snap)

	short, ok := s.ShortTermHistory(context.Background())
	if !ok {
		t.Fatal("ShortTermHistory returned ok=false")
	}
	if len(short) != 2 {
		t.Fatalf("short-term count = %d, want 2", len(short))
	}

	long, ok := s.LongTermHistory(context.Background())
	if !ok {
		t.Fatal("LongTermHistory returned ok=false")
	}
	if len(long) != 1 {
		t.Fatalf("long-term count = %d, want 1", len(long))
	}
}

// TestLongTermNewBucketAdvances checks that a telegram landing in a new
// quarter-hour bucket appends rather than overwriting (property 4, §8).
func TestLongTermNewBucketAdvances(t *testing.T) {
	s := New(DefaultShortTermCapacity, DefaultLongTermCapacity)

	t1 := time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC)
	t2 := t1.Add(15 * time.Minute)

	s.Commit(telegram.Snapshot{MsgTimestamp: t1})
	s.Commit(telegram.Snapshot{MsgTimestamp: t2})

	long, _ := s.LongTermHistory(context.Background())
	if len(long) != 2 {
		t.Fatalf("long-term count = %d, want 2", len(long))
	}
	if !long[0].Timestamp.Equal(t1) || !long[1].Timestamp.Equal(t2) {
		t.Fatalf("unexpected long-term ordering: %+v", long)
	}
}

// TestLongTermEarlierBucketOverwritesInPlace covers spec §4.3's "else
// overwrite head in place" branch for a bucket smaller than the current
// head's (e.g. a meter clock resync to an earlier time), not just the
// same-bucket case.
func TestLongTermEarlierBucketOverwritesInPlace(t *testing.T) {
	s := New(DefaultShortTermCapacity, DefaultLongTermCapacity)

	t1 := time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC)
	earlier := t1.Add(-15 * time.Minute)

	s.Commit(telegram.Snapshot{MsgTimestamp: t1, ElectricityDeliveredTariff1: 1})
	s.Commit(telegram.Snapshot{MsgTimestamp: earlier, ElectricityDeliveredTariff1: 2})

	long, _ := s.LongTermHistory(context.Background())
	if len(long) != 1 {
		t.Fatalf("long-term count = %d, want 1 (regressed bucket must overwrite, not advance)", len(long))
	}
	if !long[0].Timestamp.Equal(earlier) {
		t.Fatalf("long-term head timestamp = %v, want %v", long[0].Timestamp, earlier)
	}
}

func TestShortTermRingSaturatesAtCapacity(t *testing.T) {
	s := New(3, DefaultLongTermCapacity)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Commit(telegram.Snapshot{MsgTimestamp: base.Add(time.Duration(i) * time.Second), CurrentPowerUsage: float64(i)})
	}
	short, _ := s.ShortTermHistory(context.Background())
	if len(short) != 3 {
		t.Fatalf("short-term count = %d, want 3 (saturated)", len(short))
	}
	// The oldest two entries (i=0,1) should have been evicted; chronological
	// order must be preserved.
	want := []float64{2, 3, 4}
	for i, e := range short {
		if e.CurrentPowerUsage != want[i] {
			t.Errorf("short[%d].CurrentPowerUsage = %v, want %v", i, e.CurrentPowerUsage, want[i])
		}
	}
}

// TestEmptyHistoryAtStartup is scenario S6: history reads immediately after
// construction return empty, non-error results.
func TestEmptyHistoryAtStartup(t *testing.T) {
	s := New(DefaultShortTermCapacity, DefaultLongTermCapacity)

	short, ok := s.ShortTermHistory(context.Background())
	if !ok || len(short) != 0 {
		t.Errorf("ShortTermHistory = %v, %v; want empty, true", short, ok)
	}
	long, ok := s.LongTermHistory(context.Background())
	if !ok || len(long) != 0 {
		t.Errorf("LongTermHistory = %v, %v; want empty, true", long, ok)
	}
	yearEntries, ok := s.MaxDemandYear(context.Background())
	if !ok || len(yearEntries) != 0 {
		t.Errorf("MaxDemandYear = %v, %v; want empty, true", yearEntries, ok)
	}
}

func TestSnapshotTimesOutWhenLockHeld(t *testing.T) {
	s := New(DefaultShortTermCapacity, DefaultLongTermCapacity)
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, ok := s.Snapshot(ctx); ok {
		t.Fatal("expected Snapshot to time out while the lock is held")
	}
}
