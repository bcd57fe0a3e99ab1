// Package store implements the telemetry store described in spec §4.3: the
// authoritative current snapshot plus the short-term and long-term ring
// buffers and the predicted-peak record, each independently locked.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/telegram"
)

// DefaultShortTermCapacity is S from spec §3/§4.3: one entry per second for
// fifteen minutes.
const DefaultShortTermCapacity = 900

// DefaultLongTermCapacity is L from spec §3: at least 96 quarter-hour
// buckets, one day's worth.
const DefaultLongTermCapacity = 96

// lockPollInterval is how often a bounded-timeout lock acquisition retries
// TryLock/TryRLock while waiting for ctx to expire.
const lockPollInterval = time.Millisecond

// Store holds the current telegram snapshot and its derived ring buffers.
// Every exported accessor acquires only the lock it needs, for the shortest
// span that correctness requires, matching the "independently locked
// aggregate" design of spec §4.3/§5.
type Store struct {
	snapMu  sync.RWMutex
	snap    telegram.Snapshot
	hasSnap bool

	shortMu sync.Mutex
	short   ring[telegram.ShortTermEntry]

	longMu        sync.Mutex
	long          ring[telegram.LongTermEntry]
	longBucket    int64
	longHasBucket bool

	peakMu  sync.RWMutex
	peak    telegram.Peak
	hasPeak bool

	availMu sync.Mutex
	availCh chan struct{}
}

// New returns an empty Store with the given ring capacities.
func New(shortCapacity, longCapacity int) *Store {
	return &Store{
		short:   newRing[telegram.ShortTermEntry](shortCapacity),
		long:    newRing[telegram.LongTermEntry](longCapacity),
		availCh: make(chan struct{}),
	}
}

// Commit publishes a newly parsed snapshot: it replaces the current
// snapshot, appends derived entries to both ring buffers, and signals
// "telegram available" to any waiters. This is the only path that mutates
// the snapshot and the ring buffers (the predicted-peak record is written
// by SetPeak); spec §5 assigns it exclusively to the P1 reader task.
func (s *Store) Commit(snap telegram.Snapshot) {
	s.snapMu.Lock()
	s.snap = snap
	s.hasSnap = true
	s.snapMu.Unlock()

	s.shortMu.Lock()
	s.short.push(telegram.ShortTermEntry{
		Timestamp:         snap.MsgTimestamp,
		CurrentAvgDemand:  snap.CurrentAvgDemand,
		CurrentPowerUsage: snap.CurrentPowerUsage,
	})
	s.shortMu.Unlock()

	entry := telegram.LongTermEntry{
		Timestamp:   snap.MsgTimestamp,
		DeliveredT1: milliScale(snap.ElectricityDeliveredTariff1),
		DeliveredT2: milliScale(snap.ElectricityDeliveredTariff2),
		ReturnedT1:  milliScale(snap.ElectricityReturnedTariff1),
		ReturnedT2:  milliScale(snap.ElectricityReturnedTariff2),
	}
	bucket := telegram.QuarterBucket(snap.MsgTimestamp)
	s.longMu.Lock()
	// Per spec §4.3: advance only when the new bucket is strictly greater
	// than the head's; any other bucket (same, or a clock-resync regression
	// to an earlier one) overwrites the head in place.
	if !s.longHasBucket || bucket > s.longBucket {
		s.long.push(entry)
		s.longBucket = bucket
		s.longHasBucket = true
	} else {
		s.long.updateLast(entry)
	}
	s.longMu.Unlock()

	s.signalTelegramAvailable()
}

func milliScale(v float64) int64 {
	return int64(v * 1000)
}

// signalTelegramAvailable sets the level-triggered "telegram available"
// signal of spec §4.3 by closing the current channel, which wakes every
// waiter blocked on it. The channel stays closed (the signal stays set)
// until a WaitTelegram call consumes it.
func (s *Store) signalTelegramAvailable() {
	s.availMu.Lock()
	defer s.availMu.Unlock()
	select {
	case <-s.availCh:
		// Already set and not yet consumed.
	default:
		close(s.availCh)
	}
}

// WaitTelegram blocks until the "telegram available" signal is set or ctx
// is done. A signal set by a Commit before the call returns at once. On
// return the signal is cleared by installing a fresh channel.
func (s *Store) WaitTelegram(ctx context.Context) error {
	s.availMu.Lock()
	ch := s.availCh
	s.availMu.Unlock()
	select {
	case <-ch:
		s.availMu.Lock()
		if s.availCh == ch {
			s.availCh = make(chan struct{})
		}
		s.availMu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the complete current snapshot and whether one has ever
// been committed. It returns ok=false without blocking past ctx's deadline
// if the snapshot lock cannot be acquired in time.
func (s *Store) Snapshot(ctx context.Context) (telegram.Snapshot, bool) {
	if !tryRLockCtx(ctx, &s.snapMu) {
		return telegram.Snapshot{}, false
	}
	defer s.snapMu.RUnlock()
	return s.snap, s.hasSnap
}

// BasicSnapshot returns the reduced get_snapshot_basic view (spec §4.5).
func (s *Store) BasicSnapshot(ctx context.Context) (telegram.BasicSnapshot, bool) {
	if !tryRLockCtx(ctx, &s.snapMu) {
		return telegram.BasicSnapshot{}, false
	}
	defer s.snapMu.RUnlock()
	return s.snap.Basic(), s.hasSnap
}

// MaxDemandYear returns the current snapshot's max-demand-year entries.
func (s *Store) MaxDemandYear(ctx context.Context) ([]telegram.MaxDemandEntry, bool) {
	if !tryRLockCtx(ctx, &s.snapMu) {
		return nil, false
	}
	defer s.snapMu.RUnlock()
	out := append([]telegram.MaxDemandEntry(nil), s.snap.MaxDemandYearEntries()...)
	return out, true
}

// MaxDemandMonth returns the current snapshot's max-demand-month entry.
func (s *Store) MaxDemandMonth(ctx context.Context) (telegram.MaxDemandEntry, bool) {
	if !tryRLockCtx(ctx, &s.snapMu) {
		return telegram.MaxDemandEntry{}, false
	}
	defer s.snapMu.RUnlock()
	return s.snap.MaxDemandMonth, s.hasSnap
}

// ShortTermHistory returns the short-term ring's entries in chronological
// order.
func (s *Store) ShortTermHistory(ctx context.Context) ([]telegram.ShortTermEntry, bool) {
	if !tryLockCtx(ctx, &s.shortMu) {
		return nil, false
	}
	defer s.shortMu.Unlock()
	return s.short.ordered(), true
}

// LongTermHistory returns the long-term ring's entries in chronological
// order.
func (s *Store) LongTermHistory(ctx context.Context) ([]telegram.LongTermEntry, bool) {
	if !tryLockCtx(ctx, &s.longMu) {
		return nil, false
	}
	defer s.longMu.Unlock()
	return s.long.ordered(), true
}

// SetPeak replaces the predicted-peak record as a whole. Called by the
// predictor only.
func (s *Store) SetPeak(p telegram.Peak) {
	s.peakMu.Lock()
	s.peak = p
	s.hasPeak = true
	s.peakMu.Unlock()
}

// Peak returns the current predicted-peak record.
func (s *Store) Peak(ctx context.Context) (telegram.Peak, bool) {
	if !tryRLockCtx(ctx, &s.peakMu) {
		return telegram.Peak{}, false
	}
	defer s.peakMu.RUnlock()
	return s.peak, s.hasPeak
}

// tryRLockCtx attempts to acquire mu for reading, retrying until it
// succeeds or ctx is done. This is the "bounded-timeout lock acquisition"
// used by read-API handlers (spec §4.5): callers pass a context with a
// deadline and treat a false return as a server-busy condition.
func tryRLockCtx(ctx context.Context, mu *sync.RWMutex) bool {
	for {
		if mu.TryRLock() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(lockPollInterval):
		}
	}
}

func tryLockCtx(ctx context.Context, mu *sync.Mutex) bool {
	for {
		if mu.TryLock() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(lockPollInterval):
		}
	}
}
