package predictor

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/store"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/telegram"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestLinearRegressionPrediction is scenario S4.
func TestLinearRegressionPrediction(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := store.New(store.DefaultShortTermCapacity, store.DefaultLongTermCapacity)

	demands := []float64{1.0, 2.0, 3.0}
	offsets := []time.Duration{0, 60 * time.Second, 120 * time.Second}
	for i, off := range offsets {
		s.Commit(telegram.Snapshot{
			MsgTimestamp:     base.Add(off),
			CurrentAvgDemand: demands[i],
		})
	}

	p := New(s, LinearRegression, DefaultInterval)
	p.Tick(context.Background())

	peak, ok := s.Peak(context.Background())
	if !ok {
		t.Fatal("Peak returned ok=false")
	}
	if !almostEqual(peak.Value, 16.0) {
		t.Errorf("predicted value = %v, want 16.0", peak.Value)
	}
	wantEnd := base.Add(15 * time.Minute)
	if !peak.EndOfQuarter.Equal(wantEnd) {
		t.Errorf("predicted end-of-quarter = %v, want %v", peak.EndOfQuarter, wantEnd)
	}
}

// TestWeightedAveragePrediction is scenario S5.
func TestWeightedAveragePrediction(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := store.New(store.DefaultShortTermCapacity, store.DefaultLongTermCapacity)

	usages := []float64{2.0, 4.0}
	offsets := []time.Duration{0, 30 * time.Second}
	for i, off := range offsets {
		s.Commit(telegram.Snapshot{
			MsgTimestamp:      base.Add(off),
			CurrentPowerUsage: usages[i],
			CurrentAvgDemand:  usages[i],
		})
	}

	p := New(s, WeightedAverage, DefaultInterval)
	p.Tick(context.Background())

	peak, ok := s.Peak(context.Background())
	if !ok {
		t.Fatal("Peak returned ok=false")
	}
	if !almostEqual(peak.Value, 3.9375) {
		t.Errorf("predicted value = %v, want 3.9375", peak.Value)
	}
}

// TestConstantLogYieldsZeroSlope is property 5 (§8): a constant-valued log
// predicts the constant with zero slope.
func TestConstantLogYieldsZeroSlope(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := store.New(store.DefaultShortTermCapacity, store.DefaultLongTermCapacity)
	for i := 0; i < 5; i++ {
		s.Commit(telegram.Snapshot{
			MsgTimestamp:     base.Add(time.Duration(i) * time.Second),
			CurrentAvgDemand: 7.0,
		})
	}
	p := New(s, LinearRegression, DefaultInterval)
	p.Tick(context.Background())

	peak, _ := s.Peak(context.Background())
	if !almostEqual(peak.Value, 7.0) {
		t.Errorf("predicted value = %v, want 7.0 (constant)", peak.Value)
	}
}

// TestPerfectLinearExtrapolation is property 6 (§8).
func TestPerfectLinearExtrapolation(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := store.New(store.DefaultShortTermCapacity, store.DefaultLongTermCapacity)
	for i := 0; i < 10; i++ {
		s.Commit(telegram.Snapshot{
			MsgTimestamp:     base.Add(time.Duration(i) * time.Second),
			CurrentAvgDemand: float64(i) * 0.5,
		})
	}
	p := New(s, LinearRegression, DefaultInterval)
	p.Tick(context.Background())

	peak, _ := s.Peak(context.Background())
	end := EndOfQuarter(base)
	want := (end.Sub(base).Seconds()) * 0.5
	if math.Abs(peak.Value-want) > 1e-6 {
		t.Errorf("predicted value = %v, want %v", peak.Value, want)
	}
}

func TestAlignmentIndexFindsQuarterBoundary(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 45, 0, time.UTC) // not aligned
	entries := []telegram.ShortTermEntry{
		{Timestamp: base},
		{Timestamp: base.Add(15 * time.Second)}, // 10:01:00, minute%15=1, not aligned
		{Timestamp: time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)},
	}
	if k := AlignmentIndex(entries); k != 2 {
		t.Errorf("AlignmentIndex = %d, want 2", k)
	}
}

func TestAlignmentIndexDefaultsToZero(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC)
	entries := []telegram.ShortTermEntry{{Timestamp: base}, {Timestamp: base.Add(time.Second)}}
	if k := AlignmentIndex(entries); k != 0 {
		t.Errorf("AlignmentIndex = %d, want 0", k)
	}
}

func TestEndOfQuarterCarriesHour(t *testing.T) {
	in := time.Date(2024, 3, 1, 10, 50, 30, 0, time.UTC)
	got := EndOfQuarter(in)
	want := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("EndOfQuarter(%v) = %v, want %v", in, got, want)
	}
}

func TestTickSkipsWhenLogTooShort(t *testing.T) {
	s := store.New(store.DefaultShortTermCapacity, store.DefaultLongTermCapacity)
	s.Commit(telegram.Snapshot{MsgTimestamp: time.Now(), CurrentAvgDemand: 1})

	p := New(s, LinearRegression, DefaultInterval)
	p.Tick(context.Background())

	if _, ok := s.Peak(context.Background()); ok {
		t.Error("expected no peak commit with a single-entry log")
	}
}
