// Package predictor implements the periodic peak predictor of spec §4.4: a
// ticker-driven task that projects the short-term log forward to the end of
// the current quarter-hour using one of two algorithms.
package predictor

import (
	"context"
	"time"

	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/log"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/store"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/telegram"
)

// Method selects the prediction algorithm, loaded once at task start per
// the design note in spec §9 ("re-architect as a two-variant dispatch with
// per-variant parameters").
type Method int

const (
	LinearRegression Method = iota
	WeightedAverage
)

// DefaultInterval is T from spec §4.4.
const DefaultInterval = 5 * time.Second

// Predictor periodically recomputes the predicted-peak record from a
// store's short-term log.
type Predictor struct {
	store    *store.Store
	method   Method
	interval time.Duration
}

// New returns a Predictor reading from s and writing its predictions back
// into s, using the given algorithm and tick interval.
func New(s *store.Store, method Method, interval time.Duration) *Predictor {
	return &Predictor{store: s, method: method, interval: interval}
}

// Run ticks every p.interval until ctx is done. It uses a time.Ticker
// rather than sleep-then-process so a slow cycle never compounds delay
// into the next one — the ticker's channel simply fires on its own
// schedule regardless of how long the previous Tick took.
func (p *Predictor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one prediction cycle. It is exported so callers (and tests) can
// drive the predictor synchronously instead of waiting on the ticker.
func (p *Predictor) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Logger.Error().Interface("panic", r).Msg("predictor tick recovered")
		}
	}()

	entries, ok := p.store.ShortTermHistory(ctx)
	if !ok || len(entries) <= 1 {
		return
	}

	k := AlignmentIndex(entries)
	end := EndOfQuarter(entries[k].Timestamp)

	var value float64
	switch p.method {
	case WeightedAverage:
		value = weightedAverage(entries)
	default:
		value = linearRegression(entries[k:], end)
	}

	p.store.SetPeak(telegram.Peak{Value: value, EndOfQuarter: end})
}

// AlignmentIndex finds the smallest index whose entry falls exactly on a
// quarter-hour boundary (minute%15==0, second==0). It returns 0 if no entry
// qualifies, per spec §4.4 step 3.
func AlignmentIndex(entries []telegram.ShortTermEntry) int {
	for i, e := range entries {
		if e.Timestamp.Second() == 0 && e.Timestamp.Minute()%15 == 0 {
			return i
		}
	}
	return 0
}

// EndOfQuarter returns t with seconds zeroed and minutes rounded up to the
// next multiple of 15, carrying into the hour (and beyond) as needed. Using
// time.Time arithmetic for the carry avoids the manual modular-arithmetic
// bookkeeping spec §4.4 describes at the bit level.
func EndOfQuarter(t time.Time) time.Time {
	hourStart := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	roundedMinutes := ((t.Minute() / 15) + 1) * 15
	return hourStart.Add(time.Duration(roundedMinutes) * time.Minute)
}

// linearRegression implements spec §4.4's least-squares prediction over
// entries (already sliced to start at the alignment index), extrapolated to
// end.
func linearRegression(entries []telegram.ShortTermEntry, end time.Time) float64 {
	n := len(entries)
	if n == 0 {
		return 0
	}
	t0 := entries[0].Timestamp
	last := entries[n-1]

	var sumX, sumXX, sumY, sumXY float64
	for _, e := range entries {
		x := e.Timestamp.Sub(t0).Seconds()
		y := e.CurrentAvgDemand
		sumX += x
		sumXX += x * x
		sumY += y
		sumXY += x * y
	}
	nf := float64(n)
	xbar := sumX / nf
	ybar := sumY / nf

	denom := sumXX - sumX*xbar
	var slope float64
	if denom != 0 {
		slope = (sumXY - sumX*ybar) / denom
	}

	tLast := last.Timestamp.Sub(t0).Seconds()
	tEnd := end.Sub(t0).Seconds()
	return last.CurrentAvgDemand + slope*(tEnd-tLast)
}

// weightedAverage implements spec §4.4's weighted-average prediction over
// the full short-term log, weighting each sample by its offset in seconds
// from the first sample (plus one, so the earliest sample still carries
// nonzero weight); later samples weigh more.
func weightedAverage(entries []telegram.ShortTermEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	t0 := entries[0].Timestamp
	var sumW, sumWP float64
	for _, e := range entries {
		w := e.Timestamp.Sub(t0).Seconds() + 1
		sumW += w
		sumWP += w * e.CurrentPowerUsage
	}
	if sumW == 0 {
		return 0
	}
	return sumWP / sumW
}
