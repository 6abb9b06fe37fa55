// Package feature derives per-candle indicator snapshots from OHLCV history.
//
// Compute is a pure function: the same candle sequence always yields the same
// snapshots, values are NaN until their warm-up window has elapsed, and NaN
// inputs propagate instead of panicking.
package feature

import (
	"math"

	"swingscan-go/internal/signal"
)

const (
	emaFastSpan   = 50
	emaSlowSpan   = 200
	rsiPeriod     = 14
	macdFastSpan  = 12
	macdSlowSpan  = 26
	macdSigSpan   = 9
	atrPeriod     = 14
	rvolPeriod    = 20
	adxPeriod     = 14
	macdWarmup    = 26
	emaDiffWarmup = 200
)

// Compute turns an ordered candle sequence into one FeatureSnapshot per candle.
func Compute(candles []signal.Candle) []signal.FeatureSnapshot {
	n := len(candles)
	snapshots := make([]signal.FeatureSnapshot, n)
	if n == 0 {
		return snapshots
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	emaFast := ema(closes, emaFastSpan)
	emaSlow := ema(closes, emaSlowSpan)

	macdFast := ema(closes, macdFastSpan)
	macdSlow := ema(closes, macdSlowSpan)
	macdLine := make([]float64, n)
	for i := range macdLine {
		macdLine[i] = macdFast[i] - macdSlow[i]
	}
	macdSig := ema(macdLine, macdSigSpan)

	rsi := computeRSI(closes)
	atr := computeATR(highs, lows, closes)
	rvol := computeRVol(volumes)
	adx := computeADX(highs, lows)

	for i := 0; i < n; i++ {
		snap := signal.FeatureSnapshot{
			EmaDiff:  math.NaN(),
			RSI:      rsi[i],
			MACDHist: math.NaN(),
			ADX:      adx[i],
			ATR:      atr[i],
			ATRRatio: math.NaN(),
			RVol:     rvol[i],
		}
		if i >= emaDiffWarmup-1 {
			snap.EmaDiff = emaFast[i] - emaSlow[i]
		}
		if i >= macdWarmup-1 {
			snap.MACDHist = macdLine[i] - macdSig[i]
		}
		if !math.IsNaN(atr[i]) && closes[i] != 0 {
			snap.ATRRatio = atr[i] / closes[i]
		}
		snapshots[i] = snap
	}
	return snapshots
}

// ema is the plain recursive exponential moving average with alpha = 2/(span+1),
// seeded from the first value. No adjust-bias correction is applied.
func ema(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// computeRSI uses the rolling-mean gain/loss variant: 14-period simple means of
// positive and negative close deltas. A zero loss denominator leaves the value NaN.
func computeRSI(closes []float64) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if n < 2 {
		return out
	}

	gains := make([]float64, n) // index i holds the delta close[i]-close[i-1]
	losses := make([]float64, n)
	gains[0], losses[0] = math.NaN(), math.NaN()
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if math.IsNaN(delta) {
			// A NaN close must poison the window, not count as a flat tick.
			gains[i], losses[i] = math.NaN(), math.NaN()
			continue
		}
		if delta > 0 {
			gains[i] = delta
		}
		if delta < 0 {
			losses[i] = -delta
		}
	}

	for i := rsiPeriod; i < n; i++ {
		var gainSum, lossSum float64
		defined := true
		for j := i - rsiPeriod + 1; j <= i; j++ {
			if math.IsNaN(gains[j]) || math.IsNaN(losses[j]) {
				defined = false
				break
			}
			gainSum += gains[j]
			lossSum += losses[j]
		}
		if !defined || lossSum == 0 {
			continue
		}
		rs := gainSum / lossSum
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// computeATR is the 14-period rolling mean of true range. The first candle has
// no previous close, so its true range is the plain high-low span.
func computeATR(highs, lows, closes []float64) []float64 {
	n := len(highs)
	out := nanSlice(n)
	if n == 0 {
		return out
	}

	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	rollingMean(tr, atrPeriod, out)
	return out
}

// computeRVol divides the latest volume by its 20-period rolling mean.
func computeRVol(volumes []float64) []float64 {
	n := len(volumes)
	out := nanSlice(n)
	means := nanSlice(n)
	rollingMean(volumes, rvolPeriod, means)
	for i := 0; i < n; i++ {
		if math.IsNaN(means[i]) || means[i] == 0 {
			continue
		}
		out[i] = volumes[i] / means[i]
	}
	return out
}

// computeADX is the documented proxy used by this system: a 14-period rolling
// mean of |ΔHigh - ΔLow|. It is not the standard directional-movement ADX, but
// the same formula feeds both the rule gate and the stored feature vector, so
// the confidence model always sees the value it was trained on.
func computeADX(highs, lows []float64) []float64 {
	n := len(highs)
	out := nanSlice(n)
	if n < 2 {
		return out
	}

	diffs := nanSlice(n)
	for i := 1; i < n; i++ {
		diffs[i] = math.Abs((highs[i] - highs[i-1]) - (lows[i] - lows[i-1]))
	}

	for i := adxPeriod; i < n; i++ {
		var sum float64
		defined := true
		for j := i - adxPeriod + 1; j <= i; j++ {
			if math.IsNaN(diffs[j]) {
				defined = false
				break
			}
			sum += diffs[j]
		}
		if defined {
			out[i] = sum / adxPeriod
		}
	}
	return out
}

// rollingMean fills out[i] with the mean of values[i-period+1..i]; earlier
// indexes and windows containing NaN stay NaN.
func rollingMean(values []float64, period int, out []float64) {
	for i := period - 1; i < len(values); i++ {
		var sum float64
		defined := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				defined = false
				break
			}
			sum += values[j]
		}
		if defined {
			out[i] = sum / float64(period)
		}
	}
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
