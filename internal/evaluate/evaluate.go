// Package evaluate turns multi-timeframe feature snapshots into zero-or-one trade signal.
package evaluate

import (
	"math"
	"time"

	"swingscan-go/internal/model"
	"swingscan-go/internal/signal"
	"swingscan-go/internal/util"
)

const (
	// DefaultThreshold is the minimum model probability for admission.
	DefaultThreshold = 0.97
	// DegradedConfidence is the fixed percentage substituted when no model is loaded.
	DegradedConfidence = 90.0

	minRVol     = 2.0
	minATRRatio = 0.01

	longRSILow   = 55.0
	longRSIHigh  = 80.0
	shortRSILow  = 20.0
	shortRSIHigh = 45.0
)

// tpMultiples are the ATR distances of TP1..TP4 from the entry price.
var tpMultiples = [4]float64{1.5, 2.5, 4.0, 5.0}

// Evaluator applies the static rule gate and the learned confidence gate.
// A nil Scorer means degraded mode: the confidence gate is bypassed and a
// fixed default confidence is stamped on emitted signals.
type Evaluator struct {
	Threshold float64
	Scorer    model.Scorer
}

// New builds an evaluator with the given admission threshold (0 means default).
func New(threshold float64, scorer model.Scorer) Evaluator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Evaluator{Threshold: threshold, Scorer: scorer}
}

// Degraded reports whether the evaluator runs without a loaded model.
func (e Evaluator) Degraded() bool { return e.Scorer == nil }

// Evaluate returns a fully populated signal for the instrument, or nil when
// any gate fails. Insufficient warm-up is a silent skip, never an error.
// The evaluator itself never persists anything.
func (e Evaluator) Evaluate(symbol string, fast, slow signal.FeatureSnapshot, entry float64, now time.Time) *signal.Signal {
	if entry <= 0 || math.IsNaN(entry) {
		return nil
	}
	if !fast.Defined() || math.IsNaN(slow.EmaDiff) {
		return nil
	}

	var direction signal.Direction
	switch {
	case fast.EmaDiff > 0 && slow.EmaDiff > 0:
		direction = signal.Long
	case fast.EmaDiff < 0 && slow.EmaDiff < 0:
		direction = signal.Short
	default:
		return nil
	}

	if fast.RVol < minRVol || fast.ATRRatio < minATRRatio {
		return nil
	}

	if direction == signal.Long {
		if fast.RSI < longRSILow || fast.RSI > longRSIHigh {
			return nil
		}
	} else {
		if fast.RSI < shortRSILow || fast.RSI > shortRSIHigh {
			return nil
		}
	}

	confidence := DegradedConfidence
	if e.Scorer != nil {
		prob := e.Scorer.Score(fast.Vector())
		threshold := e.Threshold
		if threshold <= 0 {
			threshold = DefaultThreshold
		}
		if prob < threshold {
			return nil
		}
		confidence = util.RoundN(prob*100, 2)
	}

	sign := 1.0
	slFactor := 0.985
	if direction == signal.Short {
		sign = -1.0
		slFactor = 1.015
	}
	var tps [4]float64
	for i, m := range tpMultiples {
		tps[i] = util.Round4(entry + sign*m*fast.ATR)
	}

	return &signal.Signal{
		Symbol:      symbol,
		Direction:   direction,
		Entry:       util.Round4(entry),
		TakeProfits: tps,
		StopLoss:    util.Round4(entry * slFactor),
		Confidence:  confidence,
		CreatedAt:   now.Truncate(time.Second),
		EmaDiff:     fast.EmaDiff,
		RSI:         fast.RSI,
		MACDHist:    fast.MACDHist,
		ADX:         fast.ADX,
		ATR:         fast.ATR,
		ATRRatio:    fast.ATRRatio,
		RVol:        fast.RVol,
	}
}
