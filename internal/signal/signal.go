// Package signal defines the market data and trade signal types shared across the scanner pipeline.
package signal

import (
	"math"
	"time"
)

// TimeLayout is the wall-clock format used everywhere a signal timestamp is persisted or compared.
const TimeLayout = "2006-01-02 15:04:05"

// Direction labels the side of an emitted trade signal.
type Direction string

const (
	// Long indicates a buy-side signal resolved by price rising to targets.
	Long Direction = "LONG"
	// Short indicates a sell-side signal resolved by price falling to targets.
	Short Direction = "SHORT"
)

// Candle is one immutable OHLCV bar for a fixed interval, ordered ascending by OpenTime.
type Candle struct {
	Symbol   string
	Interval string
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// FeatureSnapshot carries the derived indicator values for one candle.
// Fields are NaN until their warm-up window has elapsed.
type FeatureSnapshot struct {
	EmaDiff  float64
	RSI      float64
	MACDHist float64
	ADX      float64
	ATR      float64
	ATRRatio float64
	RVol     float64
}

// Vector returns the feature tuple in the fixed order the confidence model was trained on.
func (s FeatureSnapshot) Vector() [7]float64 {
	return [7]float64{s.EmaDiff, s.RSI, s.MACDHist, s.ADX, s.ATR, s.ATRRatio, s.RVol}
}

// Defined reports whether every feature value has cleared its warm-up window.
func (s FeatureSnapshot) Defined() bool {
	for _, v := range s.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Signal is a fully populated directional trade signal emitted by the evaluator.
// Feature values at creation time ride along in persisted form so the labeled
// log can feed retraining without recomputing history.
type Signal struct {
	Symbol      string     `json:"symbol"`
	Direction   Direction  `json:"type"`
	Entry       float64    `json:"entry"`
	TakeProfits [4]float64 `json:"tps"`
	StopLoss    float64    `json:"sl"`
	Confidence  float64    `json:"confidence"` // percentage in [0,100]
	CreatedAt   time.Time  `json:"signal_time"`

	EmaDiff  float64 `json:"ema_diff"`
	RSI      float64 `json:"rsi"`
	MACDHist float64 `json:"macd_hist"`
	ADX      float64 `json:"adx"`
	ATR      float64 `json:"atr"`
	ATRRatio float64 `json:"atr_ratio"`
	RVol     float64 `json:"rvol"`
}

// Features reassembles the snapshot captured at creation time.
func (s Signal) Features() FeatureSnapshot {
	return FeatureSnapshot{
		EmaDiff:  s.EmaDiff,
		RSI:      s.RSI,
		MACDHist: s.MACDHist,
		ADX:      s.ADX,
		ATR:      s.ATR,
		ATRRatio: s.ATRRatio,
		RVol:     s.RVol,
	}
}

// Key returns the identity key (symbol, createdAt) used to match active entries to closed rows.
func (s Signal) Key() string {
	return s.Symbol + "|" + s.CreatedAt.Format(TimeLayout)
}

// SignalTime renders CreatedAt in the persisted wall-clock layout.
func (s Signal) SignalTime() string {
	return s.CreatedAt.Format(TimeLayout)
}

// ClosedRecord is a resolved signal with its labeled outcome. Append-only once written.
type ClosedRecord struct {
	Signal   Signal
	Result   int // 1 = take-profit win, 0 = stop-loss
	TPHit    int // 1..4 when Result is 1, 0 otherwise
	ExitedAt time.Time
}
