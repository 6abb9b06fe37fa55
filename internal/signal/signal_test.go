package signal

import (
	"math"
	"testing"
	"time"
)

func TestKeyAndSignalTime(t *testing.T) {
	sig := Signal{
		Symbol:    "BTCUSDT",
		CreatedAt: time.Date(2025, 6, 1, 10, 30, 5, 0, time.UTC),
	}
	if got := sig.SignalTime(); got != "2025-06-01 10:30:05" {
		t.Fatalf("SignalTime = %q", got)
	}
	if got := sig.Key(); got != "BTCUSDT|2025-06-01 10:30:05" {
		t.Fatalf("Key = %q", got)
	}
}

func TestDefined(t *testing.T) {
	full := FeatureSnapshot{EmaDiff: 1.2, RSI: 60, MACDHist: 0.1, ADX: 3, ATR: 2, ATRRatio: 0.02, RVol: 2.5}
	if !full.Defined() {
		t.Fatal("fully populated snapshot should be defined")
	}

	warming := full
	warming.EmaDiff = math.NaN()
	if warming.Defined() {
		t.Fatal("snapshot with a NaN feature should not be defined")
	}

	blown := full
	blown.ATRRatio = math.Inf(1)
	if blown.Defined() {
		t.Fatal("snapshot with an infinite feature should not be defined")
	}
}

func TestVectorOrder(t *testing.T) {
	snap := FeatureSnapshot{EmaDiff: 1, RSI: 2, MACDHist: 3, ADX: 4, ATR: 5, ATRRatio: 6, RVol: 7}
	want := [7]float64{1, 2, 3, 4, 5, 6, 7}
	if snap.Vector() != want {
		t.Fatalf("Vector = %v, want %v", snap.Vector(), want)
	}
}

func TestFeaturesRoundTrip(t *testing.T) {
	sig := Signal{EmaDiff: 1, RSI: 2, MACDHist: 3, ADX: 4, ATR: 5, ATRRatio: 6, RVol: 7}
	if sig.Features().Vector() != ([7]float64{1, 2, 3, 4, 5, 6, 7}) {
		t.Fatalf("Features = %+v", sig.Features())
	}
}
