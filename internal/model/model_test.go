package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestScoreSigmoid(t *testing.T) {
	m := &LogisticModel{Intercept: 0}
	if got := m.Score([FeatureCount]float64{}); got != 0.5 {
		t.Fatalf("expected 0.5 for zero weights, got %v", got)
	}

	m = &LogisticModel{Weights: [FeatureCount]float64{1, 0, 0, 0, 0, 0, 0}}
	low := m.Score([FeatureCount]float64{-10})
	high := m.Score([FeatureCount]float64{10})
	if low > 0.01 || high < 0.99 {
		t.Fatalf("expected near 0 and near 1, got %v and %v", low, high)
	}
}

func TestScoreStandardized(t *testing.T) {
	means := [FeatureCount]float64{5}
	scales := [FeatureCount]float64{2, 1, 1, 1, 1, 1, 1}
	m := &LogisticModel{
		Weights: [FeatureCount]float64{3},
		Means:   &means,
		Scales:  &scales,
	}
	// (5-5)/2 = 0 regardless of the weight.
	if got := m.Score([FeatureCount]float64{5}); got != 0.5 {
		t.Fatalf("expected 0.5 at the mean, got %v", got)
	}
	if got := m.Score([FeatureCount]float64{7}); got <= 0.5 {
		t.Fatalf("expected above-mean value to score above 0.5, got %v", got)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	payload := `{"intercept": -1.5, "weights": [0.2, 0.1, 0, 0, 0, 0, 0.4]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if m.Intercept != -1.5 || m.Weights[6] != 0.4 {
		t.Fatalf("unexpected model: %+v", m)
	}
}

func TestLoadMissingIsModelUnavailable(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestLoadCorruptIsModelUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	_, err := Load(path)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestLoadRejectsZeroScale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	payload := `{"intercept": 0, "weights": [0,0,0,0,0,0,0], "scales": [1,1,1,0,1,1,1]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	_, err := Load(path)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable for zero scale, got %v", err)
	}
}
