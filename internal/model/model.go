// Package model loads the exported confidence classifier and scores feature vectors.
//
// Training happens elsewhere; this package only consumes the weights file the
// trainer exports. A missing or unreadable file is a valid state: callers run
// in degraded mode with a fixed default confidence instead of failing.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// ErrModelUnavailable reports that no usable classifier could be loaded.
var ErrModelUnavailable = errors.New("confidence model unavailable")

// FeatureCount is the width of the vector the classifier expects:
// [emaDiff, rsi, macdHist, adx, atr, atrRatio, rvol].
const FeatureCount = 7

// Scorer maps a feature vector to a probability in [0,1].
type Scorer interface {
	Score(vector [FeatureCount]float64) float64
}

// LogisticModel is a standardized logistic regression: features are scaled by
// the training means/deviations, then passed through weights and a sigmoid.
type LogisticModel struct {
	Intercept float64                `json:"intercept"`
	Weights   [FeatureCount]float64  `json:"weights"`
	Means     *[FeatureCount]float64 `json:"means,omitempty"`
	Scales    *[FeatureCount]float64 `json:"scales,omitempty"`
}

// Load reads classifier weights from a JSON file. Any failure wraps
// ErrModelUnavailable so callers can switch to degraded mode with errors.Is.
func Load(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrModelUnavailable, path, err)
	}
	var m LogisticModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrModelUnavailable, path, err)
	}
	if m.Scales != nil {
		for i, s := range m.Scales {
			if s == 0 {
				return nil, fmt.Errorf("%w: zero scale at feature %d", ErrModelUnavailable, i)
			}
		}
	}
	return &m, nil
}

// Score returns the positive-class probability for the feature vector.
func (m *LogisticModel) Score(vector [FeatureCount]float64) float64 {
	z := m.Intercept
	for i, v := range vector {
		if m.Means != nil {
			v -= m.Means[i]
		}
		if m.Scales != nil {
			v /= m.Scales[i]
		}
		z += m.Weights[i] * v
	}
	return 1 / (1 + math.Exp(-z))
}
