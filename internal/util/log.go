// Package util hosts small process-wide helpers shared by every binary.
package util

import (
	"math"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger writing to stdout at the requested level.
// Unknown level strings fall back to info.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

// Component returns a child logger tagged with the owning component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Round4 truncates monetary values to the four decimal places used by every
// persisted price level.
func Round4(v float64) float64 {
	return RoundN(v, 4)
}

// RoundN rounds half away from zero to n decimal places.
func RoundN(v float64, n int) float64 {
	pow := math.Pow(10, float64(n))
	return math.Round(v*pow) / pow
}
