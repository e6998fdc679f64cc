// Package viz picks a visualization style for an image fingerprint
package viz

import (
	"math/rand"
	"sync"
	"time"

	"github.com/kass/go-aqi-viz/pkg/models"
)

// Threshold is the score a style must exceed to be chosen deterministically
const Threshold = 0.5

const (
	dimBrightness    = 0.3
	brightBrightness = 0.7
	highContrast     = 0.5
	highSaturation   = 0.5
	wavesColorFactor = 0.8
)

// Decision is the outcome of one selection
type Decision struct {
	Style    models.Style             `json:"style"`
	Scores   map[models.Style]float64 `json:"scores"`
	Fallback bool                     `json:"fallback"`
}

// Selector scores fingerprints against a weight table. It is safe for
// concurrent use.
type Selector struct {
	table Table

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector returns a selector drawing fallback choices from src
func NewSelector(table Table, src rand.Source) *Selector {
	return &Selector{table: table, rng: rand.New(src)}
}

// NewSeededSelector seeds the fallback source; seed 0 uses the clock
func NewSeededSelector(table Table, seed int64) *Selector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewSelector(table, rand.NewSource(seed))
}

// Table returns the weights in use
func (s *Selector) Table() Table {
	return s.table
}

// Scores computes the accumulated score of every style
func (s *Selector) Scores(fp models.Fingerprint) map[models.Style]float64 {
	scores := make(map[models.Style]float64, 3)
	for _, style := range models.Styles() {
		w := s.table.Weights(style)
		score := 0.0

		if (fp.Brightness < dimBrightness && style == models.StyleBlackhole) ||
			(fp.Brightness > brightBrightness && style == models.StyleAirflow) {
			score += w.Brightness
		}
		if fp.Contrast > highContrast && style == models.StyleWaves {
			score += w.Contrast
		}
		if fp.Saturation > highSaturation {
			switch style {
			case models.StyleAirflow:
				score += w.Color
			case models.StyleWaves:
				score += w.Color * wavesColorFactor
			}
		}

		scores[style] = score
	}
	return scores
}

// Decide picks a style and reports how it was chosen
func (s *Selector) Decide(fp models.Fingerprint) Decision {
	scores := s.Scores(fp)
	styles := models.Styles()

	best := styles[0]
	for _, style := range styles[1:] {
		if scores[style] > scores[best] {
			best = style
		}
	}

	if scores[best] <= Threshold {
		s.mu.Lock()
		i := s.rng.Intn(len(styles))
		s.mu.Unlock()
		return Decision{Style: styles[i], Scores: scores, Fallback: true}
	}
	return Decision{Style: best, Scores: scores}
}

// Select returns the chosen style. It never fails.
func (s *Selector) Select(fp models.Fingerprint) models.Style {
	return s.Decide(fp).Style
}
