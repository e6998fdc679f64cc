package viz

import (
	"errors"
	"fmt"
	"math"

	"github.com/kass/go-aqi-viz/pkg/models"
)

// ErrInvalidTable is returned when a weight table fails validation
var ErrInvalidTable = errors.New("invalid weight table")

const weightSumTolerance = 1e-9

// Weights are the per-feature scoring coefficients of one style
type Weights struct {
	Color      float64 `json:"color" yaml:"color"`
	Brightness float64 `json:"brightness" yaml:"brightness"`
	Contrast   float64 `json:"contrast" yaml:"contrast"`
}

func (w Weights) sum() float64 {
	return w.Color + w.Brightness + w.Contrast
}

// Info describes a style for display
type Info struct {
	ID       models.Style `json:"id"`
	Name     string       `json:"name"`
	Template string       `json:"template"`
	Weights  Weights      `json:"weights"`
}

var catalogue = map[models.Style]struct{ name, template string }{
	models.StyleAirflow:   {"Air Flow", "air_flow.html"},
	models.StyleWaves:     {"Wave Ripple", "waves.html"},
	models.StyleBlackhole: {"Cosmic Black Hole", "black_hole.html"},
}

// Table maps every style to its weights. The zero value is not usable;
// build one with DefaultTable or NewTable. A Table is never modified after
// construction.
type Table struct {
	weights map[models.Style]Weights
}

// DefaultTable returns the built-in weights
func DefaultTable() Table {
	return Table{weights: map[models.Style]Weights{
		models.StyleAirflow:   {Color: 0.4, Brightness: 0.3, Contrast: 0.3},
		models.StyleWaves:     {Color: 0.5, Brightness: 0.3, Contrast: 0.2},
		models.StyleBlackhole: {Color: 0.3, Brightness: 0.4, Contrast: 0.3},
	}}
}

// NewTable validates and copies weights. Every style must be present, each
// coefficient non-negative and each style's coefficients must sum to 1.
func NewTable(weights map[models.Style]Weights) (Table, error) {
	t := Table{weights: make(map[models.Style]Weights, len(weights))}
	for style, w := range weights {
		if !style.Valid() {
			return Table{}, fmt.Errorf("%w: unknown style %q", ErrInvalidTable, style)
		}
		for _, v := range []float64{w.Color, w.Brightness, w.Contrast} {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return Table{}, fmt.Errorf("%w: %s has an invalid coefficient", ErrInvalidTable, style)
			}
		}
		if math.Abs(w.sum()-1) > weightSumTolerance {
			return Table{}, fmt.Errorf("%w: %s weights sum to %g", ErrInvalidTable, style, w.sum())
		}
		t.weights[style] = w
	}
	for _, style := range models.Styles() {
		if _, ok := t.weights[style]; !ok {
			return Table{}, fmt.Errorf("%w: missing style %q", ErrInvalidTable, style)
		}
	}
	return t, nil
}

// Weights returns the coefficients for style
func (t Table) Weights(style models.Style) Weights {
	return t.weights[style]
}

// Catalogue lists every style with its display name, template and weights
func (t Table) Catalogue() []Info {
	styles := models.Styles()
	out := make([]Info, 0, len(styles))
	for _, s := range styles {
		c := catalogue[s]
		out = append(out, Info{ID: s, Name: c.name, Template: c.template, Weights: t.weights[s]})
	}
	return out
}

// DisplayName returns the human-readable name of style
func DisplayName(style models.Style) string {
	return catalogue[style].name
}

// Template returns the animation template file name for style
func Template(style models.Style) string {
	return catalogue[style].template
}
