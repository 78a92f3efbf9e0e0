package core

import (
	"fmt"
	"math"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
)

// ClampedLinear maps a raw measurement onto [0,1]: 1 at or beyond Best, 0 at or
// beyond Worst, linear in between. Best may be greater or smaller than Worst.
type ClampedLinear struct {
	Best  float64 `koanf:"best" json:"best"`
	Worst float64 `koanf:"worst" json:"worst"`
}

// Normalize is total: NaN maps to 0.
func (c ClampedLinear) Normalize(raw float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}

	lowerIsBetter := c.Best <= c.Worst
	if lowerIsBetter {
		if raw <= c.Best {
			return 1
		}
		if raw >= c.Worst {
			return 0
		}
	} else {
		if raw >= c.Best {
			return 1
		}
		if raw <= c.Worst {
			return 0
		}
	}

	return (c.Worst - raw) / (c.Worst - c.Best)
}

// Score normalizes raw and weights it.
func (c ClampedLinear) Score(name string, raw, weight float64) model.FeatureScore {
	normalized := c.Normalize(raw)
	return model.FeatureScore{
		Name:         name,
		RawValue:     raw,
		Normalized:   normalized,
		Weight:       weight,
		Contribution: normalized * weight,
	}
}

func (c ClampedLinear) validate(name string) error {
	if math.IsNaN(c.Best) || math.IsNaN(c.Worst) || math.IsInf(c.Best, 0) || math.IsInf(c.Worst, 0) {
		return fmt.Errorf("%s thresholds must be finite", name)
	}
	if c.Best == c.Worst {
		return fmt.Errorf("%s thresholds must differ", name)
	}
	return nil
}

// Thresholds holds the normalization of each feature.
type Thresholds struct {
	Cloud ClampedLinear `koanf:"cloud" json:"cloud"` // mean cloud fraction, 0..1
	Slope ClampedLinear `koanf:"slope" json:"slope"` // mean slope, degrees
	Road  ClampedLinear `koanf:"road" json:"road"`   // metres to nearest road
	Grid  ClampedLinear `koanf:"grid" json:"grid"`   // metres to nearest grid asset
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Cloud: ClampedLinear{Best: 0, Worst: 1},
		Slope: ClampedLinear{Best: 5, Worst: 20},
		Road:  ClampedLinear{Best: 200, Worst: 2000},
		Grid:  ClampedLinear{Best: 500, Worst: 5000},
	}
}

func (t Thresholds) Validate() error {
	for name, c := range map[string]ClampedLinear{
		"cloud": t.Cloud,
		"slope": t.Slope,
		"road":  t.Road,
		"grid":  t.Grid,
	} {
		if err := c.validate(name); err != nil {
			return err
		}
	}
	return nil
}
