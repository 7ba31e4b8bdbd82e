// Package scorer computes similarity between extracted materials and
// supplier BOM items.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bom-matcher/internal/config"
)

// DefaultWeights returns the standard signal weights. Weights sum to 1.
func DefaultWeights() config.WeightsConfig {
	return config.WeightsConfig{
		Name:       0.5,
		PartNumber: 0.3,
		Vendor:     0.1,
		Unit:       0.1,
	}
}

// WeightSum returns the sum of all signal weights.
func WeightSum(w config.WeightsConfig) float64 {
	return w.Name + w.PartNumber + w.Vendor + w.Unit
}

// ValidateWeights checks that weights are usable. They need not sum to 1;
// scores are normalized by the sum.
func ValidateWeights(w config.WeightsConfig) error {
	var errs []string

	weights := map[string]float64{
		"name":        w.Name,
		"part_number": w.PartNumber,
		"vendor":      w.Vendor,
		"unit":        w.Unit,
	}
	for _, name := range []string{"name", "part_number", "vendor", "unit"} {
		v := weights[name]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Sprintf("%s weight must be a finite value >= 0", name))
		}
	}

	if len(errs) == 0 && WeightSum(w) <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: weights validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
