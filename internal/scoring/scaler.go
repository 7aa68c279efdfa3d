package scoring

import (
	"fmt"
	"math"
	"sort"
)

// ScalingConstant is the mean and standard deviation fitted for one feature.
type ScalingConstant struct {
	Mean float64
	Std  float64
}

type scaleSlot struct {
	offset int
	mean   float64
	std    float64
}

// Scaler standardises a fixed subset of numeric columns.
type Scaler struct {
	slots []scaleSlot
}

// NewScaler binds constants to the named features. Each feature must be a numeric schema
// column with a constant. There is no identity fallback: an empty feature list or a
// missing constant fails with ErrModelArtifactMissing.
func NewScaler(schema *Schema, features []string, constants map[string]ScalingConstant) (*Scaler, error) {
	if len(features) == 0 || len(constants) == 0 {
		return nil, fmt.Errorf("%w: scaling constants are absent", ErrModelArtifactMissing)
	}

	slots := make([]scaleSlot, 0, len(features))
	seen := make(map[string]bool, len(features))
	for _, name := range features {
		if seen[name] {
			return nil, fmt.Errorf("%w: feature %q scaled twice", ErrModelArtifactCorrupt, name)
		}
		seen[name] = true

		if !schema.IsNumeric(name) {
			return nil, fmt.Errorf("%w: scaled feature %q is not a numeric schema column", ErrModelArtifactCorrupt, name)
		}
		c, ok := constants[name]
		if !ok {
			return nil, fmt.Errorf("%w: no scaling constant for %q", ErrModelArtifactMissing, name)
		}
		if math.IsNaN(c.Mean) || math.IsInf(c.Mean, 0) {
			return nil, fmt.Errorf("%w: mean for %q is not finite", ErrModelArtifactCorrupt, name)
		}
		if c.Std <= 0 || math.IsNaN(c.Std) || math.IsInf(c.Std, 0) {
			return nil, fmt.Errorf("%w: std for %q must be positive and finite, got %v", ErrModelArtifactCorrupt, name, c.Std)
		}
		offset, _ := schema.Index(name)
		slots = append(slots, scaleSlot{offset: offset, mean: c.Mean, std: c.Std})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].offset < slots[j].offset })

	return &Scaler{slots: slots}, nil
}

// Transform standardises v in place and returns it.
func (s *Scaler) Transform(v FeatureVector) FeatureVector {
	for _, slot := range s.slots {
		v[slot.offset] = (v[slot.offset] - slot.mean) / slot.std
	}
	return v
}
