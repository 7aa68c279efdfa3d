package scoring

import "fmt"

const referenceLevel = -1

type numericSlot struct {
	offset int
	value  func(DerivedFeatures) float64
}

// Encoder lays raw, derived, and one-hot features out in schema order.
type Encoder struct {
	width   int
	numeric []numericSlot
	levels  []levelTable
}

// levelTable maps each level of one attribute to its column offset, or to
// referenceLevel for the omitted level.
type levelTable struct {
	attribute string
	offsets   map[string]int
}

// NewEncoder builds the lookup tables for schema.
func NewEncoder(schema *Schema) *Encoder {
	e := &Encoder{
		width: schema.Width(),
	}

	for i, col := range schema.columns {
		if fn, ok := numericSources[col]; ok {
			e.numeric = append(e.numeric, numericSlot{offset: i, value: fn})
		}
	}

	for _, cat := range schema.categories {
		table := make(map[string]int, len(cat.Levels))
		for _, level := range cat.Levels {
			if level == cat.Reference {
				table[level] = referenceLevel
				continue
			}
			table[level] = schema.index[OneHotColumn(cat.Attribute, level)]
		}
		e.levels = append(e.levels, levelTable{attribute: cat.Attribute, offsets: table})
	}
	return e
}

// Encode returns a fresh vector for p. Unknown categorical values fail with ErrInvalidCategory.
func (e *Encoder) Encode(p ApplicantProfile, d DerivedFeatures) (FeatureVector, error) {
	v := make(FeatureVector, e.width)
	for _, slot := range e.numeric {
		v[slot.offset] = slot.value(d)
	}

	for _, t := range e.levels {
		value := categoricalSources[t.attribute](p)
		offset, ok := t.offsets[value]
		if !ok {
			return nil, fmt.Errorf("%w: %s %q", ErrInvalidCategory, t.attribute, value)
		}
		if offset != referenceLevel {
			v[offset] = 1
		}
	}
	return v, nil
}
