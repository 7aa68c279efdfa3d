package scoring

import (
	"fmt"
	"sort"
)

// Numeric column names a schema may reference.
const (
	ColumnAge                    = "age"
	ColumnIncome                 = "income"
	ColumnLoanAmount             = "loan_amount"
	ColumnLoanTenureMonths       = "loan_tenure_months"
	ColumnAvgDPDPerDelinquency   = "avg_dpd_per_delinquency"
	ColumnDelinquencyRatio       = "delinquency_ratio"
	ColumnCreditUtilizationRatio = "credit_utilization_ratio"
	ColumnNumberOfOpenAccounts   = "number_of_open_accounts"
	ColumnLoanToIncome           = "loan_to_income"
)

// Categorical attribute names.
const (
	AttributeResidenceType = "residence_type"
	AttributeLoanPurpose   = "loan_purpose"
	AttributeLoanType      = "loan_type"
)

// categoricalSources is the fixed set of nominal attributes a profile carries.
var categoricalSources = map[string]func(ApplicantProfile) string{
	AttributeResidenceType: func(p ApplicantProfile) string { return string(p.ResidenceType) },
	AttributeLoanPurpose:   func(p ApplicantProfile) string { return string(p.LoanPurpose) },
	AttributeLoanType:      func(p ApplicantProfile) string { return string(p.LoanType) },
}

// Category declares the closed set of levels of one nominal attribute and the level left
// out of the one-hot encoding.
type Category struct {
	Attribute string
	Levels    []string
	Reference string
}

// FeatureVector is a model input in schema column order.
type FeatureVector []float64

// Schema pins the column order shared by the encoder, the scaler, and the model.
type Schema struct {
	columns    []string
	categories []Category
	index      map[string]int
}

// OneHotColumn names the indicator column for level of attribute.
func OneHotColumn(attribute, level string) string {
	return attribute + "_" + level
}

// NewSchema validates that columns are exactly the referenced numeric columns plus one
// indicator per non-reference level of every category.
func NewSchema(columns []string, categories []Category) (*Schema, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: schema has no columns", ErrModelArtifactMissing)
	}

	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("%w: duplicate schema column %q", ErrModelArtifactCorrupt, c)
		}
		index[c] = i
	}

	oneHot := make(map[string]bool)
	declared := make(map[string]bool, len(categories))
	for _, cat := range categories {
		if _, ok := categoricalSources[cat.Attribute]; !ok {
			return nil, fmt.Errorf("%w: unknown categorical attribute %q", ErrModelArtifactCorrupt, cat.Attribute)
		}
		if declared[cat.Attribute] {
			return nil, fmt.Errorf("%w: attribute %q declared twice", ErrModelArtifactCorrupt, cat.Attribute)
		}
		declared[cat.Attribute] = true

		if len(cat.Levels) < 2 {
			return nil, fmt.Errorf("%w: attribute %q needs at least two levels", ErrModelArtifactCorrupt, cat.Attribute)
		}
		seen := make(map[string]bool, len(cat.Levels))
		hasReference := false
		for _, level := range cat.Levels {
			if level == "" || seen[level] {
				return nil, fmt.Errorf("%w: attribute %q has empty or duplicate level %q", ErrModelArtifactCorrupt, cat.Attribute, level)
			}
			seen[level] = true
			if level == cat.Reference {
				hasReference = true
				continue
			}
			col := OneHotColumn(cat.Attribute, level)
			if _, ok := index[col]; !ok {
				return nil, fmt.Errorf("%w: schema is missing indicator column %q", ErrModelArtifactCorrupt, col)
			}
			oneHot[col] = true
		}
		if !hasReference {
			return nil, fmt.Errorf("%w: reference level %q is not a level of %q", ErrModelArtifactCorrupt, cat.Reference, cat.Attribute)
		}
	}
	for attr := range categoricalSources {
		if !declared[attr] {
			return nil, fmt.Errorf("%w: categorical attribute %q is not declared", ErrModelArtifactMissing, attr)
		}
	}

	for _, c := range columns {
		if _, ok := numericSources[c]; ok {
			continue
		}
		if !oneHot[c] {
			return nil, fmt.Errorf("%w: schema column %q has no source", ErrModelArtifactCorrupt, c)
		}
	}

	cats := make([]Category, len(categories))
	for i, cat := range categories {
		cats[i] = Category{
			Attribute: cat.Attribute,
			Levels:    append([]string(nil), cat.Levels...),
			Reference: cat.Reference,
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Attribute < cats[j].Attribute })

	return &Schema{
		columns:    append([]string(nil), columns...),
		categories: cats,
		index:      index,
	}, nil
}

// Width is the number of columns.
func (s *Schema) Width() int {
	return len(s.columns)
}

// Columns returns a copy of the ordered column names.
func (s *Schema) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Index returns the offset of column.
func (s *Schema) Index(column string) (int, bool) {
	i, ok := s.index[column]
	return i, ok
}

// IsNumeric reports whether column carries a raw or derived numeric value.
func (s *Schema) IsNumeric(column string) bool {
	_, inSchema := s.index[column]
	_, numeric := numericSources[column]
	return inSchema && numeric
}

// Categories returns the declared categories sorted by attribute.
func (s *Schema) Categories() []Category {
	out := make([]Category, len(s.categories))
	copy(out, s.categories)
	return out
}
