package scoring

import (
	"fmt"
)

// ScoringResult is the outcome of scoring one applicant.
type ScoringResult struct {
	Probability       float64 `json:"probability"`
	CreditScore       int     `json:"creditScore"`
	Rating            Rating  `json:"rating"`
	LoanToIncomeRatio float64 `json:"loanToIncomeRatio"`
	ModelVersion      string  `json:"modelVersion"`
}

// Components are the trained pieces a pipeline is assembled from.
type Components struct {
	Schema     *Schema
	Scaler     *Scaler
	Model      RiskModel
	Calibrator *Calibrator
	Version    string
}

// Pipeline runs validate, derive, encode, scale, predict, and calibrate in that order.
type Pipeline struct {
	schema     *Schema
	encoder    *Encoder
	scaler     *Scaler
	model      RiskModel
	calibrator *Calibrator
	version    string
}

// NewPipeline checks that every component is present and that the model accepts
// exactly the schema's width.
func NewPipeline(c Components) (*Pipeline, error) {
	switch {
	case c.Schema == nil:
		return nil, fmt.Errorf("%w: schema", ErrModelArtifactMissing)
	case c.Scaler == nil:
		return nil, fmt.Errorf("%w: scaling constants", ErrModelArtifactMissing)
	case c.Model == nil:
		return nil, fmt.Errorf("%w: model", ErrModelArtifactMissing)
	case c.Calibrator == nil:
		return nil, fmt.Errorf("%w: calibration", ErrModelArtifactMissing)
	}
	if w := c.Model.InputWidth(); w != c.Schema.Width() {
		return nil, fmt.Errorf("%w: model expects %d features, schema has %d", ErrModelArtifactCorrupt, w, c.Schema.Width())
	}

	return &Pipeline{
		schema:     c.Schema,
		encoder:    NewEncoder(c.Schema),
		scaler:     c.Scaler,
		model:      c.Model,
		calibrator: c.Calibrator,
		version:    c.Version,
	}, nil
}

// WithCalibrator returns a copy of the pipeline using cal.
func (p *Pipeline) WithCalibrator(cal *Calibrator) *Pipeline {
	cp := *p
	cp.calibrator = cal
	return &cp
}

// Version is the model version the pipeline was built from.
func (p *Pipeline) Version() string { return p.version }

// CacheScope identifies everything besides the profile that determines a result:
// the model version and the calibration.
func (p *Pipeline) CacheScope() string { return p.version + ":" + p.calibrator.ID() }

// ScoreBounds returns the calibrated scale [min, max].
func (p *Pipeline) ScoreBounds() (int, int) {
	return p.calibrator.MinScore(), p.calibrator.MaxScore()
}

// Schema returns the shared column schema.
func (p *Pipeline) Schema() *Schema { return p.schema }

// Calibrator returns the active calibrator.
func (p *Pipeline) Calibrator() *Calibrator { return p.calibrator }

// Score returns the result for profile. Any stage failure aborts with no partial result.
func (p *Pipeline) Score(profile ApplicantProfile) (ScoringResult, error) {
	derived, features, err := p.features(profile)
	if err != nil {
		return ScoringResult{}, err
	}

	probability, err := p.model.Predict(features)
	if err != nil {
		return ScoringResult{}, err
	}
	if !finite(probability) || probability < 0 || probability > 1 {
		return ScoringResult{}, fmt.Errorf("%w: model returned %v", ErrModelOutput, probability)
	}

	score, rating, err := p.calibrator.Calibrate(probability)
	if err != nil {
		return ScoringResult{}, err
	}

	return ScoringResult{
		Probability:       probability,
		CreditScore:       score,
		Rating:            rating,
		LoanToIncomeRatio: derived.LoanToIncomeRatio,
		ModelVersion:      p.version,
	}, nil
}

// FeatureValue is one named model input.
type FeatureValue struct {
	Column string  `json:"column"`
	Value  float64 `json:"value"`
}

// Explain returns the scaled model inputs for profile in schema order.
func (p *Pipeline) Explain(profile ApplicantProfile) ([]FeatureValue, error) {
	_, features, err := p.features(profile)
	if err != nil {
		return nil, err
	}
	out := make([]FeatureValue, len(features))
	for i, col := range p.schema.columns {
		out[i] = FeatureValue{Column: col, Value: features[i]}
	}
	return out, nil
}

func (p *Pipeline) features(profile ApplicantProfile) (DerivedFeatures, FeatureVector, error) {
	if err := profile.Validate(); err != nil {
		return DerivedFeatures{}, nil, err
	}
	derived := Derive(profile)
	v, err := p.encoder.Encode(profile, derived)
	if err != nil {
		return DerivedFeatures{}, nil, err
	}
	return derived, p.scaler.Transform(v), nil
}

// Close releases model resources held outside the Go heap, if any.
func (p *Pipeline) Close() error {
	if c, ok := p.model.(Closer); ok {
		return c.Close()
	}
	return nil
}
