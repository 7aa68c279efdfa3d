// Package scoring turns an applicant profile into a default probability, a bounded
// credit score, and a rating tier.
//
// Every stage is a pure function of its input plus constants fixed at construction.
// A Pipeline is safe for concurrent use once built.
package scoring

import "errors"

var (
	// ErrInputOutOfRange reports a raw attribute outside its declared domain.
	ErrInputOutOfRange = errors.New("INPUT_OUT_OF_RANGE")
	// ErrInvalidCategory reports a categorical value outside its closed set.
	ErrInvalidCategory = errors.New("INVALID_CATEGORY")
	// ErrModelArtifactMissing reports absent model, scaling, or calibration constants.
	ErrModelArtifactMissing = errors.New("MODEL_ARTIFACT_MISSING")
	// ErrModelArtifactCorrupt reports constants that are present but unusable.
	ErrModelArtifactCorrupt = errors.New("MODEL_ARTIFACT_CORRUPT")
	// ErrModelOutput reports a model that returned something other than a probability.
	ErrModelOutput = errors.New("MODEL_OUTPUT_INVALID")
)
