package artifact

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"credit-risk/internal/scoring"
)

// SpecFile is the bundle member describing the trained pipeline.
const SpecFile = "model.yaml"

// Model families.
const (
	FamilyLogistic = "logistic"
	FamilyONNX     = "onnx"
)

//go:embed modelspec.schema.json
var specSchema string

var specSchemaLoader = gojsonschema.NewStringLoader(specSchema)

// CategorySpec is one categorical attribute in model.yaml.
type CategorySpec struct {
	Attribute string   `yaml:"attribute"`
	Levels    []string `yaml:"levels"`
	Reference string   `yaml:"reference"`
}

// ScalingConstantSpec is one mean/std pair.
type ScalingConstantSpec struct {
	Mean float64 `yaml:"mean"`
	Std  float64 `yaml:"std"`
}

// ScalingSpec lists the standardised features and their constants.
type ScalingSpec struct {
	Features  []string                       `yaml:"features"`
	Constants map[string]ScalingConstantSpec `yaml:"constants"`
}

// ModelSpec selects the model family and carries its parameters.
type ModelSpec struct {
	Family    string    `yaml:"family"`
	Intercept float64   `yaml:"intercept"`
	Weights   []float64 `yaml:"weights"`
	File      string    `yaml:"file"`
	Input     string    `yaml:"input"`
	Output    string    `yaml:"output"`
}

// Spec mirrors model.yaml.
type Spec struct {
	Version     string              `yaml:"version"`
	Columns     []string            `yaml:"columns"`
	Categories  []CategorySpec      `yaml:"categories"`
	Scaling     ScalingSpec         `yaml:"scaling"`
	Model       ModelSpec           `yaml:"model"`
	Calibration scoring.Calibration `yaml:"calibration"`
}

// ReadSpec decodes and structurally validates model.yaml at path.
func ReadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", scoring.ErrModelArtifactMissing, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseSpec(data)
}

// ParseSpec decodes model.yaml content. Structural problems are reported together
// as ErrModelArtifactCorrupt.
func ParseSpec(data []byte) (*Spec, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", scoring.ErrModelArtifactCorrupt, SpecFile, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s is empty", scoring.ErrModelArtifactMissing, SpecFile)
	}

	result, err := gojsonschema.Validate(specSchemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: validate %s: %v", scoring.ErrModelArtifactCorrupt, SpecFile, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s: %s", scoring.ErrModelArtifactCorrupt, SpecFile, strings.Join(msgs, "; "))
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", scoring.ErrModelArtifactCorrupt, SpecFile, err)
	}
	return &spec, nil
}

// Schema builds the shared column schema.
func (s *Spec) Schema() (*scoring.Schema, error) {
	cats := make([]scoring.Category, len(s.Categories))
	for i, c := range s.Categories {
		cats[i] = scoring.Category{Attribute: c.Attribute, Levels: c.Levels, Reference: c.Reference}
	}
	return scoring.NewSchema(s.Columns, cats)
}

// Scaler builds the scaler for schema.
func (s *Spec) Scaler(schema *scoring.Schema) (*scoring.Scaler, error) {
	constants := make(map[string]scoring.ScalingConstant, len(s.Scaling.Constants))
	for name, c := range s.Scaling.Constants {
		constants[name] = scoring.ScalingConstant{Mean: c.Mean, Std: c.Std}
	}
	return scoring.NewScaler(schema, s.Scaling.Features, constants)
}
