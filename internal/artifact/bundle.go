// Package artifact loads versioned model bundles from disk.
//
// A bundle directory looks like:
//
//	<dir>/state.json               current and previous version
//	<dir>/<version>/manifest.json  sha256 and size of every file
//	<dir>/<version>/model.yaml     schema, scaling constants, model parameters, calibration
//	<dir>/<version>/model.onnx     only for the onnx family
package artifact

import (
	"fmt"
	"path/filepath"

	"credit-risk/internal/scoring"
)

// Options tune how a bundle is opened.
type Options struct {
	// ONNXLibraryPath overrides the onnxruntime shared library location.
	ONNXLibraryPath string
}

// Bundle is a verified, fully constructed model version.
type Bundle struct {
	Dir      string
	Version  string
	Family   string
	Manifest *Manifest
	Pipeline *scoring.Pipeline
}

// ResolveVersion returns version when set, else the current version from state.json.
func ResolveVersion(dir, version string) (string, error) {
	if version != "" {
		return version, nil
	}
	state, err := LoadState(dir)
	if err != nil {
		return "", fmt.Errorf("no version configured: %w", err)
	}
	if state.CurrentVersion == "" {
		return "", fmt.Errorf("%w: state.json names no current version", scoring.ErrModelArtifactMissing)
	}
	return state.CurrentVersion, nil
}

// Load verifies and builds one bundle version. Nothing is returned unless every
// component was built.
func Load(dir, version string, opts Options) (*Bundle, error) {
	version, err := ResolveVersion(dir, version)
	if err != nil {
		return nil, err
	}

	manifest, err := Verify(dir, version)
	if err != nil {
		return nil, err
	}

	versionDir := filepath.Join(dir, version)
	spec, err := ReadSpec(filepath.Join(versionDir, SpecFile))
	if err != nil {
		return nil, err
	}
	if spec.Version != version {
		return nil, fmt.Errorf("%w: %s declares version %s, directory is %s", scoring.ErrModelArtifactCorrupt, SpecFile, spec.Version, version)
	}

	schema, err := spec.Schema()
	if err != nil {
		return nil, err
	}
	scaler, err := spec.Scaler(schema)
	if err != nil {
		return nil, err
	}
	calibrator, err := scoring.NewCalibrator(spec.Calibration)
	if err != nil {
		return nil, err
	}
	model, err := buildModel(versionDir, spec.Model, schema.Width(), opts)
	if err != nil {
		return nil, err
	}

	pipeline, err := scoring.NewPipeline(scoring.Components{
		Schema:     schema,
		Scaler:     scaler,
		Model:      model,
		Calibrator: calibrator,
		Version:    version,
	})
	if err != nil {
		if c, ok := model.(scoring.Closer); ok {
			c.Close()
		}
		return nil, err
	}

	return &Bundle{
		Dir:      dir,
		Version:  version,
		Family:   spec.Model.Family,
		Manifest: manifest,
		Pipeline: pipeline,
	}, nil
}

func buildModel(versionDir string, m ModelSpec, width int, opts Options) (scoring.RiskModel, error) {
	switch m.Family {
	case FamilyLogistic:
		return scoring.NewLogisticModel(m.Intercept, m.Weights)
	case FamilyONNX:
		if m.File == "" {
			return nil, fmt.Errorf("%w: onnx family needs model.file", scoring.ErrModelArtifactCorrupt)
		}
		path, err := resolveBundlePath(versionDir, m.File)
		if err != nil {
			return nil, err
		}
		return LoadONNXModel(path, m.Input, m.Output, width, opts.ONNXLibraryPath)
	default:
		return nil, fmt.Errorf("%w: unknown model family %q", scoring.ErrModelArtifactCorrupt, m.Family)
	}
}

// Close releases model resources.
func (b *Bundle) Close() error {
	if b == nil || b.Pipeline == nil {
		return nil
	}
	return b.Pipeline.Close()
}
