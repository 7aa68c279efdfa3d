package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"credit-risk/internal/scoring"
)

// Default tensor names for exported classifiers.
const (
	DefaultONNXInput  = "features"
	DefaultONNXOutput = "probability"
)

// ErrModelClosed is returned by Predict after Close.
var ErrModelClosed = errors.New("model session closed")

// ONNXModel runs an exported classifier through onnxruntime. The graph takes one float32
// tensor [1, width] and yields one float32 tensor [1, 1] holding P(default).
type ONNXModel struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	width   int

	mu sync.Mutex
}

// LoadONNXModel opens modelPath with preallocated tensors. libPath overrides the
// onnxruntime shared library lookup.
func LoadONNXModel(modelPath, inputName, outputName string, width int, libPath string) (*ONNXModel, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: onnx input width %d", scoring.ErrModelArtifactCorrupt, width)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: onnx model at %s: %v", scoring.ErrModelArtifactMissing, modelPath, err)
	}
	if inputName == "" {
		inputName = DefaultONNXInput
	}
	if outputName == "" {
		outputName = DefaultONNXOutput
	}

	if err := initRuntime(libPath, filepath.Dir(modelPath)); err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(width)))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("%w: create onnx session: %v", scoring.ErrModelArtifactCorrupt, err)
	}

	return &ONNXModel{
		session: session,
		input:   input,
		output:  output,
		width:   width,
	}, nil
}

func initRuntime(libPath, bundleDir string) error {
	path := resolveSharedLibraryPath(libPath, bundleDir)
	if path == "" {
		return fmt.Errorf("%w: onnxruntime shared library not found; set model.onnx_library_path or ONNXRUNTIME_SHARED_LIBRARY_PATH", scoring.ErrModelArtifactMissing)
	}
	if ort.IsInitialized() {
		return nil
	}
	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// resolveSharedLibraryPath prefers the configured path, then the environment, then
// common install locations.
func resolveSharedLibraryPath(configured, bundleDir string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		bundleDir,
		filepath.Join(bundleDir, "lib"),
		"/usr/local/lib",
		"/usr/lib",
		"/opt/homebrew/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

// InputWidth is the fixed input tensor width.
func (m *ONNXModel) InputWidth() int {
	return m.width
}

// Predict runs the session. Calls are serialised because the tensors are shared.
func (m *ONNXModel) Predict(features scoring.FeatureVector) (float64, error) {
	if len(features) != m.width {
		return 0, fmt.Errorf("%w: expected %d features, got %d", scoring.ErrModelArtifactCorrupt, m.width, len(features))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return 0, ErrModelClosed
	}
	in := m.input.GetData()
	for i, x := range features {
		in[i] = float32(x)
	}
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("onnx run: %w", err)
	}

	out := m.output.GetData()
	if len(out) != 1 {
		return 0, fmt.Errorf("%w: onnx output has %d values", scoring.ErrModelOutput, len(out))
	}
	return float64(out[0]), nil
}

// Close destroys the session and its tensors.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	if e := m.input.Destroy(); err == nil {
		err = e
	}
	if e := m.output.Destroy(); err == nil {
		err = e
	}
	m.session = nil
	return err
}
