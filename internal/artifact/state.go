package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"credit-risk/internal/scoring"
)

// StateName is the file in the bundle root naming the active version.
const StateName = "state.json"

// ErrStateNotFound means the bundle root has no state.json. It also matches
// scoring.ErrModelArtifactMissing.
var ErrStateNotFound = fmt.Errorf("%w: no %s", scoring.ErrModelArtifactMissing, StateName)

// State tracks the active and previous bundle versions.
type State struct {
	CurrentVersion  string `json:"current_version"`
	PreviousVersion string `json:"previous_version,omitempty"`
}

func (s State) normalized() State {
	return State{
		CurrentVersion:  strings.TrimSpace(s.CurrentVersion),
		PreviousVersion: strings.TrimSpace(s.PreviousVersion),
	}
}

// check rejects version names that are not a directory directly under root.
func (s State) check(root string) error {
	for _, v := range []string{s.CurrentVersion, s.PreviousVersion} {
		if v == "" {
			continue
		}
		if _, err := resolveVersionDir(root, v); err != nil {
			return err
		}
	}
	return nil
}

// resolveVersionDir resolves version to its directory under root. A version is a single
// path element.
func resolveVersionDir(root, version string) (string, error) {
	if version == "." || version == ".." || strings.ContainsAny(version, `/\`) {
		return "", fmt.Errorf("%w: version %q is not a directory name", scoring.ErrModelArtifactCorrupt, version)
	}
	return resolveBundlePath(root, version)
}

func bundleRoot(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", fmt.Errorf("%w: bundle dir is empty", scoring.ErrModelArtifactMissing)
	}
	return dir, nil
}

// LoadState reads <dir>/state.json.
func LoadState(dir string) (State, error) {
	root, err := bundleRoot(dir)
	if err != nil {
		return State{}, err
	}

	path := filepath.Join(root, StateName)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return State{}, fmt.Errorf("%w in %s", ErrStateNotFound, root)
	case err != nil:
		return State{}, fmt.Errorf("read %s: %w", path, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("%w: decode %s: %v", scoring.ErrModelArtifactCorrupt, path, err)
	}
	state = state.normalized()
	if err := state.check(root); err != nil {
		return State{}, fmt.Errorf("%s: %w", path, err)
	}
	return state, nil
}

// SaveState replaces <dir>/state.json atomically.
func SaveState(dir string, state State) error {
	root, err := bundleRoot(dir)
	if err != nil {
		return err
	}
	state = state.normalized()
	if err := state.check(root); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", StateName, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}
	return writeFileAtomic(filepath.Join(root, StateName), data)
}

// writeFileAtomic writes data next to path and renames it into place, so readers see
// either the old or the new file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Activate verifies version and makes it current. The old current version becomes
// previous unless version was already current. A running process keeps the bundle it
// started with.
func Activate(dir, version string) (State, error) {
	if _, err := Verify(dir, version); err != nil {
		return State{}, err
	}

	state, err := LoadState(dir)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return State{}, err
	}
	if state.CurrentVersion != version {
		state.PreviousVersion, state.CurrentVersion = state.CurrentVersion, version
	}
	if err := SaveState(dir, state); err != nil {
		return State{}, err
	}
	return state, nil
}
