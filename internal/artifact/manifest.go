package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"credit-risk/internal/scoring"
)

// ManifestName is the integrity manifest inside every version directory.
const ManifestName = "manifest.json"

// ManifestFile is one file covered by the manifest.
type ManifestFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest mirrors manifest.json.
type Manifest struct {
	Model     string         `json:"model"`
	Version   string         `json:"version"`
	CreatedAt string         `json:"created_at"`
	Files     []ManifestFile `json:"files"`
}

// ReadManifest decodes <dir>/<version>/manifest.json.
func ReadManifest(dir, version string) (*Manifest, error) {
	path := filepath.Join(dir, version, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", scoring.ErrModelArtifactMissing, path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %v", scoring.ErrModelArtifactCorrupt, err)
	}
	if m.Version != version {
		return nil, fmt.Errorf("%w: manifest version mismatch: expected %s got %s", scoring.ErrModelArtifactCorrupt, version, m.Version)
	}
	return &m, nil
}

// Verify checks every file of a bundle version against its manifest. The manifest must
// cover model.yaml.
func Verify(dir, version string) (*Manifest, error) {
	if strings.TrimSpace(dir) == "" || strings.TrimSpace(version) == "" {
		return nil, fmt.Errorf("%w: bundle dir or version missing", scoring.ErrModelArtifactMissing)
	}
	versionDir, err := resolveVersionDir(dir, version)
	if err != nil {
		return nil, err
	}
	m, err := ReadManifest(dir, version)
	if err != nil {
		return nil, err
	}

	coversSpec := false
	for _, f := range m.Files {
		if filepath.ToSlash(filepath.Clean(f.Path)) == SpecFile {
			coversSpec = true
		}
		if err := verifyFile(versionDir, f); err != nil {
			return nil, err
		}
	}
	if !coversSpec {
		return nil, fmt.Errorf("%w: manifest does not cover %s", scoring.ErrModelArtifactCorrupt, SpecFile)
	}
	return m, nil
}

func verifyFile(versionDir string, f ManifestFile) error {
	local, err := resolveBundlePath(versionDir, f.Path)
	if err != nil {
		return err
	}

	info, err := os.Stat(local)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", scoring.ErrModelArtifactMissing, f.Path)
		}
		return fmt.Errorf("stat %s: %w", f.Path, err)
	}
	if f.Size > 0 && info.Size() != f.Size {
		return fmt.Errorf("%w: size mismatch for %s: expected %d got %d", scoring.ErrModelArtifactCorrupt, f.Path, f.Size, info.Size())
	}

	sum, err := fileSHA256(local)
	if err != nil {
		return fmt.Errorf("hash %s: %w", f.Path, err)
	}
	if !strings.EqualFold(sum, f.SHA256) {
		return fmt.Errorf("%w: sha256 mismatch for %s: expected %s got %s", scoring.ErrModelArtifactCorrupt, f.Path, f.SHA256, sum)
	}
	return nil
}

// resolveBundlePath joins rel onto root and refuses paths escaping root.
func resolveBundlePath(root, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: invalid manifest path %q", scoring.ErrModelArtifactCorrupt, rel)
	}
	joined := filepath.Join(root, filepath.FromSlash(rel))
	back, err := filepath.Rel(root, joined)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: manifest path %q escapes bundle", scoring.ErrModelArtifactCorrupt, rel)
	}
	return joined, nil
}

func fileSHA256(path string) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fh.Close()

	h := sha256.New()
	if _, err := io.Copy(h, fh); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteManifest hashes files (relative to <dir>/<version>) and writes manifest.json.
func WriteManifest(dir, version, model string, files []string) (*Manifest, error) {
	versionDir, err := resolveVersionDir(dir, version)
	if err != nil {
		return nil, err
	}
	m := &Manifest{
		Model:     model,
		Version:   version,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, rel := range files {
		local, err := resolveBundlePath(versionDir, rel)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(local)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", rel, err)
		}
		sum, err := fileSHA256(local)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", rel, err)
		}
		m.Files = append(m.Files, ManifestFile{Path: filepath.ToSlash(rel), SHA256: sum, Size: info.Size()})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(versionDir, ManifestName), data); err != nil {
		return nil, err
	}
	return m, nil
}
