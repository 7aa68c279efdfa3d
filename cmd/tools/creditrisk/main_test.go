package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk/internal/decisionlog"
)

// ==========================
// Test Helper Functions
// ==========================

// copyTree copies src into a fresh temp dir so tests never touch the shipped files.
func copyTree(t *testing.T, src string) string {
	t.Helper()
	dst := t.TempDir()
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	require.NoError(t, err)
	return dst
}

func createTestBundleDir(t *testing.T) string {
	return copyTree(t, filepath.Join("..", "..", "..", "models"))
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// ==========================
// score
// ==========================

func TestScore_DefaultApplicant(t *testing.T) {
	dir := createTestBundleDir(t)

	out, _, err := run(t, "score", "--bundle-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Loan-to-income ratio:  2.13")
	assert.Contains(t, out, "Default probability:   61.02%")
	assert.Contains(t, out, "Credit score:          534")
	assert.Contains(t, out, "Rating:                Average")
	assert.Contains(t, out, "Model version:         v1")
}

func TestScore_JSONWithExplain(t *testing.T) {
	dir := createTestBundleDir(t)

	out, _, err := run(t, "score", "--bundle-dir", dir, "--json", "--explain", "--open-accounts", "4")
	require.NoError(t, err)

	var report struct {
		Probability  float64 `json:"probability"`
		CreditScore  int     `json:"creditScore"`
		Rating       string  `json:"rating"`
		ModelVersion string  `json:"modelVersion"`
		Features     []struct {
			Column string  `json:"column"`
			Value  float64 `json:"value"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "v1", report.ModelVersion)
	assert.Less(t, report.CreditScore, 534)
	require.Len(t, report.Features, 13)
	assert.Equal(t, "number_of_open_accounts", report.Features[2].Column)
	assert.InDelta(t, (4-2.5)/1.1, report.Features[2].Value, 1e-9)
}

func TestScore_Errors(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		errContains string
	}{
		{
			name:        "out of range",
			args:        []string{"--age", "17"},
			errContains: "INPUT_OUT_OF_RANGE",
		},
		{
			name:        "unknown category",
			args:        []string{"--loan-purpose", "Boat"},
			errContains: "INVALID_CATEGORY",
		},
		{
			name:        "unknown version",
			args:        []string{"--version", "v9"},
			errContains: "MODEL_ARTIFACT_MISSING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := createTestBundleDir(t)
			_, _, err := run(t, append([]string{"score", "--bundle-dir", dir}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

// ==========================
// bundle
// ==========================

func TestBundle_VerifyAndStatus(t *testing.T) {
	dir := createTestBundleDir(t)

	out, _, err := run(t, "bundle", "verify", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "bundle v1 OK (family logistic, 13 features)")
	assert.Contains(t, out, "model.yaml")

	out, _, err = run(t, "bundle", "status", "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "current version: v1 (previous: none)\n", out)
}

func TestBundle_ManifestAndActivate(t *testing.T) {
	dir := createTestBundleDir(t)
	v2 := filepath.Join(dir, "v2")
	require.NoError(t, os.MkdirAll(v2, 0o755))

	spec, err := os.ReadFile(filepath.Join(dir, "v1", "model.yaml"))
	require.NoError(t, err)
	spec = []byte(strings.Replace(string(spec), `version: "v1"`, `version: "v2"`, 1))
	require.NoError(t, os.WriteFile(filepath.Join(v2, "model.yaml"), spec, 0o644))

	_, _, err = run(t, "bundle", "activate", "v2", "--dir", dir)
	require.Error(t, err, "a version without a manifest must not activate")

	out, _, err := run(t, "bundle", "manifest", "v2", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "with 1 files")

	out, _, err = run(t, "bundle", "activate", "v2", "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "current version: v2 (previous: v1)\n", out)

	out, _, err = run(t, "score", "--bundle-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Model version:         v2")
}

func TestBundle_VerifyDetectsTampering(t *testing.T) {
	dir := createTestBundleDir(t)
	path := filepath.Join(dir, "v1", "model.yaml")
	spec, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(spec), "intercept: -2.5", "intercept: -1.5", 1)), 0o644))

	_, _, err = run(t, "bundle", "verify", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MODEL_ARTIFACT_CORRUPT")
}

// ==========================
// registry
// ==========================

func TestRegistry_Validate(t *testing.T) {
	out, _, err := run(t, "registry", "validate", "--path", filepath.Join("..", "..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "OK (1 activities)")
}

func TestRegistry_SetStatus(t *testing.T) {
	dir := copyTree(t, filepath.Join("..", "..", "..", "configs"))
	path := filepath.Join(dir, "activity-registry.json")

	out, _, err := run(t, "registry", "set-status", "--path", path, "--id", "risk.credit.score", "--status", "verified")
	require.NoError(t, err)
	assert.Equal(t, "risk.credit.score: verified\n", out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"implementationStatus": "verified"`)

	_, _, err = run(t, "registry", "set-status", "--path", path, "--id", "risk.credit.score", "--status", "shipped")
	assert.Error(t, err)

	_, _, err = run(t, "registry", "set-status", "--path", path, "--id", "risk.fraud.score", "--status", "planned")
	assert.ErrorContains(t, err, "activity not found")
}

// ==========================
// decision
// ==========================

type stubDecisionReader struct {
	decisions map[uuid.UUID]decisionlog.Decision
}

func (s *stubDecisionReader) Get(_ context.Context, id uuid.UUID) (decisionlog.Decision, error) {
	d, ok := s.decisions[id]
	if !ok {
		return decisionlog.Decision{}, decisionlog.ErrDecisionNotFound
	}
	return d, nil
}

func useDecisionStore(t *testing.T, decisions ...decisionlog.Decision) {
	t.Helper()
	stub := &stubDecisionReader{decisions: map[uuid.UUID]decisionlog.Decision{}}
	for _, d := range decisions {
		stub.decisions[d.ID] = d
	}

	previous := openDecisionStore
	openDecisionStore = func(context.Context, string) (decisionReader, func() error, error) {
		return stub, func() error { return nil }, nil
	}
	t.Cleanup(func() { openDecisionStore = previous })
}

func createTestDecision() decisionlog.Decision {
	return decisionlog.Decision{
		ID:            uuid.MustParse("6f1c2b7a-3d4e-4f5a-9b8c-7d6e5f4a3b2c"),
		ApplicationID: "APP-1001",
		ModelVersion:  "v1",
		Fingerprint:   strings.Repeat("ab", 32),
		Probability:   0.6102,
		CreditScore:   534,
		Rating:        "Average",
		CreatedAt:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDecision_Get(t *testing.T) {
	d := createTestDecision()
	useDecisionStore(t, d)

	out, _, err := run(t, "decision", "get", d.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "APP-1001")
	assert.Contains(t, out, "61.02%")
	assert.Contains(t, out, "534")
	assert.Contains(t, out, "2024-06-01T12:00:00Z")
}

func TestDecision_GetJSON(t *testing.T) {
	d := createTestDecision()
	useDecisionStore(t, d)

	out, _, err := run(t, "decision", "get", "--json", d.ID.String())
	require.NoError(t, err)

	var report decisionReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, d.ID.String(), report.ID)
	assert.Equal(t, "Average", report.Rating)
	assert.Equal(t, 534, report.CreditScore)
	assert.False(t, report.Cached)
}

func TestDecision_GetErrors(t *testing.T) {
	useDecisionStore(t)

	_, _, err := run(t, "decision", "get", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid decision id")

	_, _, err = run(t, "decision", "get", uuid.NewString())
	assert.ErrorIs(t, err, decisionlog.ErrDecisionNotFound)
}
