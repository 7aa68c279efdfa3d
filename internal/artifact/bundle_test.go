package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk/internal/scoring"
)

// ==========================
// Test Helper Functions
// ==========================

const testSpecYAML = `version: "v1"
columns:
  - age
  - loan_tenure_months
  - number_of_open_accounts
  - credit_utilization_ratio
  - loan_to_income
  - delinquency_ratio
  - avg_dpd_per_delinquency
  - residence_type_Owned
  - residence_type_Rented
  - loan_purpose_Education
  - loan_purpose_Home
  - loan_purpose_Personal
  - loan_type_Unsecured
categories:
  - attribute: residence_type
    levels: [Owned, Rented, Mortgage]
    reference: Mortgage
  - attribute: loan_purpose
    levels: [Education, Home, Auto, Personal]
    reference: Auto
  - attribute: loan_type
    levels: [Unsecured, Secured]
    reference: Secured
scaling:
  features:
    - age
    - loan_tenure_months
    - number_of_open_accounts
    - credit_utilization_ratio
    - loan_to_income
    - delinquency_ratio
    - avg_dpd_per_delinquency
  constants:
    age: {mean: 39, std: 9}
    loan_tenure_months: {mean: 38, std: 20}
    number_of_open_accounts: {mean: 2.5, std: 1.1}
    credit_utilization_ratio: {mean: 40, std: 25}
    loan_to_income: {mean: 2, std: 1.5}
    delinquency_ratio: {mean: 15, std: 12}
    avg_dpd_per_delinquency: {mean: 10, std: 8}
model:
  family: logistic
  intercept: -2.5
  weights: [-0.5, 0.3, 0.4, 0.6, 1.0, 1.2, 0.8, -0.3, 0.2, -0.1, -0.2, 0.1, 0.4]
calibration:
  base_score: 300
  score_range: 600
  tiers:
    - {rating: Poor, min_score: 300}
    - {rating: Average, min_score: 500}
    - {rating: Good, min_score: 650}
    - {rating: Excellent, min_score: 750}
`

// writeTestBundle writes a verified bundle version and makes it current.
func writeTestBundle(t *testing.T, dir, version, spec string) {
	t.Helper()
	spec = strings.Replace(spec, `version: "v1"`, `version: "`+version+`"`, 1)

	versionDir := filepath.Join(dir, version)
	require.NoError(t, os.MkdirAll(versionDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(versionDir, SpecFile), []byte(spec), 0o644))
	_, err := WriteManifest(dir, version, "credit-risk", []string{SpecFile})
	require.NoError(t, err)
	require.NoError(t, SaveState(dir, State{CurrentVersion: version}))
}

func createTestProfile() scoring.ApplicantProfile {
	return scoring.ApplicantProfile{
		Age:                    28,
		Income:                 1200000,
		LoanAmount:             2560000,
		LoanTenureMonths:       36,
		AvgDaysPastDue:         20,
		DelinquencyRatio:       30,
		CreditUtilizationRatio: 30,
		NumOpenAccounts:        2,
		ResidenceType:          scoring.ResidenceOwned,
		LoanPurpose:            scoring.LoanPurposePersonal,
		LoanType:               scoring.LoanTypeUnsecured,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestLoad_Success(t *testing.T) {
	dir := t.TempDir()
	writeTestBundle(t, dir, "v1", testSpecYAML)

	b, err := Load(dir, "", Options{})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "v1", b.Version)
	assert.Equal(t, FamilyLogistic, b.Family)
	assert.Len(t, b.Manifest.Files, 1)

	result, err := b.Pipeline.Score(createTestProfile())
	require.NoError(t, err)
	assert.Equal(t, 534, result.CreditScore)
	assert.Equal(t, scoring.Rating("Average"), result.Rating)
	assert.Equal(t, "v1", result.ModelVersion)
}

func TestLoad_ExplicitVersionOverridesState(t *testing.T) {
	dir := t.TempDir()
	writeTestBundle(t, dir, "v1", testSpecYAML)
	writeTestBundle(t, dir, "v2", testSpecYAML)

	b, err := Load(dir, "v1", Options{})
	require.NoError(t, err)
	assert.Equal(t, "v1", b.Version)

	b, err = Load(dir, "", Options{})
	require.NoError(t, err)
	assert.Equal(t, "v2", b.Version)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, dir string)
		version  string
		expected error
	}{
		{
			name:     "empty directory",
			setup:    func(t *testing.T, dir string) {},
			expected: scoring.ErrModelArtifactMissing,
		},
		{
			name:     "unknown version",
			setup:    func(t *testing.T, dir string) { writeTestBundle(t, dir, "v1", testSpecYAML) },
			version:  "v9",
			expected: scoring.ErrModelArtifactMissing,
		},
		{
			name: "tampered model.yaml",
			setup: func(t *testing.T, dir string) {
				writeTestBundle(t, dir, "v1", testSpecYAML)
				path := filepath.Join(dir, "v1", SpecFile)
				data, err := os.ReadFile(path)
				require.NoError(t, err)
				require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), "-2.5", "-3.5", 1)), 0o644))
			},
			expected: scoring.ErrModelArtifactCorrupt,
		},
		{
			name: "model.yaml deleted",
			setup: func(t *testing.T, dir string) {
				writeTestBundle(t, dir, "v1", testSpecYAML)
				require.NoError(t, os.Remove(filepath.Join(dir, "v1", SpecFile)))
			},
			expected: scoring.ErrModelArtifactMissing,
		},
		{
			name: "scaling constants absent",
			setup: func(t *testing.T, dir string) {
				spec := testSpecYAML[:strings.Index(testSpecYAML, "scaling:")] + testSpecYAML[strings.Index(testSpecYAML, "model:"):]
				writeTestBundle(t, dir, "v1", spec)
			},
			expected: scoring.ErrModelArtifactMissing,
		},
		{
			name: "calibration absent",
			setup: func(t *testing.T, dir string) {
				writeTestBundle(t, dir, "v1", testSpecYAML[:strings.Index(testSpecYAML, "calibration:")])
			},
			expected: scoring.ErrModelArtifactMissing,
		},
		{
			name: "zero std",
			setup: func(t *testing.T, dir string) {
				writeTestBundle(t, dir, "v1", strings.Replace(testSpecYAML, "{mean: 39, std: 9}", "{mean: 39, std: 0}", 1))
			},
			expected: scoring.ErrModelArtifactCorrupt,
		},
		{
			name: "weights do not match schema width",
			setup: func(t *testing.T, dir string) {
				writeTestBundle(t, dir, "v1", strings.Replace(testSpecYAML, ", 0.1, 0.4]", ", 0.1]", 1))
			},
			expected: scoring.ErrModelArtifactCorrupt,
		},
		{
			name: "unknown model family",
			setup: func(t *testing.T, dir string) {
				writeTestBundle(t, dir, "v1", strings.Replace(testSpecYAML, "family: logistic", "family: forest", 1))
			},
			expected: scoring.ErrModelArtifactCorrupt,
		},
		{
			name: "overlapping rating tiers",
			setup: func(t *testing.T, dir string) {
				writeTestBundle(t, dir, "v1", strings.Replace(testSpecYAML, "min_score: 650", "min_score: 500", 1))
			},
			expected: scoring.ErrModelArtifactCorrupt,
		},
		{
			name: "not yaml",
			setup: func(t *testing.T, dir string) {
				writeTestBundle(t, dir, "v1", "columns: [unclosed")
			},
			expected: scoring.ErrModelArtifactCorrupt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)

			b, err := Load(dir, tt.version, Options{})
			assert.Nil(t, b)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
		})
	}
}

func TestParseSpec_ReportsSchemaViolations(t *testing.T) {
	_, err := ParseSpec([]byte("version: v1\ncolumns: []\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, scoring.ErrModelArtifactCorrupt))
	assert.Contains(t, err.Error(), "categories")
}

func TestBuildModel_ONNXWithoutFile(t *testing.T) {
	_, err := buildModel(t.TempDir(), ModelSpec{Family: FamilyONNX}, 13, Options{})
	assert.True(t, errors.Is(err, scoring.ErrModelArtifactCorrupt))
}

func TestBuildModel_ONNXFileMissing(t *testing.T) {
	_, err := buildModel(t.TempDir(), ModelSpec{Family: FamilyONNX, File: "model.onnx"}, 13, Options{})
	assert.True(t, errors.Is(err, scoring.ErrModelArtifactMissing))
}
