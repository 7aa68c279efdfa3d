package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testColumns = []string{
	ColumnAge,
	ColumnLoanTenureMonths,
	ColumnNumberOfOpenAccounts,
	ColumnCreditUtilizationRatio,
	ColumnLoanToIncome,
	ColumnDelinquencyRatio,
	ColumnAvgDPDPerDelinquency,
	"residence_type_Owned",
	"residence_type_Rented",
	"loan_purpose_Education",
	"loan_purpose_Home",
	"loan_purpose_Personal",
	"loan_type_Unsecured",
}

var testScaled = []string{
	ColumnAge,
	ColumnLoanTenureMonths,
	ColumnNumberOfOpenAccounts,
	ColumnCreditUtilizationRatio,
	ColumnLoanToIncome,
	ColumnDelinquencyRatio,
	ColumnAvgDPDPerDelinquency,
}

func createTestCategories() []Category {
	return []Category{
		{Attribute: AttributeResidenceType, Levels: []string{"Owned", "Rented", "Mortgage"}, Reference: "Mortgage"},
		{Attribute: AttributeLoanPurpose, Levels: []string{"Education", "Home", "Auto", "Personal"}, Reference: "Auto"},
		{Attribute: AttributeLoanType, Levels: []string{"Unsecured", "Secured"}, Reference: "Secured"},
	}
}

func createTestConstants() map[string]ScalingConstant {
	return map[string]ScalingConstant{
		ColumnAge:                    {Mean: 39, Std: 9},
		ColumnLoanTenureMonths:       {Mean: 38, Std: 20},
		ColumnNumberOfOpenAccounts:   {Mean: 2.5, Std: 1.1},
		ColumnCreditUtilizationRatio: {Mean: 40, Std: 25},
		ColumnLoanToIncome:           {Mean: 2, Std: 1.5},
		ColumnDelinquencyRatio:       {Mean: 15, Std: 12},
		ColumnAvgDPDPerDelinquency:   {Mean: 10, Std: 8},
	}
}

func createTestWeights() (float64, []float64) {
	return -2.5, []float64{-0.5, 0.3, 0.4, 0.6, 1.0, 1.2, 0.8, -0.3, 0.2, -0.1, -0.2, 0.1, 0.4}
}

func createTestCalibration() Calibration {
	return Calibration{
		BaseScore:  300,
		ScoreRange: 600,
		Tiers: []RatingTier{
			{Rating: "Poor", MinScore: 300},
			{Rating: "Average", MinScore: 500},
			{Rating: "Good", MinScore: 650},
			{Rating: "Excellent", MinScore: 750},
		},
	}
}

func createTestSchema(t *testing.T) *Schema {
	t.Helper()
	schema, err := NewSchema(testColumns, createTestCategories())
	require.NoError(t, err)
	return schema
}

func createTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	schema := createTestSchema(t)

	scaler, err := NewScaler(schema, testScaled, createTestConstants())
	require.NoError(t, err)

	intercept, weights := createTestWeights()
	model, err := NewLogisticModel(intercept, weights)
	require.NoError(t, err)

	cal, err := NewCalibrator(createTestCalibration())
	require.NoError(t, err)

	p, err := NewPipeline(Components{
		Schema:     schema,
		Scaler:     scaler,
		Model:      model,
		Calibrator: cal,
		Version:    "test-1",
	})
	require.NoError(t, err)
	return p
}

// createTestProfile returns the reference applicant.
func createTestProfile() ApplicantProfile {
	return ApplicantProfile{
		Age:                    28,
		Income:                 1200000,
		LoanAmount:             2560000,
		LoanTenureMonths:       36,
		AvgDaysPastDue:         20,
		DelinquencyRatio:       30,
		CreditUtilizationRatio: 30,
		NumOpenAccounts:        2,
		ResidenceType:          ResidenceOwned,
		LoanPurpose:            LoanPurposePersonal,
		LoanType:               LoanTypeUnsecured,
	}
}
