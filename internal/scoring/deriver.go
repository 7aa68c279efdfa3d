package scoring

// DerivedFeatures holds the numeric attributes of a profile as floats, plus the ratios
// computed from them.
type DerivedFeatures struct {
	Age                    float64
	Income                 float64
	LoanAmount             float64
	LoanTenureMonths       float64
	AvgDaysPastDue         float64
	DelinquencyRatio       float64
	CreditUtilizationRatio float64
	NumOpenAccounts        float64
	LoanToIncomeRatio      float64
}

// Derive computes the derived features for p.
func Derive(p ApplicantProfile) DerivedFeatures {
	return DerivedFeatures{
		Age:                    float64(p.Age),
		Income:                 p.Income,
		LoanAmount:             p.LoanAmount,
		LoanTenureMonths:       float64(p.LoanTenureMonths),
		AvgDaysPastDue:         float64(p.AvgDaysPastDue),
		DelinquencyRatio:       float64(p.DelinquencyRatio),
		CreditUtilizationRatio: float64(p.CreditUtilizationRatio),
		NumOpenAccounts:        float64(p.NumOpenAccounts),
		LoanToIncomeRatio:      LoanToIncome(p.LoanAmount, p.Income),
	}
}

// LoanToIncome returns loanAmount / income, or 0 when income is not positive.
func LoanToIncome(loanAmount, income float64) float64 {
	if income <= 0 {
		return 0
	}
	return loanAmount / income
}

// numericSources maps every numeric column name a schema may reference to its value.
var numericSources = map[string]func(DerivedFeatures) float64{
	ColumnAge:                    func(d DerivedFeatures) float64 { return d.Age },
	ColumnIncome:                 func(d DerivedFeatures) float64 { return d.Income },
	ColumnLoanAmount:             func(d DerivedFeatures) float64 { return d.LoanAmount },
	ColumnLoanTenureMonths:       func(d DerivedFeatures) float64 { return d.LoanTenureMonths },
	ColumnAvgDPDPerDelinquency:   func(d DerivedFeatures) float64 { return d.AvgDaysPastDue },
	ColumnDelinquencyRatio:       func(d DerivedFeatures) float64 { return d.DelinquencyRatio },
	ColumnCreditUtilizationRatio: func(d DerivedFeatures) float64 { return d.CreditUtilizationRatio },
	ColumnNumberOfOpenAccounts:   func(d DerivedFeatures) float64 { return d.NumOpenAccounts },
	ColumnLoanToIncome:           func(d DerivedFeatures) float64 { return d.LoanToIncomeRatio },
}
