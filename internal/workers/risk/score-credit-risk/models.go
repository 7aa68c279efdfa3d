// internal/workers/risk/score-credit-risk/models.go
package scorecreditrisk

import "credit-risk/internal/scoring"

type Input struct {
	ApplicationID string                   `json:"applicationId"`
	Applicant     scoring.ApplicantProfile `json:"applicant"`
}

type Output struct {
	Probability       float64        `json:"probability"`
	CreditScore       int            `json:"creditScore"`
	Rating            scoring.Rating `json:"rating"`
	LoanToIncomeRatio float64        `json:"loanToIncomeRatio"`
	ModelVersion      string         `json:"modelVersion"`
	Cached            bool           `json:"cached"`
	DecisionID        string         `json:"decisionId,omitempty"`
}

func newOutput(r scoring.ScoringResult, cached bool) *Output {
	return &Output{
		Probability:       r.Probability,
		CreditScore:       r.CreditScore,
		Rating:            r.Rating,
		LoanToIncomeRatio: r.LoanToIncomeRatio,
		ModelVersion:      r.ModelVersion,
		Cached:            cached,
	}
}
