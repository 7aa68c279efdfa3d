package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"credit-risk/internal/artifact"
	"credit-risk/internal/scoring"
)

type scoreOptions struct {
	bundleDir       string
	version         string
	onnxLibraryPath string

	profile       scoring.ApplicantProfile
	residenceType string
	loanPurpose   string
	loanType      string

	explain bool
	asJSON  bool
}

func newScoreCmd() *cobra.Command {
	o := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one applicant",
		Long:  "Loads a model bundle, scores the applicant given by flags, and prints the default probability, credit score, and rating.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd.OutOrStdout(), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.bundleDir, "bundle-dir", "./models", "Model bundle directory")
	f.StringVar(&o.version, "version", "", "Bundle version (default: current version in state.json)")
	f.StringVar(&o.onnxLibraryPath, "onnx-library", "", "Path to the onnxruntime shared library")

	f.IntVar(&o.profile.Age, "age", 28, "Applicant age in years")
	f.Float64Var(&o.profile.Income, "income", 1200000, "Annual income")
	f.Float64Var(&o.profile.LoanAmount, "loan-amount", 2560000, "Requested loan amount")
	f.IntVar(&o.profile.LoanTenureMonths, "loan-tenure-months", 36, "Loan tenure in months")
	f.IntVar(&o.profile.AvgDaysPastDue, "avg-dpd", 20, "Average days past due per delinquency")
	f.IntVar(&o.profile.DelinquencyRatio, "delinquency-ratio", 30, "Delinquent months as a percentage of loan months")
	f.IntVar(&o.profile.CreditUtilizationRatio, "credit-utilization-ratio", 30, "Credit utilization percentage")
	f.IntVar(&o.profile.NumOpenAccounts, "open-accounts", 2, "Number of open loan accounts (1-4)")
	f.StringVar(&o.residenceType, "residence-type", string(scoring.ResidenceOwned), "Owned, Rented or Mortgage")
	f.StringVar(&o.loanPurpose, "loan-purpose", string(scoring.LoanPurposePersonal), "Education, Home, Auto or Personal")
	f.StringVar(&o.loanType, "loan-type", string(scoring.LoanTypeUnsecured), "Unsecured or Secured")

	f.BoolVar(&o.explain, "explain", false, "Also print the scaled model inputs")
	f.BoolVar(&o.asJSON, "json", false, "Print JSON instead of text")
	return cmd
}

type scoreReport struct {
	scoring.ScoringResult
	Features []scoring.FeatureValue `json:"features,omitempty"`
}

func runScore(w io.Writer, o *scoreOptions) error {
	bundle, err := artifact.Load(o.bundleDir, o.version, artifact.Options{ONNXLibraryPath: o.onnxLibraryPath})
	if err != nil {
		return fmt.Errorf("load bundle: %w", err)
	}
	defer bundle.Close()

	profile := o.profile
	profile.ResidenceType = scoring.ResidenceType(o.residenceType)
	profile.LoanPurpose = scoring.LoanPurpose(o.loanPurpose)
	profile.LoanType = scoring.LoanType(o.loanType)

	result, err := bundle.Pipeline.Score(profile)
	if err != nil {
		return fmt.Errorf("score applicant: %w", err)
	}

	report := scoreReport{ScoringResult: result}
	if o.explain {
		if report.Features, err = bundle.Pipeline.Explain(profile); err != nil {
			return fmt.Errorf("explain: %w", err)
		}
	}

	if o.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return writeScoreText(w, report)
}

func writeScoreText(w io.Writer, r scoreReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Loan-to-income ratio:\t%.2f\n", r.LoanToIncomeRatio)
	fmt.Fprintf(tw, "Default probability:\t%.2f%%\n", r.Probability*100)
	fmt.Fprintf(tw, "Credit score:\t%d\n", r.CreditScore)
	fmt.Fprintf(tw, "Rating:\t%s\n", r.Rating)
	fmt.Fprintf(tw, "Model version:\t%s\n", r.ModelVersion)

	if len(r.Features) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Feature\tScaled value")
		for _, f := range r.Features {
			fmt.Fprintf(tw, "%s\t%.4f\n", f.Column, f.Value)
		}
	}
	return tw.Flush()
}
