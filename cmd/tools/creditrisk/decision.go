package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"credit-risk/internal/common/config"
	"credit-risk/internal/common/database"
	"credit-risk/internal/decisionlog"
)

type decisionReader interface {
	Get(ctx context.Context, id uuid.UUID) (decisionlog.Decision, error)
}

// openDecisionStore connects to the decision log database named in the config file.
var openDecisionStore = func(ctx context.Context, configPath string) (decisionReader, func() error, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, nil, err
	}
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return decisionlog.NewPostgresStore(pg), pg.Close, nil
}

type decisionReport struct {
	ID            string  `json:"id"`
	ApplicationID string  `json:"applicationId"`
	ModelVersion  string  `json:"modelVersion"`
	Fingerprint   string  `json:"fingerprint"`
	Probability   float64 `json:"probability"`
	CreditScore   int     `json:"creditScore"`
	Rating        string  `json:"rating"`
	Cached        bool    `json:"cached"`
	CreatedAt     string  `json:"createdAt"`
}

func newDecisionCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "decision",
		Short: "Inspect the scoring decision log",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Worker config file with the Postgres connection")

	var asJSON bool
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one logged decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid decision id %q: %w", args[0], err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			store, closeStore, err := openDecisionStore(ctx, configPath)
			if err != nil {
				return err
			}
			defer closeStore()

			d, err := store.Get(ctx, id)
			if err != nil {
				return err
			}

			report := decisionReport{
				ID:            d.ID.String(),
				ApplicationID: d.ApplicationID,
				ModelVersion:  d.ModelVersion,
				Fingerprint:   d.Fingerprint,
				Probability:   d.Probability,
				CreditScore:   d.CreditScore,
				Rating:        string(d.Rating),
				Cached:        d.Cached,
				CreatedAt:     d.CreatedAt.Format(time.RFC3339),
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Decision:\t%s\n", report.ID)
			fmt.Fprintf(w, "Application:\t%s\n", report.ApplicationID)
			fmt.Fprintf(w, "Model version:\t%s\n", report.ModelVersion)
			fmt.Fprintf(w, "Default probability:\t%.2f%%\n", report.Probability*100)
			fmt.Fprintf(w, "Credit score:\t%d\n", report.CreditScore)
			fmt.Fprintf(w, "Rating:\t%s\n", report.Rating)
			fmt.Fprintf(w, "Cached:\t%t\n", report.Cached)
			fmt.Fprintf(w, "Recorded:\t%s\n", report.CreatedAt)
			return w.Flush()
		},
	}
	get.Flags().BoolVar(&asJSON, "json", false, "Print the decision as JSON")

	cmd.AddCommand(get)
	return cmd
}
