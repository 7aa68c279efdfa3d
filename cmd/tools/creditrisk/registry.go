package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"credit-risk/pkg/registry"
)

func newRegistryCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Check and update the activity registry",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "configs/activity-registry.json", "Path to registry file")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate activity ids, task types and JSON schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return err
			}
			errs := reg.Validate()
			for _, e := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", e)
			}
			if len(errs) > 0 {
				return fmt.Errorf("registry has %d problems", len(errs))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registry %s OK (%d activities)\n", reg.Version, len(reg.Activities))
			return nil
		},
	}

	var id, status string
	setStatus := &cobra.Command{
		Use:   "set-status",
		Short: "Update an activity's implementation status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return err
			}

			found := false
			for i := range reg.Activities {
				if reg.Activities[i].ID == id {
					reg.Activities[i].ImplementationStatus = status
					found = true
				}
			}
			if !found {
				return fmt.Errorf("%w: %s", registry.ErrActivityNotFound, id)
			}
			if errs := reg.Validate(); len(errs) > 0 {
				return errs[0]
			}
			if err := registry.SaveRegistry(path, reg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, status)
			return nil
		},
	}
	setStatus.Flags().StringVar(&id, "id", "", "Activity ID (e.g., risk.credit.score)")
	setStatus.Flags().StringVar(&status, "status", "", "planned, in-progress, completed or verified")
	if err := setStatus.MarkFlagRequired("id"); err != nil {
		panic(fmt.Sprintf("failed to mark id flag as required: %v", err))
	}
	if err := setStatus.MarkFlagRequired("status"); err != nil {
		panic(fmt.Sprintf("failed to mark status flag as required: %v", err))
	}

	cmd.AddCommand(validate, setStatus)
	return cmd
}
