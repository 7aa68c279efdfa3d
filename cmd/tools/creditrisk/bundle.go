package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"credit-risk/internal/artifact"
)

func newBundleCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Inspect and manage model bundle versions",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "./models", "Model bundle directory")

	verify := &cobra.Command{
		Use:   "verify [version]",
		Short: "Check a version against its manifest and build its pipeline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := artifact.Load(dir, firstArg(args), artifact.Options{})
			if err != nil {
				return err
			}
			defer bundle.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bundle %s OK (family %s, %d features)\n",
				bundle.Version, bundle.Family, bundle.Pipeline.Schema().Width())
			for _, f := range bundle.Manifest.Files {
				fmt.Fprintf(out, "  %s  %d  %s\n", f.SHA256, f.Size, f.Path)
			}
			return nil
		},
	}

	activate := &cobra.Command{
		Use:   "activate <version>",
		Short: "Make a verified version current",
		Long:  "Verifies the version and records it as current in state.json. Running workers keep the bundle they started with until restarted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := artifact.Activate(dir, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current version: %s (previous: %s)\n", state.CurrentVersion, orNone(state.PreviousVersion))
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the current and previous versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := artifact.LoadState(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current version: %s (previous: %s)\n", state.CurrentVersion, orNone(state.PreviousVersion))
			return nil
		},
	}

	var model string
	manifest := &cobra.Command{
		Use:   "manifest <version> [files...]",
		Short: "Write manifest.json for a version",
		Long:  "Hashes the given files, or every file in the version directory when none are given, and writes manifest.json.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, files := args[0], args[1:]
			if len(files) == 0 {
				var err error
				if files, err = versionFiles(filepath.Join(dir, version)); err != nil {
					return err
				}
			}
			m, err := artifact.WriteManifest(dir, version, model, files)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s with %d files\n", filepath.Join(dir, version, artifact.ManifestName), len(m.Files))
			return nil
		},
	}
	manifest.Flags().StringVar(&model, "model", "credit-risk", "Model name recorded in the manifest")

	cmd.AddCommand(verify, activate, status, manifest)
	return cmd
}

func versionFiles(versionDir string) ([]string, error) {
	entries, err := os.ReadDir(versionDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && e.Name() != artifact.ManifestName {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files in %s", versionDir)
	}
	return files, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
