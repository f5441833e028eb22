package main

import (
	"github.com/spf13/cobra"

	"resume-rag/internal/app"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the published index into the local index dir",
	Args:  cobra.NoArgs,
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	report, err := app.FetchIndex(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	cmd.Printf("Fetched %d files (%d bytes) into %s\n", len(report.Files), report.Bytes, cfg.Storage.LocalDir)
	for _, f := range report.Files {
		cmd.Printf("  %s\n", f)
	}
	return nil
}
