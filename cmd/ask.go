package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"resume-rag/internal/app"
	"resume-rag/internal/helper"
)

var (
	askJSON      bool
	askSkipFetch bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and exit",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer and retrieved chunks as JSON")
	askCmd.Flags().BoolVar(&askSkipFetch, "skip-fetch", false, "use the index already in the local index dir")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd.Context(), app.Options{SkipFetch: askSkipFetch})
	if err != nil {
		return err
	}

	response := a.RAG.Query(cmd.Context(), args[0])
	if askJSON {
		return helper.PrettyPrint(cmd.OutOrStdout(), response)
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	cmd.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, c := range response.Chunks {
		cmd.Printf("[%s] %s\n", c.Section, c.ID)
	}
	cmd.Println()

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	cmd.Printf("%s\n\n", response.Content)
	return nil
}
