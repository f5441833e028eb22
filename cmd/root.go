package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"resume-rag/internal/config"
	"resume-rag/internal/models"
)

const configFilePath = "./configs/config.yaml"

var (
	configPath string
	envFile    string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "resume-rag",
	Short: "Answer questions about a CV from its published vector index",
	Long: `Downloads the CV index from Cloud Storage, loads it and serves a chat page
where every question is answered from the retrieved CV sections only.
Without a subcommand it behaves like "serve".`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configFilePath, "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides LOG_LEVEL")
}

func loadConfig(_ *cobra.Command, _ []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	c, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if err := setLogLevel(c.Log.Level); err != nil {
		return err
	}

	log.Debug().
		Str("config", configPath).
		Str("model", c.LLM.Model).
		Str("embedding_model", c.EmbedLLM.Model).
		Str("bucket", c.Storage.Bucket).
		Str("index_path", c.Storage.IndexPath).
		Msg("Loaded config")
	cfg = c
	return nil
}

func setLogLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("%w: log level %q", models.ErrInvalidInput, level)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
