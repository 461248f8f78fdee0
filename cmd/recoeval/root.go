package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"reco-chatbot/internal/config"
	"reco-chatbot/internal/llm"
)

var (
	cfgFile string
	verbose bool
	logger  = slog.Default()
)

// newClient builds the generation client for a model.  Tests replace it.
var newClient = func(model string, temperature float32) llm.Client {
	return llm.NewOpenAIClient("", model, temperature)
}

var rootCmd = &cobra.Command{
	Use:   "recoeval",
	Short: "Simulate, summarise and judge RECO check-in transcripts",
	Long: `recoeval drives the offline side of the check-in chatbot: it simulates
doctor/patient conversations from patient prompts, summarises transcripts
and grades transcripts and summaries with an LLM judge.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		if err := godotenv.Load(); err == nil {
			logger.Debug("loaded .env")
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "reco.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
