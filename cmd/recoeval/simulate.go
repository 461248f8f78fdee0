package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"reco-chatbot/internal/core"
	"reco-chatbot/internal/db"
	"reco-chatbot/internal/llm"
	"reco-chatbot/pkg"
)

var (
	simIn       string
	simOut      string
	simSteps    int
	simStart    string
	simMessage  string
	simExtract  bool
	simPatients []string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate check-in conversations for synthetic patients",
	Long: `Runs a doctor agent against a patient agent for every patient in the
dataset.  The patient agent plays the record's prompt.  The resulting
transcripts are written back to the dataset.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simIn, "in", "patients.json", "input dataset")
	simulateCmd.Flags().StringVar(&simOut, "out", "", "output dataset (defaults to --in)")
	simulateCmd.Flags().IntVar(&simSteps, "steps", 30, "maximum turns after the opening one")
	simulateCmd.Flags().StringVar(&simStart, "start", string(pkg.RoleDoctor), "who speaks first: Doctor or Patient")
	simulateCmd.Flags().StringVar(&simMessage, "message", "", "opening message; generated when empty")
	simulateCmd.Flags().BoolVar(&simExtract, "extract-first", false, "keep only the first conversation of each transcript")
	simulateCmd.Flags().StringSliceVar(&simPatients, "patient", nil, "only simulate these patient IDs")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	start := pkg.Role(simStart)
	if !start.Valid() {
		return fmt.Errorf("--start must be Doctor or Patient, got %q", simStart)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := loadDataset(simIn)
	if err != nil {
		return err
	}
	ids, err := d.selectIDs(simPatients)
	if err != nil {
		return err
	}

	chat := newClient(cfg.LLM.ChatModel, cfg.LLM.ChatTemperature)
	detector := core.NewEndDetector(newClient(cfg.LLM.DetectorModel, 0), logger)
	var extractor *core.FirstConversationExtractor
	if simExtract {
		extractor = core.NewFirstConversationExtractor(newClient(cfg.LLM.DetectorModel, 0), logger)
	}

	for _, id := range ids {
		rec := d[id]
		transcript, err := simulateOne(ctx, chat, detector, rec.Prompt, start)
		if err != nil {
			return fmt.Errorf("simulating %s: %w", id, err)
		}
		if extractor != nil {
			if transcript, err = extractor.Extract(ctx, transcript); err != nil {
				return fmt.Errorf("extracting %s: %w", id, err)
			}
		}
		rec.Transcript = transcript
		logger.Info("simulated", "patient", id, "turns", len(transcript))
	}

	out := simOut
	if out == "" {
		out = simIn
	}
	if err := d.save(out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Simulated %d conversations into %s\n", len(ids), out)
	return nil
}

func simulateOne(ctx context.Context, chat llm.Client, detector *core.EndDetector, patientPrompt string, start pkg.Role) ([]string, error) {
	store := db.NewMemoryStore()
	doctor, err := core.NewAgent(ctx, chat, store,
		core.WithRole(pkg.RoleDoctor),
		core.WithDetector(detector),
		core.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	patientOpts := []core.AgentOption{core.WithRole(pkg.RolePatient), core.WithLogger(logger)}
	if patientPrompt != "" {
		patientOpts = append(patientOpts, core.WithSystemMessage(patientPrompt))
	}
	patient, err := core.NewAgent(ctx, chat, store, patientOpts...)
	if err != nil {
		return nil, err
	}
	sim := &core.Simulator{Doctor: doctor, Patient: patient, Logger: logger}
	return sim.Run(ctx, start, simMessage, simSteps)
}
