package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reco-chatbot/internal/core"
)

var (
	sumIn       string
	sumOut      string
	sumPatients []string
	sumForce    bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarise the transcripts of a dataset",
	RunE:  runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVar(&sumIn, "in", "patients.json", "input dataset")
	summarizeCmd.Flags().StringVar(&sumOut, "out", "", "output dataset (defaults to --in)")
	summarizeCmd.Flags().StringSliceVar(&sumPatients, "patient", nil, "only summarise these patient IDs")
	summarizeCmd.Flags().BoolVar(&sumForce, "force", false, "re-summarise records that already have a summary")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := loadDataset(sumIn)
	if err != nil {
		return err
	}
	ids, err := d.selectIDs(sumPatients)
	if err != nil {
		return err
	}

	summarizer := core.NewSummarizer(newClient(cfg.LLM.SummaryModel, 0), logger)
	done := 0
	for _, id := range ids {
		rec := d[id]
		if len(rec.Transcript) == 0 || (rec.Summary != nil && !sumForce) {
			continue
		}
		summary, completion, err := summarizer.Summarize(ctx, rec.Transcript)
		if err != nil {
			// A malformed summary is reported and skipped; the rest of the
			// batch still runs.
			logger.Error("summarize failed", "patient", id, "err", err)
			continue
		}
		rec.Summary = summary
		done++
		logger.Debug("summarized", "patient", id,
			"prompt_tokens", completion.PromptTokens,
			"completion_tokens", completion.CompletionTokens)
	}

	out := sumOut
	if out == "" {
		out = sumIn
	}
	if err := d.save(out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Summarised %d transcripts into %s\n", done, out)
	return nil
}
