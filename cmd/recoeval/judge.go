package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"reco-chatbot/internal/core"
	"reco-chatbot/internal/judge"
)

var (
	judgeIn       string
	judgeCSV      string
	judgePatients []string
	judgeSuggest  bool
	judgeRubric   string
)

var judgeCmd = &cobra.Command{
	Use:   "judge",
	Short: "Grade transcripts or summaries with an LLM judge",
}

var judgeTranscriptsCmd = &cobra.Command{
	Use:   "transcripts",
	Short: "Grade the doctor's side of each transcript",
	RunE:  runJudgeTranscripts,
}

var judgeSummariesCmd = &cobra.Command{
	Use:   "summaries",
	Short: "Grade each summary against its transcript",
	RunE:  runJudgeSummaries,
}

func init() {
	for _, c := range []*cobra.Command{judgeTranscriptsCmd, judgeSummariesCmd} {
		c.Flags().StringVar(&judgeIn, "in", "patients.json", "input dataset; a ** glob merges several")
		c.Flags().StringVar(&judgeCSV, "csv", "", "write the score table to this CSV file (stdout when empty)")
		c.Flags().StringSliceVar(&judgePatients, "patient", nil, "only judge these patient IDs")
		c.Flags().BoolVar(&judgeSuggest, "suggest", false, "ask the judge for prompt improvements afterwards")
		c.Flags().StringVar(&judgeRubric, "rubric", "", "YAML rubric replacing the built-in one")
		judgeCmd.AddCommand(c)
	}
	rootCmd.AddCommand(judgeCmd)
}

func judgeOptions() ([]judge.Option, error) {
	opts := []judge.Option{judge.WithLogger(logger)}
	if judgeRubric == "" {
		return opts, nil
	}
	f, err := os.Open(judgeRubric)
	if err != nil {
		return nil, fmt.Errorf("opening rubric: %w", err)
	}
	defer f.Close()
	r, err := judge.LoadRubric(f)
	if err != nil {
		return nil, fmt.Errorf("rubric %s: %w", judgeRubric, err)
	}
	return append(opts, judge.WithRubric(r)), nil
}

func runJudgeTranscripts(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := loadDatasets(judgeIn)
	if err != nil {
		return err
	}
	ids, err := d.selectIDs(judgePatients)
	if err != nil {
		return err
	}
	opts, err := judgeOptions()
	if err != nil {
		return err
	}

	var entries []judge.TranscriptEntry
	for _, id := range ids {
		rec := d[id]
		if len(rec.Transcript) == 0 {
			continue
		}
		entries = append(entries, judge.TranscriptEntry{SubjectID: id, Transcript: rec.Transcript, PatientPrompt: rec.Prompt})
	}

	j := judge.NewTranscriptJudge(newClient(cfg.LLM.JudgeModel, 0), opts...)
	table, err := j.EvaluateBatch(ctx, entries, judge.WithReporter(judge.NewReporter(cmd.ErrOrStderr())))
	if err != nil {
		return err
	}
	if err := writeTable(cmd.OutOrStdout(), table); err != nil {
		return err
	}
	if !judgeSuggest {
		return nil
	}
	s, err := j.SuggestImprovement(ctx, core.DoctorSystemMessage, core.DoctorGuidance)
	if err != nil {
		return err
	}
	printSuggestion(cmd.OutOrStdout(), s)
	return nil
}

func runJudgeSummaries(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := loadDatasets(judgeIn)
	if err != nil {
		return err
	}
	ids, err := d.selectIDs(judgePatients)
	if err != nil {
		return err
	}
	opts, err := judgeOptions()
	if err != nil {
		return err
	}

	var entries []judge.SummaryEntry
	for _, id := range ids {
		rec := d[id]
		if rec.Summary == nil {
			continue
		}
		entries = append(entries, judge.SummaryEntry{SubjectID: id, Transcript: rec.Transcript, Summary: *rec.Summary})
	}

	j := judge.NewSummaryJudge(newClient(cfg.LLM.JudgeModel, 0), opts...)
	table, err := j.EvaluateBatch(ctx, entries, judge.WithReporter(judge.NewReporter(cmd.ErrOrStderr())))
	if err != nil {
		return err
	}
	if err := writeTable(cmd.OutOrStdout(), table); err != nil {
		return err
	}
	if !judgeSuggest {
		return nil
	}
	s, err := j.SuggestImprovement(ctx, core.SummarizeSystemMessage)
	if err != nil {
		return err
	}
	printSuggestion(cmd.OutOrStdout(), s)
	return nil
}

func writeTable(stdout io.Writer, table *judge.Table) error {
	if judgeCSV == "" {
		return table.WriteCSV(stdout)
	}
	f, err := os.Create(judgeCSV)
	if err != nil {
		return fmt.Errorf("creating %s: %w", judgeCSV, err)
	}
	defer f.Close()
	if err := table.WriteCSV(f); err != nil {
		return err
	}
	for _, row := range table.Rows {
		fmt.Fprintf(stdout, "%s\t%.2f\n", row.SubjectID, row.Evaluation.OverallScore())
	}
	return f.Close()
}

func printSuggestion(w io.Writer, s *judge.Suggestion) {
	fmt.Fprintf(w, "\nSUGGESTED PROMPT\n%s\n", s.Text)
	if s.KeyChanges != "" {
		fmt.Fprintf(w, "\nKEY CHANGES\n%s\n", s.KeyChanges)
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
