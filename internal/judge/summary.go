package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"reco-chatbot/internal/llm"
	"reco-chatbot/pkg"
)

// SummaryEntry is one summary to judge against its transcript.
type SummaryEntry struct {
	SubjectID  string
	Transcript []string
	Summary    pkg.TranscriptSummary
}

// SummaryJudge grades check-in summaries, one model call per rubric
// section.  Each call sees only its own part of the summary.
type SummaryJudge struct {
	client llm.Client
	config
}

func NewSummaryJudge(client llm.Client, opts ...Option) *SummaryJudge {
	return &SummaryJudge{
		client: client,
		config: newConfig(SummaryRubric, DefaultSummaryInstructions, opts),
	}
}

// Rubric returns the rubric in use.
func (j *SummaryJudge) Rubric() *Rubric { return j.rubric }

// Cache returns the judge's evaluation cache.
func (j *SummaryJudge) Cache() *Cache { return j.cache }

// EvaluateSingle grades a summary section by section.  Sections missing
// from the summary are not sent; their criteria stay unanswered.
func (j *SummaryJudge) EvaluateSingle(ctx context.Context, subjectID string, transcript []string, summary pkg.TranscriptSummary) (*Evaluation, error) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	hash := ContentHash(transcript, string(raw))
	if ev, ok := j.cache.Get(subjectID, hash); ok {
		j.logger.Debug("using cached evaluation", "subject_id", subjectID)
		return ev, nil
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return nil, err
	}

	joined := strings.Join(transcript, "\n")
	result := newEvaluation(j.rubric.Keys())
	for _, k := range result.Keys {
		result.Scores[k] = ScoreReasoning{}
	}
	var observations strings.Builder

	for _, section := range j.rubric.Sections {
		part, ok := sections[section.Name]
		if !ok {
			continue
		}
		subset, err := json.Marshal(map[string]json.RawMessage{section.Name: part})
		if err != nil {
			return nil, err
		}
		system := fmt.Sprintf(summaryJudgeSystem, summaryOutputFormat, criteriaList(section, "`"))
		resp, err := j.client.Complete(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: fmt.Sprintf(summaryJudgeHuman, joined, subset)},
		})
		if err != nil {
			return nil, fmt.Errorf("judge summary %s section %s: %w", subjectID, section.Name, err)
		}

		ev := ParseResponse(resp.Content, section.Keys(), j.logger.With("subject_id", subjectID, "section", section.Name))
		switch section.Name {
		case "current_symptoms":
			CombineCurrentSymptomsAgree(ev)
		case "summary":
			CombineNoDiagnose(ev)
		}
		if ev.Observations != "" {
			fmt.Fprintf(&observations, "Observations for %s:\n%s\n\n", section.Name, ev.Observations)
		}
		result.merge(ev)
	}
	result.Observations = observations.String()

	j.cache.Put(subjectID, hash, result)
	return result, nil
}

// EvaluateBatch grades entries one after another and stops at the first
// failure.
func (j *SummaryJudge) EvaluateBatch(ctx context.Context, entries []SummaryEntry, opts ...BatchOption) (*Table, error) {
	bc := newBatchConfig(opts)
	table := newTable(j.rubric.Keys())

	bc.reporter.Start(len(entries))
	defer bc.reporter.Finish()
	for i, e := range entries {
		bc.reporter.Update(i, e.SubjectID)
		ev, err := j.EvaluateSingle(ctx, e.SubjectID, e.Transcript, e.Summary)
		if err != nil {
			return nil, err
		}
		table.add(e.SubjectID, ev)
	}
	bc.reporter.Update(len(entries), "done")
	return table, nil
}

// SuggestImprovement asks for a revised summarisation prompt based on the
// observations of every cached evaluation.
func (j *SummaryJudge) SuggestImprovement(ctx context.Context, originalPrompt string) (*Suggestion, error) {
	system := fmt.Sprintf(summaryImprovementPrompt, originalPrompt)
	return suggest(ctx, j.client, system, j.cache.Observations(), *j.instructions)
}
