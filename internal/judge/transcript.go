package judge

import (
	"context"
	"fmt"
	"strings"

	"reco-chatbot/internal/llm"
)

// TranscriptEntry is one transcript to judge, with the prompt the simulated
// patient was given.
type TranscriptEntry struct {
	SubjectID     string
	Transcript    []string
	PatientPrompt string
}

// TranscriptJudge grades doctor/patient transcripts in a single call per
// transcript.
type TranscriptJudge struct {
	client llm.Client
	config
}

func NewTranscriptJudge(client llm.Client, opts ...Option) *TranscriptJudge {
	return &TranscriptJudge{
		client: client,
		config: newConfig(TranscriptRubric, DefaultTranscriptInstructions, opts),
	}
}

// Rubric returns the rubric in use.
func (j *TranscriptJudge) Rubric() *Rubric { return j.rubric }

// Cache returns the judge's evaluation cache.
func (j *TranscriptJudge) Cache() *Cache { return j.cache }

func (j *TranscriptJudge) systemMessage() string {
	var criteria []string
	for _, s := range j.rubric.Sections {
		criteria = append(criteria, criteriaList(s, "'"))
	}
	return fmt.Sprintf(transcriptJudgeSystem, transcriptOutputFormat, strings.Join(criteria, "\n"))
}

// EvaluateSingle grades a transcript.  A transcript already judged for the
// same subject and patient prompt is answered from the cache.
func (j *TranscriptJudge) EvaluateSingle(ctx context.Context, subjectID string, transcript []string, patientPrompt string) (*Evaluation, error) {
	hash := ContentHash(transcript, patientPrompt)
	if ev, ok := j.cache.Get(subjectID, hash); ok {
		j.logger.Debug("using cached evaluation", "subject_id", subjectID)
		return ev, nil
	}

	resp, err := j.client.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: j.systemMessage()},
		{Role: llm.RoleUser, Content: fmt.Sprintf(transcriptJudgeHuman, patientPrompt, strings.Join(transcript, "\n"))},
	})
	if err != nil {
		return nil, fmt.Errorf("judge transcript %s: %w", subjectID, err)
	}
	ev := ParseResponse(resp.Content, j.rubric.Keys(), j.logger.With("subject_id", subjectID))
	j.cache.Put(subjectID, hash, ev)
	return ev, nil
}

// EvaluateBatch grades entries one after another.  An entry that fails is
// logged and left out of the table.
func (j *TranscriptJudge) EvaluateBatch(ctx context.Context, entries []TranscriptEntry, opts ...BatchOption) (*Table, error) {
	bc := newBatchConfig(opts)
	table := newTable(j.rubric.Keys())

	bc.reporter.Start(len(entries))
	defer bc.reporter.Finish()
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return table, err
		}
		bc.reporter.Update(i, e.SubjectID)
		ev, err := j.EvaluateSingle(ctx, e.SubjectID, e.Transcript, e.PatientPrompt)
		if err != nil {
			j.logger.Error("transcript evaluation failed", "subject_id", e.SubjectID, "err", err)
			continue
		}
		table.add(e.SubjectID, ev)
	}
	bc.reporter.Update(len(entries), "done")
	return table, nil
}

// SuggestImprovement asks for a revised doctor prompt based on the
// observations of every cached evaluation.
func (j *TranscriptJudge) SuggestImprovement(ctx context.Context, doctorSystem, doctorGuidance string) (*Suggestion, error) {
	system := fmt.Sprintf(transcriptImprovementPrompt, doctorSystem, doctorGuidance)
	return suggest(ctx, j.client, system, j.cache.Observations(), *j.instructions)
}
