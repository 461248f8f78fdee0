package judge

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reco-chatbot/internal/llm"
	"reco-chatbot/internal/llm/llmtest"
)

var sampleTranscript = []string{
	"Doctor: Hello Kevin, how are you feeling today?",
	"Patient: Um... a little short of breath.",
}

const transcriptReply = `patient_name,"The DOCTOR greeted the PATIENT by name; criteria passed hence the score is 1",1
dyspnea,"Asked about shortness of breath; criteria passed hence the score is 1",1
pnd,"The DOCTOR did not ask about PND in the conversation; criteria failed hence the score is 0",0
OBSERVATION: Ask about night-time symptoms.`

func TestTranscriptJudgeCachesEvaluations(t *testing.T) {
	ctx := context.Background()
	client := llmtest.New(transcriptReply)
	j := NewTranscriptJudge(client)

	first, err := j.EvaluateSingle(ctx, "p-1", sampleTranscript, "You are a patient.")
	require.NoError(t, err)
	second, err := j.EvaluateSingle(ctx, "p-1", sampleTranscript, "You are a patient.")
	require.NoError(t, err)

	assert.Equal(t, 1, client.CallCount())
	assert.Equal(t, first, second)
	assert.Equal(t, 1, j.Cache().Len())

	assert.Equal(t, 1, *first.Score("patient_name").Value)
	assert.Equal(t, 0, *first.Score("pnd").Value)
	assert.True(t, first.Score("weight").Missing())
	assert.Len(t, first.Keys, 25)
	assert.Equal(t, "Ask about night-time symptoms.", first.Observations)
}

func TestTranscriptJudgeCacheKeyIncludesContent(t *testing.T) {
	ctx := context.Background()
	client := &llmtest.Client{Fn: func([]llm.Message) (string, error) { return transcriptReply, nil }}
	j := NewTranscriptJudge(client)

	_, err := j.EvaluateSingle(ctx, "p-1", sampleTranscript, "prompt A")
	require.NoError(t, err)
	_, err = j.EvaluateSingle(ctx, "p-1", sampleTranscript, "prompt B")
	require.NoError(t, err)
	_, err = j.EvaluateSingle(ctx, "p-2", sampleTranscript, "prompt A")
	require.NoError(t, err)
	assert.Equal(t, 3, client.CallCount())
}

func TestTranscriptJudgePrompt(t *testing.T) {
	client := llmtest.New(transcriptReply)
	j := NewTranscriptJudge(client)
	_, err := j.EvaluateSingle(context.Background(), "p-1", sampleTranscript, "PROFILE")
	require.NoError(t, err)

	call := client.LastCall()
	require.Len(t, call, 2)
	assert.Equal(t, llm.RoleSystem, call[0].Role)
	assert.Contains(t, call[0].Content, "'patient_name': Was the PATIENT's name mentioned by the DOCTOR?")
	assert.Contains(t, call[0].Content, "criteria passed hence the score is 1")
	assert.Equal(t, "PATIENT_PROMPT: PROFILE\n\nTRANSCRIPT: "+strings.Join(sampleTranscript, "\n"), call[1].Content)
}

func TestTranscriptBatchSkipsFailures(t *testing.T) {
	ctx := context.Background()
	client := &llmtest.Client{Fn: func(msgs []llm.Message) (string, error) {
		if strings.Contains(msgs[1].Content, "broken") {
			return "", errors.New("upstream 500")
		}
		return transcriptReply, nil
	}}
	j := NewTranscriptJudge(client)

	var progress bytes.Buffer
	table, err := j.EvaluateBatch(ctx, []TranscriptEntry{
		{SubjectID: "p-1", Transcript: sampleTranscript, PatientPrompt: "ok"},
		{SubjectID: "p-2", Transcript: sampleTranscript, PatientPrompt: "broken"},
		{SubjectID: "p-3", Transcript: sampleTranscript, PatientPrompt: "ok too"},
	}, WithReporter(&LineReporter{w: &progress}))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "p-1", table.Rows[0].SubjectID)
	assert.Equal(t, "p-3", table.Rows[1].SubjectID)
	assert.Contains(t, progress.String(), "[1/3] p-2")

	var out bytes.Buffer
	require.NoError(t, table.WriteCSV(&out))
	records, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	header := records[0]
	assert.Equal(t, "subject_id", header[0])
	assert.Equal(t, "patient_name", header[1])
	assert.Equal(t, "patient_name_reasoning", header[2])
	assert.Equal(t, "observations", header[len(header)-1])
	assert.Len(t, header, 2+2*25)
	assert.Equal(t, "1", records[1][1])
	assert.Equal(t, "", records[1][2*10+1]) // temperature was not answered
}

func TestTranscriptSuggestImprovement(t *testing.T) {
	ctx := context.Background()
	client := llmtest.New(transcriptReply,
		"Revised prompt text.\n\n### KEY CHANGES\n- Asks about PND.")
	j := NewTranscriptJudge(client)
	_, err := j.EvaluateSingle(ctx, "p-1", sampleTranscript, "x")
	require.NoError(t, err)

	s, err := j.SuggestImprovement(ctx, "SYS", "GUIDE")
	require.NoError(t, err)
	assert.Equal(t, "Revised prompt text.", s.Text)
	assert.Equal(t, "- Asks about PND.", s.KeyChanges)

	call := client.LastCall()
	require.Len(t, call, 3)
	assert.Contains(t, call[0].Content, "SYSTEM_MESSAGE_DOCTOR: ```SYS```")
	assert.Contains(t, call[0].Content, "AI_GUIDANCE_DOCTOR: ```GUIDE```")
	assert.Equal(t, "LEARNINGS:\nAsk about night-time symptoms.", call[1].Content)
	assert.Equal(t, DefaultTranscriptInstructions, call[2].Content)
}

func TestSuggestWithoutInstructions(t *testing.T) {
	client := llmtest.New("Just a prompt.")
	j := NewTranscriptJudge(client, WithInstructions(""))
	s, err := j.SuggestImprovement(context.Background(), "SYS", "GUIDE")
	require.NoError(t, err)
	assert.Equal(t, "Just a prompt.", s.Text)
	assert.Empty(t, s.KeyChanges)
	assert.Len(t, client.LastCall(), 2)
}
