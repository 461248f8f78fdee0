package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reco-chatbot/internal/llm"
	"reco-chatbot/internal/llm/llmtest"
)

func TestDetectLexicalStageSkipsModel(t *testing.T) {
	cases := []struct {
		name    string
		doctor  string
		patient string
	}{
		{"goodbye in patient", "Anything else?", "No, that's all, goodbye."},
		{"upper case", "GOODBYE and take care!", ""},
		{"take care", "Please take care of yourself.", "Thanks."},
		{"bye-bye", "", "Bye-bye now"},
		{"see you later", "See you later, Kevin.", "Okay."},
		{"have a nice day", "Have a nice day!", "You too."},
		{"null doctor", "", "farewell"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := llmtest.New()
			d := NewEndDetector(client, nil)
			ended, err := d.Detect(context.Background(), tc.doctor, tc.patient)
			require.NoError(t, err)
			assert.True(t, ended)
			assert.Equal(t, 0, client.CallCount())
		})
	}
}

func TestMatchesClosingTermWordBoundary(t *testing.T) {
	assert.False(t, MatchesClosingTerm("The bylaw says"))
	assert.False(t, MatchesClosingTerm("Byes are for cricket"))
	assert.False(t, MatchesClosingTerm(""))
	assert.True(t, MatchesClosingTerm("ok, bye."))
}

func TestDetectNullUtterances(t *testing.T) {
	client := llmtest.New()
	d := NewEndDetector(client, nil)

	ended, err := d.Detect(context.Background(), "", "")
	require.NoError(t, err)
	assert.False(t, ended)

	ended, err = d.Detect(context.Background(), "How are you feeling today?", "")
	require.NoError(t, err)
	assert.False(t, ended)
	assert.Equal(t, 0, client.CallCount())
}

func TestDetectModelStage(t *testing.T) {
	cases := []struct {
		reply string
		want  bool
	}{
		{"True", true},
		{"  true\n", true},
		{"False", false},
		{"FALSE", false},
		{"I am not sure", false},
		{"", false},
	}
	for _, tc := range cases {
		client := llmtest.New(tc.reply)
		d := NewEndDetector(client, nil)
		ended, err := d.Detect(context.Background(), "What is your temperature?", "98.6 degrees.")
		require.NoError(t, err, tc.reply)
		assert.Equal(t, tc.want, ended, tc.reply)
		require.Equal(t, 1, client.CallCount())

		call := client.LastCall()
		require.Len(t, call, 1)
		assert.Equal(t, llm.RoleUser, call[0].Role)
		assert.Contains(t, call[0].Content, "```What is your temperature?```")
		assert.Contains(t, call[0].Content, "```98.6 degrees.```")
	}
}

func TestDetectUpstreamFailure(t *testing.T) {
	boom := errors.New("rate limited")
	client := &llmtest.Client{Err: boom}
	d := NewEndDetector(client, nil)

	_, err := d.Detect(context.Background(), "What is your weight?", "About 180 pounds.")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestDetectTranscriptScenarios(t *testing.T) {
	client := llmtest.New("False")
	d := NewEndDetector(client, nil)

	ended, err := d.Detect(context.Background(), "Anything else?", "No, that's all, goodbye.")
	require.NoError(t, err)
	assert.True(t, ended)

	ended, err = d.Detect(context.Background(), "What is your temperature?", "98.6 degrees.")
	require.NoError(t, err)
	assert.False(t, ended)
	assert.Equal(t, 1, client.CallCount())
}
