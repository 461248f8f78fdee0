package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reco-chatbot/internal/llm"
	"reco-chatbot/internal/llm/llmtest"
	"reco-chatbot/pkg"
)

func newTestAgent(t *testing.T, client llm.Client, store MessageStore, opts ...AgentOption) *Agent {
	t.Helper()
	a, err := NewAgent(context.Background(), client, store, opts...)
	require.NoError(t, err)
	return a
}

func TestAgentReceiveThenSendHistory(t *testing.T) {
	ctx := context.Background()
	a := newTestAgent(t, llmtest.New(), newMemStore())

	require.NoError(t, a.Receive(ctx, "I feel tired."))
	require.NoError(t, a.Send(ctx, "How long has that been going on?"))

	assert.Equal(t, []string{
		"Patient: I feel tired.",
		"Doctor: How long has that been going on?",
	}, a.History())
	assert.Equal(t, pkg.RoleDoctor, a.LatestRole())
}

func TestAgentHistoryIsSnapshot(t *testing.T) {
	ctx := context.Background()
	a := newTestAgent(t, llmtest.New(), newMemStore())
	require.NoError(t, a.Send(ctx, "Hello"))

	h := a.History()
	h[0] = "mutated"
	require.NoError(t, a.Receive(ctx, "Hi"))

	assert.Equal(t, []string{"Doctor: Hello", "Patient: Hi"}, a.History())
	assert.Len(t, h, 1)
}

func TestAgentGeneratesSessionID(t *testing.T) {
	store := newMemStore()
	a := newTestAgent(t, llmtest.New(), store)
	b := newTestAgent(t, llmtest.New(), store)
	assert.NotEmpty(t, a.SessionID())
	assert.NotEqual(t, a.SessionID(), b.SessionID())
	assert.Equal(t, pkg.Role(""), a.LatestRole())
}

func TestAgentResumesSession(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	a := newTestAgent(t, llmtest.New(), store, WithSessionID("s-1"))
	require.NoError(t, a.Send(ctx, "How are you?"))
	require.NoError(t, a.Receive(ctx, "Fine."))

	resumed := newTestAgent(t, llmtest.New(), store, WithSessionID("s-1"))
	assert.Equal(t, a.History(), resumed.History())
}

func TestAgentResetClearsState(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	a := newTestAgent(t, llmtest.New(), store,
		WithSessionID("s-1"),
		WithDetector(NewEndDetector(nil, nil)))

	require.NoError(t, a.Send(ctx, "Take care."))
	require.NoError(t, a.Receive(ctx, "Thanks."))
	require.True(t, a.Ended())

	require.NoError(t, a.Reset(ctx))
	assert.Empty(t, a.History())
	assert.False(t, a.Ended())
	stored, _ := store.List(ctx, "s-1")
	assert.Empty(t, stored)

	// reset on a fresh agent is also fine
	fresh := newTestAgent(t, llmtest.New(), store)
	require.NoError(t, fresh.Reset(ctx))
	assert.Empty(t, fresh.History())
	assert.False(t, fresh.Ended())
}

func TestDoctorAgentDetectsOnReceive(t *testing.T) {
	ctx := context.Background()
	detectorLLM := llmtest.New("True")
	a := newTestAgent(t, llmtest.New(), newMemStore(),
		WithDetector(NewEndDetector(detectorLLM, nil)))

	require.NoError(t, a.Send(ctx, "Is there anything else you would like to share?"))
	assert.False(t, a.Ended())
	require.NoError(t, a.Receive(ctx, "No, I think that covers everything."))
	assert.True(t, a.Ended())
	assert.Equal(t, 1, detectorLLM.CallCount())

	// ended is sticky and no further detection happens
	require.NoError(t, a.Send(ctx, "Thank you."))
	require.NoError(t, a.Receive(ctx, "Sure."))
	assert.True(t, a.Ended())
	assert.Equal(t, 1, detectorLLM.CallCount())
	assert.Len(t, a.History(), 4)
}

func TestDetectionNeedsDoctorThenPatient(t *testing.T) {
	ctx := context.Background()
	detectorLLM := llmtest.New()
	a := newTestAgent(t, llmtest.New(), newMemStore(),
		WithDetector(NewEndDetector(detectorLLM, nil)))

	require.NoError(t, a.Receive(ctx, "Hello doctor."))
	require.NoError(t, a.Receive(ctx, "I have a question."))
	require.NoError(t, a.Send(ctx, "Go ahead."))
	assert.False(t, a.Ended())
	assert.Equal(t, 0, detectorLLM.CallCount())
}

func TestPatientAgentDetectsOnSend(t *testing.T) {
	ctx := context.Background()
	detectorLLM := llmtest.New("False", "True")
	a := newTestAgent(t, llmtest.New(), newMemStore(),
		WithRole(pkg.RolePatient),
		WithDetector(NewEndDetector(detectorLLM, nil)))

	require.NoError(t, a.Receive(ctx, "What is your heart rate?"))
	require.NoError(t, a.Send(ctx, "About 90."))
	assert.False(t, a.Ended())
	require.NoError(t, a.Receive(ctx, "Please remember to contact us if anything changes."))
	require.NoError(t, a.Send(ctx, "I will, thank you."))
	assert.True(t, a.Ended())
	assert.Equal(t, 2, detectorLLM.CallCount())
}

func TestGenerateResponseBuildsPrompt(t *testing.T) {
	ctx := context.Background()
	client := llmtest.New("Could you tell me your weight?")
	a := newTestAgent(t, client, newMemStore(), WithSystemMessage("SYSTEM"), WithGuidance("GUIDE"))

	require.NoError(t, a.Send(ctx, "Hello, how are you?"))
	require.NoError(t, a.Receive(ctx, "Um... okay."))

	reply, err := a.GenerateResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Could you tell me your weight?", reply)

	assert.Equal(t, []llm.Message{
		{Role: llm.RoleSystem, Content: "SYSTEM"},
		{Role: llm.RoleAssistant, Content: "Hello, how are you?"},
		{Role: llm.RoleUser, Content: "Um... okay."},
		{Role: llm.RoleUser, Content: "GUIDE"},
	}, client.LastCall())
	assert.Equal(t, "Doctor: Could you tell me your weight?", a.History()[2])
}

func TestGenerateResponseDefaultsPerRole(t *testing.T) {
	ctx := context.Background()
	client := llmtest.New("Um... I'm okay.")
	a := newTestAgent(t, client, newMemStore(), WithRole(pkg.RolePatient))

	_, err := a.GenerateResponse(ctx)
	require.NoError(t, err)
	call := client.LastCall()
	assert.Equal(t, DefaultPatientSystemMessage, call[0].Content)
	assert.Equal(t, PatientGuidance, call[len(call)-1].Content)
	assert.Equal(t, pkg.RolePatient, a.LatestRole())
}

func TestGenerateResponseFailureRecordsNothing(t *testing.T) {
	ctx := context.Background()
	client := &llmtest.Client{}
	a := newTestAgent(t, client, newMemStore())

	_, err := a.GenerateResponse(ctx)
	require.ErrorIs(t, err, llmtest.ErrExhausted)
	assert.Empty(t, a.History())
}

func TestClosureConfirmation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	a := newTestAgent(t, llmtest.New(), store,
		WithSessionID("s-1"),
		WithDetector(NewEndDetector(nil, nil)),
		WithClosureConfirmation(ClosureConfirmMessage))

	require.NoError(t, a.Send(ctx, "Anything else today?"))
	require.NoError(t, a.Receive(ctx, "No, goodbye."))
	assert.False(t, a.Ended())
	assert.True(t, a.PendingClosure())

	require.NoError(t, a.Send(ctx, ClosureConfirmMessage))
	assert.False(t, a.PendingClosure())
	assert.True(t, a.AwaitingConfirmation())

	resumed := newTestAgent(t, llmtest.New(), store,
		WithSessionID("s-1"),
		WithDetector(NewEndDetector(nil, nil)),
		WithClosureConfirmation(ClosureConfirmMessage))
	assert.True(t, resumed.AwaitingConfirmation())

	require.NoError(t, resumed.Receive(ctx, "Yes."))
	assert.True(t, resumed.Ended())
	assert.False(t, resumed.AwaitingConfirmation())
}

func TestClosureDeclined(t *testing.T) {
	ctx := context.Background()
	detectorLLM := llmtest.New()
	a := newTestAgent(t, llmtest.New(), newMemStore(),
		WithDetector(NewEndDetector(detectorLLM, nil)),
		WithClosureConfirmation(ClosureConfirmMessage))

	require.NoError(t, a.Send(ctx, "Take care."))
	require.NoError(t, a.Receive(ctx, "Thanks."))
	require.True(t, a.PendingClosure())
	require.NoError(t, a.Send(ctx, ClosureConfirmMessage))

	require.NoError(t, a.Receive(ctx, "No, I still have a question."))
	assert.False(t, a.Ended())
	assert.False(t, a.PendingClosure())
	assert.False(t, a.AwaitingConfirmation())
	assert.Equal(t, 0, detectorLLM.CallCount())
}

func TestReceiveRetryIsNotStoredTwice(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	detectorLLM := &llmtest.Client{Err: assert.AnError}
	a := newTestAgent(t, llmtest.New(), store,
		WithSessionID("s-1"),
		WithDetector(NewEndDetector(detectorLLM, nil)))

	require.NoError(t, a.Send(ctx, "How is your breathing?"))
	require.Error(t, a.Receive(ctx, "A bit better."))

	detectorLLM.Err = nil
	detectorLLM.Replies = []string{"False"}
	assert.True(t, a.Retrying("A bit better."))
	require.NoError(t, a.Receive(ctx, "A bit better."))
	assert.Equal(t, 2, detectorLLM.CallCount())

	stored, _ := store.List(ctx, "s-1")
	assert.Len(t, stored, 2)
	assert.False(t, a.Retrying("Something new."))
}

func TestIsAffirmative(t *testing.T) {
	for answer, want := range map[string]bool{
		"Yes":          true,
		"yes, please.": true,
		"  Okay!":      true,
		"Yep":          true,
		"No":           false,
		"not yet":      false,
		"I guess yes":  false,
		"":             false,
		"...":          false,
	} {
		assert.Equal(t, want, IsAffirmative(answer), answer)
	}
}
