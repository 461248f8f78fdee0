package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reco-chatbot/internal/llm/llmtest"
	"reco-chatbot/pkg"
)

type checkinFixture struct {
	svc        *CheckinService
	registry   *memRegistry
	store      *memStore
	chat       *llmtest.Client
	detect     *llmtest.Client
	summarizer *llmtest.Client
	sink       *recordingSink
	patient    *pkg.Patient
}

func newCheckinFixture(t *testing.T, opts ...CheckinOption) *checkinFixture {
	t.Helper()
	f := &checkinFixture{
		registry:   newMemRegistry(),
		store:      newMemStore(),
		chat:       llmtest.New(),
		detect:     llmtest.New(),
		summarizer: llmtest.New(),
		sink:       &recordingSink{},
	}
	opts = append([]CheckinOption{WithReportSink(f.sink)}, opts...)
	f.svc = NewCheckinService(f.registry, f.store, f.chat,
		NewEndDetector(f.detect, nil), NewSummarizer(f.summarizer, nil), opts...)

	p, err := f.svc.SignUp(context.Background(), pkg.SignUpRequest{
		Username: "kevin", FirstName: "Kevin", LastName: "Lee", Email: "kevin@example.com",
	})
	require.NoError(t, err)
	f.patient = p
	return f
}

func TestSignUpRejectsDuplicates(t *testing.T) {
	f := newCheckinFixture(t)
	_, err := f.svc.SignUp(context.Background(), pkg.SignUpRequest{Username: "kevin", Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrPatientExists)

	_, err = f.svc.SignUp(context.Background(), pkg.SignUpRequest{Username: " "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPostRejectsEmptyMessage(t *testing.T) {
	f := newCheckinFixture(t)
	_, err := f.svc.Post(context.Background(), "any", "  ")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, f.chat.CallCount())
}

func TestStartDoctorSpeaksFirstAndResumes(t *testing.T) {
	ctx := context.Background()
	f := newCheckinFixture(t)
	f.chat.Replies = []string{"Hello Kevin, how have you been feeling?"}

	detail, err := f.svc.Start(ctx, f.patient.ID)
	require.NoError(t, err)
	require.Len(t, detail.Turns, 1)
	assert.Equal(t, pkg.RoleDoctor, detail.Turns[0].Role)
	assert.Contains(t, f.chat.LastCall()[0].Content, "The patient's name is Kevin Lee.")

	again, err := f.svc.Start(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, detail.Session.ID, again.Session.ID)
	assert.Len(t, again.Turns, 1)
	assert.Equal(t, 1, f.chat.CallCount())
}

func TestStartUnknownPatient(t *testing.T) {
	f := newCheckinFixture(t)
	_, err := f.svc.Start(context.Background(), 404)
	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.True(t, IsNotFound(err))
}

func TestPostUntilConversationCloses(t *testing.T) {
	ctx := context.Background()
	f := newCheckinFixture(t)
	f.chat.Replies = []string{
		"Hello Kevin, how have you been feeling?",
		"Thank you. Please remember to call us if anything changes. Take care!",
	}
	f.detect.Replies = []string{"False"}
	f.summarizer.Replies = []string{validSummaryJSON}

	detail, err := f.svc.Start(ctx, f.patient.ID)
	require.NoError(t, err)
	id := detail.Session.ID

	resp, err := f.svc.Post(ctx, id, "A little short of breath on the stairs.")
	require.NoError(t, err)
	assert.False(t, resp.Ended)
	assert.Equal(t, "Thank you. Please remember to call us if anything changes. Take care!", resp.Reply)

	resp, err = f.svc.Post(ctx, id, "Will do, thanks.")
	require.NoError(t, err)
	assert.False(t, resp.Ended)
	assert.True(t, resp.AwaitingConfirmation)
	assert.Equal(t, ClosureConfirmMessage, resp.Reply)
	assert.Empty(t, f.sink.deliveries)

	resp, err = f.svc.Post(ctx, id, "Yes, please.")
	require.NoError(t, err)
	assert.True(t, resp.Ended)
	assert.False(t, resp.AwaitingConfirmation)
	assert.Empty(t, resp.Reply)

	sess, err := f.registry.GetSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, sess.Completed)

	rec, err := f.registry.GetSummary(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "fake-model", rec.ResponseMetadata.Model)
	assert.Equal(t, []string{"Lisinopril"}, rec.Summary.CurrentMedications)

	require.Len(t, f.sink.deliveries, 1)
	assert.Equal(t, id, f.sink.deliveries[0].session.ID)
	assert.Len(t, f.sink.deliveries[0].transcript, 6)
	assert.Equal(t, "Doctor: "+ClosureConfirmMessage, f.sink.deliveries[0].transcript[4])
	assert.Equal(t, "Patient: Yes, please.", f.sink.deliveries[0].transcript[5])

	_, err = f.svc.Post(ctx, id, "Hello?")
	assert.ErrorIs(t, err, ErrSessionClosed)

	f.chat.Replies = []string{"Hello again Kevin."}
	next, err := f.svc.Start(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.NotEqual(t, id, next.Session.ID)
}

func TestPostDeclinedClosureContinues(t *testing.T) {
	ctx := context.Background()
	f := newCheckinFixture(t)
	f.chat.Replies = []string{"Hello Kevin.", "Of course, what would you like to ask?"}
	f.summarizer.Replies = []string{validSummaryJSON}

	detail, err := f.svc.Start(ctx, f.patient.ID)
	require.NoError(t, err)
	id := detail.Session.ID

	resp, err := f.svc.Post(ctx, id, "Thanks, goodbye!")
	require.NoError(t, err)
	require.True(t, resp.AwaitingConfirmation)

	resp, err = f.svc.Post(ctx, id, "No, one more question.")
	require.NoError(t, err)
	assert.False(t, resp.Ended)
	assert.False(t, resp.AwaitingConfirmation)
	assert.Equal(t, "Of course, what would you like to ask?", resp.Reply)
	assert.Zero(t, f.detect.CallCount())

	sess, err := f.registry.GetSession(ctx, id)
	require.NoError(t, err)
	assert.False(t, sess.Completed)

	resp, err = f.svc.Post(ctx, id, "Okay, bye.")
	require.NoError(t, err)
	assert.True(t, resp.AwaitingConfirmation)

	resp, err = f.svc.Post(ctx, id, "yes")
	require.NoError(t, err)
	assert.True(t, resp.Ended)
	assert.Len(t, f.sink.deliveries, 1)
}

func TestPostRetryAfterUpstreamFailure(t *testing.T) {
	ctx := context.Background()
	f := newCheckinFixture(t)
	f.chat.Replies = []string{"Hello Kevin, how is your breathing?"}
	f.detect.Err = assert.AnError

	detail, err := f.svc.Start(ctx, f.patient.ID)
	require.NoError(t, err)
	id := detail.Session.ID

	_, err = f.svc.Post(ctx, id, "A little better today.")
	require.ErrorIs(t, err, assert.AnError)

	f.detect.Err = nil
	f.detect.Replies = []string{"False"}
	f.chat.Replies = []string{"Good to hear. Any swelling?"}
	resp, err := f.svc.Post(ctx, id, "A little better today.")
	require.NoError(t, err)
	assert.Equal(t, "Good to hear. Any swelling?", resp.Reply)

	turns, err := f.store.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, []pkg.Role{pkg.RoleDoctor, pkg.RolePatient, pkg.RoleDoctor},
		[]pkg.Role{turns[0].Role, turns[1].Role, turns[2].Role})
}

func TestPostMessageCap(t *testing.T) {
	ctx := context.Background()
	f := newCheckinFixture(t, WithMessageCap(1))
	f.chat.Replies = []string{"Hello Kevin.", "How is your breathing?"}
	f.detect.Replies = []string{"False", "False"}
	f.summarizer.Replies = []string{validSummaryJSON}

	detail, err := f.svc.Start(ctx, f.patient.ID)
	require.NoError(t, err)
	id := detail.Session.ID

	resp, err := f.svc.Post(ctx, id, "Hi doctor.")
	require.NoError(t, err)
	assert.False(t, resp.Capped)

	resp, err = f.svc.Post(ctx, id, "It is fine.")
	require.NoError(t, err)
	assert.True(t, resp.Capped)
	assert.True(t, resp.Ended)
	assert.Equal(t, CapMessage, resp.Reply)
	assert.Equal(t, 2, f.chat.CallCount())

	turns, _ := f.store.List(ctx, id)
	require.Len(t, turns, 5)
	assert.Equal(t, CapMessage, turns[4].Content)
	assert.Len(t, f.sink.deliveries, 1)
}

func TestEndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newCheckinFixture(t)
	f.chat.Replies = []string{"Hello Kevin."}
	f.summarizer.Replies = []string{validSummaryJSON}

	detail, err := f.svc.Start(ctx, f.patient.ID)
	require.NoError(t, err)

	first, err := f.svc.End(ctx, detail.Session.ID)
	require.NoError(t, err)
	second, err := f.svc.End(ctx, detail.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.summarizer.CallCount())
	assert.Len(t, f.sink.deliveries, 1)

	got, err := f.svc.Session(ctx, detail.Session.ID)
	require.NoError(t, err)
	assert.True(t, got.Session.Completed)
	assert.Equal(t, first, got.Summary)
	assert.Len(t, got.Turns, 1)
}

func TestSummaryFailureAbortsFinalisation(t *testing.T) {
	ctx := context.Background()
	f := newCheckinFixture(t)
	f.chat.Replies = []string{"Hello Kevin."}
	f.summarizer.Replies = []string{"not json", validSummaryJSON}

	detail, err := f.svc.Start(ctx, f.patient.ID)
	require.NoError(t, err)

	_, err = f.svc.End(ctx, detail.Session.ID)
	require.ErrorIs(t, err, ErrMalformedOutput)
	assert.Empty(t, f.sink.deliveries)
	rec, _ := f.registry.GetSummary(ctx, detail.Session.ID)
	assert.Nil(t, rec)

	rec, err = f.svc.End(ctx, detail.Session.ID)
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Len(t, f.sink.deliveries, 1)
}

func TestPostUnknownSession(t *testing.T) {
	f := newCheckinFixture(t)
	_, err := f.svc.Post(context.Background(), "missing", "hello")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestKeyedMutexSerialisesPerKey(t *testing.T) {
	var k keyedMutex
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("s-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Empty(t, k.locks)
}
