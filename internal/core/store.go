package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"reco-chatbot/pkg"
)

var (
	// ErrMalformedOutput is returned when a model response cannot be
	// decoded into the expected shape.  It is not retryable for the call
	// that produced it.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrMissingField is a malformed output with a required key absent.
	ErrMissingField = fmt.Errorf("%w: missing required field", ErrMalformedOutput)

	ErrSessionClosed   = errors.New("session is closed")
	ErrSessionNotFound = errors.New("session not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrPatientExists   = errors.New("patient with this username or email already exists")
	ErrInvalidRequest  = errors.New("invalid request")
)

// MessageStore persists the turns of a session.  Turns are returned in the
// order they were appended.
type MessageStore interface {
	Append(ctx context.Context, sessionID string, turn pkg.Turn) error
	List(ctx context.Context, sessionID string) ([]pkg.Turn, error)
	Clear(ctx context.Context, sessionID string) error
}

// Registry brackets the lifecycle of patients and their sessions.
//
// GetSession and GetPatient return ErrSessionNotFound/ErrPatientNotFound.
// LatestSession returns the patient's most recent session that is not
// completed.  LatestSession and GetSummary return (nil, nil) when there is
// nothing to return yet.
type Registry interface {
	GetPatient(ctx context.Context, id int64) (*pkg.Patient, error)
	CreatePatient(ctx context.Context, p *pkg.Patient) error
	CreateSession(ctx context.Context, s *pkg.Session) error
	GetSession(ctx context.Context, id string) (*pkg.Session, error)
	LatestSession(ctx context.Context, patientID int64) (*pkg.Session, error)
	MarkCompleted(ctx context.Context, id string) error
	GetSummary(ctx context.Context, sessionID string) (*pkg.SummaryRecord, error)
	SaveSummary(ctx context.Context, sessionID string, rec *pkg.SummaryRecord) error
	ListSessions(ctx context.Context) ([]pkg.SessionPreview, error)
}

// ReportSink receives the summary and transcript of every finished check-in.
// Rendering and delivery are up to the implementation.
type ReportSink interface {
	Deliver(ctx context.Context, session pkg.Session, summary pkg.TranscriptSummary, transcript []string) error
}

// keyedMutex serialises work per key.  Entries are dropped once nobody holds
// or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
