package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"reco-chatbot/internal/llm"
	"reco-chatbot/pkg"
)

// DefaultMessageCap is the number of patient messages accepted per check-in.
const DefaultMessageCap = 50

// CheckinService runs patient check-ins on top of the registry and message
// store.  Requests touching the same session are serialised.
type CheckinService struct {
	registry   Registry
	store      MessageStore
	client     llm.Client
	detector   *EndDetector
	summarizer *Summarizer
	sink       ReportSink
	messageCap int
	logger     *slog.Logger
	now        func() time.Time

	locks keyedMutex
}

// CheckinOption configures a CheckinService.
type CheckinOption func(*CheckinService)

// WithMessageCap limits the number of patient messages per session.
func WithMessageCap(n int) CheckinOption { return func(s *CheckinService) { s.messageCap = n } }

// WithReportSink sets where finished summaries are delivered.
func WithReportSink(sink ReportSink) CheckinOption { return func(s *CheckinService) { s.sink = sink } }

// WithCheckinLogger sets the service logger.
func WithCheckinLogger(l *slog.Logger) CheckinOption { return func(s *CheckinService) { s.logger = l } }

// NewCheckinService wires the collaborators of a check-in.
func NewCheckinService(registry Registry, store MessageStore, client llm.Client, detector *EndDetector, summarizer *Summarizer, opts ...CheckinOption) *CheckinService {
	s := &CheckinService{
		registry:   registry,
		store:      store,
		client:     client,
		detector:   detector,
		summarizer: summarizer,
		messageCap: DefaultMessageCap,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SignUp registers a patient.
func (s *CheckinService) SignUp(ctx context.Context, req pkg.SignUpRequest) (*pkg.Patient, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" {
		return nil, fmt.Errorf("%w: username and email are required", ErrInvalidRequest)
	}
	p := &pkg.Patient{
		Username:  req.Username,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     req.Email,
		CreatedAt: s.now().UTC(),
	}
	if err := s.registry.CreatePatient(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("patient registered", "patient_id", p.ID, "username", p.Username)
	return p, nil
}

// Start resumes the patient's latest open check-in or opens a new one.  The
// doctor speaks first unless the latest turn is already the doctor's.
func (s *CheckinService) Start(ctx context.Context, patientID int64) (*pkg.SessionDetail, error) {
	patient, err := s.registry.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	sess, err := s.registry.LatestSession(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.Completed {
		now := s.now().UTC()
		sess = &pkg.Session{ID: uuid.NewString(), PatientID: patientID, CreatedAt: now, UpdatedAt: now}
		if err := s.registry.CreateSession(ctx, sess); err != nil {
			return nil, err
		}
		s.logger.Info("check-in started", "session_id", sess.ID, "patient_id", patientID)
	} else {
		s.logger.Info("check-in resumed", "session_id", sess.ID, "patient_id", patientID)
	}

	unlock := s.locks.Lock(sess.ID)
	defer unlock()

	agent, err := s.doctor(ctx, sess.ID, patient)
	if err != nil {
		return nil, err
	}
	if agent.LatestRole() != pkg.RoleDoctor {
		if _, err := agent.GenerateResponse(ctx); err != nil {
			return nil, err
		}
	}
	return &pkg.SessionDetail{Session: *sess, Turns: agent.Turns()}, nil
}

// Post records a patient message and returns the doctor's reply.  When the
// exchange looks like a goodbye the reply asks the patient to confirm; a yes
// to that question, or reaching the message cap, finalises the session and
// no further messages are accepted.  Retrying a message whose reply failed
// does not record it twice.
func (s *CheckinService) Post(ctx context.Context, sessionID, content string) (*pkg.ChatResponse, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidRequest)
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.registry.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Completed {
		return nil, ErrSessionClosed
	}
	patient, err := s.registry.GetPatient(ctx, sess.PatientID)
	if err != nil {
		return nil, err
	}
	agent, err := s.doctor(ctx, sessionID, patient)
	if err != nil {
		return nil, err
	}

	resp := &pkg.ChatResponse{SessionID: sessionID}
	received := countRole(agent.Turns(), pkg.RolePatient)
	if agent.Retrying(content) {
		received--
	}
	if s.messageCap > 0 && received >= s.messageCap {
		if err := agent.Receive(ctx, content); err != nil {
			return nil, err
		}
		if err := agent.Send(ctx, CapMessage); err != nil {
			return nil, err
		}
		s.logger.Warn("message cap reached", "session_id", sessionID, "cap", s.messageCap)
		resp.Reply, resp.Capped, resp.Ended = CapMessage, true, true
		if _, err := s.finalize(ctx, sess, agent.History()); err != nil {
			return nil, err
		}
		return resp, nil
	}

	if err := agent.Receive(ctx, content); err != nil {
		return nil, err
	}
	switch {
	case agent.Ended():
		resp.Ended = true
		if _, err := s.finalize(ctx, sess, agent.History()); err != nil {
			return nil, err
		}
		return resp, nil
	case agent.PendingClosure():
		if err := agent.Send(ctx, ClosureConfirmMessage); err != nil {
			return nil, err
		}
		resp.Reply, resp.AwaitingConfirmation = ClosureConfirmMessage, true
		return resp, nil
	}
	if resp.Reply, err = agent.GenerateResponse(ctx); err != nil {
		return nil, err
	}
	return resp, nil
}

// End closes a check-in on the patient's request and returns its summary.
// Ending an already finished check-in returns the stored summary.
func (s *CheckinService) End(ctx context.Context, sessionID string) (*pkg.SummaryRecord, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.registry.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turns, err := s.store.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Line()
	}
	return s.finalize(ctx, sess, lines)
}

// Session returns the transcript and summary of a session.
func (s *CheckinService) Session(ctx context.Context, sessionID string) (*pkg.SessionDetail, error) {
	sess, err := s.registry.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turns, err := s.store.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rec, err := s.registry.GetSummary(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &pkg.SessionDetail{Session: *sess, Turns: turns, Summary: rec}, nil
}

// Sessions lists every session for the doctor dashboard.
func (s *CheckinService) Sessions(ctx context.Context) ([]pkg.SessionPreview, error) {
	return s.registry.ListSessions(ctx)
}

// finalize marks the session completed, summarises it unless a summary
// already exists, and hands the result to the report sink.  A failed
// summary aborts the rest of the workflow.
func (s *CheckinService) finalize(ctx context.Context, sess *pkg.Session, transcript []string) (*pkg.SummaryRecord, error) {
	if !sess.Completed {
		if err := s.registry.MarkCompleted(ctx, sess.ID); err != nil {
			return nil, err
		}
		sess.Completed = true
	}

	rec, err := s.registry.GetSummary(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	summary, completion, err := s.summarizer.Summarize(ctx, transcript)
	if err != nil {
		s.logger.Error("summary failed", "session_id", sess.ID, "err", err)
		return nil, err
	}
	rec = &pkg.SummaryRecord{
		Summary: *summary,
		ResponseMetadata: pkg.ResponseMetadata{
			Model:            completion.Model,
			FinishReason:     completion.FinishReason,
			PromptTokens:     completion.PromptTokens,
			CompletionTokens: completion.CompletionTokens,
		},
	}
	if err := s.registry.SaveSummary(ctx, sess.ID, rec); err != nil {
		return nil, err
	}
	s.logger.Info("summary saved", "session_id", sess.ID, "model", completion.Model)

	if s.sink != nil {
		if err := s.sink.Deliver(ctx, *sess, *summary, transcript); err != nil {
			return nil, fmt.Errorf("deliver report: %w", err)
		}
	}
	return rec, nil
}

func (s *CheckinService) doctor(ctx context.Context, sessionID string, patient *pkg.Patient) (*Agent, error) {
	system := DoctorSystemMessage
	if name := strings.TrimSpace(patient.Name()); name != "" {
		system += "\nThe patient's name is " + name + ".\n"
	}
	return NewAgent(ctx, s.client, s.store,
		WithSessionID(sessionID),
		WithRole(pkg.RoleDoctor),
		WithSystemMessage(system),
		WithDetector(s.detector),
		WithClosureConfirmation(ClosureConfirmMessage),
		WithLogger(s.logger),
	)
}

func countRole(turns []pkg.Turn, r pkg.Role) int {
	n := 0
	for _, t := range turns {
		if t.Role == r {
			n++
		}
	}
	return n
}

// IsNotFound reports whether err means a patient or session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrPatientNotFound)
}
