package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"reco-chatbot/internal/llm"
	"reco-chatbot/pkg"
)

// Agent drives one side of a check-in.  It owns the in-memory view of the
// session's turns and delegates durability to a MessageStore, so building a
// new Agent with a known session ID resumes that session.
//
// An Agent is active, awaiting confirmation of a detected closure, or ended.
// Ended is final until Reset.  It is not safe for concurrent use;
// CheckinService serialises access per session.
type Agent struct {
	client    llm.Client
	store     MessageStore
	role      pkg.Role
	system    string
	guidance  string
	detector  *EndDetector
	sessionID string
	logger    *slog.Logger
	now       func() time.Time

	confirm string

	turns   []pkg.Turn
	ended   bool
	pending bool
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithRole sets the side the agent speaks for.  Defaults to the doctor.
func WithRole(r pkg.Role) AgentOption { return func(a *Agent) { a.role = r } }

// WithSystemMessage overrides the system prompt of the agent's role.
func WithSystemMessage(s string) AgentOption { return func(a *Agent) { a.system = s } }

// WithGuidance overrides the steering instruction appended on every turn.
func WithGuidance(s string) AgentOption { return func(a *Agent) { a.guidance = s } }

// WithDetector enables end-of-conversation detection.
func WithDetector(d *EndDetector) AgentOption { return func(a *Agent) { a.detector = d } }

// WithClosureConfirmation makes a detected closure pending instead of final.
// The owner is expected to Send prompt; the other side's next message then
// ends the conversation if it is affirmative and resumes it otherwise.
func WithClosureConfirmation(prompt string) AgentOption {
	return func(a *Agent) { a.confirm = prompt }
}

// WithSessionID binds the agent to an existing session.
func WithSessionID(id string) AgentOption { return func(a *Agent) { a.sessionID = id } }

// WithLogger sets the agent's logger.
func WithLogger(l *slog.Logger) AgentOption { return func(a *Agent) { a.logger = l } }

// NewAgent builds an agent and loads any turns already stored for its
// session.
func NewAgent(ctx context.Context, client llm.Client, store MessageStore, opts ...AgentOption) (*Agent, error) {
	a := &Agent{
		client: client,
		store:  store,
		role:   pkg.RoleDoctor,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.sessionID == "" {
		a.sessionID = uuid.NewString()
	}
	if a.system == "" {
		a.system = defaultSystemMessage(a.role)
	}
	if a.guidance == "" {
		a.guidance = defaultGuidance(a.role)
	}
	turns, err := store.List(ctx, a.sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", a.sessionID, err)
	}
	a.turns = turns
	return a, nil
}

func defaultSystemMessage(r pkg.Role) string {
	if r == pkg.RolePatient {
		return DefaultPatientSystemMessage
	}
	return DoctorSystemMessage
}

func defaultGuidance(r pkg.Role) string {
	if r == pkg.RolePatient {
		return PatientGuidance
	}
	return DoctorGuidance
}

// SessionID returns the identifier of the session the agent is bound to.
func (a *Agent) SessionID() string { return a.sessionID }

// Role returns the side the agent speaks for.
func (a *Agent) Role() pkg.Role { return a.role }

// Ended reports whether the conversation has been closed.
func (a *Agent) Ended() bool { return a.ended }

// Retrying reports whether msg repeats the latest turn, which came from the
// other side.
func (a *Agent) Retrying(msg string) bool {
	n := len(a.turns)
	return n > 0 && a.turns[n-1].Role == a.role.Other() && a.turns[n-1].Content == msg
}

// PendingClosure reports whether a closure was detected and the
// confirmation prompt has not been sent yet.
func (a *Agent) PendingClosure() bool { return a.pending }

// AwaitingConfirmation reports whether the latest turn is the confirmation
// prompt.
func (a *Agent) AwaitingConfirmation() bool {
	n := len(a.turns)
	return a.confirm != "" && !a.ended && n > 0 && a.turns[n-1].Content == a.confirm
}

// End closes the conversation explicitly.
func (a *Agent) End() { a.ended = true }

// Receive records a message from the other side.  Receiving the latest turn
// again, as happens when a caller retries after a failed reply, does not
// store it twice but re-runs detection.
func (a *Agent) Receive(ctx context.Context, msg string) error {
	if a.Retrying(msg) {
		a.logger.Debug("turn already recorded", "session_id", a.sessionID)
		return a.evaluate(ctx)
	}
	return a.append(ctx, a.role.Other(), msg)
}

// Send records a message authored by the agent's own side.
func (a *Agent) Send(ctx context.Context, msg string) error {
	return a.append(ctx, a.role, msg)
}

func (a *Agent) append(ctx context.Context, role pkg.Role, msg string) error {
	turn := pkg.Turn{Role: role, Content: msg, CreatedAt: a.now().UTC()}
	if err := a.store.Append(ctx, a.sessionID, turn); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	a.turns = append(a.turns, turn)
	return a.evaluate(ctx)
}

// evaluate updates the closure state after the latest turn.
func (a *Agent) evaluate(ctx context.Context) error {
	n := len(a.turns)
	if a.ended || n == 0 {
		return nil
	}
	last := a.turns[n-1]
	if a.confirm != "" && last.Content == a.confirm {
		a.pending = false
		return nil
	}
	if a.detector == nil || n < 2 || a.turns[n-2].Role != pkg.RoleDoctor || last.Role != pkg.RolePatient {
		return nil
	}
	if a.confirm != "" && a.turns[n-2].Content == a.confirm {
		if IsAffirmative(last.Content) {
			a.logger.Info("closure confirmed", "session_id", a.sessionID, "turns", n)
			a.ended = true
		} else {
			a.logger.Info("closure declined", "session_id", a.sessionID)
		}
		return nil
	}
	ended, err := a.detector.Detect(ctx, a.turns[n-2].Content, last.Content)
	if err != nil {
		return err
	}
	switch {
	case !ended:
	case a.confirm != "":
		a.logger.Info("closure detected", "session_id", a.sessionID, "turns", n)
		a.pending = true
	default:
		a.logger.Info("conversation ended", "session_id", a.sessionID, "turns", n)
		a.ended = true
	}
	return nil
}

var affirmatives = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "yup": true,
	"sure": true, "ok": true, "okay": true, "correct": true,
}

// IsAffirmative reports whether answer starts with a yes.
func IsAffirmative(answer string) bool {
	words := strings.FieldsFunc(strings.ToLower(answer), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	return len(words) > 0 && affirmatives[words[0]]
}

// GenerateResponse asks the model for the agent's next turn, records it and
// returns it.
func (a *Agent) GenerateResponse(ctx context.Context) (string, error) {
	messages := make([]llm.Message, 0, len(a.turns)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.system})
	for _, t := range a.turns {
		role := llm.RoleUser
		if t.Role == a.role {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: a.guidance})

	resp, err := a.client.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate %s turn: %w", a.role, err)
	}
	if err := a.Send(ctx, resp.Content); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Reset clears the session's turns and reopens the conversation.
func (a *Agent) Reset(ctx context.Context) error {
	if err := a.store.Clear(ctx, a.sessionID); err != nil {
		return fmt.Errorf("reset session %s: %w", a.sessionID, err)
	}
	a.turns = nil
	a.ended = false
	a.pending = false
	return nil
}

// History renders the turns as "<Role>: <content>" lines.  The slice is a
// fresh copy.
func (a *Agent) History() []string {
	out := make([]string, len(a.turns))
	for i, t := range a.turns {
		out[i] = t.Line()
	}
	return out
}

// Turns returns a copy of the recorded turns.
func (a *Agent) Turns() []pkg.Turn {
	out := make([]pkg.Turn, len(a.turns))
	copy(out, a.turns)
	return out
}

// LatestRole returns the author of the latest turn, or "" when the session
// is empty.
func (a *Agent) LatestRole() pkg.Role {
	if len(a.turns) == 0 {
		return ""
	}
	return a.turns[len(a.turns)-1].Role
}
