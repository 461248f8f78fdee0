package core

import (
	"context"
	"fmt"
	"log/slog"

	"reco-chatbot/pkg"
)

// Simulator lets a doctor agent and a patient agent talk to each other.  Each
// agent keeps its own copy of the conversation.
type Simulator struct {
	Doctor  *Agent
	Patient *Agent
	Logger  *slog.Logger
}

// Run has start speak first, with startMessage if given or a generated turn
// otherwise, and then alternates speakers for up to steps further turns.  It
// stops early when the doctor's side ends the conversation and returns the
// doctor's view of the transcript.
func (s *Simulator) Run(ctx context.Context, start pkg.Role, startMessage string, steps int) ([]string, error) {
	if s.Doctor == nil || s.Patient == nil {
		return nil, fmt.Errorf("simulator needs both agents")
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	speaker := start
	if startMessage != "" {
		if err := s.deliver(ctx, speaker, startMessage); err != nil {
			return nil, err
		}
	} else if err := s.step(ctx, speaker); err != nil {
		return nil, err
	}

	for i := 0; i < steps && !s.Doctor.Ended(); i++ {
		speaker = speaker.Other()
		if err := s.step(ctx, speaker); err != nil {
			return nil, err
		}
	}
	logger.Info("simulation finished",
		"session_id", s.Doctor.SessionID(),
		"turns", len(s.Doctor.turns),
		"ended", s.Doctor.Ended())
	return s.Doctor.History(), nil
}

func (s *Simulator) agents(speaker pkg.Role) (self, other *Agent) {
	if speaker == pkg.RoleDoctor {
		return s.Doctor, s.Patient
	}
	return s.Patient, s.Doctor
}

func (s *Simulator) step(ctx context.Context, speaker pkg.Role) error {
	self, other := s.agents(speaker)
	msg, err := self.GenerateResponse(ctx)
	if err != nil {
		return err
	}
	return other.Receive(ctx, msg)
}

func (s *Simulator) deliver(ctx context.Context, speaker pkg.Role, msg string) error {
	self, other := s.agents(speaker)
	if err := self.Send(ctx, msg); err != nil {
		return err
	}
	return other.Receive(ctx, msg)
}
