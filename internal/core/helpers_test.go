package core

import (
	"context"
	"sync"

	"reco-chatbot/pkg"
)

type memStore struct {
	mu    sync.Mutex
	turns map[string][]pkg.Turn
}

func newMemStore() *memStore { return &memStore{turns: map[string][]pkg.Turn{}} }

func (m *memStore) Append(_ context.Context, id string, t pkg.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[id] = append(m.turns[id], t)
	return nil
}

func (m *memStore) List(_ context.Context, id string) ([]pkg.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pkg.Turn, len(m.turns[id]))
	copy(out, m.turns[id])
	return out, nil
}

func (m *memStore) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, id)
	return nil
}

type memRegistry struct {
	mu        sync.Mutex
	patients  map[int64]*pkg.Patient
	sessions  map[string]*pkg.Session
	order     []string
	summaries map[string]*pkg.SummaryRecord
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		patients:  map[int64]*pkg.Patient{},
		sessions:  map[string]*pkg.Session{},
		summaries: map[string]*pkg.SummaryRecord{},
	}
}

func (r *memRegistry) GetPatient(_ context.Context, id int64) (*pkg.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRegistry) CreatePatient(_ context.Context, p *pkg.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.patients {
		if existing.Username == p.Username || existing.Email == p.Email {
			return ErrPatientExists
		}
	}
	p.ID = int64(len(r.patients) + 1)
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *memRegistry) CreateSession(_ context.Context, s *pkg.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	r.order = append(r.order, s.ID)
	return nil
}

func (r *memRegistry) GetSession(_ context.Context, id string) (*pkg.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memRegistry) LatestSession(_ context.Context, patientID int64) (*pkg.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		if s := r.sessions[r.order[i]]; s.PatientID == patientID && !s.Completed {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRegistry) MarkCompleted(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Completed = true
	return nil
}

func (r *memRegistry) GetSummary(_ context.Context, id string) (*pkg.SummaryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaries[id], nil
}

func (r *memRegistry) SaveSummary(_ context.Context, id string, rec *pkg.SummaryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[id] = rec
	return nil
}

func (r *memRegistry) ListSessions(_ context.Context) ([]pkg.SessionPreview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pkg.SessionPreview
	for _, id := range r.order {
		s := r.sessions[id]
		out = append(out, pkg.SessionPreview{SessionID: s.ID, PatientID: s.PatientID, Completed: s.Completed})
	}
	return out, nil
}

type delivery struct {
	session    pkg.Session
	summary    pkg.TranscriptSummary
	transcript []string
}

type recordingSink struct {
	deliveries []delivery
}

func (s *recordingSink) Deliver(_ context.Context, sess pkg.Session, sum pkg.TranscriptSummary, transcript []string) error {
	s.deliveries = append(s.deliveries, delivery{sess, sum, transcript})
	return nil
}

const validSummaryJSON = `{"patient_overview": "Patient reports mild shortness of breath.", "current_symptoms": ["Dyspnea when climbing stairs"], "vital_signs": {"temperature": 97.7, "heart_rate": null, "respiratory_rate": 16, "oxygen_saturation": 98.0, "blood_pressure_systolic": 115, "blood_pressure_diastolic": 60, "weight": null}, "current_medications": ["Lisinopril"], "summary": ["Patient should keep monitoring symptoms."]}`
