package pkg

import "time"

// Role identifies which side of a check-in authored a turn.  Only two roles
// exist: the (virtual) doctor and the patient.
type Role string

const (
	RoleDoctor  Role = "Doctor"
	RolePatient Role = "Patient"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleDoctor || r == RolePatient }

// Other returns the opposite side of the conversation.
func (r Role) Other() Role {
	if r == RoleDoctor {
		return RolePatient
	}
	return RoleDoctor
}

// Turn is a single role-tagged chat message.  Turns are append-only and
// ordered by insertion.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Line renders the turn the way transcripts are stored and shown to the
// summariser and judges ("Doctor: ...").
func (t Turn) Line() string { return string(t.Role) + ": " + t.Content }

// Patient is a registered check-in user.
type Patient struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Name returns the display name of the patient.
func (p Patient) Name() string { return p.FirstName + " " + p.LastName }

// Session represents one check-in conversation of a patient.  It is keyed by
// a UUID.  Completed flips to true exactly once, when the conversation ends.
type Session struct {
	ID        string    `json:"id"`
	PatientID int64     `json:"patient_id"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VitalSigns holds the vitals reported during a check-in.  Every field is
// independently nullable; a vital that was not mentioned stays nil.
type VitalSigns struct {
	Temperature            *float64 `json:"temperature"`
	HeartRate              *float64 `json:"heart_rate"`
	RespiratoryRate        *float64 `json:"respiratory_rate"`
	OxygenSaturation       *float64 `json:"oxygen_saturation"`
	BloodPressureSystolic  *float64 `json:"blood_pressure_systolic"`
	BloodPressureDiastolic *float64 `json:"blood_pressure_diastolic"`
	Weight                 *float64 `json:"weight"`
}

// TranscriptSummary is the structured, doctor-facing summary of a finished
// check-in.
type TranscriptSummary struct {
	PatientOverview    string     `json:"patient_overview"`
	CurrentSymptoms    []string   `json:"current_symptoms"`
	VitalSigns         VitalSigns `json:"vital_signs"`
	CurrentMedications []string   `json:"current_medications"`
	Summary            string     `json:"summary"`
}

// ResponseMetadata describes the model call that produced a summary.
type ResponseMetadata struct {
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// SummaryRecord is what gets persisted for a session once it is summarised.
type SummaryRecord struct {
	Summary          TranscriptSummary `json:"summary"`
	ResponseMetadata ResponseMetadata  `json:"response_metadata"`
}

// SessionPreview is returned in the list of sessions for the doctor
// dashboard.
type SessionPreview struct {
	SessionID   string    `json:"session_id"`
	PatientID   int64     `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Completed   bool      `json:"completed"`
	HasSummary  bool      `json:"has_summary"`
	Turns       int       `json:"turns"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChatRequest represents a message sent by the patient.
type ChatRequest struct {
	Content string `json:"content"`
}

// ChatResponse contains the doctor's reply and whether the check-in has
// ended.  Capped is set when the per-session message cap was hit.
// AwaitingConfirmation is set when the reply asks the patient to confirm
// the end of the check-in; a yes closes it and anything else continues.
type ChatResponse struct {
	SessionID            string `json:"session_id"`
	Reply                string `json:"reply,omitempty"`
	Ended                bool   `json:"ended"`
	Capped               bool   `json:"capped"`
	AwaitingConfirmation bool   `json:"awaiting_confirmation"`
}

// SessionDetail bundles a session with its transcript and, once the
// check-in is finished, its summary.
type SessionDetail struct {
	Session Session        `json:"session"`
	Turns   []Turn         `json:"turns"`
	Summary *SummaryRecord `json:"summary,omitempty"`
}

// SignUpRequest registers a new patient.
type SignUpRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}
