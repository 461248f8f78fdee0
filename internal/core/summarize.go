package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"reco-chatbot/internal/llm"
	"reco-chatbot/pkg"
)

// Summarizer turns a finished transcript into a TranscriptSummary with one
// model call.
type Summarizer struct {
	client llm.Client
	system string
	logger *slog.Logger
}

// NewSummarizer constructs a summariser using the default JSON prompt.
func NewSummarizer(client llm.Client, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{client: client, system: SummarizeSystemMessage, logger: logger}
}

// Prompt returns the system prompt the summariser sends.
func (s *Summarizer) Prompt() string { return s.system }

// Summarize sends the transcript to the model and decodes its answer.  The
// completion is returned alongside so callers can persist its metadata.
// Decode problems are reported as ErrMalformedOutput (or ErrMissingField);
// nothing is retried.
func (s *Summarizer) Summarize(ctx context.Context, transcript []string) (*pkg.TranscriptSummary, *llm.Completion, error) {
	resp, err := s.client.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: s.system},
		{Role: llm.RoleUser, Content: strings.Join(transcript, "\n")},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("summarize: %w", err)
	}
	summary, err := ParseSummary(resp.Content)
	if err != nil {
		s.logger.Warn("summary output rejected", "err", err, "finish_reason", resp.FinishReason)
		return nil, resp, err
	}
	return summary, resp, nil
}

var requiredSummaryKeys = []string{
	"patient_overview",
	"current_symptoms",
	"vital_signs",
	"current_medications",
	"summary",
}

// ParseSummary decodes a raw model answer into a TranscriptSummary.  Code
// fences and newlines are stripped first.  Vital signs that are not numbers
// become nil.
func ParseSummary(raw string) (*pkg.TranscriptSummary, error) {
	cleaned := strings.NewReplacer("```json", "", "```", "", "\n", "").Replace(raw)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	for _, k := range requiredSummaryKeys {
		if _, ok := obj[k]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, k)
		}
	}

	var out pkg.TranscriptSummary
	if err := decodeText(obj["patient_overview"], &out.PatientOverview); err != nil {
		return nil, fmt.Errorf("%w: patient_overview: %v", ErrMalformedOutput, err)
	}
	var err error
	if out.CurrentSymptoms, err = decodeList(obj["current_symptoms"]); err != nil {
		return nil, fmt.Errorf("%w: current_symptoms: %v", ErrMalformedOutput, err)
	}
	if out.CurrentMedications, err = decodeList(obj["current_medications"]); err != nil {
		return nil, fmt.Errorf("%w: current_medications: %v", ErrMalformedOutput, err)
	}
	summaryLines, err := decodeList(obj["summary"])
	if err != nil {
		return nil, fmt.Errorf("%w: summary: %v", ErrMalformedOutput, err)
	}
	out.Summary = strings.Join(summaryLines, "\n")
	if out.VitalSigns, err = decodeVitals(obj["vital_signs"]); err != nil {
		return nil, fmt.Errorf("%w: vital_signs: %v", ErrMalformedOutput, err)
	}
	return &out, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeText(raw json.RawMessage, dst *string) error {
	if isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// decodeList accepts an array of strings or a single string.
func decodeList(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("want string or list of strings, got %s", raw)
	}
	return []string{single}, nil
}

func decodeVitals(raw json.RawMessage) (pkg.VitalSigns, error) {
	var v pkg.VitalSigns
	if isNull(raw) {
		return v, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return v, err
	}
	v.Temperature = number(fields["temperature"])
	v.HeartRate = number(fields["heart_rate"])
	v.RespiratoryRate = number(fields["respiratory_rate"])
	v.OxygenSaturation = number(fields["oxygen_saturation"])
	v.BloodPressureSystolic = number(fields["blood_pressure_systolic"])
	v.BloodPressureDiastolic = number(fields["blood_pressure_diastolic"])
	v.Weight = number(fields["weight"])
	return v, nil
}

func number(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}
