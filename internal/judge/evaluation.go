package judge

// ScoreReasoning is the judge's verdict on one criterion.  Both fields are
// nil when the judge did not answer the criterion.
type ScoreReasoning struct {
	Value     *int    `json:"value"`
	Reasoning *string `json:"reasoning"`
}

// Missing reports whether the criterion was left unanswered.
func (s ScoreReasoning) Missing() bool { return s.Value == nil }

// Evaluation is the parsed result of judging one subject against a rubric.
// Every rubric key is present in Scores.
type Evaluation struct {
	Keys         []string                  `json:"keys"`
	Scores       map[string]ScoreReasoning `json:"scores"`
	Observations string                    `json:"observations"`
}

func newEvaluation(keys []string) *Evaluation {
	return &Evaluation{
		Keys:   append([]string(nil), keys...),
		Scores: make(map[string]ScoreReasoning, len(keys)),
	}
}

// Score returns the verdict for key.
func (e *Evaluation) Score(key string) ScoreReasoning { return e.Scores[key] }

// Passed returns the keys scored 1.
func (e *Evaluation) Passed() []string { return e.keysWith(1) }

// Failed returns the keys scored 0.
func (e *Evaluation) Failed() []string { return e.keysWith(0) }

func (e *Evaluation) keysWith(v int) []string {
	var out []string
	for _, k := range e.Keys {
		if s := e.Scores[k]; s.Value != nil && *s.Value == v {
			out = append(out, k)
		}
	}
	return out
}

// OverallScore is the share of criteria scored 1.  Unanswered criteria
// count as 0.
func (e *Evaluation) OverallScore() float64 {
	if len(e.Keys) == 0 {
		return 0
	}
	return float64(len(e.Passed())) / float64(len(e.Keys))
}

// merge copies the scores of other into e, appending keys e did not have.
func (e *Evaluation) merge(other *Evaluation) {
	for _, k := range other.Keys {
		if _, ok := e.Scores[k]; !ok {
			e.Keys = append(e.Keys, k)
		}
		e.Scores[k] = other.Scores[k]
	}
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }
