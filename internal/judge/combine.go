package judge

import "strings"

// CombineCurrentSymptomsAgree folds orthopnea_agree into
// current_symptoms_agree.  Nothing changes unless both are present.
func CombineCurrentSymptomsAgree(e *Evaluation) {
	combineInto(e, "current_symptoms_agree", "; ", "orthopnea_agree")
}

// CombineNoDiagnose folds no_normality and no_stability into no_diagnose.
// Nothing changes unless all three are present.
func CombineNoDiagnose(e *Evaluation) {
	combineInto(e, "no_diagnose", " ", "no_normality", "no_stability")
}

// combineInto ANDs the values of the parts into target and appends their
// reasoning.  A 0 anywhere wins; otherwise a missing value makes the result
// missing.
func combineInto(e *Evaluation, target, sep string, parts ...string) {
	all := append([]string{target}, parts...)
	scores := make([]ScoreReasoning, 0, len(all))
	for _, k := range all {
		s, ok := e.Scores[k]
		if !ok {
			return
		}
		scores = append(scores, s)
	}

	var (
		zero, missing bool
		reasons       []string
	)
	for _, s := range scores {
		switch {
		case s.Value == nil:
			missing = true
		case *s.Value == 0:
			zero = true
		}
		if s.Reasoning != nil {
			reasons = append(reasons, *s.Reasoning)
		}
	}

	var combined ScoreReasoning
	switch {
	case zero:
		combined.Value = intPtr(0)
	case !missing:
		combined.Value = intPtr(1)
	}
	if len(reasons) > 0 {
		combined.Reasoning = strPtr(strings.Join(reasons, sep))
	}
	e.Scores[target] = combined
}
