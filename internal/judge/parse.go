package judge

import (
	"log/slog"
	"strconv"
	"strings"
)

const (
	passedPhrase = "criteria passed hence the score is 1"
	failedPhrase = "criteria failed hence the score is 0"
)

// ParseResponse reads the judge's line format
//
//	key,"reasoning ending in the verdict phrase",value
//	OBSERVATION: free text
//
// Lines that do not have that shape are skipped.  The verdict phrase in the
// reasoning overrides the trailing value.  Keys outside keys are dropped and
// keys the judge did not answer are filled with a nil ScoreReasoning.  A
// value other than 0 or 1 is kept as a nil score with its reasoning.
func ParseResponse(content string, keys []string, logger *slog.Logger) *Evaluation {
	if logger == nil {
		logger = slog.Default()
	}
	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	ev := newEvaluation(keys)
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		key, sr, ok := parseLine(line)
		if !ok || !wanted[key] {
			continue
		}
		if v := *sr.Value; v != 0 && v != 1 {
			logger.Warn("judge returned a score outside 0 and 1", "criterion", key, "value", v)
			sr.Value = nil
		}
		ev.Scores[key] = sr
	}

	for _, k := range keys {
		if _, ok := ev.Scores[k]; !ok {
			logger.Warn("judge left criterion unanswered", "criterion", k)
			ev.Scores[k] = ScoreReasoning{}
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.ToLower(line), "observation:") {
			ev.Observations = strings.TrimSpace(line[len("observation:"):])
			break
		}
	}
	return ev
}

func parseLine(line string) (string, ScoreReasoning, bool) {
	line = strings.TrimRight(line, "\r")
	key, rest, ok := strings.Cut(line, ",")
	if !ok {
		return "", ScoreReasoning{}, false
	}
	i := strings.LastIndex(rest, ",")
	if i < 0 {
		return "", ScoreReasoning{}, false
	}
	value, err := strconv.Atoi(strings.TrimSpace(rest[i+1:]))
	if err != nil {
		return "", ScoreReasoning{}, false
	}
	reasoning := strings.Trim(rest[:i], `"`)

	switch {
	case strings.Contains(reasoning, passedPhrase):
		value = 1
	case strings.Contains(reasoning, failedPhrase):
		value = 0
	}
	return strings.TrimSpace(key), ScoreReasoning{Value: intPtr(value), Reasoning: strPtr(reasoning)}, true
}
