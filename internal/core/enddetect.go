package core

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"reco-chatbot/internal/llm"
)

// closingTerms is the lexicon of phrases that close a conversation on their
// own.  Longer variants come first so the alternation prefers them.
var closingTerms = []string{
	"good-bye",
	"good bye",
	"goodbye",
	"bye-bye",
	"bye",
	"farewell",
	"take care",
	"see you later",
	"see you soon",
	"see you next time",
	"talk to you later",
	"talk to you soon",
	"have a good day",
	"have a great day",
	"have a nice day",
}

var closingPattern = compileLexicon(closingTerms)

func compileLexicon(terms []string) *regexp.Regexp {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// EndDetector decides whether the latest doctor/patient exchange closes the
// check-in.  A lexical pass runs first; only when it finds nothing and both
// utterances are present is the classification model consulted.
type EndDetector struct {
	client llm.Client
	logger *slog.Logger
}

// NewEndDetector returns a detector backed by client.  A nil client limits
// detection to the lexical stage.
func NewEndDetector(client llm.Client, logger *slog.Logger) *EndDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &EndDetector{client: client, logger: logger}
}

// Detect reports whether the conversation is closing.  An empty string
// means the utterance does not exist yet.  Upstream failures are returned
// as errors; an unclassifiable model answer is treated as "continue".
func (d *EndDetector) Detect(ctx context.Context, doctor, patient string) (bool, error) {
	if MatchesClosingTerm(doctor) || MatchesClosingTerm(patient) {
		return true, nil
	}
	if doctor == "" || patient == "" || d.client == nil {
		return false, nil
	}

	prompt := fmt.Sprintf(endDetectorPrompt, doctor, patient)
	resp, err := d.client.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return false, fmt.Errorf("end detection: %w", err)
	}
	switch answer := strings.ToLower(strings.TrimSpace(resp.Content)); answer {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		d.logger.Debug("ambiguous closure answer", "answer", resp.Content)
		return false, nil
	}
}

// MatchesClosingTerm reports whether s contains a closing phrase as whole
// words, ignoring case.
func MatchesClosingTerm(s string) bool {
	if s == "" {
		return false
	}
	return closingPattern.MatchString(s)
}
