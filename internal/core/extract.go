package core

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"reco-chatbot/internal/llm"
)

// noConversationEnd is what the model answers when the first conversation
// never ends.
const noConversationEnd = 999

// FirstConversationExtractor trims simulated transcripts in which the agents
// started a second check-in after the first one closed.
type FirstConversationExtractor struct {
	client llm.Client
	logger *slog.Logger
}

func NewFirstConversationExtractor(client llm.Client, logger *slog.Logger) *FirstConversationExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FirstConversationExtractor{client: client, logger: logger}
}

// Extract returns the lines of the first conversation.  When the model
// reports no end, or answers with something that is not a usable line
// number, the whole transcript is kept.
func (e *FirstConversationExtractor) Extract(ctx context.Context, transcript []string) ([]string, error) {
	var b strings.Builder
	for i, line := range transcript {
		fmt.Fprintf(&b, "%d: %s\n", i, line)
	}
	resp, err := e.client.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: fmt.Sprintf(firstConversationPrompt, b.String())},
	})
	if err != nil {
		return nil, fmt.Errorf("extract first conversation: %w", err)
	}

	out := make([]string, len(transcript))
	copy(out, transcript)

	last, err := strconv.Atoi(strings.TrimSpace(resp.Content))
	if err != nil {
		e.logger.Warn("non-numeric conversation end", "answer", resp.Content)
		return out, nil
	}
	if last == noConversationEnd || last < 0 || last >= len(out) {
		return out, nil
	}
	return out[:last+1], nil
}
