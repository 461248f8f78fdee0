// Package judge scores dialogue transcripts and check-in summaries with an
// LLM acting as a rubric-driven grader.
package judge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reco-chatbot/internal/llm"
)

type config struct {
	rubric       *Rubric
	cache        *Cache
	logger       *slog.Logger
	instructions *string
}

// Option configures a judge.
type Option func(*config)

// WithRubric replaces the built-in rubric.
func WithRubric(r *Rubric) Option { return func(c *config) { c.rubric = r } }

// WithCache shares an evaluation cache.  Judges get a private cache by
// default.
func WithCache(cache *Cache) Option { return func(c *config) { c.cache = cache } }

// WithLogger sets the judge's logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithInstructions replaces the additional instructions sent with an
// improvement request.  An empty string sends none.
func WithInstructions(s string) Option { return func(c *config) { c.instructions = &s } }

func newConfig(defaultRubric func() *Rubric, defaultInstructions string, opts []Option) config {
	c := config{}
	for _, o := range opts {
		o(&c)
	}
	if c.rubric == nil {
		c.rubric = defaultRubric()
	}
	if c.cache == nil {
		c.cache = NewCache()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.instructions == nil {
		c.instructions = &defaultInstructions
	}
	return c
}

func criteriaList(s Section, quote string) string {
	lines := make([]string, len(s.Criteria))
	for i, c := range s.Criteria {
		lines[i] = fmt.Sprintf("%s%s%s: %s", quote, c.Key, quote, c.Question)
	}
	return strings.Join(lines, "\n")
}

// Suggestion is an advisory prompt revision.
type Suggestion struct {
	Text       string
	KeyChanges string
}

const keyChangesHeading = "KEY CHANGES"

// splitSuggestion separates the "KEY CHANGES" part of an improvement answer
// from the rest.
func splitSuggestion(content string) Suggestion {
	i := strings.LastIndex(content, keyChangesHeading)
	if i < 0 {
		return Suggestion{Text: strings.TrimSpace(content)}
	}
	text := strings.TrimRight(content[:i], " \t\n#*")
	changes := strings.TrimLeft(content[i+len(keyChangesHeading):], " \t\n#*:\"")
	return Suggestion{Text: strings.TrimSpace(text), KeyChanges: strings.TrimSpace(changes)}
}

func suggest(ctx context.Context, client llm.Client, system string, learnings []string, instructions string) (*Suggestion, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: "LEARNINGS:\n" + strings.Join(learnings, "\n")},
	}
	if instructions != "" {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: instructions})
	}
	resp, err := client.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("suggest improvement: %w", err)
	}
	s := splitSuggestion(resp.Content)
	return &s, nil
}
