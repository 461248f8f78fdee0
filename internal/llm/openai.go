package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// ErrUpstream marks failures of the generation service itself, as opposed
// to problems with what it returned.
var ErrUpstream = errors.New("llm upstream error")

// Message is a minimal chat message.  Role must be one of: "system",
// "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// Completion is the generated text plus the metadata the summariser
// persists next to the summary.
type Completion struct {
	Content          string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// Client is the generation service used by the dialogue agent, the end
// detector, the summariser and the judges.  Every call is a single blocking
// round trip; no retries happen at this layer.
type Client interface {
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}

// OpenAIClient calls the OpenAI chat completion API with a fixed model and
// temperature.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIClient constructs an OpenAI-backed client.  An empty apiKey falls
// back to OPENAI_API_KEY.
func NewOpenAIClient(apiKey, model string, temperature float32) *OpenAIClient {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
	}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends the message history to the chat completion API and returns
// the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	if c.client == nil {
		return nil, errors.New("openai client not initialized")
	}

	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != RoleSystem && role != RoleUser && role != RoleAssistant {
			// coerce anything unknown to user
			role = RoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	temperature := c.temperature
	if temperature == 0 {
		// a zero temperature is dropped by omitempty and the API default applies
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    oaMsgs,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	out := &Completion{
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = string(resp.Choices[0].FinishReason)
	}
	return out, nil
}
