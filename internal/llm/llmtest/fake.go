// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"reco-chatbot/internal/llm"
)

// ErrExhausted is returned when a Client runs out of scripted replies.
var ErrExhausted = errors.New("llmtest: no scripted reply left")

// Client records every call and answers from a queue of replies.  When Fn is
// set it takes precedence over the queue.
type Client struct {
	mu      sync.Mutex
	Calls   [][]llm.Message
	Replies []string
	Err     error
	Fn      func(messages []llm.Message) (string, error)
}

// New returns a Client answering with the given replies in order.
func New(replies ...string) *Client {
	return &Client{Replies: replies}
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (*llm.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]llm.Message, len(messages))
	copy(cp, messages)
	c.Calls = append(c.Calls, cp)
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Fn != nil {
		content, err := c.Fn(cp)
		if err != nil {
			return nil, err
		}
		return &llm.Completion{Content: content, Model: "fake-model", FinishReason: "stop"}, nil
	}
	if len(c.Replies) == 0 {
		return nil, ErrExhausted
	}
	content := c.Replies[0]
	c.Replies = c.Replies[1:]
	return &llm.Completion{Content: content, Model: "fake-model", FinishReason: "stop"}, nil
}

// CallCount returns the number of Complete calls so far.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

// LastCall returns the messages of the most recent call.
func (c *Client) LastCall() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Calls) == 0 {
		return nil
	}
	return c.Calls[len(c.Calls)-1]
}
