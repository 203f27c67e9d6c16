package ai

import (
	"context"
	"errors"
	"strings"
)

// Role of a provider-facing turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured request from the model to run a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Turn is one entry of the context sent to the provider.
type Turn struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// Completion is what the provider answered: text, tool calls, or neither.
type Completion struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason string
}

// Empty reports a candidate without usable content.
func (c *Completion) Empty() bool {
	return c == nil || (strings.TrimSpace(c.Text) == "" && len(c.ToolCalls) == 0)
}

// Provider is the generative-text collaborator. Implementations must be safe
// for concurrent use.
type Provider interface {
	// Complete answers a role-tagged context, possibly with tool calls.
	Complete(ctx context.Context, turns []Turn) (*Completion, error)
	// CompleteSimple answers a single prompt with plain text.
	CompleteSimple(ctx context.Context, prompt string) (string, error)
}

// ErrNoCandidate is returned when the provider produced no output at all.
var ErrNoCandidate = errors.New("provider returned no candidate")
