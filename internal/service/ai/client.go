package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"fraudechat/internal/logger"
	"fraudechat/internal/metrics"
)

// Client adapts an eino chat model to the Provider interface.
type Client struct {
	name   string
	plain  model.ToolCallingChatModel
	tooled model.ToolCallingChatModel
	log    *logger.Logger
}

// NewClient binds the toolbox to chatModel. A nil toolbox disables tool calls.
func NewClient(name string, chatModel model.ToolCallingChatModel, toolbox *Toolbox, log *logger.Logger) (*Client, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model required")
	}
	if log == nil {
		log = logger.Nop()
	}
	tooled := chatModel
	if toolbox != nil && len(toolbox.Infos()) > 0 {
		bound, err := chatModel.WithTools(toolbox.Infos())
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
		tooled = bound
	}
	return &Client{
		name:   name,
		plain:  chatModel,
		tooled: tooled,
		log:    log.Named("provider").With(zap.String("provider", name)),
	}, nil
}

// Complete sends the context to the tool-aware model.
func (c *Client) Complete(ctx context.Context, turns []Turn) (*Completion, error) {
	start := time.Now()
	resp, err := c.tooled.Generate(ctx, toSchemaMessages(turns))
	if err != nil {
		perr := newProviderError(err)
		metrics.RecordProviderCall("chat", string(perr.Kind), time.Since(start).Seconds())
		c.log.Warn("chat completion failed", zap.String("kind", string(perr.Kind)), zap.Error(err))
		return nil, perr
	}
	if resp == nil {
		metrics.RecordProviderCall("chat", "no_candidate", time.Since(start).Seconds())
		return nil, ErrNoCandidate
	}
	metrics.RecordProviderCall("chat", "ok", time.Since(start).Seconds())
	return fromSchemaMessage(resp), nil
}

// CompleteSimple sends a single prompt without tools.
func (c *Client) CompleteSimple(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.plain.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		perr := newProviderError(err)
		metrics.RecordProviderCall("simple", string(perr.Kind), time.Since(start).Seconds())
		return "", perr
	}
	metrics.RecordProviderCall("simple", "ok", time.Since(start).Seconds())
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", ErrNoCandidate
	}
	return strings.TrimSpace(resp.Content), nil
}

func toSchemaMessages(turns []Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case RoleAssistant:
			msg := &schema.Message{Role: schema.Assistant, Content: t.Content}
			for _, tc := range t.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: schema.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, msg)
		case RoleTool:
			out = append(out, &schema.Message{
				Role:       schema.Tool,
				Content:    t.Content,
				ToolCallID: t.ToolCallID,
				ToolName:   t.ToolName,
			})
		default:
			out = append(out, schema.UserMessage(t.Content))
		}
	}
	return out
}

func fromSchemaMessage(msg *schema.Message) *Completion {
	completion := &Completion{Text: msg.Content}
	if msg.ResponseMeta != nil {
		completion.FinishReason = msg.ResponseMeta.FinishReason
	}
	for _, tc := range msg.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return completion
}

// Offline is a Provider used when no model is configured. Every call fails as
// an unavailable upstream so callers fall back to canned text.
type Offline struct {
	Reason string
}

func (o Offline) Complete(context.Context, []Turn) (*Completion, error) {
	return nil, &ProviderError{Kind: FailureUnavailable, Err: fmt.Errorf("503 provider offline: %s", o.Reason)}
}

func (o Offline) CompleteSimple(context.Context, string) (string, error) {
	return "", &ProviderError{Kind: FailureUnavailable, Err: fmt.Errorf("503 provider offline: %s", o.Reason)}
}
