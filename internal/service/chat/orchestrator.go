// Package chat turns a stored conversation into one persona reply.
package chat

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"fraudechat/internal/logger"
	"fraudechat/internal/metrics"
	"fraudechat/internal/models"
	"fraudechat/internal/persona"
	"fraudechat/internal/sanitize"
	"fraudechat/internal/service/ai"
)

// NoUserMessageText answers a history that does not end with user input.
const NoUserMessageText = "No user message provided."

// DefaultTimeout bounds one provider round when Options.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// ErrEmptyInput is returned when the history does not end with a non-empty user message.
var ErrEmptyInput = errors.New("no user message provided")

var errEmptyCandidate = errors.New("empty candidate")

// Outcome labels how a reply was produced.
type Outcome string

const (
	OutcomeEmptyInput Outcome = "empty_input"
	OutcomeIdentity   Outcome = "identity"
	OutcomeModel      Outcome = "model"
	OutcomeTool       Outcome = "tool"
	OutcomeFallback   Outcome = "fallback"
)

// Reply is the text to show for one user turn.
type Reply struct {
	Text    string
	Mode    persona.Mode
	Outcome Outcome
	// Failure is set when Outcome is OutcomeFallback because of a provider error.
	Failure ai.FailureKind
}

// Options tunes an Orchestrator. Zero values pick the defaults.
type Options struct {
	Timeout       time.Duration
	TrimThreshold int
	// Pick chooses a fallback line index in [0, n).
	Pick func(n int) int
}

// Orchestrator runs the reply state machine. It holds no per-conversation state.
type Orchestrator struct {
	provider      ai.Provider
	tools         *ai.Toolbox
	registry      *persona.Registry
	log           *logger.Logger
	timeout       time.Duration
	trimThreshold int
	pick          func(n int) int
}

// NewOrchestrator wires the collaborators. tools may be nil.
func NewOrchestrator(provider ai.Provider, tools *ai.Toolbox, registry *persona.Registry, log *logger.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	if registry == nil {
		registry = persona.NewRegistry()
	}
	o := &Orchestrator{
		provider:      provider,
		tools:         tools,
		registry:      registry,
		log:           log.Named("chat"),
		timeout:       opts.Timeout,
		trimThreshold: opts.TrimThreshold,
		pick:          opts.Pick,
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	if o.trimThreshold <= 0 {
		o.trimThreshold = sanitize.DefaultTrimThreshold
	}
	if o.pick == nil {
		o.pick = rand.Intn
	}
	return o
}

// Registry exposes the persona registry used for lookups.
func (o *Orchestrator) Registry() *persona.Registry { return o.registry }

// Reply produces the persona's answer to the last message of history.
// Provider failures never surface as errors; they become fallback text.
func (o *Orchestrator) Reply(ctx context.Context, history []*models.Message, mode persona.Mode) (*Reply, error) {
	p := o.registry.Lookup(mode)

	last := lastMessage(history)
	if last == nil || models.ParseRole(string(last.Role)) != models.RoleUser || strings.TrimSpace(last.Content) == "" {
		return o.finish(&Reply{Text: NoUserMessageText, Mode: p.Mode, Outcome: OutcomeEmptyInput}), ErrEmptyInput
	}

	if text, lang, ok := p.IdentityReply(last.Content); ok {
		o.log.Debug("identity short-circuit", zap.String("mode", p.Mode.String()), zap.String("lang", string(lang)))
		return o.finish(&Reply{Text: text, Mode: p.Mode, Outcome: OutcomeIdentity}), nil
	}

	turns := BuildContext(o.registry, p, history)
	text, outcome, err := o.dispatch(ctx, turns)
	if err != nil {
		return o.finish(o.failure(p, err)), nil
	}

	cleaned := sanitize.Clean(text, o.trimThreshold)
	if cleaned == "" {
		return o.finish(&Reply{Text: p.Fallback(persona.CategorySpeechless, o.pick), Mode: p.Mode, Outcome: OutcomeFallback}), nil
	}
	return o.finish(&Reply{Text: cleaned, Mode: p.Mode, Outcome: outcome}), nil
}

// dispatch sends the context and services at most one round of tool calls.
func (o *Orchestrator) dispatch(ctx context.Context, turns []ai.Turn) (string, Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	first, err := o.provider.Complete(ctx, turns)
	if err != nil {
		return "", "", err
	}
	if first.Empty() {
		return "", "", errEmptyCandidate
	}
	if len(first.ToolCalls) == 0 || o.tools == nil {
		if strings.TrimSpace(first.Text) == "" {
			return "", "", errEmptyCandidate
		}
		return first.Text, OutcomeModel, nil
	}

	turns = append(turns, ai.Turn{Role: ai.RoleAssistant, Content: first.Text, ToolCalls: first.ToolCalls})
	for _, call := range first.ToolCalls {
		result := o.tools.Run(ctx, call)
		o.log.Debug("tool call", zap.String("tool", call.Name), zap.String("args", call.Arguments), zap.String("result", result))
		turns = append(turns, ai.Turn{
			Role:       ai.RoleTool,
			Content:    result,
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
	}

	second, err := o.provider.Complete(ctx, turns)
	if err != nil {
		return "", "", err
	}
	if second == nil || strings.TrimSpace(second.Text) == "" {
		// a second tool request is not serviced
		return "", "", errEmptyCandidate
	}
	return second.Text, OutcomeTool, nil
}

func (o *Orchestrator) failure(p *persona.Persona, err error) *Reply {
	reply := &Reply{Mode: p.Mode, Outcome: OutcomeFallback}
	if errors.Is(err, errEmptyCandidate) || errors.Is(err, ai.ErrNoCandidate) {
		o.log.Info("provider returned no usable candidate", zap.String("mode", p.Mode.String()))
		reply.Text = p.Fallback(persona.CategoryEmptyReply, o.pick)
		return reply
	}
	kind := ai.Classify(err)
	reply.Failure = kind
	reply.Text = FailureText(p, kind, o.pick)
	metrics.RecordFailure(string(kind))
	o.log.Warn("provider call failed", zap.String("mode", p.Mode.String()), zap.String("kind", string(kind)), zap.Error(err))
	return reply
}

func (o *Orchestrator) finish(r *Reply) *Reply {
	metrics.RecordReply(r.Mode.String(), string(r.Outcome))
	return r
}

// FailureText maps a classified failure onto user-facing text.
func FailureText(p *persona.Persona, kind ai.FailureKind, pick func(n int) int) string {
	switch kind {
	case ai.FailureDailyQuota, ai.FailureQuota:
		return persona.DailyQuotaMessage
	case ai.FailureRateLimited:
		return p.Fallback(persona.CategoryRateLimited, pick)
	case ai.FailureBadRequest:
		return p.Fallback(persona.CategoryBadRequest, pick)
	case ai.FailureUnavailable:
		return p.Fallback(persona.CategoryUnavailable, pick)
	default:
		return p.Fallback(persona.CategoryGeneric, pick)
	}
}

func lastMessage(history []*models.Message) *models.Message {
	if len(history) == 0 {
		return nil
	}
	return history[len(history)-1]
}
