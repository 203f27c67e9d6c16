package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/expr-lang/expr"
)

// MathToolName is the only tool the model may call.
const MathToolName = "do_math"

const maxExpressionLen = 512

type mathParams struct {
	Expression string `json:"expression"`
}

type mathResult struct {
	Expression string `json:"expression"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewMathTool returns the do_math tool. Evaluation failures are reported in
// the result payload so the model can read them.
func NewMathTool() tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: MathToolName,
		Desc: "Evaluate a numeric math expression and return the result. " +
			"Supports + - * / % and ^ or ** for powers, parentheses, the constants pi and e, " +
			"and sqrt, sin, cos, tan, asin, acos, atan, ln, log, log2, exp, pow, abs, floor, ceil, round.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"expression": {
				Desc:     "The expression to evaluate, e.g. sqrt(2) * (3 + 4)^2",
				Type:     schema.String,
				Required: true,
			},
		}),
	}
	return utils.NewTool(info, runMath)
}

func runMath(_ context.Context, params *mathParams) (*mathResult, error) {
	if params == nil {
		return &mathResult{Error: "expression is required"}, nil
	}
	out := &mathResult{Expression: params.Expression}
	value, err := Evaluate(params.Expression)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.Result = FormatNumber(value)
	return out, nil
}

var mathEnv = map[string]any{
	"pi": math.Pi,
	"e":  math.E,
}

func unary(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument", name)
		}
		x, err := toFloat(params[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return fn(x), nil
	})
}

var mathOptions = []expr.Option{
	expr.Env(mathEnv),
	unary("sqrt", math.Sqrt),
	unary("sin", math.Sin),
	unary("cos", math.Cos),
	unary("tan", math.Tan),
	unary("asin", math.Asin),
	unary("acos", math.Acos),
	unary("atan", math.Atan),
	unary("ln", math.Log),
	unary("log", math.Log10),
	unary("log2", math.Log2),
	unary("exp", math.Exp),
	expr.Function("pow", func(params ...any) (any, error) {
		if len(params) != 2 {
			return nil, errors.New("pow expects 2 arguments")
		}
		x, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		y, err := toFloat(params[1])
		if err != nil {
			return nil, err
		}
		return math.Pow(x, y), nil
	}),
}

// Evaluate computes a numeric expression.
func Evaluate(expression string) (float64, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return 0, errors.New("expression is required")
	}
	if len(expression) > maxExpressionLen {
		return 0, fmt.Errorf("expression longer than %d characters", maxExpressionLen)
	}
	program, err := expr.Compile(expression, mathOptions...)
	if err != nil {
		return 0, fmt.Errorf("invalid expression: %w", err)
	}
	out, err := expr.Run(program, mathEnv)
	if err != nil {
		return 0, fmt.Errorf("evaluate: %w", err)
	}
	value, err := toFloat(out)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.New("result is not a finite number")
	}
	return value, nil
}

// FormatNumber prints integral values without a fraction.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', 12, 64)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expression did not produce a number (got %T)", v)
	}
}

// Toolbox dispatches model tool calls by name.
type Toolbox struct {
	infos []*schema.ToolInfo
	tools map[string]tool.InvokableTool
}

// NewToolbox collects tool infos once up front.
func NewToolbox(ctx context.Context, tools ...tool.InvokableTool) (*Toolbox, error) {
	tb := &Toolbox{tools: make(map[string]tool.InvokableTool, len(tools))}
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		tb.infos = append(tb.infos, info)
		tb.tools[info.Name] = t
	}
	return tb, nil
}

// Infos lists the registered tool definitions.
func (tb *Toolbox) Infos() []*schema.ToolInfo {
	if tb == nil {
		return nil
	}
	return tb.infos
}

// Run executes a tool call and returns the payload to send back to the model.
// Failures are encoded as {"error": ...}.
func (tb *Toolbox) Run(ctx context.Context, call ToolCall) string {
	if tb == nil {
		return errorPayload(fmt.Sprintf("unknown tool: %s", call.Name))
	}
	t, ok := tb.tools[call.Name]
	if !ok {
		return errorPayload(fmt.Sprintf("unknown tool: %s", call.Name))
	}
	args := strings.TrimSpace(call.Arguments)
	if args == "" {
		args = "{}"
	}
	out, err := t.InvokableRun(ctx, args)
	if err != nil {
		return errorPayload(err.Error())
	}
	return out
}

func errorPayload(msg string) string {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return string(raw)
}
