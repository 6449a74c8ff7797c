// In file: internal/tools/calculator_tool.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
)

// Completer is the language-model collaborator as the tools see it: a prompt
// in, the model's raw text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// mathPromptTemplate asks the model to rewrite a word problem as a single
// expression inside a ```text block, which we then evaluate locally.
const mathPromptTemplate = `Translate a math problem into a single-line expression that can be evaluated by a calculator.
Use +, -, *, /, %% and ** (power), parentheses, and the functions sqrt, abs, exp, log, log10, log2, sin, cos, tan, floor, ceil, round, min, max. The constants pi and e are available.
Reply with the expression in the format below and nothing else.

Question: ${Question with math problem.}
` + "```text" + `
${single line mathematical expression that solves the problem}
` + "```" + `

Begin.

Question: What is 37593 * 67?
` + "```text" + `
37593 * 67
` + "```" + `

Question: What is 37593^(1/5)?
` + "```text" + `
37593 ** (1/5)
` + "```" + `

Question: %s
`

var (
	// textBlockRegex extracts the expression the model put in a ```text block.
	textBlockRegex = regexp.MustCompile("(?s)```text\\s*\\n(.*?)\\n?```")

	// arithmeticRegex recognizes inputs that are already a bare expression.
	arithmeticRegex = regexp.MustCompile(`^[\d\s.+\-*/%^(),]+$`)

	errUnknownFormat = errors.New("model reply contained neither an expression nor an answer")
)

// CalculatorTool evaluates mathematical expressions. Bare arithmetic is
// evaluated directly; anything else is first translated into an expression
// by the language model.
type CalculatorTool struct {
	model Completer
}

// Statically verify that CalculatorTool implements the ToolExecutor interface.
var _ ToolExecutor = (*CalculatorTool)(nil)

// NewCalculatorTool creates a calculator. model may be nil, in which case
// only bare expressions can be evaluated.
func NewCalculatorTool(model Completer) *CalculatorTool {
	return &CalculatorTool{model: model}
}

// Definition implements ToolExecutor.
func (ct *CalculatorTool) Definition() Definition {
	return Definition{
		Name:        CalculatorToolName,
		Description: "Perform mathematical calculations.",
	}
}

// Execute evaluates input and returns "Answer: <value>".
func (ct *CalculatorTool) Execute(ctx context.Context, input string) (string, error) {
	question := strings.TrimSpace(input)
	if question == "" {
		return "", &ExpressionError{Input: input, Err: errors.New("empty expression")}
	}

	if arithmeticRegex.MatchString(question) {
		value, err := Evaluate(question)
		if err != nil {
			return "", &ExpressionError{Input: question, Err: err}
		}
		return "Answer: " + value, nil
	}

	if ct.model == nil {
		return "", &ExpressionError{Input: question, Err: errors.New("not a bare arithmetic expression")}
	}

	reply, err := ct.model.Complete(ctx, fmt.Sprintf(mathPromptTemplate, question))
	if err != nil {
		return "", &ExternalServiceError{Service: "calculator model", Err: err}
	}
	return processMathReply(question, reply)
}

// processMathReply interprets the model's reply: an expression block is
// evaluated, a direct "Answer:" line is passed through.
func processMathReply(question, reply string) (string, error) {
	reply = strings.TrimSpace(reply)
	if m := textBlockRegex.FindStringSubmatch(reply); m != nil {
		expression := strings.TrimSpace(m[1])
		value, err := Evaluate(expression)
		if err != nil {
			return "", &ExpressionError{Input: expression, Err: err}
		}
		return "Answer: " + value, nil
	}
	if strings.HasPrefix(reply, "Answer:") {
		return reply, nil
	}
	if idx := strings.Index(reply, "Answer:"); idx >= 0 {
		return strings.TrimSpace(reply[idx:]), nil
	}
	return "", &ExpressionError{Input: question, Err: errUnknownFormat}
}

// Evaluate computes a single expression and formats the result.
func Evaluate(expression string) (string, error) {
	program, err := compile(expression)
	if err != nil {
		return "", err
	}
	out, err := vm.Run(program, calculatorEnv)
	if err != nil {
		return "", err
	}
	return formatResult(out)
}

// calculatorEnv exposes the constants the math prompt promises.
var calculatorEnv = map[string]any{
	"pi": math.Pi,
	"e":  math.E,
}

// unaryFuncs are the one-argument functions the math prompt promises.
var unaryFuncs = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"exp":   math.Exp,
	"log":   math.Log,
	"log10": math.Log10,
	"log2":  math.Log2,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
}

func compile(expression string) (*vm.Program, error) {
	// numexpr-style inputs use ^ for power more often than not.
	expression = strings.ReplaceAll(expression, "^", "**")

	opts := []expr.Option{
		expr.Env(calculatorEnv),
		expr.Patch(floatArithmetic{}),
		expr.Function(fmodFunc, func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("%% takes exactly two operands")
			}
			x, err := toFloat(params[0])
			if err != nil {
				return nil, err
			}
			y, err := toFloat(params[1])
			if err != nil {
				return nil, err
			}
			return math.Mod(x, y), nil
		}),
	}
	for name, fn := range unaryFuncs {
		opts = append(opts, expr.Function(name, func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("%s takes exactly one argument", name)
			}
			x, err := toFloat(params[0])
			if err != nil {
				return nil, err
			}
			return fn(x), nil
		}))
	}
	return expr.Compile(expression, opts...)
}

const fmodFunc = "fmod"

// floatArithmetic evaluates every number as float64, the way numexpr does,
// so large operands lose precision instead of wrapping around int64.
// expr only defines % on integers, so it becomes a call to fmod.
type floatArithmetic struct{}

func (floatArithmetic) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IntegerNode:
		ast.Patch(node, &ast.FloatNode{Value: float64(n.Value)})
	case *ast.BinaryNode:
		if n.Operator == "%" {
			ast.Patch(node, &ast.CallNode{
				Callee:    &ast.IdentifierNode{Value: fmodFunc},
				Arguments: []ast.Node{n.Left, n.Right},
			})
		}
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func formatResult(out any) (string, error) {
	switch v := out.(type) {
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("result is not a finite number")
		}
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatFloat(v, 'f', 0, 64), nil
		}
		return strconv.FormatFloat(v, 'g', 12, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("expression did not produce a number (got %T)", out)
	}
}
