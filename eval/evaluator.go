package eval

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
)

// Evaluator computes a value from an expression and a context snapshot.
// It is used for boolean branch conditions and for rule/decision tasks.
type Evaluator interface {
	Evaluate(expression string, context map[string]any) (any, error)
}

var _ Evaluator = new(JsEvaluator)

// JsEvaluator evaluates javascript expressions with the context bound to
// the variable $.
type JsEvaluator struct{}

func NewJsEvaluator() *JsEvaluator {
	return &JsEvaluator{}
}

func (e *JsEvaluator) Evaluate(expression string, context map[string]any) (any, error) {
	if len(expression) == 0 {
		return nil, fmt.Errorf("expression can not be empty")
	}
	data, err := json.Marshal(context)
	if err != nil {
		return nil, err
	}
	vm := goja.New()
	script := fmt.Sprintf("var $ = %s;\n%s", data, expression)
	val, err := vm.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("error evaluating expression %w", err)
	}
	return val.Export(), nil
}

// AsBool interprets an evaluation result as a branch condition outcome.
func AsBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true"
	case int64:
		return val != 0
	case float64:
		return val != 0
	case nil:
		return false
	}
	return false
}
