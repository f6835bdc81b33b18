package processor

import (
	"fmt"
	"math"
	"strings"

	goeval "github.com/edisonguo/govaluate"
)

// ValueExpr rescales raw raster values, e.g. "-value" to report depths as
// positive numbers. The only variable is "value". A nil *ValueExpr is the
// identity.
type ValueExpr struct {
	src  string
	expr *goeval.EvaluableExpression
}

func ParseValueExpr(expression string) (*ValueExpr, error) {
	if len(strings.TrimSpace(expression)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(expression)
	if err != nil {
		return nil, err
	}

	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if varName != "value" {
				return nil, fmt.Errorf("variable %v is not supported. The only valid variable is value", varName)
			}
		}
	}
	return &ValueExpr{src: expression, expr: expr}, nil
}

func (e *ValueExpr) String() string {
	if e == nil {
		return "value"
	}
	return e.src
}

func (e *ValueExpr) Apply(v float64) (float64, error) {
	if e == nil {
		return v, nil
	}
	out, err := e.expr.Evaluate(map[string]interface{}{"value": v})
	if err != nil {
		return 0, fmt.Errorf("evaluating %q: %v", e.src, err)
	}
	f, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("expression %q returned %T, not a number", e.src, out)
	}
	return f, nil
}

// ApplyRange maps a value range, reordering the bounds when the expression
// is decreasing.
func (e *ValueExpr) ApplyRange(min, max float64) (float64, float64, error) {
	a, err := e.Apply(min)
	if err != nil {
		return 0, 0, err
	}
	b, err := e.Apply(max)
	if err != nil {
		return 0, 0, err
	}
	return math.Min(a, b), math.Max(a, b), nil
}
