package formula

import (
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"perseus/engine/models"
)

// Formula is a compiled numeric expression over the kinematic environment
// (pt, eta, e). Efficiency parameterisations and calorimeter resolution
// functions are configured as strings and compiled once at module Init.
type Formula struct {
	src  string
	prog *vm.Program
}

func funcs() map[string]any {
	return map[string]any{
		"abs":  math.Abs,
		"sqrt": math.Sqrt,
		"exp":  math.Exp,
		"log":  math.Log,
		"pow":  math.Pow,
		"tanh": math.Tanh,
		"cosh": math.Cosh,
		"sinh": math.Sinh,
		"min":  math.Min,
		"max":  math.Max,
	}
}

func env(pt, eta, e float64) map[string]any {
	m := funcs()
	m["pt"] = pt
	m["eta"] = eta
	m["e"] = e
	return m
}

// Compile parses and type-checks the expression. The error is a ConfigError
// payload-in-waiting: callers wrap it with their module and key.
func Compile(src string) (*Formula, error) {
	prog, err := expr.Compile(src, expr.Env(env(0, 0, 0)), expr.AsFloat64())
	if err != nil {
		return nil, err
	}
	return &Formula{src: src, prog: prog}, nil
}

// MustCompile is Compile for programmatic constants.
func MustCompile(src string) *Formula {
	f, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Formula) Source() string { return f.src }

// Eval evaluates at (pt, eta, e). Failures surface as NumericError; callers
// recover locally by substituting 0.
func (f *Formula) Eval(pt, eta, e float64) (float64, error) {
	out, err := expr.Run(f.prog, env(pt, eta, e))
	if err != nil {
		return 0, &models.NumericError{Op: "formula " + f.src, Err: err}
	}
	v, ok := out.(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &models.NumericError{Op: "formula " + f.src, Err: errNonFinite}
	}
	return v, nil
}

// EvalOrZero applies the documented NumericError policy inline.
func (f *Formula) EvalOrZero(pt, eta, e float64) float64 {
	v, err := f.Eval(pt, eta, e)
	if err != nil {
		return 0
	}
	return v
}

type nonFiniteError struct{}

func (nonFiniteError) Error() string { return "expression produced a non-finite value" }

var errNonFinite = nonFiniteError{}
