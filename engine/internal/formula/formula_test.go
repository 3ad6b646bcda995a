package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perseus/engine/models"
)

func TestCompileAndEval(t *testing.T) {
	f, err := Compile("0.5 * tanh(0.01 * pt)")
	require.NoError(t, err)
	v, err := f.Eval(200, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.482, v, 1e-3)
}

func TestEnvironmentVariables(t *testing.T) {
	f, err := Compile("pt + abs(eta) + e")
	require.NoError(t, err)
	v, err := f.Eval(1, -2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)
}

func TestResolutionShape(t *testing.T) {
	f, err := Compile("sqrt(0.0017*e*e + 0.0101*e)")
	require.NoError(t, err)
	v, err := f.Eval(0, 0.3, 100)
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)
}

func TestCompileErrorSurfaces(t *testing.T) {
	_, err := Compile("pt +* eta")
	require.Error(t, err)
}

func TestNonFiniteIsNumericError(t *testing.T) {
	f, err := Compile("log(pt)")
	require.NoError(t, err)
	_, err = f.Eval(0, 0, 0) // log(0) = -inf
	require.Error(t, err)
	var ne *models.NumericError
	assert.ErrorAs(t, err, &ne)
	assert.Equal(t, 0.0, f.EvalOrZero(0, 0, 0), "policy substitutes 0")
}
