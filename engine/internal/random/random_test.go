package random

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicOnSeed(t *testing.T) {
	a := New(12345)
	b := New(12345)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Uniform(), b.Uniform())
	}
	assert.Equal(t, a.Gauss(0, 1), b.Gauss(0, 1))
	assert.Equal(t, a.LogNormal(50, 5), b.LogNormal(50, 5))
	assert.Equal(t, a.Poisson(20), b.Poisson(20))
}

func TestLogNormalZeroMeanReturnsZero(t *testing.T) {
	e := New(1)
	assert.Equal(t, 0.0, e.LogNormal(0, 3))
	assert.Equal(t, 0.0, e.LogNormal(-2, 3))
}

func TestLogNormalZeroSigmaIsIdentity(t *testing.T) {
	e := New(1)
	assert.Equal(t, 100.0, e.LogNormal(100, 0))
}

func TestLogNormalMeanOnLogScale(t *testing.T) {
	e := New(7)
	mean, sigma := 100.0, 10.0
	b := math.Sqrt(math.Log(1 + sigma*sigma/(mean*mean)))
	a := math.Log(mean) - 0.5*b*b
	var sumLog float64
	const n = 20000
	for i := 0; i < n; i++ {
		sumLog += math.Log(e.LogNormal(mean, sigma))
	}
	assert.InDelta(t, a, sumLog/n, 5e-3, "draws are centred on a in log space")
}

func TestPoisson(t *testing.T) {
	e := New(3)
	assert.Equal(t, 0, e.Poisson(0))
	assert.Equal(t, 0, e.Poisson(-1))
	var sum float64
	const n = 5000
	for i := 0; i < n; i++ {
		sum += float64(e.Poisson(4))
	}
	assert.InDelta(t, 4, sum/n, 0.15)
}
