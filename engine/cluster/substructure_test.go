package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoProng builds a jet out of two hard cores plus soft spray, the classic
// boosted-boson topology.
func twoProng(eng *Engine, t *testing.T) Jet {
	t.Helper()
	in := []PseudoJet{
		pj(150, 0.0, 0.0, 0),
		pj(150, 0.35, 0.3, 1),
		pj(2, 0.2, 0.15, 2),
		pj(1.5, -0.1, 0.35, 3),
		pj(1, 0.4, -0.05, 4),
	}
	seq, err := eng.Cluster(in, Definition{Algo: AntiKt, R: 0.8}, nil)
	require.NoError(t, err)
	jets := seq.InclusiveJets(50)
	require.Len(t, jets, 1)
	return jets[0]
}

func TestTrimDropsSoftSubjets(t *testing.T) {
	eng := NewEngine()
	jet := twoProng(eng, t)
	res := Trim(eng, jet, 0.2, 0.05)
	require.NotEmpty(t, res.Subjets)
	assert.LessOrEqual(t, len(res.Subjets), 2, "soft spray falls below the pt fraction")
	assert.Less(t, res.P.Pt(), jet.P.Pt()+1e-9)
	assert.Greater(t, res.P.Pt(), 0.9*jet.P.Pt(), "hard cores survive")
	for i := 1; i < len(res.Subjets); i++ {
		assert.GreaterOrEqual(t, res.Subjets[i-1].P.Pt(), res.Subjets[i].P.Pt(), "subjets sorted")
	}
}

func TestNSubjettinessOrdering(t *testing.T) {
	eng := NewEngine()
	jet := twoProng(eng, t)
	tau1 := NSubjettiness(eng, jet, 1, 1.0, 0.8)
	tau2 := NSubjettiness(eng, jet, 2, 1.0, 0.8)
	tau3 := NSubjettiness(eng, jet, 3, 1.0, 0.8)
	assert.Greater(t, tau1, 0.0)
	assert.Less(t, tau2, tau1, "two-prong jet is better described by two axes")
	assert.LessOrEqual(t, tau3, tau2)
	assert.Less(t, tau2/tau1, 0.6, "two-prong jets have small tau2/tau1")
}

func TestNSubjettinessFewConstituents(t *testing.T) {
	eng := NewEngine()
	seq, err := eng.Cluster([]PseudoJet{pj(300, 0, 0, 0)}, Definition{Algo: AntiKt, R: 0.8}, nil)
	require.NoError(t, err)
	jet := seq.InclusiveJets(1)[0]
	assert.Zero(t, NSubjettiness(eng, jet, 2, 1.0, 0.8), "fewer constituents than axes")
}
