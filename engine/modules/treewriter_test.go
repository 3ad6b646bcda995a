package modules

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xitongsys/parquet-go-source/local"
	preader "github.com/xitongsys/parquet-go/reader"

	"perseus/engine/models"
)

func TestTreeWriterRoundTrip(t *testing.T) {
	r := newRig(1)
	jets := r.export(t, "JetFinder/jets")
	met := r.export(t, "MissingET/momentum")
	dir := t.TempDir()

	jet := r.fac.NewCandidate()
	jet.PID = 0
	jet.Charge = 1
	jet.Momentum = models.NewPtEtaPhiM(123.5, 0.75, -1.25, 10)
	jet.Eem = 80.25
	jet.Ehad = 43.5
	jet.Edges = [4]float64{0.5, 1.0, -1.5, -1.0}
	jet.Flavor.Heaviest = 5
	jet.BTag.Heaviest = 1
	jet.NSubJetsTrimmed = 2
	jet.WTag = true
	jets.Append(jet)

	metC := r.fac.NewCandidate()
	metC.Momentum = models.FourVec{Px: -20, Py: 15}
	metC.Momentum.E = metC.Momentum.Pt()
	met.Append(metC)

	w := &TreeWriter{}
	ctx := r.ctx("TreeWriter", map[string]any{
		"OutputDir": dir,
		"Branches": []any{
			[]any{"Jet", "JetFinder/jets", "Candidate"},
			[]any{"MissingET", "MissingET/momentum", "MissingET"},
			[]any{"Event", "", "Event"},
		},
	})
	require.NoError(t, w.Init(ctx))
	require.NoError(t, w.Process(ctx))
	require.NoError(t, w.Finish(ctx))

	// Jet branch: every field survives to 32-bit precision, integers exactly.
	rows := readCandidateRows(t, filepath.Join(dir, "Jet.parquet"))
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, int64(1), row.Event)
	assert.Equal(t, int32(1), row.Charge)
	assert.Equal(t, int32(-1), row.M1, "index sentinel preserved")
	assert.InDelta(t, 123.5, float64(row.Pt), 1e-4)
	assert.InDelta(t, 0.75, float64(row.Eta), 1e-6)
	assert.InDelta(t, -1.25, float64(row.Phi), 1e-6)
	assert.InDelta(t, 80.25, float64(row.Eem), 1e-4)
	assert.Equal(t, float32(0.5), row.EtaLow)
	assert.Equal(t, int32(5), row.FlavorHeaviest)
	assert.Equal(t, int32(1), row.BTagHeaviest)
	assert.Equal(t, int32(2), row.NSubJetsTrimmed)
	assert.True(t, row.WTag)

	// Scalar branch.
	srows := readScalarRows(t, filepath.Join(dir, "MissingET.parquet"))
	require.Len(t, srows, 1)
	assert.InDelta(t, 25, float64(srows[0].Value), 1e-4)

	erows := readEventRows(t, filepath.Join(dir, "Event.parquet"))
	require.Len(t, erows, 1)
	assert.Equal(t, int64(1), erows[0].Event)
	assert.Equal(t, float32(1), erows[0].Weight)
}

func readCandidateRows(t *testing.T, path string) []CandidateRow {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer func() { _ = fr.Close() }()
	pr, err := preader.NewParquetReader(fr, new(CandidateRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	rows := make([]CandidateRow, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	return rows
}

func readScalarRows(t *testing.T, path string) []ScalarRow {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer func() { _ = fr.Close() }()
	pr, err := preader.NewParquetReader(fr, new(ScalarRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	rows := make([]ScalarRow, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	return rows
}

func readEventRows(t *testing.T, path string) []EventRow {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer func() { _ = fr.Close() }()
	pr, err := preader.NewParquetReader(fr, new(EventRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	rows := make([]EventRow, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	return rows
}

func TestTreeWriterRejectsUnknownClass(t *testing.T) {
	r := newRig(1)
	r.export(t, "JetFinder/jets")
	w := &TreeWriter{}
	ctx := r.ctx("TreeWriter", map[string]any{
		"OutputDir": t.TempDir(),
		"Branches":  []any{[]any{"Jet", "JetFinder/jets", "Nope"}},
	})
	var ce *models.ConfigError
	require.ErrorAs(t, w.Init(ctx), &ce)
}

func TestTreeWriterRequiresBranches(t *testing.T) {
	r := newRig(1)
	w := &TreeWriter{}
	ctx := r.ctx("TreeWriter", map[string]any{"OutputDir": t.TempDir()})
	var ce *models.ConfigError
	require.ErrorAs(t, w.Init(ctx), &ce)
	assert.Equal(t, "Branches", ce.Key)
}
