package modules

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"perseus/engine/internal/arrays"
	"perseus/engine/internal/pipeline"
	"perseus/engine/models"
)

// TreeWriter is the columnar persistence stage: one parquet file per
// configured branch, the entries of each event appended as rows. Floating
// point fields are 32-bit; index fields are signed 32-bit with a −1 sentinel.
//
// Parameters:
//
//	OutputDir  directory for the branch files, default "perseus-out"
//	Branches   list of [branch name, array path, class]; class is one of
//	           Candidate, Event, MissingET, ScalarHT, Rho
type TreeWriter struct {
	dir      string
	branches []*branch
	events   int64
}

type branch struct {
	name  string
	class string
	array *arrays.Array
	file  source.ParquetFile
	pw    *writer.ParquetWriter
}

// CandidateRow is the generic branch schema shared by particle, track,
// tower, photon and jet arrays.
type CandidateRow struct {
	Event  int64 `parquet:"name=event, type=INT64"`
	PID    int32 `parquet:"name=pid, type=INT32"`
	Status int32 `parquet:"name=status, type=INT32"`
	M1     int32 `parquet:"name=m1, type=INT32"`
	M2     int32 `parquet:"name=m2, type=INT32"`
	D1     int32 `parquet:"name=d1, type=INT32"`
	D2     int32 `parquet:"name=d2, type=INT32"`
	Charge int32 `parquet:"name=charge, type=INT32"`
	IsPU   int32 `parquet:"name=is_pu, type=INT32"`

	Mass float32 `parquet:"name=mass, type=FLOAT"`
	Pt   float32 `parquet:"name=pt, type=FLOAT"`
	Eta  float32 `parquet:"name=eta, type=FLOAT"`
	Phi  float32 `parquet:"name=phi, type=FLOAT"`
	E    float32 `parquet:"name=e, type=FLOAT"`
	X    float32 `parquet:"name=x, type=FLOAT"`
	Y    float32 `parquet:"name=y, type=FLOAT"`
	Z    float32 `parquet:"name=z, type=FLOAT"`
	T    float32 `parquet:"name=t, type=FLOAT"`

	Eem      float32 `parquet:"name=eem, type=FLOAT"`
	Ehad     float32 `parquet:"name=ehad, type=FLOAT"`
	EtaLow   float32 `parquet:"name=eta_low, type=FLOAT"`
	EtaHigh  float32 `parquet:"name=eta_high, type=FLOAT"`
	PhiLow   float32 `parquet:"name=phi_low, type=FLOAT"`
	PhiHigh  float32 `parquet:"name=phi_high, type=FLOAT"`
	NTimes   int32   `parquet:"name=ntimes, type=INT32"`
	DeltaEta float32 `parquet:"name=delta_eta, type=FLOAT"`
	DeltaPhi float32 `parquet:"name=delta_phi, type=FLOAT"`

	FlavorAlgo      int32 `parquet:"name=flavor_algo, type=INT32"`
	FlavorDefault   int32 `parquet:"name=flavor_default, type=INT32"`
	FlavorPhysics   int32 `parquet:"name=flavor_physics, type=INT32"`
	FlavorNearest2  int32 `parquet:"name=flavor_nearest2, type=INT32"`
	FlavorNearest3  int32 `parquet:"name=flavor_nearest3, type=INT32"`
	FlavorHeaviest  int32 `parquet:"name=flavor_heaviest, type=INT32"`
	FlavorHighestPt int32 `parquet:"name=flavor_highest_pt, type=INT32"`

	BTagAlgo      int32 `parquet:"name=btag_algo, type=INT32"`
	BTagDefault   int32 `parquet:"name=btag_default, type=INT32"`
	BTagPhysics   int32 `parquet:"name=btag_physics, type=INT32"`
	BTagNearest2  int32 `parquet:"name=btag_nearest2, type=INT32"`
	BTagNearest3  int32 `parquet:"name=btag_nearest3, type=INT32"`
	BTagHeaviest  int32 `parquet:"name=btag_heaviest, type=INT32"`
	BTagHighestPt int32 `parquet:"name=btag_highest_pt, type=INT32"`
	TauTag        int32 `parquet:"name=tau_tag, type=INT32"`

	Tau1            float32 `parquet:"name=tau1, type=FLOAT"`
	Tau2            float32 `parquet:"name=tau2, type=FLOAT"`
	Tau3            float32 `parquet:"name=tau3, type=FLOAT"`
	TrimmedMass     float32 `parquet:"name=trimmed_mass, type=FLOAT"`
	NSubJetsTrimmed int32   `parquet:"name=nsubjets_trimmed, type=INT32"`
	WTag            bool    `parquet:"name=w_tag, type=BOOLEAN"`
	TopTag          bool    `parquet:"name=top_tag, type=BOOLEAN"`
	HTag            bool    `parquet:"name=h_tag, type=BOOLEAN"`

	IsolationVar        float32 `parquet:"name=isolation_var, type=FLOAT"`
	IsolationVarRhoCorr float32 `parquet:"name=isolation_var_rho_corr, type=FLOAT"`
	TrackIsolationVar   float32 `parquet:"name=track_isolation_var, type=FLOAT"`
	SumPtCharged        float32 `parquet:"name=sum_pt_charged, type=FLOAT"`
	SumPtNeutral        float32 `parquet:"name=sum_pt_neutral, type=FLOAT"`
	SumPtChargedPU      float32 `parquet:"name=sum_pt_charged_pu, type=FLOAT"`
	SumPt               float32 `parquet:"name=sum_pt, type=FLOAT"`
}

// EventRow is the per-event header branch schema.
type EventRow struct {
	Event  int64   `parquet:"name=event, type=INT64"`
	Weight float32 `parquet:"name=weight, type=FLOAT"`
}

// ScalarRow serves the MissingET, ScalarHT and Rho branch classes.
type ScalarRow struct {
	Event  int64   `parquet:"name=event, type=INT64"`
	Value  float32 `parquet:"name=value, type=FLOAT"`
	Phi    float32 `parquet:"name=phi, type=FLOAT"`
	EtaMin float32 `parquet:"name=eta_min, type=FLOAT"`
	EtaMax float32 `parquet:"name=eta_max, type=FLOAT"`
}

func (m *TreeWriter) Init(ctx *pipeline.Context) error {
	m.dir = ctx.String("OutputDir", "perseus-out")
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return ctx.ConfigErr("OutputDir", "%v", err)
	}
	entries := ctx.List("Branches")
	if len(entries) == 0 {
		return ctx.ConfigErr("Branches", "missing required key")
	}
	for i, entry := range entries {
		parts, ok := entry.List()
		if !ok || len(parts) != 3 {
			return ctx.ConfigErr("Branches", "entry %d is not [branch, array, class]", i)
		}
		name, okN := parts[0].String()
		path, okP := parts[1].String()
		class, okC := parts[2].String()
		if !okN || !okP || !okC {
			return ctx.ConfigErr("Branches", "entry %d is not [branch, array, class]", i)
		}
		b := &branch{name: name, class: class}
		if class != "Event" {
			arr, err := ctx.ImportArray(path)
			if err != nil {
				return err
			}
			b.array = arr
		}
		if err := m.open(ctx, b); err != nil {
			return err
		}
		m.branches = append(m.branches, b)
	}
	return nil
}

func (m *TreeWriter) open(ctx *pipeline.Context, b *branch) error {
	fw, err := local.NewLocalFileWriter(filepath.Join(m.dir, b.name+".parquet"))
	if err != nil {
		return ctx.ConfigErr("OutputDir", "open branch %s: %v", b.name, err)
	}
	var proto any
	switch b.class {
	case "Candidate":
		proto = new(CandidateRow)
	case "Event":
		proto = new(EventRow)
	case "MissingET", "ScalarHT", "Rho":
		proto = new(ScalarRow)
	default:
		_ = fw.Close()
		return ctx.ConfigErr("Branches", "unknown branch class %q", b.class)
	}
	pw, err := writer.NewParquetWriter(fw, proto, 1)
	if err != nil {
		_ = fw.Close()
		return ctx.ConfigErr("Branches", "branch %s: %v", b.name, err)
	}
	b.file = fw
	b.pw = pw
	return nil
}

func (m *TreeWriter) Process(ctx *pipeline.Context) error {
	event := ctx.Event.Number
	m.events++
	for _, b := range m.branches {
		switch b.class {
		case "Event":
			row := EventRow{Event: event, Weight: float32(ctx.Event.Weight)}
			if err := b.pw.Write(row); err != nil {
				return fmt.Errorf("write branch %s: %w", b.name, err)
			}
		case "Candidate":
			for _, c := range b.array.Items() {
				if err := b.pw.Write(candidateRow(event, c)); err != nil {
					return fmt.Errorf("write branch %s: %w", b.name, err)
				}
			}
		default: // MissingET, ScalarHT, Rho
			for _, c := range b.array.Items() {
				row := ScalarRow{Event: event}
				switch b.class {
				case "MissingET":
					row.Value = float32(c.Momentum.Pt())
					row.Phi = float32(c.Momentum.Phi())
				case "ScalarHT":
					row.Value = float32(c.Momentum.E)
				case "Rho":
					row.Value = float32(c.Momentum.E)
					row.EtaMin = float32(c.Edges[0])
					row.EtaMax = float32(c.Edges[1])
				}
				if err := b.pw.Write(row); err != nil {
					return fmt.Errorf("write branch %s: %w", b.name, err)
				}
			}
		}
	}
	return nil
}

func (m *TreeWriter) Finish(ctx *pipeline.Context) error {
	var first error
	for _, b := range m.branches {
		if b.pw != nil {
			if err := b.pw.WriteStop(); err != nil && first == nil {
				first = fmt.Errorf("close branch %s: %w", b.name, err)
			}
		}
		if b.file != nil {
			if err := b.file.Close(); err != nil && first == nil {
				first = fmt.Errorf("close branch %s: %w", b.name, err)
			}
		}
	}
	if ctx.Log != nil {
		ctx.Log.InfoCtx(ctx.Ctx(), "tree writer closed", "dir", m.dir, "events", m.events, "branches", len(m.branches))
	}
	return first
}

func candidateRow(event int64, c *models.Candidate) CandidateRow {
	return CandidateRow{
		Event:  event,
		PID:    int32(c.PID),
		Status: int32(c.Status),
		M1:     int32(c.M1),
		M2:     int32(c.M2),
		D1:     int32(c.D1),
		D2:     int32(c.D2),
		Charge: int32(c.Charge),
		IsPU:   int32(c.IsPU),

		Mass: float32(c.Mass),
		Pt:   float32(c.Momentum.Pt()),
		Eta:  float32(c.Momentum.Eta()),
		Phi:  float32(c.Momentum.Phi()),
		E:    float32(c.Momentum.E),
		X:    float32(c.Position.X()),
		Y:    float32(c.Position.Y()),
		Z:    float32(c.Position.Z()),
		T:    float32(c.Position.T()),

		Eem:      float32(c.Eem),
		Ehad:     float32(c.Ehad),
		EtaLow:   float32(c.Edges[0]),
		EtaHigh:  float32(c.Edges[1]),
		PhiLow:   float32(c.Edges[2]),
		PhiHigh:  float32(c.Edges[3]),
		NTimes:   int32(c.NTimes),
		DeltaEta: float32(c.DeltaEta),
		DeltaPhi: float32(c.DeltaPhi),

		FlavorAlgo:      c.Flavor.Algo,
		FlavorDefault:   c.Flavor.Default,
		FlavorPhysics:   c.Flavor.Physics,
		FlavorNearest2:  c.Flavor.Nearest2,
		FlavorNearest3:  c.Flavor.Nearest3,
		FlavorHeaviest:  c.Flavor.Heaviest,
		FlavorHighestPt: c.Flavor.HighestPt,

		BTagAlgo:      int32(c.BTag.Algo),
		BTagDefault:   int32(c.BTag.Default),
		BTagPhysics:   int32(c.BTag.Physics),
		BTagNearest2:  int32(c.BTag.Nearest2),
		BTagNearest3:  int32(c.BTag.Nearest3),
		BTagHeaviest:  int32(c.BTag.Heaviest),
		BTagHighestPt: int32(c.BTag.HighestPt),
		TauTag:        int32(c.TauTag),

		Tau1:            float32(c.Tau[0]),
		Tau2:            float32(c.Tau[1]),
		Tau3:            float32(c.Tau[2]),
		TrimmedMass:     float32(c.TrimmedP4[0].M()),
		NSubJetsTrimmed: int32(c.NSubJetsTrimmed),
		WTag:            c.WTag,
		TopTag:          c.TopTag,
		HTag:            c.HTag,

		IsolationVar:        float32(c.IsolationVar),
		IsolationVarRhoCorr: float32(c.IsolationVarRhoCorr),
		TrackIsolationVar:   float32(c.TrackIsolationVar),
		SumPtCharged:        float32(c.SumPtCharged),
		SumPtNeutral:        float32(c.SumPtNeutral),
		SumPtChargedPU:      float32(c.SumPtChargedPU),
		SumPt:               float32(c.SumPt),
	}
}
