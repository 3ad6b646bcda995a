package modules

import (
	"math"

	"perseus/engine/internal/arrays"
	"perseus/engine/internal/pipeline"
	"perseus/engine/models"
)

// ParticlePropagator transports stable particles from their production
// vertex to the calorimeter cylinder: straight lines for neutrals, helices
// for charged particles in the solenoid field. Propagated clones keep the
// production momentum; Position is the entry point on the cylinder.
//
// Parameters:
//
//	InputArray  default "PileUpMerger/stableParticles"
//	Radius      cylinder radius in m, default 1.29
//	HalfLength  cylinder half length in m, default 3.0
//	Bz          solenoid field in T, default 3.8 (0 disables bending)
type ParticlePropagator struct {
	in      *arrays.Array
	stable  *arrays.Array
	tracks  *arrays.Array
	hadrons *arrays.Array
	elecs   *arrays.Array
	muons   *arrays.Array

	radius, halfLen, bz float64
}

func (m *ParticlePropagator) Init(ctx *pipeline.Context) error {
	in, err := ctx.ImportArray(ctx.String("InputArray", "PileUpMerger/stableParticles"))
	if err != nil {
		return err
	}
	m.in = in
	for _, exp := range []struct {
		name string
		dst  **arrays.Array
	}{
		{"stableParticles", &m.stable},
		{"tracks", &m.tracks},
		{"chargedHadrons", &m.hadrons},
		{"electrons", &m.elecs},
		{"muons", &m.muons},
	} {
		a, err := ctx.ExportArray(exp.name)
		if err != nil {
			return err
		}
		*exp.dst = a
	}
	m.radius = ctx.Float("Radius", 1.29) * 1e3 // mm
	m.halfLen = ctx.Float("HalfLength", 3.0) * 1e3
	m.bz = ctx.Float("Bz", 3.8)
	if m.radius <= 0 || m.halfLen <= 0 {
		return ctx.ConfigErr("Radius", "cylinder dimensions must be positive")
	}
	return nil
}

func (m *ParticlePropagator) Process(ctx *pipeline.Context) error {
	for _, c := range m.in.Items() {
		p := c.Momentum
		if p.Pt() == 0 && p.Pz == 0 {
			continue
		}
		x0, y0, z0 := c.Position.X(), c.Position.Y(), c.Position.Z()
		if math.Hypot(x0, y0) > m.radius || math.Abs(z0) > m.halfLen {
			continue // produced outside the detector volume
		}
		out := c.Clone()
		out.AddCandidate(c)
		if c.Charge == 0 || m.bz == 0 {
			m.straight(out)
		} else {
			m.helix(out)
		}
		m.stable.Append(out)
		if c.Charge != 0 {
			m.tracks.Append(out)
			switch abs(c.PID) {
			case 11:
				m.elecs.Append(out)
			case 13:
				m.muons.Append(out)
			default:
				m.hadrons.Append(out)
			}
		}
	}
	return nil
}

func (m *ParticlePropagator) Finish(ctx *pipeline.Context) error { return nil }

// straight moves the particle along its momentum until it meets the barrel
// or an endcap, whichever comes first.
func (m *ParticlePropagator) straight(c *models.Candidate) {
	p := c.Momentum
	mag := p.P()
	if mag == 0 {
		return
	}
	ux, uy, uz := p.Px/mag, p.Py/mag, p.Pz/mag
	x0, y0, z0 := c.Position.X(), c.Position.Y(), c.Position.Z()

	sBarrel := math.Inf(1)
	if a := ux*ux + uy*uy; a > 0 {
		b := x0*ux + y0*uy
		q := x0*x0 + y0*y0 - m.radius*m.radius
		if disc := b*b - a*q; disc >= 0 {
			if s := (-b + math.Sqrt(disc)) / a; s > 0 {
				sBarrel = s
			}
		}
	}
	sEndcap := math.Inf(1)
	if uz != 0 {
		zExit := m.halfLen
		if uz < 0 {
			zExit = -m.halfLen
		}
		if s := (zExit - z0) / uz; s > 0 {
			sEndcap = s
		}
	}
	s := math.Min(sBarrel, sEndcap)
	if math.IsInf(s, 1) {
		return
	}
	beta := 1.0
	if c.Momentum.E > 0 {
		beta = mag / c.Momentum.E
	}
	c.Position = models.FourVec{
		Px: x0 + s*ux,
		Py: y0 + s*uy,
		Pz: z0 + s*uz,
		E:  c.Position.T() + s/beta,
	}
}

// helix bends the charged particle in the axial field. The transverse motion
// is a circle of radius pt/(0.3·|q|·Bz); z advances linearly with the
// transverse arc length.
func (m *ParticlePropagator) helix(c *models.Candidate) {
	p := c.Momentum
	pt := p.Pt()
	if pt == 0 {
		m.straight(c)
		return
	}
	r := pt / (0.3 * math.Abs(float64(c.Charge)) * m.bz) * 1e3 // mm
	sgn := 1.0
	if float64(c.Charge)*m.bz < 0 {
		sgn = -1
	}
	x0, y0, z0 := c.Position.X(), c.Position.Y(), c.Position.Z()
	phi0 := p.Phi()

	// Circle centre and the particle's angular position on it.
	cx := x0 + r*sgn*math.Sin(phi0)
	cy := y0 - r*sgn*math.Cos(phi0)
	beta0 := math.Atan2(y0-cy, x0-cx)
	d := math.Hypot(cx, cy)

	// Transverse arc to the barrel crossing, if the circle reaches it.
	sBarrel := math.Inf(1)
	if d+r >= m.radius && math.Abs(d-r) <= m.radius && d > 0 {
		cosArg := (m.radius*m.radius - d*d - r*r) / (2 * d * r)
		if cosArg >= -1 && cosArg <= 1 {
			psi := math.Atan2(cy, cx)
			dBeta := math.Acos(cosArg)
			for _, beta := range []float64{psi + dBeta, psi - dBeta} {
				// travel from beta0 against the rotation sense sgn
				travel := sgn * (beta0 - beta)
				travel = math.Mod(travel, 2*math.Pi)
				if travel < 0 {
					travel += 2 * math.Pi
				}
				if s := travel * r; s < sBarrel {
					sBarrel = s
				}
			}
		}
	}
	// Transverse arc to the endcap crossing.
	sEndcap := math.Inf(1)
	if p.Pz != 0 {
		zExit := m.halfLen
		if p.Pz < 0 {
			zExit = -m.halfLen
		}
		if s := (zExit - z0) * pt / p.Pz; s > 0 {
			sEndcap = s
		}
	}
	s := math.Min(sBarrel, sEndcap)
	if math.IsInf(s, 1) {
		return // looping track that never reaches a surface
	}
	betaF := beta0 - sgn*s/r
	zF := z0 + s*p.Pz/pt
	total := s * math.Sqrt(1+(p.Pz/pt)*(p.Pz/pt))
	beta := 1.0
	if c.Momentum.E > 0 {
		beta = p.P() / c.Momentum.E
	}
	c.Position = models.FourVec{
		Px: cx + r*math.Cos(betaF),
		Py: cy + r*math.Sin(betaF),
		Pz: zF,
		E:  c.Position.T() + total/beta,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
