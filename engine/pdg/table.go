// Package pdg provides the read-only particle property table. One table is
// built at startup from the built-in defaults and passed through the module
// context; its lifetime spans the run.
package pdg

type Particle struct {
	PID    int
	Name   string
	Charge float64 // units of e
	Mass   float64 // GeV
}

type Table struct {
	byPID map[int]Particle
}

// Default returns a table covering the species the pipeline classifies:
// quarks, gluon, leptons, photon and the common light hadrons. Antiparticles
// resolve through negated PIDs with mirrored charge.
func Default() *Table {
	list := []Particle{
		{1, "d", -1.0 / 3, 0.0047},
		{2, "u", 2.0 / 3, 0.0022},
		{3, "s", -1.0 / 3, 0.095},
		{4, "c", 2.0 / 3, 1.27},
		{5, "b", -1.0 / 3, 4.18},
		{6, "t", 2.0 / 3, 172.8},
		{11, "e-", -1, 0.000511},
		{12, "nu_e", 0, 0},
		{13, "mu-", -1, 0.10566},
		{14, "nu_mu", 0, 0},
		{15, "tau-", -1, 1.77686},
		{16, "nu_tau", 0, 0},
		{21, "g", 0, 0},
		{22, "gamma", 0, 0},
		{23, "Z0", 0, 91.1876},
		{24, "W+", 1, 80.379},
		{25, "h0", 0, 125.25},
		{111, "pi0", 0, 0.13498},
		{211, "pi+", 1, 0.13957},
		{130, "K_L0", 0, 0.49761},
		{310, "K_S0", 0, 0.49761},
		{321, "K+", 1, 0.49368},
		{411, "D+", 1, 1.86966},
		{421, "D0", 0, 1.86484},
		{511, "B0", 0, 5.27966},
		{521, "B+", 1, 5.27934},
		{2112, "n0", 0, 0.93957},
		{2212, "p+", 1, 0.93827},
		{3122, "Lambda0", 0, 1.11568},
	}
	t := &Table{byPID: make(map[int]Particle, len(list))}
	for _, p := range list {
		t.byPID[p.PID] = p
	}
	return t
}

// Lookup resolves a PID, following the antiparticle convention.
func (t *Table) Lookup(pid int) (Particle, bool) {
	if p, ok := t.byPID[pid]; ok {
		return p, true
	}
	if pid < 0 {
		if p, ok := t.byPID[-pid]; ok {
			p.PID = pid
			p.Charge = -p.Charge
			return p, true
		}
	}
	return Particle{}, false
}

// Charge returns the electric charge in units of e, 0 for unknown species.
func (t *Table) Charge(pid int) float64 {
	p, _ := t.Lookup(pid)
	return p.Charge
}

// Mass returns the nominal mass in GeV, 0 for unknown species.
func (t *Table) Mass(pid int) float64 {
	p, _ := t.Lookup(pid)
	return p.Mass
}
