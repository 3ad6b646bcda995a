package models

// Event-level header records. They are attached by the reader, written to
// output branches, and otherwise do not participate in the module graph.

// EventHeader carries the run-independent event identity and timing.
type EventHeader struct {
	Number   int64
	ReadTime float64 // seconds spent reading the event
	ProcTime float64 // seconds spent in the module pipeline
}

// LHEFEvent extends the header for Les Houches input.
type LHEFEvent struct {
	EventHeader
	ProcessID int
	Weight    float64
	ScalePDF  float64
	AlphaQED  float64
	AlphaQCD  float64
}

// HepMCEvent extends the header for HepMC input.
type HepMCEvent struct {
	EventHeader
	ProcessID    int
	MPI          int
	Weight       float64
	CrossSection float64
	ScalePDF     float64
	AlphaQED     float64
	AlphaQCD     float64
	ID1, ID2     int
	X1, X2       float64
}
