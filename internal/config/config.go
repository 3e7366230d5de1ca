// Package config holds the compile-wide tunables and the Context that
// carries them, the diagnostic sink, and the cooperative abort flag
// through the pipeline by reference. The DPCM sample manager is not part
// of the Context: internal/compile builds it and hands it to the drum
// mapper. There are no global singletons: the pipeline takes a *Context
// explicitly, per the teacher's Config-struct-by-pointer convention in
// tools/forge/pipeline.
package config

import "midi2nes/internal/diag"

// ArpeggioStyle selects which arpeggio pattern table a chord maps to.
type ArpeggioStyle string

const (
	StyleDefault     ArpeggioStyle = "default"
	StyleHeroic      ArpeggioStyle = "heroic"
	StyleMysterious  ArpeggioStyle = "mysterious"
)

// PatternMode selects the pattern detector's matching strategy.
type PatternMode int

const (
	// PatternModeAuto picks quadratic for small inputs and hash for large
	// ones, per spec.md §4.8.
	PatternModeAuto PatternMode = iota
	PatternModeQuadratic
	PatternModeHash
)

// CompileConfig is the full set of tunables the core pipeline consults.
// Defaults match spec.md's documented defaults.
type CompileConfig struct {
	// Tempo map (C3)
	MinBPM            float64
	MaxBPM            float64
	MinDurationFrames uint32
	MaxDurationFrames uint32
	FrameDurationUs   float64 // default 16667 (60Hz)
	OptimizeTempo     bool
	MaxSnapTicks      uint64

	// Track mapper (C4)
	MaxNotesPerChord int
	ArpeggioStyle    ArpeggioStyle

	// DPCM sample manager (C5)
	MaxSamples     int
	MemoryBudget   int
	KeepMinimum    int
	SimilarityHigh float64

	// Drum mapper (C6)
	UseAdvancedDrumMapping bool

	// Frame compiler (C7)
	SustainFrames  uint32
	DefaultDuty    byte
	DefaultEnvelope string

	// Pattern detector/compressor (C8, C9)
	MinPatternLength     int
	MaxPatternLength     int
	MaxPatternLengthHash int
	MinOccurrences       int
	OverlapTolerance     float64
	PatternMode          PatternMode
	ShardTimeoutSeconds  int

	// Loop manager (C10)
	PreferredLoopSizes []int

	// Emitter (C11)
	SkipPatterns bool // set by --no-patterns: skip pattern compression, emit raw frame tables only
	Verbose      bool
}

// Default returns the documented defaults from spec.md.
func Default() CompileConfig {
	return CompileConfig{
		MinBPM:            20,
		MaxBPM:            400,
		MinDurationFrames: 1,
		MaxDurationFrames: 3600,
		FrameDurationUs:   16667,
		OptimizeTempo:     false,
		MaxSnapTicks:      0,

		MaxNotesPerChord: 3,
		ArpeggioStyle:    StyleDefault,

		MaxSamples:     16,
		MemoryBudget:   4096,
		KeepMinimum:    1,
		SimilarityHigh: 0.85,

		UseAdvancedDrumMapping: true,

		SustainFrames:   4,
		DefaultDuty:     2,
		DefaultEnvelope: "default",

		MinPatternLength:     3,
		MaxPatternLength:     32,
		MaxPatternLengthHash: 16,
		MinOccurrences:       3,
		OverlapTolerance:     0.30,
		PatternMode:          PatternModeAuto,
		ShardTimeoutSeconds:  30,

		PreferredLoopSizes: []int{4, 8, 16, 32},
	}
}

// Context threads config, the diagnostic sink, and any other
// compile-lifetime shared state through the pipeline. It is constructed
// once per compile and passed by reference; nothing here is a package
// level variable.
type Context struct {
	Config CompileConfig
	Diag   *diag.Summary
	Abort  *AbortFlag
}

// NewContext builds a Context with a fresh diagnostic summary.
func NewContext(cfg CompileConfig) *Context {
	return &Context{
		Config: cfg,
		Diag:   diag.NewSummary(),
		Abort:  &AbortFlag{},
	}
}

// AbortFlag is the cooperative cancellation flag spec.md §5 describes:
// checked at component boundaries, never inside a tight internal loop.
type AbortFlag struct {
	aborted bool
}

func (a *AbortFlag) Set()          { a.aborted = true }
func (a *AbortFlag) IsSet() bool   { return a.aborted }
