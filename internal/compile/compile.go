// Package compile orchestrates the full pipeline: MIDI ingestion, tempo
// mapping, track/drum/frame compilation, pattern detection and
// compression, loop detection, and assembly/ROM emission. Grounded on
// tools/forge/main.go's runSingle: a linear staged pipeline, each stage
// gated on the previous one's success and reported through fmt.Printf
// progress banners, with a fatal error aborting the whole compile.
package compile

import (
	"errors"
	"fmt"

	"midi2nes/internal/archive"
	"midi2nes/internal/asm"
	"midi2nes/internal/config"
	"midi2nes/internal/diag"
	"midi2nes/internal/dpcm"
	"midi2nes/internal/drums"
	"midi2nes/internal/famitext"
	"midi2nes/internal/frame"
	"midi2nes/internal/ingest"
	"midi2nes/internal/loopmgr"
	"midi2nes/internal/pattern"
	"midi2nes/internal/rom"
	"midi2nes/internal/tempo"
	"midi2nes/internal/trackmap"
	"midi2nes/internal/types"
)

// initialTempoUsPerQuarter is 120 BPM, the tempo map's starting value
// before any tempo meta event (or a Tick 0 one) overrides it.
const initialTempoUsPerQuarter = 500000

// Result is everything one compile produces: the assembly text, its
// linker script, the iNES header, the optional FamiTracker text export,
// and the pattern archive document, for the CLI to write to disk (or
// hand to ca65/ld65).
type Result struct {
	ASM          string
	LinkerScript string
	INESHeader   [rom.HeaderSize]byte
	FamiText     string
	Archive      archive.Document
	TrackNames   []string
}

// Run executes the full compile for one MIDI file. sampleIndex maps DPCM
// sample name to raw PCM data, per §4.5/§4.6; an empty map is valid and
// degrades every drum hit to the noise-channel fallback. A non-nil error
// is fatal, per §7's recovered/fatal split; recovered errors accumulate
// in ctx.Diag instead and never abort the compile.
func Run(ctx *config.Context, inputPath string, sampleIndex map[string][]byte) (Result, error) {
	parsed, err := ingest.ParseFile(inputPath, ctx.Diag)
	if err != nil {
		ctx.Diag.SetFatal(err)
		return Result{}, fmt.Errorf("ingest: %w", err)
	}

	if ctx.Config.Verbose {
		fmt.Printf("Parsed %s: %d tracks, %d ticks/quarter\n", inputPath, len(parsed.TrackNames), parsed.TicksPerQuarter)
	}

	tmap := tempo.New(ctx.Config, parsed.TicksPerQuarter, initialTempoUsPerQuarter)
	for _, change := range parsed.TempoChanges {
		tmap.InsertRecovered(change, ctx.Diag)
	}
	if ctx.Config.OptimizeTempo {
		tmap.Optimize(ctx.Config.MaxSnapTicks)
	}

	if ctx.Abort.IsSet() {
		return Result{}, errors.New("compile aborted before track mapping")
	}

	events := quantize(parsed.Events, tmap)

	manager := dpcm.NewManager(ctx.Config)
	mapper := drums.NewMapper(manager, ctx.Config, nil)
	streams := trackmap.AssignTracksToChannels(events, sampleIndex, mapper, ctx.Config)

	if ctx.Config.Verbose {
		fmt.Printf("  Channels: pulse1=%d pulse2=%d triangle=%d noise=%d dpcm=%d\n",
			len(streams.Pulse1), len(streams.Pulse2), len(streams.Triangle), len(streams.Noise), len(streams.DPCM))
	}

	if ctx.Abort.IsSet() {
		return Result{}, errors.New("compile aborted before frame compilation")
	}

	pulse1 := frame.CompileTonal(streams.Pulse1, types.Pulse1, ctx.Config, ctx.Diag)
	pulse2 := frame.CompileTonal(streams.Pulse2, types.Pulse2, ctx.Config, ctx.Diag)
	triangle := frame.CompileTonal(streams.Triangle, types.Triangle, ctx.Config, ctx.Diag)
	noise := frame.CompileNoise(streams.Noise)
	dpcmFrames := frame.CompileDPCM(streams.DPCM)

	maxFrame := maxFrameAcross(pulse1, pulse2, triangle, noise, dpcmFrames)

	var patterns []types.Pattern
	var refs []pattern.Reference
	var stats pattern.Stats
	var loops []types.LoopPoint

	if !ctx.Config.SkipPatterns {
		seq := combinedSequence(pulse1, pulse2, triangle, noise, dpcmFrames, maxFrame)
		detected := pattern.Detect(seq, ctx.Config)
		patterns = pattern.Canonicalize(detected)
		refs = pattern.BuildReferenceTable(patterns, int(maxFrame)+1)
		stats = pattern.ComputeStats(patterns, refs)

		if ctx.Config.Verbose {
			fmt.Printf("  Patterns: %d unique, compression ratio %.2fx\n", len(patterns), stats.Ratio)
		}

		loops = loopmgr.DetectLoops(patterns, tmap, ctx.Config)
		for _, l := range loops {
			if l.EndFrame <= l.StartFrame {
				ctx.Diag.Record(diag.InvalidLoopPoint)
			}
		}
	}

	asmText := asm.Emit(asm.Input{
		Pulse1:     pulse1,
		Pulse2:     pulse2,
		Triangle:   triangle,
		Noise:      noise,
		DPCM:       dpcmFrames,
		Patterns:   patterns,
		References: refs,
		Loops:      loops,
		MaxFrame:   maxFrame,
	})

	famiSong := famitext.Song{Pulse1: pulse1, Pulse2: pulse2, Triangle: triangle, Noise: noise, DPCM: dpcmFrames}

	return Result{
		ASM:          asmText,
		LinkerScript: asm.LinkerScript(),
		INESHeader:   rom.Header(),
		FamiText:     famitext.Generate(famiSong, famitext.RowsPerPattern),
		Archive:      archive.Build(patterns, refs, stats),
		TrackNames:   parsed.TrackNames,
	}, nil
}

// quantize fills in Frame on every event from its Tick via the tempo
// map's forward tick-to-frame lookup (FrameForTick).
func quantize(byTrack map[string][]types.NoteEvent, tmap *tempo.Map) map[string][]types.NoteEvent {
	out := make(map[string][]types.NoteEvent, len(byTrack))
	for name, events := range byTrack {
		quantized := make([]types.NoteEvent, len(events))
		for i, e := range events {
			e.Frame = tmap.FrameForTick(e.Tick)
			quantized[i] = e
		}
		out[name] = quantized
	}
	return out
}

func maxFrameAcross(maps ...types.FrameMap) uint32 {
	var max uint32
	for _, m := range maps {
		for f := range m {
			if f > max {
				max = f
			}
		}
	}
	return max
}

// Sentinel Note values standing in for the pitch-less noise and DPCM
// channels in the combined detection sequence; both are well above any
// real MIDI note (0-127), so they never alias onto a tonal pitch.
const (
	noiseSentinelNote = 200
	dpcmSentinelNote  = 201
)

// combinedSequence builds the dense, one-event-per-frame sequence
// pattern.Detect matches against by folding all five channels' frame
// maps into a single per-frame record, matching
// original_source/main.py's compile_midi_to_nes: it iterates every
// channel's frames before handing the combined list to its pattern
// detector, rather than restricting detection to one channel. index i
// is frame i; where more than one channel sounds at a frame, Pulse1
// takes priority over Pulse2 over Triangle over Noise over DPCM, and an
// empty frame across every channel falls through to Note/Velocity 0
// (silence). Positions the detector and compressor return are frame
// indices into exactly this sequence, so asm's per-frame reference
// table can still index it directly.
func combinedSequence(pulse1, pulse2, triangle, noise, dpcmFrames types.FrameMap, maxFrame uint32) []types.NoteEvent {
	seq := make([]types.NoteEvent, maxFrame+1)
	for f := uint32(0); f <= maxFrame; f++ {
		var note, volume uint8
		switch {
		case has(pulse1, f):
			rec := pulse1[f]
			note, volume = rec.Note, rec.Volume
		case has(pulse2, f):
			rec := pulse2[f]
			note, volume = rec.Note, rec.Volume
		case has(triangle, f):
			rec := triangle[f]
			note, volume = rec.Note, rec.Volume
		case noise[f].Volume > 0:
			note, volume = noiseSentinelNote, noise[f].Volume
		case dpcmFrames[f].Enable:
			note, volume = dpcmSentinelNote, 15
		}
		seq[f] = types.NoteEvent{Frame: f, Note: note, Velocity: volume, Kind: types.NoteOn}
	}
	return seq
}

func has(frames types.FrameMap, f uint32) bool {
	_, ok := frames[f]
	return ok
}
