// Package loopmgr implements C10: finding repeating spans worth looping
// in hardware instead of emitting every repetition, scoring and
// selecting them, and building the jump table the assembly emitter
// reads. Grounded on original_source/tracker/loop_manager.py's
// LoopManager (detect_loops, _optimize_loops, generate_jump_table),
// generalized from its dict-of-dicts shape to typed Go values.
package loopmgr

import (
	"sort"

	"midi2nes/internal/config"
	"midi2nes/internal/tempo"
	"midi2nes/internal/types"
)

type candidate struct {
	start, end  uint32
	length      int
	repetitions int
}

// DetectLoops finds loop candidates from pattern occurrences, scores and
// greedily selects the non-overlapping subset, and attaches each
// selected loop's tempo state at its boundaries, per §4.10.
func DetectLoops(patterns []types.Pattern, tmap *tempo.Map, cfg config.CompileConfig) []types.LoopPoint {
	var candidates []candidate
	for _, p := range patterns {
		if len(p.Positions) < 2 {
			continue
		}
		start := p.Positions[len(p.Positions)-2]
		end := p.Positions[len(p.Positions)-1] + uint32(p.Length)
		candidates = append(candidates, candidate{
			start:       start,
			end:         end,
			length:      p.Length,
			repetitions: len(p.Positions),
		})
	}

	selected := selectNonOverlapping(candidates, cfg.PreferredLoopSizes)

	loops := make([]types.LoopPoint, len(selected))
	for i, c := range selected {
		startTick := tmap.TickForFrame(c.start)
		endTick := tmap.TickForFrame(c.end)
		startTempo, endTempo := tmap.CaptureState(startTick, endTick)

		loops[i] = types.LoopPoint{
			StartFrame:  c.start,
			EndFrame:    c.end,
			Length:      c.length,
			Repetitions: c.repetitions,
			StartTempo:  startTempo,
			EndTempo:    endTempo,
		}
	}

	sort.Slice(loops, func(i, j int) bool { return loops[i].StartFrame < loops[j].StartFrame })
	return loops
}

// lengthBonus rewards candidates whose length matches one of the
// preferred musical sizes (4, 8, 16, 32 frames by default), the same
// bonus §4.10 step 2 describes without pinning a magnitude; a bonus
// comparable in scale to one extra repetition keeps it a tiebreaker
// rather than something that can promote a much smaller loop over a
// much larger one.
func lengthBonus(length int, preferred []int) float64 {
	for _, p := range preferred {
		if p == length {
			return float64(length)
		}
	}
	return 0
}

func score(c candidate, preferred []int) float64 {
	return float64(c.length*c.repetitions) + lengthBonus(c.length, preferred)
}

// selectNonOverlapping sorts candidates by descending score and keeps
// each one whose [start,end) range doesn't intersect an already-kept
// range, mirroring _optimize_loops's used_ranges set without
// materializing every covered frame.
func selectNonOverlapping(candidates []candidate, preferred []int) []candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return score(candidates[i], preferred) > score(candidates[j], preferred)
	})

	var kept []candidate
	for _, c := range candidates {
		overlaps := false
		for _, k := range kept {
			if c.start < k.end && k.start < c.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}
	return kept
}

// OptimizationHint tells the assembly emitter whether a loop is worth a
// subroutine call or should simply be unrolled inline.
type OptimizationHint int

const (
	HintInline OptimizationHint = iota
	HintSubroutine
)

// subroutineThreshold is the loop length (in frames) at or above which
// a loop is emitted as a subroutine call instead of inlined, per §4.10
// step 5.
const subroutineThreshold = 16

// JumpEntry is one row of the emitted jump table: playback reaching
// EndFrame jumps back to StartFrame, resuming with TempoState (the
// tempo in force at the loop's start, since that's what a resumed
// playthrough needs next).
type JumpEntry struct {
	EndFrame         uint32
	StartFrame       uint32
	TempoState       types.TempoSnapshot
	OptimizationHint OptimizationHint
}

// GenerateJumpTable builds one entry per loop, keyed by end frame, and
// discards any loop whose end does not strictly follow its start.
// TempoState is copied by value off the loop record: types.TempoSnapshot
// is a plain scalar struct, so the assignment already takes its own copy
// and later tempo-map mutation can never retroactively alter an
// already-emitted entry.
func GenerateJumpTable(loops []types.LoopPoint) []JumpEntry {
	var table []JumpEntry
	for _, l := range loops {
		if l.EndFrame <= l.StartFrame {
			continue
		}
		hint := HintInline
		if l.Length >= subroutineThreshold {
			hint = HintSubroutine
		}
		table = append(table, JumpEntry{
			EndFrame:         l.EndFrame,
			StartFrame:       l.StartFrame,
			TempoState:       l.StartTempo,
			OptimizationHint: hint,
		})
	}
	return table
}
