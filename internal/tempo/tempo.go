// Package tempo implements C3: the tempo map. It tracks an ordered list of
// tempo changes and answers tick<->frame and tick<->time_ms queries by
// summing contributions segment by segment, the same approach as
// tempo_map.py's calculate_frame_time/calculate_time_ms, generalized to
// also support linear tempo ramps (spec.md §4.3).
package tempo

import (
	"fmt"
	"sort"

	"midi2nes/internal/config"
	"midi2nes/internal/diag"
	"midi2nes/internal/types"
)

// InvalidTempoError reports a rejected insertion, per spec.md §4.3.
type InvalidTempoError struct {
	Reason string
}

func (e *InvalidTempoError) Error() string {
	return fmt.Sprintf("invalid tempo: %s", e.Reason)
}

// Map is the tempo map: a sorted, gap-free sequence of tempo changes
// starting at tick 0. It is a contract of pure functions over that
// sequence; it holds no other state besides an invalidate-on-write cache.
type Map struct {
	ticksPerQuarter uint32
	frameDurationUs float64
	minBPM, maxBPM  float64
	minDurFrames    uint32
	maxDurFrames    uint32

	changes []types.TempoChange
	cache   map[uint64]uint32
}

// New builds a Map seeded with an initial Immediate tempo at tick 0.
func New(cfg config.CompileConfig, ticksPerQuarter uint32, initialTempoUsPerQuarter uint32) *Map {
	m := &Map{
		ticksPerQuarter: ticksPerQuarter,
		frameDurationUs: cfg.FrameDurationUs,
		minBPM:          cfg.MinBPM,
		maxBPM:          cfg.MaxBPM,
		minDurFrames:    cfg.MinDurationFrames,
		maxDurFrames:    cfg.MaxDurationFrames,
		changes: []types.TempoChange{{
			Tick:              0,
			TempoUsPerQuarter: initialTempoUsPerQuarter,
			Kind:              types.TempoImmediate,
		}},
		cache: make(map[uint64]uint32),
	}
	return m
}

func bpmFor(tempoUsPerQuarter uint32) float64 {
	if tempoUsPerQuarter == 0 {
		return 0
	}
	return 60000000.0 / float64(tempoUsPerQuarter)
}

// Insert adds change in sorted order. It returns *InvalidTempoError when
// BPM is out of the configured range, when a linear ramp's frame span
// falls outside [min_duration_frames, max_duration_frames], or when a
// change already exists at the same tick with a different kind. The map
// itself never silently drops a rejected change; the caller decides
// whether to record it via diag and continue (per §7's policy for the
// MIDI front-end) or propagate the error.
func (m *Map) Insert(change types.TempoChange) error {
	bpm := bpmFor(change.TempoUsPerQuarter)
	if bpm < m.minBPM || bpm > m.maxBPM {
		return &InvalidTempoError{Reason: fmt.Sprintf("bpm %.2f outside [%.2f, %.2f]", bpm, m.minBPM, m.maxBPM)}
	}

	for _, existing := range m.changes {
		if existing.Tick == change.Tick && existing.Kind != change.Kind {
			return &InvalidTempoError{Reason: fmt.Sprintf("tick %d already has a tempo change of a different kind", change.Tick)}
		}
	}

	if change.Kind == types.TempoLinear {
		prevTempo := m.tempoBefore(change.Tick)
		spanUs := m.linearSpanUs(prevTempo, change.TempoUsPerQuarter, change.DurationTicks)
		frames := spanUs / m.frameDurationUs
		if uint32(frames) < m.minDurFrames || uint32(frames) > m.maxDurFrames {
			return &InvalidTempoError{Reason: fmt.Sprintf("linear ramp spans %.1f frames, outside [%d, %d]", frames, m.minDurFrames, m.maxDurFrames)}
		}
	}

	m.changes = append(m.changes, change)
	sort.Slice(m.changes, func(i, j int) bool { return m.changes[i].Tick < m.changes[j].Tick })
	m.cache = make(map[uint64]uint32)
	return nil
}

// InsertRecovered is the MIDI front-end's entry point: a rejected change is
// recorded via diag.InvalidTempo and dropped rather than aborting the
// compile, per §7's recovered-error policy.
func (m *Map) InsertRecovered(change types.TempoChange, sink *diag.Summary) {
	if err := m.Insert(change); err != nil {
		sink.Record(diag.InvalidTempo)
	}
}

// tempoBefore returns the instantaneous tempo active immediately before
// tick (used as the ramp-start tempo for a linear change inserted there).
func (m *Map) tempoBefore(tick uint64) uint32 {
	return m.tempoAt(tick)
}

func (m *Map) linearSpanUs(startTempo, endTempo uint32, durationTicks uint64) float64 {
	avg := (float64(startTempo) + float64(endTempo)) / 2.0
	return avg * float64(durationTicks) / float64(m.ticksPerQuarter)
}

// tempoAt returns the instantaneous tempo (us per quarter note) active at
// tick, interpolating within a linear ramp.
func (m *Map) tempoAt(tick uint64) uint32 {
	idx := m.segmentIndexFor(tick)
	c := m.changes[idx]
	if c.Kind == types.TempoImmediate || c.DurationTicks == 0 {
		return c.TempoUsPerQuarter
	}
	prevTempo := c.TempoUsPerQuarter
	if idx > 0 {
		prevTempo = m.changes[idx-1].TempoUsPerQuarter
	}
	x := tick - c.Tick
	if x >= c.DurationTicks {
		return c.TempoUsPerQuarter
	}
	progress := float64(x) / float64(c.DurationTicks)
	return uint32(float64(prevTempo) + (float64(c.TempoUsPerQuarter)-float64(prevTempo))*progress)
}

// segmentIndexFor returns the index of the tempo change whose segment
// contains tick (the last change with Tick <= tick).
func (m *Map) segmentIndexFor(tick uint64) int {
	idx := 0
	for i, c := range m.changes {
		if c.Tick <= tick {
			idx = i
		} else {
			break
		}
	}
	return idx
}

// FrameForTick sums elapsed microseconds across every tempo segment
// intersecting [0, tick] and converts to a 60Hz frame index, per §4.3.
// Results are cached until the next Insert.
func (m *Map) FrameForTick(tick uint64) uint32 {
	if f, ok := m.cache[tick]; ok {
		return f
	}

	var totalUs float64
	for i, c := range m.changes {
		if c.Tick > tick {
			break
		}
		segEnd := tick
		if i+1 < len(m.changes) && m.changes[i+1].Tick < segEnd {
			segEnd = m.changes[i+1].Tick
		}
		span := segEnd - c.Tick

		if c.Kind == types.TempoImmediate || c.DurationTicks == 0 {
			totalUs += float64(span) * float64(c.TempoUsPerQuarter) / float64(m.ticksPerQuarter)
			continue
		}

		prevTempo := c.TempoUsPerQuarter
		if i > 0 {
			prevTempo = m.changes[i-1].TempoUsPerQuarter
		}
		x := span
		if x > c.DurationTicks {
			x = c.DurationTicks
		}
		// Integral of the linear ramp tempo(t) = prevTempo + slope*t from 0..x.
		slope := (float64(c.TempoUsPerQuarter) - float64(prevTempo)) / float64(c.DurationTicks)
		segUs := (float64(prevTempo)*float64(x) + slope*float64(x)*float64(x)/2.0) / float64(m.ticksPerQuarter)
		totalUs += segUs

		if x < span {
			// tick lies beyond the ramp's own duration but still within this
			// segment (next change tick further out): remainder is flat at
			// the ramp's target tempo.
			totalUs += float64(span-x) * float64(c.TempoUsPerQuarter) / float64(m.ticksPerQuarter)
		}
	}

	frame := uint32(totalUs/m.frameDurationUs + 0.5)
	m.cache[tick] = frame
	return frame
}

// TickForFrame inverts FrameForTick by binary search, exploiting its
// monotonic-non-decreasing property: it returns the smallest tick whose
// frame is >= frame. Used by the loop manager (C10) to recover the tick
// bounds a loop's frame-range endpoints correspond to before calling
// CaptureState. Ticks beyond the last tempo change continue to advance
// at that change's tempo, so the search bound simply doubles until it
// overshoots.
func (m *Map) TickForFrame(frame uint32) uint64 {
	if frame == 0 {
		return 0
	}

	upper := uint64(1)
	for m.FrameForTick(upper) < frame {
		upper *= 2
	}

	lo, hi := uint64(0), upper
	for lo < hi {
		mid := lo + (hi-lo)/2
		if m.FrameForTick(mid) < frame {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// TimeMs returns the elapsed time in milliseconds between start_tick and
// end_tick, by differencing the microsecond sums FrameForTick computes
// internally (re-derived here directly in ms per §4.3's own contract,
// rather than going through the frame rounding).
func (m *Map) TimeMs(startTick, endTick uint64) float64 {
	return float64(m.microsUpTo(endTick)-m.microsUpTo(startTick)) / 1000.0
}

func (m *Map) microsUpTo(tick uint64) float64 {
	var totalUs float64
	for i, c := range m.changes {
		if c.Tick > tick {
			break
		}
		segEnd := tick
		if i+1 < len(m.changes) && m.changes[i+1].Tick < segEnd {
			segEnd = m.changes[i+1].Tick
		}
		span := segEnd - c.Tick
		if c.Kind == types.TempoImmediate || c.DurationTicks == 0 {
			totalUs += float64(span) * float64(c.TempoUsPerQuarter) / float64(m.ticksPerQuarter)
			continue
		}
		prevTempo := c.TempoUsPerQuarter
		if i > 0 {
			prevTempo = m.changes[i-1].TempoUsPerQuarter
		}
		x := span
		if x > c.DurationTicks {
			x = c.DurationTicks
		}
		slope := (float64(c.TempoUsPerQuarter) - float64(prevTempo)) / float64(c.DurationTicks)
		totalUs += (float64(prevTempo)*float64(x) + slope*float64(x)*float64(x)/2.0) / float64(m.ticksPerQuarter)
		if x < span {
			totalUs += float64(span-x) * float64(c.TempoUsPerQuarter) / float64(m.ticksPerQuarter)
		}
	}
	return totalUs
}

// CaptureState returns the instantaneous {tick, tempo} snapshots at
// startTick and endTick, for the loop manager to preserve across a loop
// boundary.
func (m *Map) CaptureState(startTick, endTick uint64) (start, end types.TempoSnapshot) {
	start = types.TempoSnapshot{Tick: startTick, TempoUsPerQuarter: m.tempoAt(startTick)}
	end = types.TempoSnapshot{Tick: endTick, TempoUsPerQuarter: m.tempoAt(endTick)}
	return
}

// Optimize snaps each non-initial tempo-change tick to the nearby tick
// (within maxSnapTicks) whose FrameForTick lands exactly on a frame
// boundary it already rounds to, preferring the closest candidate. This
// never changes insertion order or re-triggers validation failures: a
// candidate that would collide with a neighboring tick or invalidate
// ordering is skipped.
func (m *Map) Optimize(maxSnapTicks uint64) {
	if maxSnapTicks == 0 {
		return
	}
	for i := 1; i < len(m.changes); i++ {
		c := &m.changes[i]
		lowerBound := m.changes[i-1].Tick + 1
		upperBound := uint64(1<<63 - 1)
		if i+1 < len(m.changes) {
			upperBound = m.changes[i+1].Tick - 1
		}

		target := m.FrameForTick(c.Tick)
		best := c.Tick
		bestDist := uint64(0)
		for delta := uint64(1); delta <= maxSnapTicks; delta++ {
			candidates := []uint64{c.Tick + delta}
			if delta <= c.Tick {
				candidates = append(candidates, c.Tick-delta)
			}
			for _, cand := range candidates {
				if cand < lowerBound || cand > upperBound {
					continue
				}
				if m.FrameForTick(cand) == target {
					if best == c.Tick || delta < bestDist {
						best = cand
						bestDist = delta
					}
				}
			}
		}
		if best != c.Tick {
			c.Tick = best
		}
	}
	m.cache = make(map[uint64]uint32)
}
