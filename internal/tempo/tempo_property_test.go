package tempo

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"midi2nes/internal/config"
	"midi2nes/internal/types"
)

// FrameForTick must be monotonically non-decreasing: a later tick never
// maps to an earlier frame, regardless of how many tempo changes sit
// between the two ticks.
func TestProperty_FrameForTickIsMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("frame for a later tick is never smaller", prop.ForAll(
		func(a, b uint64, bpm1, bpm2 int) bool {
			m := New(config.Default(), 480, 500000)
			_ = m.Insert(types.TempoChange{Tick: 240, TempoUsPerQuarter: uint32(60000000 / bpm1), Kind: types.TempoImmediate})
			_ = m.Insert(types.TempoChange{Tick: 960, TempoUsPerQuarter: uint32(60000000 / bpm2), Kind: types.TempoImmediate})

			lo, hi := a, b
			if lo > hi {
				lo, hi = hi, lo
			}

			return m.FrameForTick(lo) <= m.FrameForTick(hi)
		},
		gen.UInt64Range(0, 100000),
		gen.UInt64Range(0, 100000),
		gen.IntRange(20, 400),
		gen.IntRange(20, 400),
	))

	properties.TestingRun(t)
}

// TickForFrame(FrameForTick(tick)) must land on or before tick: the
// round trip never advances time, only ever snaps backward to the start
// of the frame tick belongs to.
func TestProperty_TickForFrameRoundTripNeverOvershoots(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("tick->frame->tick never overshoots the original tick", prop.ForAll(
		func(tick uint64) bool {
			m := New(config.Default(), 480, 500000)
			f := m.FrameForTick(tick)
			return m.TickForFrame(f) <= tick
		},
		gen.UInt64Range(0, 200000),
	))

	properties.TestingRun(t)
}
