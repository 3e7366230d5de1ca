package tempo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midi2nes/internal/config"
	"midi2nes/internal/diag"
	"midi2nes/internal/types"
)

func newMap(t *testing.T) *Map {
	t.Helper()
	cfg := config.Default()
	return New(cfg, 480, 500000) // 500000us/qtr == 120 BPM
}

func TestFrameForTick_ZeroIsFrameZero(t *testing.T) {
	m := newMap(t)
	assert.Equal(t, uint32(0), m.FrameForTick(0))
}

func TestTickForFrame_InvertsFrameForTick(t *testing.T) {
	m := newMap(t)
	for tick := uint64(0); tick <= 4800; tick += 480 {
		frame := m.FrameForTick(tick)
		recovered := m.TickForFrame(frame)
		assert.Equal(t, frame, m.FrameForTick(recovered))
	}
}

func TestTickForFrame_ZeroFrameIsZeroTick(t *testing.T) {
	m := newMap(t)
	assert.Equal(t, uint64(0), m.TickForFrame(0))
}

func TestFrameForTick_MonotonicNonDecreasing(t *testing.T) {
	m := newMap(t)
	require.NoError(t, m.Insert(types.TempoChange{Tick: 960, TempoUsPerQuarter: 400000, Kind: types.TempoImmediate}))

	var prev uint32
	for tick := uint64(0); tick <= 4000; tick += 97 {
		f := m.FrameForTick(tick)
		assert.GreaterOrEqual(t, f, prev)
		prev = f
	}
}

func TestInsert_RejectsBPMOutOfRange(t *testing.T) {
	m := newMap(t)
	// 60,000,000 / 1 us-per-quarter == an absurd BPM far above MaxBPM.
	err := m.Insert(types.TempoChange{Tick: 480, TempoUsPerQuarter: 1, Kind: types.TempoImmediate})
	require.Error(t, err)
	var invalid *InvalidTempoError
	assert.ErrorAs(t, err, &invalid)
}

func TestInsert_RejectsConflictingKindAtSameTick(t *testing.T) {
	m := newMap(t)
	require.NoError(t, m.Insert(types.TempoChange{Tick: 480, TempoUsPerQuarter: 450000, Kind: types.TempoImmediate}))
	err := m.Insert(types.TempoChange{Tick: 480, TempoUsPerQuarter: 450000, Kind: types.TempoLinear, DurationTicks: 480})
	require.Error(t, err)
}

func TestInsert_RejectsLinearRampTooShort(t *testing.T) {
	m := newMap(t)
	err := m.Insert(types.TempoChange{Tick: 480, TempoUsPerQuarter: 450000, Kind: types.TempoLinear, DurationTicks: 1})
	require.Error(t, err)
}

func TestFrameForTick_ConsistentWithTimeMs(t *testing.T) {
	m := newMap(t)
	require.NoError(t, m.Insert(types.TempoChange{Tick: 960, TempoUsPerQuarter: 300000, Kind: types.TempoImmediate}))

	ms := m.TimeMs(0, 1920)
	expectedFrames := uint32(ms/16.667 + 0.5)
	assert.InDelta(t, float64(expectedFrames), float64(m.FrameForTick(1920)), 1)
}

func TestCaptureState_ReturnsInstantaneousTempoAtEachEnd(t *testing.T) {
	m := newMap(t)
	require.NoError(t, m.Insert(types.TempoChange{Tick: 960, TempoUsPerQuarter: 600000, Kind: types.TempoImmediate}))

	start, end := m.CaptureState(0, 960)
	assert.Equal(t, uint32(500000), start.TempoUsPerQuarter)
	assert.Equal(t, uint32(600000), end.TempoUsPerQuarter)
}

func TestOptimize_PreservesOrderingAndValidity(t *testing.T) {
	m := newMap(t)
	require.NoError(t, m.Insert(types.TempoChange{Tick: 500, TempoUsPerQuarter: 450000, Kind: types.TempoImmediate}))
	require.NoError(t, m.Insert(types.TempoChange{Tick: 1000, TempoUsPerQuarter: 400000, Kind: types.TempoImmediate}))

	m.Optimize(50)

	for i := 1; i < len(m.changes); i++ {
		assert.Greater(t, m.changes[i].Tick, m.changes[i-1].Tick)
	}
}

func TestInsertRecovered_RecordsDiagOnRejection(t *testing.T) {
	m := newMap(t)
	sink := diag.NewSummary()
	m.InsertRecovered(types.TempoChange{Tick: 480, TempoUsPerQuarter: 1, Kind: types.TempoImmediate}, sink)
	assert.Equal(t, 1, sink.Count(diag.InvalidTempo))
}
