package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midi2nes/internal/config"
	"midi2nes/internal/diag"
	"midi2nes/internal/types"
)

func cfg() config.CompileConfig {
	return config.Default()
}

func TestCompileTonal_SingleSustainedNoteProducesSustainFramesFrames(t *testing.T) {
	events := []types.NoteEvent{{Frame: 0, Note: 60, Velocity: 100, Kind: types.NoteOn}}
	sink := diag.NewSummary()
	frames := CompileTonal(events, types.Pulse1, cfg(), sink)

	require.Len(t, frames, 4)
	for f := uint32(0); f < 4; f++ {
		rec, ok := frames[f]
		require.True(t, ok)
		assert.Equal(t, byte(0xBF), rec.ControlByte)
		assert.Equal(t, uint8(60), rec.Note)
	}
	_, hasFrame4 := frames[4]
	assert.False(t, hasFrame4)
}

func TestCompileTonal_OverlapTrimsTailAtNextNoteStart(t *testing.T) {
	events := []types.NoteEvent{
		{Frame: 0, Note: 60, Velocity: 100, Kind: types.NoteOn},
		{Frame: 2, Note: 64, Velocity: 100, Kind: types.NoteOn},
	}
	frames := CompileTonal(events, types.Pulse1, cfg(), diag.NewSummary())

	assert.Equal(t, uint8(60), frames[0].Note)
	assert.Equal(t, uint8(60), frames[1].Note)
	assert.Equal(t, uint8(64), frames[2].Note)
	assert.Equal(t, uint8(64), frames[5].Note)
	_, hasFrame6 := frames[6]
	assert.False(t, hasFrame6)
}

func TestCompileTonal_TriangleSilenceInvariant(t *testing.T) {
	events := []types.NoteEvent{
		{Frame: 0, Note: 48, Velocity: 64, Kind: types.NoteOn},
		{Frame: 5, Note: 48, Velocity: 0, Kind: types.NoteOff},
	}
	c := cfg()
	c.SustainFrames = 10
	frames := CompileTonal(events, types.Triangle, c, diag.NewSummary())

	for f := uint32(0); f < 5; f++ {
		rec, ok := frames[f]
		require.True(t, ok)
		assert.Equal(t, byte(8), rec.Volume)
	}
	for f := uint32(5); f < 10; f++ {
		_, ok := frames[f]
		assert.False(t, ok, "frame %d should be silent (absent from map)", f)
	}
}

func TestCompileTonal_OutOfRangePitchSkipsEventAndRecordsDiag(t *testing.T) {
	events := []types.NoteEvent{{Frame: 0, Note: 0, Velocity: 100, Kind: types.NoteOn}}
	sink := diag.NewSummary()
	frames := CompileTonal(events, types.Pulse1, cfg(), sink)

	assert.Empty(t, frames)
	assert.Equal(t, 1, sink.Count(diag.PitchOutOfRange))
}

func TestCompileNoise_VolumeReflectsVelocity(t *testing.T) {
	events := []types.NoteEvent{{Frame: 0, Velocity: 100}, {Frame: 1, Velocity: 0}}
	frames := CompileNoise(events)
	assert.Equal(t, byte(15), frames[0].Volume)
	assert.Equal(t, byte(0), frames[1].Volume)
}

func TestCompileDPCM_EnableReflectsVelocity(t *testing.T) {
	events := []types.DrumEvent{{Frame: 0, SampleID: 3, Velocity: 100}, {Frame: 1, SampleID: 3, Velocity: 0}}
	frames := CompileDPCM(events)
	assert.True(t, frames[0].Enable)
	assert.False(t, frames[1].Enable)
}
