package trackmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midi2nes/internal/config"
	"midi2nes/internal/types"
)

func TestDetectChord_Major(t *testing.T) {
	c := DetectChord([]uint8{60, 64, 67})
	require.NotNil(t, c)
	assert.Equal(t, Major, c.Type)
	assert.Equal(t, uint8(60), c.Root)
}

func TestDetectChord_Minor(t *testing.T) {
	c := DetectChord([]uint8{60, 63, 67})
	require.NotNil(t, c)
	assert.Equal(t, Minor, c.Type)
}

func TestDetectChord_AugmentedAndDiminished(t *testing.T) {
	assert.Equal(t, Augmented, DetectChord([]uint8{60, 64, 68}).Type)
	assert.Equal(t, Diminished, DetectChord([]uint8{60, 63, 66}).Type)
}

func TestDetectChord_UnknownIntervalPattern(t *testing.T) {
	c := DetectChord([]uint8{60, 61, 70})
	require.NotNil(t, c)
	assert.Equal(t, Unknown, c.Type)
}

func TestDetectChord_FewerThanTwoNotesIsNil(t *testing.T) {
	assert.Nil(t, DetectChord([]uint8{60}))
	assert.Nil(t, DetectChord(nil))
}

func TestPatternFor_MatchesSpecTable(t *testing.T) {
	major := &ChordInfo{Type: Major}
	assert.Equal(t, "up", PatternFor(major, config.StyleDefault))
	assert.Equal(t, "up_down", PatternFor(major, config.StyleHeroic))
	assert.Equal(t, "random", PatternFor(major, config.StyleMysterious))

	assert.Equal(t, "up", PatternFor(nil, config.StyleDefault))
	assert.Equal(t, "down_up", PatternFor(&ChordInfo{Type: Diminished}, config.StyleDefault))
	// Augmented has no "heroic" entry in spec.md's table: falls back to "up".
	assert.Equal(t, "up", PatternFor(&ChordInfo{Type: Augmented}, config.StyleHeroic))
}

func TestApplyPattern_UpDownAndDownUp(t *testing.T) {
	notes := []uint8{60, 64, 67}
	assert.Equal(t, []uint8{60, 64, 67}, ApplyPattern(notes, "up"))
	assert.Equal(t, []uint8{67, 64, 60}, ApplyPattern(notes, "down"))
	assert.Equal(t, []uint8{60, 64, 67, 64}, ApplyPattern(notes, "up_down"))
	assert.Equal(t, []uint8{67, 64, 60, 64, 67}, ApplyPattern(notes, "down_up"))
}

func TestApplyPattern_RandomPreservesLengthAndElements(t *testing.T) {
	notes := []uint8{60, 64, 67, 71}
	result := ApplyPattern(notes, "random")
	require.Len(t, result, len(notes))

	counts := map[uint8]int{}
	for _, n := range notes {
		counts[n]++
	}
	for _, n := range result {
		counts[n]--
	}
	for _, c := range counts {
		assert.Equal(t, 0, c)
	}
}

func TestApplyPattern_SingleNoteIsIdentity(t *testing.T) {
	assert.Equal(t, []uint8{60}, ApplyPattern([]uint8{60}, "up_down"))
}

func note(frame uint32, n, vel uint8) types.NoteEvent {
	return types.NoteEvent{Frame: frame, Note: n, Velocity: vel, Kind: types.NoteOn}
}

func TestApplyArpeggioFallback_MonophonicFramePassesThrough(t *testing.T) {
	events := []types.NoteEvent{note(0, 60, 80)}
	out := ApplyArpeggioFallback(events, 3, config.StyleDefault)
	require.Len(t, out, 1)
	assert.Equal(t, uint8(60), out[0].Note)
	assert.False(t, out[0].Arpeggio)
}

func TestApplyArpeggioFallback_ChordExpandsWithDecayingVelocity(t *testing.T) {
	events := []types.NoteEvent{note(10, 60, 90), note(10, 64, 90), note(10, 67, 90)}
	out := ApplyArpeggioFallback(events, 3, config.StyleDefault)
	require.Len(t, out, 3)

	for i, e := range out {
		assert.True(t, e.Arpeggio)
		assert.Equal(t, uint32(10)+uint32(i), e.Frame)
		assert.Equal(t, uint8(100-i*5), e.Velocity)
		assert.Equal(t, string(Major), e.ChordType)
	}
	// major/default => "up": notes pass through unchanged.
	assert.Equal(t, []uint8{60, 64, 67}, []uint8{out[0].Note, out[1].Note, out[2].Note})
}

func TestApplyArpeggioFallback_TruncatesToMaxNotes(t *testing.T) {
	events := []types.NoteEvent{note(0, 60, 90), note(0, 64, 90), note(0, 67, 90), note(0, 72, 90)}
	out := ApplyArpeggioFallback(events, 3, config.StyleDefault)
	assert.Len(t, out, 3)
}

func TestSplitPolyphonic_ByPitchRange(t *testing.T) {
	events := []types.NoteEvent{note(0, 72, 90), note(0, 50, 90), note(0, 30, 90), note(0, 40, 0)}
	split := SplitPolyphonic(events)
	assert.Len(t, split.Pulse1, 1)
	assert.Len(t, split.Pulse2, 1)
	assert.Len(t, split.Triangle, 1)
}

type stubDrumMapper struct {
	result types.DrumMapResult
}

func (s stubDrumMapper) Map(map[string][]types.NoteEvent, map[string][]byte) types.DrumMapResult {
	return s.result
}

func TestAssignTracksToChannels_SingleTrackSplitsByPitch(t *testing.T) {
	events := map[string][]types.NoteEvent{
		"lead": {note(0, 72, 90), note(0, 50, 90), note(0, 30, 90)},
	}
	streams := AssignTracksToChannels(events, nil, stubDrumMapper{}, config.Default())
	assert.Len(t, streams.Pulse1, 1)
	assert.Len(t, streams.Pulse2, 1)
	assert.Len(t, streams.Triangle, 1)
}

func TestAssignTracksToChannels_DrumMapperOverridesDPCM(t *testing.T) {
	events := map[string][]types.NoteEvent{
		"melody": {note(0, 80, 90)},
		"bass":   {note(0, 30, 90)},
	}
	mapper := stubDrumMapper{result: types.DrumMapResult{
		DPCM: []types.DrumEvent{{Frame: 0, SampleID: 1, Velocity: 100}},
	}}
	streams := AssignTracksToChannels(events, nil, mapper, config.Default())
	require.Len(t, streams.DPCM, 1)
	assert.Equal(t, byte(1), streams.DPCM[0].SampleID)
}

func TestAssignTracksToChannels_MultiTrackRanksByAveragePitch(t *testing.T) {
	events := map[string][]types.NoteEvent{
		"high": {note(0, 80, 90)},
		"mid":  {note(0, 60, 90)},
		"low":  {note(0, 30, 90)},
	}
	streams := AssignTracksToChannels(events, nil, stubDrumMapper{}, config.Default())
	require.Len(t, streams.Pulse1, 1)
	assert.Equal(t, uint8(80), streams.Pulse1[0].Note)
	require.Len(t, streams.Triangle, 1)
	assert.Equal(t, uint8(30), streams.Triangle[0].Note)
}
