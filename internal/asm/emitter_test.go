package asm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"midi2nes/internal/pattern"
	"midi2nes/internal/types"
)

func TestTriangleControlByte_ZeroVolumeIsExactlyZero(t *testing.T) {
	assert.Equal(t, byte(0x00), triangleControlByte(0))
}

func TestTriangleControlByte_NonzeroVolumeSetsLinearCounterBit(t *testing.T) {
	assert.Equal(t, byte(0xB8), triangleControlByte(8))
}

func TestEmit_SilentPulseFramesUseQuietByte(t *testing.T) {
	in := Input{
		Pulse1:   types.FrameMap{0: {Channel: types.Pulse1, Note: 60, ControlByte: 0xBF}},
		MaxFrame: 2,
	}
	out := Emit(in)
	assert.Contains(t, out, "pulse1_control:")
	assert.Contains(t, out, "$BF")
	assert.Contains(t, out, "$30")
}

func TestEmit_PatternTablesAndReferencesRoundTripIds(t *testing.T) {
	patterns := []types.Pattern{
		{ID: "pattern_0", Length: 2, Events: []types.PatternEvent{{Note: 60, Volume: 15}, {Note: 64, Volume: 15}}},
	}
	refs := []pattern.Reference{
		{Frame: 0, Ref: types.PatternRef{PatternID: "pattern_0", Offset: 0}},
		{Frame: 1, Ref: types.PatternRef{PatternID: "pattern_0", Offset: 1}},
	}
	out := Emit(Input{Patterns: patterns, References: refs, MaxFrame: 2})

	assert.True(t, strings.Contains(out, "pattern_0_data:"))
	assert.True(t, strings.Contains(out, "<pattern_0_data"))
	assert.True(t, strings.Contains(out, ">pattern_0_data"))
}

func TestEmit_IncludesInitAndUpdateRoutines(t *testing.T) {
	out := Emit(Input{MaxFrame: 0})
	assert.Contains(t, out, ".proc init_music")
	assert.Contains(t, out, ".proc update_music")
	assert.Contains(t, out, ".proc reset_handler")
	assert.Contains(t, out, "VECTORS")
}

func TestEmit_LoopTableReflectsDetectedLoops(t *testing.T) {
	loops := []types.LoopPoint{{StartFrame: 4, EndFrame: 20, Length: 16, Repetitions: 2}}
	out := Emit(Input{Loops: loops, MaxFrame: 20})
	assert.Contains(t, out, "loop_count: .byte $01")
	assert.Contains(t, out, ".proc check_loop")
}

func TestLinkerScript_TargetsMMC1WithEightPRGBanks(t *testing.T) {
	cfg := LinkerScript()
	assert.Contains(t, cfg, "PRGSWAP")
	assert.Contains(t, cfg, "$FFFA")
}
