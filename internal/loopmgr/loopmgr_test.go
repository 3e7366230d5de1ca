package loopmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midi2nes/internal/config"
	"midi2nes/internal/tempo"
	"midi2nes/internal/types"
)

func tempoMap(t *testing.T) *tempo.Map {
	t.Helper()
	return tempo.New(config.Default(), 480, 500000) // 120 BPM
}

func TestDetectLoops_SelectsCandidateFromRepeatedPattern(t *testing.T) {
	patterns := []types.Pattern{
		{ID: "pattern_0", Length: 8, Positions: []uint32{0, 8, 16, 24}},
	}
	loops := DetectLoops(patterns, tempoMap(t), config.Default())
	require.Len(t, loops, 1)
	assert.Equal(t, uint32(16), loops[0].StartFrame)
	assert.Equal(t, uint32(32), loops[0].EndFrame)
	assert.Equal(t, 4, loops[0].Repetitions)
}

func TestDetectLoops_SingleOccurrenceIsNotACandidate(t *testing.T) {
	patterns := []types.Pattern{{ID: "pattern_0", Length: 8, Positions: []uint32{0}}}
	loops := DetectLoops(patterns, tempoMap(t), config.Default())
	assert.Empty(t, loops)
}

func TestDetectLoops_OverlappingCandidatesResolveToHigherScore(t *testing.T) {
	patterns := []types.Pattern{
		{ID: "pattern_0", Length: 16, Positions: []uint32{0, 16, 32}}, // score 48 + bonus
		{ID: "pattern_1", Length: 4, Positions: []uint32{20, 24}},     // overlaps, lower score
	}
	loops := DetectLoops(patterns, tempoMap(t), config.Default())
	require.Len(t, loops, 1)
	assert.Equal(t, 16, loops[0].Length)
}

func TestDetectLoops_PreservesStartFrameOrdering(t *testing.T) {
	patterns := []types.Pattern{
		{ID: "pattern_0", Length: 4, Positions: []uint32{100, 104, 108}},
		{ID: "pattern_1", Length: 4, Positions: []uint32{0, 4, 8}},
	}
	loops := DetectLoops(patterns, tempoMap(t), config.Default())
	require.Len(t, loops, 2)
	assert.Less(t, loops[0].StartFrame, loops[1].StartFrame)
}

func TestGenerateJumpTable_DiscardsEndNotAfterStart(t *testing.T) {
	loops := []types.LoopPoint{
		{StartFrame: 10, EndFrame: 10, Length: 4},
		{StartFrame: 5, EndFrame: 20, Length: 20},
	}
	table := GenerateJumpTable(loops)
	require.Len(t, table, 1)
	assert.Equal(t, HintSubroutine, table[0].OptimizationHint)
}

func TestGenerateJumpTable_ShortLoopIsInline(t *testing.T) {
	loops := []types.LoopPoint{{StartFrame: 0, EndFrame: 8, Length: 8}}
	table := GenerateJumpTable(loops)
	require.Len(t, table, 1)
	assert.Equal(t, HintInline, table[0].OptimizationHint)
}
