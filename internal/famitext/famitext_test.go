package famitext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"midi2nes/internal/types"
)

func TestNoteName_MatchesFamiTrackerConvention(t *testing.T) {
	assert.Equal(t, "C-4", noteName(60))
	assert.Equal(t, "A-4", noteName(69))
}

func TestGenerate_EmitsOneOrderEntryPerPattern(t *testing.T) {
	song := Song{Pulse1: types.FrameMap{70: {Note: 60, Volume: 12}}}
	out := Generate(song, 64)
	assert.Contains(t, out, "ORDER 00 01")
	assert.Contains(t, out, "PATTERN 00")
	assert.Contains(t, out, "PATTERN 01")
}

func TestGenerate_SilentCellsAreEmptyPlaceholder(t *testing.T) {
	song := Song{Pulse1: types.FrameMap{0: {Note: 60, Volume: 0}}}
	out := Generate(song, 64)
	lines := strings.Split(out, "\n")
	var row0 string
	for _, l := range lines {
		if strings.HasPrefix(l, "00 |") {
			row0 = l
			break
		}
	}
	assert.Contains(t, row0, "... .. ..")
}

func TestGenerate_DPCMCellAlwaysCarriesSampleID(t *testing.T) {
	song := Song{DPCM: types.FrameMap{0: {SampleID: 3}}}
	out := Generate(song, 64)
	assert.Contains(t, out, "C-3 03 03")
}
