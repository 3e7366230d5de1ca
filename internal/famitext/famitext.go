// Package famitext implements a supplemented export target: a
// FamiTracker-style text dump reusing the same per-channel frame maps
// the assembly emitter consumes, for inspection in a tracker-compatible
// text format rather than shipping it to the 6502 toolchain. Grounded
// on original_source/exporter.py's generate_famitracker_txt /
// midi_note_to_ft.
package famitext

import (
	"fmt"
	"strings"

	"midi2nes/internal/types"
)

// RowsPerPattern is the default pattern length FamiTracker text export
// uses, matching exporter.py's PATTERN_LEN/rows_per_pattern default.
const RowsPerPattern = 64

var noteNames = [12]string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}

// noteName converts a MIDI note number to FamiTracker's "C-4" style
// name, per midi_note_to_ft.
func noteName(note uint8) string {
	octave := int(note)/12 - 1
	return fmt.Sprintf("%s%d", noteNames[note%12], octave)
}

// Song is the input this export reuses: the per-channel frame maps the
// frame compiler (C7) and drum mapper (C6) already produced.
type Song struct {
	Pulse1, Pulse2, Triangle types.FrameMap
	Noise                    types.FrameMap
	DPCM                     types.FrameMap
}

var channelOrder = []string{"pulse1", "pulse2", "triangle", "noise", "dpcm"}

func (s Song) frames(channel string) types.FrameMap {
	switch channel {
	case "pulse1":
		return s.Pulse1
	case "pulse2":
		return s.Pulse2
	case "triangle":
		return s.Triangle
	case "noise":
		return s.Noise
	case "dpcm":
		return s.DPCM
	default:
		return nil
	}
}

const emptyCell = "... .. .."

// Generate produces the full FamiTracker text export, one ROWS-per-ROWS
// pattern block per rowsPerPattern frames across the song's longest
// channel.
func Generate(song Song, rowsPerPattern int) string {
	if rowsPerPattern <= 0 {
		rowsPerPattern = RowsPerPattern
	}

	maxFrame := maxFrameAcross(song)
	totalPatterns := maxFrame/rowsPerPattern + 1

	var b strings.Builder
	b.WriteString("# FamiTracker text export\n")
	b.WriteString("# Song title: MIDI2NES\n")
	b.WriteString("COLUMNS 1 1 1 1 1\n")
	fmt.Fprintf(&b, "ROWS %d\n", rowsPerPattern)
	b.WriteString("ORDER " + orderList(totalPatterns) + "\n")

	for patternIndex := 0; patternIndex < totalPatterns; patternIndex++ {
		fmt.Fprintf(&b, "PATTERN %02X\n", patternIndex)
		writePattern(&b, song, patternIndex, rowsPerPattern)
	}

	return b.String()
}

func orderList(totalPatterns int) string {
	parts := make([]string, totalPatterns)
	for i := range parts {
		parts[i] = fmt.Sprintf("%02X", i)
	}
	return strings.Join(parts, " ")
}

func maxFrameAcross(song Song) int {
	max := 0
	for _, ch := range channelOrder {
		for f := range song.frames(ch) {
			if int(f) > max {
				max = int(f)
			}
		}
	}
	return max
}

func writePattern(b *strings.Builder, song Song, patternIndex, rowsPerPattern int) {
	rows := make(map[string][]string, len(channelOrder))
	for _, ch := range channelOrder {
		cells := make([]string, rowsPerPattern)
		for i := range cells {
			cells[i] = emptyCell
		}
		rows[ch] = cells
	}

	for _, ch := range channelOrder {
		for frame, rec := range song.frames(ch) {
			if int(frame)/rowsPerPattern != patternIndex {
				continue
			}
			row := int(frame) % rowsPerPattern
			rows[ch][row] = cellFor(ch, rec)
		}
	}

	for row := 0; row < rowsPerPattern; row++ {
		fmt.Fprintf(b, "%02X |", row)
		for _, ch := range channelOrder {
			fmt.Fprintf(b, " %s", rows[ch][row])
		}
		b.WriteString("\n")
	}
}

func cellFor(channel string, rec types.FrameRecord) string {
	switch channel {
	case "pulse1", "pulse2":
		if rec.Volume == 0 {
			return emptyCell
		}
		return fmt.Sprintf("%s 00 %02X", noteName(rec.Note), rec.Volume)
	case "triangle":
		if rec.Volume == 0 {
			return emptyCell
		}
		return fmt.Sprintf("%s 01 %02X", noteName(rec.Note), rec.Volume)
	case "noise":
		if rec.Volume == 0 {
			return emptyCell
		}
		return fmt.Sprintf("F#2 02 %02X", rec.Volume)
	case "dpcm":
		return fmt.Sprintf("C-3 03 %02X", rec.SampleID)
	default:
		return emptyCell
	}
}
