package trackmap

import (
	"math/rand"

	"midi2nes/internal/config"
)

// patternTable maps chord type -> style -> pattern name, per spec.md §4.4's
// table. A style with no entry for a chord type falls back to "up".
var patternTable = map[ChordType]map[config.ArpeggioStyle]string{
	Major: {
		config.StyleDefault:    "up",
		config.StyleHeroic:     "up_down",
		config.StyleMysterious: "random",
	},
	Minor: {
		config.StyleDefault:    "down",
		config.StyleHeroic:     "down_up",
		config.StyleMysterious: "random",
	},
	Augmented: {
		config.StyleDefault:    "up_down",
		config.StyleMysterious: "random",
	},
	Diminished: {
		config.StyleDefault:    "down_up",
		config.StyleMysterious: "random",
	},
}

// PatternFor returns the arpeggio pattern name for a chord (nil meaning
// "unknown") under the given style.
func PatternFor(chord *ChordInfo, style config.ArpeggioStyle) string {
	chordType := Unknown
	if chord != nil {
		chordType = chord.Type
	}
	styles, ok := patternTable[chordType]
	if !ok {
		return "up"
	}
	if pattern, ok := styles[style]; ok {
		return pattern
	}
	return "up"
}

// ApplyPattern expands notes into the note order the named pattern
// produces. "up" and unrecognized names are the identity. The "random"
// pattern permutes notes with no duplicates and no change in length, per
// the project's standardized resolution of spec.md §4.4's otherwise
// implementation-defined randomness.
func ApplyPattern(notes []uint8, pattern string) []uint8 {
	if len(notes) == 0 {
		return nil
	}
	if len(notes) == 1 {
		return append([]uint8(nil), notes...)
	}

	switch pattern {
	case "down":
		return reversed(notes)
	case "up_down":
		return append(append([]uint8(nil), notes...), reversed(notes[1:len(notes)-1])...)
	case "down_up":
		return append(reversed(notes), notes[1:]...)
	case "random":
		return permute(notes)
	default:
		return append([]uint8(nil), notes...)
	}
}

func reversed(notes []uint8) []uint8 {
	out := make([]uint8, len(notes))
	for i, n := range notes {
		out[len(notes)-1-i] = n
	}
	return out
}

func permute(notes []uint8) []uint8 {
	out := append([]uint8(nil), notes...)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
