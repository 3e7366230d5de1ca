// Package envelope implements C2: ADSR-style volume envelopes, pulse
// control-byte composition, duty-cycle sequences, and the tremolo effect.
// Every function here is a pure function of its inputs; there is no
// envelope state carried between calls; the frame compiler recomputes the
// value for every frame offset.
package envelope

import (
	"math"

	"midi2nes/internal/types"
)

// Kind names a built-in ADSR envelope shape.
type Kind string

const (
	Default    Kind = "default"
	Piano      Kind = "piano"
	Pad        Kind = "pad"
	Pluck      Kind = "pluck"
	Percussion Kind = "percussion"
)

// adsr holds (attack, decay, sustain, release) in frames (sustain is a
// volume level 0..15, not a duration).
type adsr struct {
	attack, decay, sustain, release int
}

var definitions = map[Kind]adsr{
	Default:    {0, 0, 15, 0},
	Piano:      {1, 3, 10, 2},
	Pad:        {5, 10, 8, 5},
	Pluck:      {0, 8, 0, 0},
	Percussion: {0, 15, 0, 0},
}

func resolve(kind Kind) adsr {
	if def, ok := definitions[kind]; ok {
		return def
	}
	return definitions[Default]
}

// Volume returns the 4-bit envelope volume (0..15) at frameOffset within a
// note of the given duration (in frames). If frameOffset >= duration the
// result is 0, per spec.md §4.2.
func Volume(kind Kind, frameOffset, duration int) byte {
	if frameOffset >= duration {
		return 0
	}
	a := resolve(kind)

	attackEnd := a.attack
	decayEnd := attackEnd + a.decay
	sustainEnd := duration - a.release

	var vol int
	switch {
	case frameOffset < attackEnd && a.attack > 0:
		vol = int((float64(frameOffset) / float64(a.attack)) * 15)
	case frameOffset < decayEnd && a.decay > 0:
		progress := float64(frameOffset-attackEnd) / float64(a.decay)
		vol = 15 - int((15-a.sustain)*progress)
	case frameOffset < sustainEnd:
		vol = a.sustain
	default:
		if a.release == 0 || sustainEnd >= duration {
			vol = 0
		} else {
			progress := float64(frameOffset-sustainEnd) / float64(a.release)
			vol = int(float64(a.sustain) * (1 - progress))
		}
	}

	if vol < 0 {
		vol = 0
	}
	if vol > 15 {
		vol = 15
	}
	return byte(vol)
}

// DutySequences maps a name to a list of (duty, frames) phase pairs.
// Unknown names fall back to duty 2.
var DutySequences = map[string][]struct {
	Duty   byte
	Frames int
}{
	"follin_lead":  {{2, 4}, {1, 4}, {2, 4}, {3, 4}},
	"follin_sweep": {{0, 2}, {1, 2}, {2, 2}, {3, 2}},
	"follin_pulse": {{2, 8}, {3, 8}},
}

// DutyFromSequence walks a named duty-sequence's accumulators to find the
// phase active at frameOffset. An unrecognized sequence name returns the
// default duty index 2.
func DutyFromSequence(seqName string, frameOffset int) byte {
	seq, ok := DutySequences[seqName]
	if !ok {
		return 2
	}
	total := 0
	for _, p := range seq {
		total += p.Frames
	}
	if total == 0 {
		return 2
	}
	cur := frameOffset % total
	accumulated := 0
	for _, p := range seq {
		accumulated += p.Frames
		if cur < accumulated {
			return p.Duty
		}
	}
	return 2
}

// velocityScale normalizes MIDI velocity (0..127) against the codebase's
// "100 == full" baseline (the same baseline apply_arpeggio_fallback uses
// for its default velocity), clamped to 1.0. This resolves spec.md §4.2's
// otherwise-undefined velocity_scale term: worked example 1 (velocity 100,
// Default envelope, control byte 0xBF) only holds if velocity 100 scales
// the envelope volume by exactly 1.0.
func velocityScale(velocity uint8) float64 {
	scale := float64(velocity) / 100.0
	if scale > 1.0 {
		scale = 1.0
	}
	return scale
}

// ControlByte composes the NES pulse-channel control byte: duty bits
// (7:6), the constant-volume flag (bits 5:4, always set so the hardware
// envelope generator is disabled), and the 4-bit volume (bits 3:0).
func ControlByte(kind Kind, frameOffset, duration int, duty byte, effects *types.Effects, velocity uint8) byte {
	vol := Volume(kind, frameOffset, duration)

	finalDuty := duty
	if effects != nil && effects.DutySequence != "" {
		finalDuty = DutyFromSequence(effects.DutySequence, frameOffset)
	}

	scaled := int(float64(vol) * velocityScale(velocity))
	if effects != nil && effects.Tremolo != nil {
		scaled += tremoloDelta(frameOffset, effects.Tremolo)
	}
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 15 {
		scaled = 15
	}

	return (finalDuty&0x03)<<6 | 0x30 | byte(scaled)
}

// tremoloDelta computes the additive tremolo modulation:
// sin(2*pi*frameOffset/speed) * depth.
func tremoloDelta(frameOffset int, t *types.Tremolo) int {
	if t == nil || t.Speed == 0 {
		return 0
	}
	mod := math.Sin(2 * math.Pi * float64(frameOffset) / t.Speed)
	return int(mod * t.Depth)
}
