// Package pitch implements C1: the per-channel MIDI note to NES 11-bit
// timer lookup. Noise and DPCM channels do not consult a pitch table and
// are never passed to Timer.
package pitch

import (
	"fmt"
	"math"

	"midi2nes/internal/types"
)

// cpuClockNTSC is the NTSC 2A03 CPU clock in Hz.
const cpuClockNTSC = 1789773.0

// OutOfRangeError reports a note whose computed timer value falls outside
// the representable 11-bit range [8, 2047]. Callers substitute silence.
type OutOfRangeError struct {
	Note    uint8
	Channel types.ChannelKind
	Timer   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("pitch: note %d on %s out of range (timer %d)", e.Note, e.Channel, e.Timer)
}

// noteFrequency returns the equal-temperament frequency in Hz for a MIDI
// note number, A4 (69) = 440Hz.
func noteFrequency(note uint8) float64 {
	return 440.0 * math.Pow(2.0, (float64(note)-69.0)/12.0)
}

// Timer returns the 11-bit NES timer value for note on the given channel
// kind. Pulse channels use CPU/(16*f) - 1; the triangle channel uses
// CPU/(32*f) - 1 (its hardware clocks at half the rate). Values outside
// [8, 2047] are reported as OutOfRangeError; the caller is responsible for
// substituting silence (per spec.md §4.1 and §7's PitchOutOfRange policy).
func Timer(note uint8, channel types.ChannelKind) (uint16, error) {
	if channel == types.Noise || channel == types.DPCM {
		return 0, fmt.Errorf("pitch: channel %s does not use a pitch table", channel)
	}

	freq := noteFrequency(note)
	var divisor float64
	if channel == types.Triangle {
		divisor = 32.0
	} else {
		divisor = 16.0
	}

	raw := math.Round(cpuClockNTSC/(divisor*freq) - 1)
	timer := int(raw)

	if timer < 8 || timer > 2047 {
		return 0, &OutOfRangeError{Note: note, Channel: channel, Timer: timer}
	}
	return uint16(timer), nil
}
