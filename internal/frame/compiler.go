// Package frame implements C7: expanding a sorted per-channel event
// stream into a dense frame -> FrameRecord map, applying the sustain/
// overlap-trim rule and each channel kind's record shape. Grounded on
// original_source/nes/emulator_core.py's compile_channel_to_frames and
// process_all_tracks.
package frame

import (
	"sort"

	"midi2nes/internal/config"
	"midi2nes/internal/diag"
	"midi2nes/internal/envelope"
	"midi2nes/internal/pitch"
	"midi2nes/internal/types"
)

// CompileTonal expands a pulse or triangle channel's NoteOn events into a
// dense frame map, per §4.7. Noise and DPCM have their own compile
// functions below since their record shape carries no pitch.
func CompileTonal(events []types.NoteEvent, channel types.ChannelKind, cfg config.CompileConfig, sink *diag.Summary) types.FrameMap {
	sorted := append([]types.NoteEvent(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })

	frames := make(types.FrameMap)

	for i, event := range sorted {
		if event.Kind == types.NoteOff || event.Velocity == 0 {
			continue
		}

		start := event.Frame
		end := start + cfg.SustainFrames
		for j := i + 1; j < len(sorted); j++ {
			next := sorted[j]
			if next.Kind == types.NoteOff || next.Velocity == 0 {
				// A release of this same note cuts it short, just as the
				// next NoteOn does.
				if next.Note == event.Note && next.Frame > start {
					if next.Frame < end {
						end = next.Frame
					}
					break
				}
				continue
			}
			if next.Frame > start {
				if next.Frame < end {
					end = next.Frame
				}
				break
			}
		}

		timer, err := pitch.Timer(event.Note, channel)
		if err != nil {
			sink.Record(diag.PitchOutOfRange)
			continue
		}

		envKind := envelope.Kind(event.EnvelopeKind)
		if envKind == "" {
			envKind = envelope.Kind(cfg.DefaultEnvelope)
		}

		for f := start; f < end; f++ {
			offset := int(f - start)
			if channel.IsPulse() {
				control := envelope.ControlByte(envKind, offset, int(end-start), cfg.DefaultDuty, event.Effects, event.Velocity)
				frames[f] = types.FrameRecord{
					Channel:     channel,
					Note:        event.Note,
					PitchTimer:  timer,
					ControlByte: control,
					Volume:      velocityVolume(event.Velocity),
				}
			} else {
				frames[f] = types.FrameRecord{
					Channel:    channel,
					Note:       event.Note,
					PitchTimer: timer,
					Volume:     velocityVolume(event.Velocity),
				}
			}
		}
	}

	return frames
}

func velocityVolume(velocity uint8) byte {
	v := velocity / 8
	if v > 15 {
		v = 15
	}
	return v
}

// CompileNoise builds the noise channel's frame map: mode 0 (white
// noise), volume 15 when the event is audible, 0 otherwise.
func CompileNoise(events []types.NoteEvent) types.FrameMap {
	frames := make(types.FrameMap)
	for _, e := range events {
		vol := byte(0)
		if e.Velocity > 0 {
			vol = 15
		}
		frames[e.Frame] = types.FrameRecord{
			Channel:   types.Noise,
			Volume:    vol,
			NoiseMode: 0,
		}
	}
	return frames
}

// CompileDPCM builds the DPCM channel's frame map: one record per drum
// trigger, enabled whenever velocity is nonzero.
func CompileDPCM(events []types.DrumEvent) types.FrameMap {
	frames := make(types.FrameMap)
	for _, e := range events {
		frames[e.Frame] = types.FrameRecord{
			Channel:  types.DPCM,
			SampleID: e.SampleID,
			Enable:   e.Velocity > 0,
		}
	}
	return frames
}
