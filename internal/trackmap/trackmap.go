// Package trackmap implements C4: splitting a polyphonic source into NES
// channel streams, chord-aware arpeggio fallback for channels carrying
// more notes than the NES can voice, and the final channel assignment that
// also delegates to the drum mapper. Grounded on
// original_source/tracker/track_mapper.go's split_polyphonic_track /
// apply_arpeggio_fallback / assign_tracks_to_nes_channels, translated from
// its dict-of-lists shape into typed channel streams.
package trackmap

import (
	"sort"
	"strings"

	"midi2nes/internal/config"
	"midi2nes/internal/types"
)

// DrumMapper resolves drum-like events into DPCM/noise streams. The track
// mapper always delegates to it (spec.md §4.4 step 3); implementations
// live in internal/drums. Taking it as an interface here keeps trackmap
// free of a direct dependency on the DPCM sample manager.
type DrumMapper interface {
	Map(midiEvents map[string][]types.NoteEvent, sampleIndex map[string][]byte) types.DrumMapResult
}

// Summary counts events this pipeline stage could not place, per §4.4's
// "mapping never fails; unmappable events are discarded with a
// diagnostic count" failure semantics.
type Summary struct {
	Unmapped int
}

// groupNotesByFrame buckets NoteOn events (velocity > 0) by frame,
// dropping NoteOff events, mirroring group_notes_by_frame.
func groupNotesByFrame(events []types.NoteEvent) map[uint32][]types.NoteEvent {
	grouped := make(map[uint32][]types.NoteEvent)
	for _, e := range events {
		if e.Kind == types.NoteOff || e.Velocity == 0 {
			continue
		}
		grouped[e.Frame] = append(grouped[e.Frame], e)
	}
	return grouped
}

// ApplyArpeggioFallback expands any frame carrying more than one
// simultaneous note into either a single pass-through note (monophonic
// frame) or a chord-detected arpeggio sequence, per spec.md §4.4.
func ApplyArpeggioFallback(events []types.NoteEvent, maxNotes int, style config.ArpeggioStyle) []types.NoteEvent {
	grouped := groupNotesByFrame(events)

	frames := make([]uint32, 0, len(grouped))
	for f := range grouped {
		frames = append(frames, f)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i] < frames[j] })

	var out []types.NoteEvent
	for _, frame := range frames {
		bucket := grouped[frame]
		if len(bucket) <= 1 {
			e := bucket[0]
			e.Velocity = 100
			e.Kind = types.NoteOn
			out = append(out, e)
			continue
		}

		if len(bucket) > maxNotes {
			bucket = bucket[:maxNotes]
		}
		notes := make([]uint8, len(bucket))
		for i, e := range bucket {
			notes[i] = e.Note
		}

		chord := DetectChord(notes)
		pattern := PatternFor(chord, style)
		sequence := ApplyPattern(notes, pattern)

		chordType := string(Unknown)
		if chord != nil {
			chordType = string(chord.Type)
		}

		for i, note := range sequence {
			vel := 100 - i*5
			if vel < 0 {
				vel = 0
			}
			out = append(out, types.NoteEvent{
				Frame:         frame + uint32(i),
				Note:          note,
				Velocity:      uint8(vel),
				Kind:          types.NoteOn,
				Arpeggio:      true,
				ArpeggioIndex: i,
				ArpeggioTotal: len(sequence),
				ChordType:     chordType,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Frame < out[j].Frame })
	return out
}

// PitchSplit is the result of splitting a single polyphonic stream by
// pitch range.
type PitchSplit struct {
	Pulse1   []types.NoteEvent // note >= 60
	Pulse2   []types.NoteEvent // 48 <= note < 60
	Triangle []types.NoteEvent // note < 48
}

// SplitPolyphonic implements step 1 of §4.4: a single source channel is
// split by pitch range; NoteOff events are dropped.
func SplitPolyphonic(events []types.NoteEvent) PitchSplit {
	var split PitchSplit
	for _, e := range events {
		if e.Kind == types.NoteOff || e.Velocity == 0 {
			continue
		}
		switch {
		case e.Note >= 60:
			split.Pulse1 = append(split.Pulse1, e)
		case e.Note >= 48:
			split.Pulse2 = append(split.Pulse2, e)
		default:
			split.Triangle = append(split.Triangle, e)
		}
	}
	return split
}

func averagePitch(events []types.NoteEvent) float64 {
	var sum, count int
	for _, e := range events {
		if e.Kind == types.NoteOff || e.Velocity == 0 {
			continue
		}
		sum += int(e.Note)
		count++
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

// ChannelStreams is the final per-channel event assignment, keyed by NES
// channel kind.
type ChannelStreams struct {
	Pulse1   []types.NoteEvent
	Pulse2   []types.NoteEvent
	Triangle []types.NoteEvent
	Noise    []types.NoteEvent
	DPCM     []types.DrumEvent
}

// AssignTracksToChannels implements §4.4's full algorithm: single-track
// pitch split or multi-track pitch ranking, followed by delegation to the
// drum mapper: its DPCM events override any prior DPCM assignment, and its
// noise fallbacks fill Noise only when Noise is still empty.
func AssignTracksToChannels(midiEvents map[string][]types.NoteEvent, sampleIndex map[string][]byte, drums DrumMapper, cfg config.CompileConfig) ChannelStreams {
	var streams ChannelStreams

	if len(midiEvents) == 1 {
		for _, events := range midiEvents {
			split := SplitPolyphonic(events)
			streams.Pulse1 = split.Pulse1
			streams.Pulse2 = split.Pulse2
			streams.Triangle = split.Triangle
		}
	} else {
		type scored struct {
			channel string
			avg     float64
		}
		var ranked []scored
		for ch, events := range midiEvents {
			ranked = append(ranked, scored{ch, averagePitch(events)})
		}
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].avg > ranked[j].avg })

		assignNext := func() (string, bool) {
			if len(ranked) == 0 {
				return "", false
			}
			ch := ranked[0].channel
			ranked = ranked[1:]
			return ch, true
		}

		if ch, ok := assignNext(); ok {
			streams.Pulse1 = midiEvents[ch]
		}
		if ch, ok := assignNext(); ok {
			streams.Pulse2 = ApplyArpeggioFallback(midiEvents[ch], cfg.MaxNotesPerChord, cfg.ArpeggioStyle)
		}
		if len(ranked) > 0 {
			lowest := 0
			for i := range ranked {
				if ranked[i].avg < ranked[lowest].avg {
					lowest = i
				}
			}
			streams.Triangle = midiEvents[ranked[lowest].channel]
			ranked = append(ranked[:lowest], ranked[lowest+1:]...)
		}

		for _, r := range ranked {
			if containsDrum(r.channel) {
				streams.Noise = midiEvents[r.channel]
			} else if streams.DPCM == nil {
				// Non-drum leftover channels have no direct DPCM shape; they
				// are dropped here and picked up only if the drum mapper
				// below finds drum-like notes among the unassigned events.
				continue
			}
		}
	}

	if drums != nil {
		result := drums.Map(midiEvents, sampleIndex)
		if len(result.DPCM) > 0 {
			streams.DPCM = result.DPCM
		}
		if len(result.Noise) > 0 && len(streams.Noise) == 0 {
			for _, n := range result.Noise {
				streams.Noise = append(streams.Noise, types.NoteEvent{Frame: n.Frame, Velocity: n.Velocity, Kind: types.NoteOn})
			}
		}
	}

	return streams
}

func containsDrum(name string) bool {
	return strings.Contains(strings.ToLower(name), "drum")
}
