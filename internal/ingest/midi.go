// Package ingest is the MIDI front-end boundary: it turns a standard
// Standard MIDI File into the types.ParsedMidi the core pipeline
// consumes, normalizing the velocity/volume vocabulary and sanitizing
// track names at the edge so nothing downstream special-cases either.
// Byte-level MIDI parsing is out of core scope, so this adapter stays
// thin. Grounded on
// other_examples/6099dc80_denizsincar29-apple_haptic_creator__cmd-midi2ahap-main.go.go's
// smf.ReadFile / TimeFormat.(smf.MetricTicks) / GetMetaTempo /
// GetNoteStart / GetNoteEnd idiom.
package ingest

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"

	"midi2nes/internal/diag"
	"midi2nes/internal/types"
)

// DefaultTicksPerQuarter is used when a file's SMF header does not carry
// metric ticks (e.g. SMPTE time code), which this adapter does not
// support.
const DefaultTicksPerQuarter = 480

// defaultTempoUsPerQuarter is 120 BPM, the value assumed before the
// first tempo meta event.
const defaultTempoUsPerQuarter = 500000

// sanitizeTrackName converts an SMF track name into the ASCII identifier
// form the rest of the pipeline expects: non-alphanumeric runs collapse
// to a single underscore, and an empty name falls back to "track_N".
func sanitizeTrackName(name string, index int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Sprintf("track_%d", index)
	}

	var b strings.Builder
	lastWasUnderscore := false
	for _, r := range name {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			lastWasUnderscore = false
			continue
		}
		if !lastWasUnderscore {
			b.WriteByte('_')
			lastWasUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return fmt.Sprintf("track_%d", index)
	}
	return out
}

// ParseFile reads path as a Standard MIDI File and returns the pipeline's
// ParsedMidi boundary contract. Malformed note-on/off pairs are dropped
// and recorded via sink rather than aborting the whole file, per §7's
// recovered-error policy.
func ParseFile(path string, sink *diag.Summary) (types.ParsedMidi, error) {
	data, err := smf.ReadFile(path)
	if err != nil {
		return types.ParsedMidi{}, fmt.Errorf("read midi file: %w", err)
	}
	return parse(data, sink), nil
}

func parse(data *smf.SMF, sink *diag.Summary) types.ParsedMidi {
	ticksPerQuarter := uint32(DefaultTicksPerQuarter)
	if mt, ok := data.TimeFormat.(smf.MetricTicks); ok {
		ticksPerQuarter = uint32(mt)
	}

	parsed := types.ParsedMidi{
		Events:          make(map[string][]types.NoteEvent),
		TicksPerQuarter: ticksPerQuarter,
	}

	currentTempo := uint32(defaultTempoUsPerQuarter)
	sawTempoAt0 := false

	type pendingNote struct {
		tick     uint64
		velocity uint8
	}

	for trackIndex, track := range data.Tracks {
		trackName := ""
		tick := uint64(0)
		pending := make(map[uint8]pendingNote)

		for _, event := range track {
			tick += uint64(event.Delta)

			var name string
			if event.Message.GetMetaTrackName(&name) {
				trackName = name
				continue
			}

			var bpm float64
			if event.Message.GetMetaTempo(&bpm) && bpm > 0 {
				tempo := uint32(60000000.0 / bpm)
				if tick == 0 {
					currentTempo = tempo
					sawTempoAt0 = true
				} else {
					parsed.TempoChanges = append(parsed.TempoChanges, types.TempoChange{
						Tick:              tick,
						TempoUsPerQuarter: tempo,
						Kind:              types.TempoImmediate,
					})
				}
				continue
			}

			closeNote := func(key uint8) {
				p, ok := pending[key]
				if !ok {
					sink.Record(diag.MalformedEvent)
					return
				}
				delete(pending, key)

				name := sanitizeTrackName(trackName, trackIndex)
				parsed.Events[name] = append(parsed.Events[name],
					types.NoteEvent{Tick: p.tick, Note: key, Velocity: p.velocity, Kind: types.NoteOn},
					types.NoteEvent{Tick: tick, Note: key, Velocity: 0, Kind: types.NoteOff},
				)
			}

			var channel, key, velocity uint8
			if event.Message.GetNoteStart(&channel, &key, &velocity) {
				if velocity == 0 {
					// NoteOn velocity 0 is a NoteOff in disguise; normalize it
					// here so nothing downstream special-cases the name.
					closeNote(key)
					continue
				}
				pending[key] = pendingNote{tick: tick, velocity: velocity}
				continue
			}

			if event.Message.GetNoteEnd(&channel, &key) {
				closeNote(key)
			}
		}

		name := sanitizeTrackName(trackName, trackIndex)
		if _, ok := parsed.Events[name]; !ok && len(pending) == 0 {
			continue
		}
		parsed.TrackNames = appendTrackName(parsed.TrackNames, name)
	}

	if sawTempoAt0 {
		parsed.TempoChanges = append([]types.TempoChange{{
			Tick:              0,
			TempoUsPerQuarter: currentTempo,
			Kind:              types.TempoImmediate,
		}}, parsed.TempoChanges...)
	}

	return parsed
}

func appendTrackName(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}
