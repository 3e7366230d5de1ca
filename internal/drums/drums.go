// Package drums implements C6: MIDI drum note to DPCM sample resolution,
// velocity-layered "advanced" mapping, and the noise-channel fallback for
// notes no configured mapping covers. Grounded on
// original_source/dpcm_sampler/drum_engine.py's DEFAULT_MIDI_DRUM_MAPPING
// and enhanced_drum_mapper.py's EnhancedDrumMapper.map_drums.
package drums

import (
	"sort"

	"midi2nes/internal/config"
	"midi2nes/internal/dpcm"
	"midi2nes/internal/types"
)

// DefaultMapping is the basic MIDI note -> sample name table, verbatim
// from the original's DEFAULT_MIDI_DRUM_MAPPING.
var DefaultMapping = map[uint8]string{
	36: "kick",
	38: "snare",
	40: "snare",
	42: "hihat_closed",
	46: "hihat_open",
	49: "crash",
	51: "ride",
}

// VelocityRange is one [Lo, Hi] (inclusive) velocity band mapping to a
// sample name. A valid AdvancedConfig's ranges partition 0..127 with no
// gaps or overlaps.
type VelocityRange struct {
	Lo, Hi uint8
	Name   string
}

// AdvancedConfig is a per-note advanced mapping: a primary sample, an
// optional velocity-range split, and optional layered samples triggered
// alongside the primary.
type AdvancedConfig struct {
	Primary        string
	VelocityRanges []VelocityRange
	Layers         []string
}

// AdvancedMapping is the velocity-aware, layered mapping table. Notes
// absent here fall back to DefaultMapping's primary name (unlike the
// original, whose advanced table only ever covered kick and snare and
// silently routed every other drum note to noise — a gap this project
// closes; see DESIGN.md).
var AdvancedMapping = map[uint8]AdvancedConfig{
	36: {
		Primary: "kick",
		VelocityRanges: []VelocityRange{
			{0, 64, "kick_soft"},
			{65, 127, "kick_hard"},
		},
		Layers: []string{"kick", "kick_sub"},
	},
	38: {
		Primary: "snare",
		VelocityRanges: []VelocityRange{
			{0, 64, "snare_soft"},
			{65, 127, "snare_hard"},
		},
		Layers: []string{"snare", "snare_rattle"},
	},
}

// ValidRanges reports whether ranges partitions 0..127 without gaps or
// overlap, per §4.6's invariant.
func ValidRanges(ranges []VelocityRange) bool {
	if len(ranges) == 0 {
		return true
	}
	sorted := append([]VelocityRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lo < sorted[j].Lo })
	if sorted[0].Lo != 0 {
		return false
	}
	for i := 0; i < len(sorted)-1; i++ {
		if sorted[i].Hi+1 != sorted[i+1].Lo {
			return false
		}
	}
	return sorted[len(sorted)-1].Hi == 127
}

func resolveAdvanced(cfg AdvancedConfig, velocity uint8) string {
	name := cfg.Primary
	for _, r := range cfg.VelocityRanges {
		if velocity >= r.Lo && velocity <= r.Hi {
			name = r.Name
			break
		}
	}
	return name
}

// PatternTemplate describes the drum pattern an event at a given offset
// belongs to, for pattern-aware sample reuse.
type PatternTemplate struct {
	TemplateNote     uint8
	TemplateVelocity uint8
	PatternID        string
}

// PatternLookup resolves which pattern (if any) an event at frame on a
// given source channel belongs to. Map consults it only when one is
// supplied; the pattern package provides no implementation, and
// internal/compile passes nil.
type PatternLookup interface {
	TemplateFor(channel string, frame uint32) (PatternTemplate, bool)
}

// Mapper resolves drum events into DPCM/noise streams, implementing
// trackmap.DrumMapper.
type Mapper struct {
	samples       *dpcm.Manager
	useAdvanced   bool
	maxSamples    int
	patternLookup PatternLookup
}

// NewMapper builds a drum Mapper sharing the compile's sample manager.
func NewMapper(samples *dpcm.Manager, cfg config.CompileConfig, lookup PatternLookup) *Mapper {
	return &Mapper{
		samples:       samples,
		useAdvanced:   cfg.UseAdvancedDrumMapping,
		maxSamples:    cfg.MaxSamples,
		patternLookup: lookup,
	}
}

// Map implements trackmap.DrumMapper: resolves every NoteOn across all
// source channels into a DPCM trigger (if a sample name resolves and is
// present in sampleIndex) or a noise-channel fallback, per §4.6.
func (m *Mapper) Map(midiEvents map[string][]types.NoteEvent, sampleIndex map[string][]byte) types.DrumMapResult {
	var result types.DrumMapResult

	for channel, events := range midiEvents {
		for _, e := range events {
			if e.Kind == types.NoteOff || e.Velocity == 0 {
				continue
			}

			if m.patternLookup != nil {
				if tmpl, ok := m.patternLookup.TemplateFor(channel, e.Frame); ok {
					result.DPCM = append(result.DPCM, m.handlePatternEvent(tmpl, e, sampleIndex)...)
					continue
				}
			}

			sampleName, layers := m.resolve(e.Note, e.Velocity)
			data, present := sampleIndex[sampleName]
			if sampleName == "" || !present {
				result.Noise = append(result.Noise, types.NoiseEvent{Frame: e.Frame, Velocity: e.Velocity})
				continue
			}

			sample := m.samples.Allocate(sampleName, data, 0)
			result.DPCM = append(result.DPCM, types.DrumEvent{Frame: e.Frame, SampleID: sample.ID, Velocity: e.Velocity})

			for _, layer := range layers {
				if layerData, ok := sampleIndex[layer]; ok {
					layerSample := m.samples.Allocate(layer, layerData, 0)
					result.DPCM = append(result.DPCM, types.DrumEvent{Frame: e.Frame, SampleID: layerSample.ID, Velocity: e.Velocity})
				}
			}
		}
	}

	return m.collapseOverBudget(result)
}

// resolve returns the sample name and (advanced-mode only) layer names
// for a note/velocity pair.
func (m *Mapper) resolve(note, velocity uint8) (string, []string) {
	if m.useAdvanced {
		if adv, ok := AdvancedMapping[note]; ok {
			return resolveAdvanced(adv, velocity), adv.Layers
		}
		// No advanced entry: fall back to the default primary name with no
		// layering, rather than silently dropping the note to noise.
		if name, ok := DefaultMapping[note]; ok {
			return name, nil
		}
		return "", nil
	}
	return DefaultMapping[note], nil
}

// handlePatternEvent reuses the pattern template's sample, per §4.6's
// pattern-aware allocation rule: the triggering event's own velocity
// carries through unchanged (the template only determines which sample
// name and layers resolve, not a separate velocity scale).
func (m *Mapper) handlePatternEvent(tmpl PatternTemplate, e types.NoteEvent, sampleIndex map[string][]byte) []types.DrumEvent {
	sampleName, _ := m.resolve(tmpl.TemplateNote, tmpl.TemplateVelocity)
	data, present := sampleIndex[sampleName]
	if sampleName == "" || !present {
		return nil
	}
	sample := m.samples.Allocate(sampleName, data, 0)

	return []types.DrumEvent{{Frame: e.Frame, SampleID: sample.ID, Velocity: e.Velocity}}
}

// collapseOverBudget implements the post-pass: if the DPCM event count
// exceeds maxSamples distinct sample ids in use, the least-used ids are
// collapsed into noise fallback events.
func (m *Mapper) collapseOverBudget(result types.DrumMapResult) types.DrumMapResult {
	usage := make(map[byte]int)
	for _, ev := range result.DPCM {
		usage[ev.SampleID]++
	}
	if len(usage) <= m.maxSamples {
		return result
	}

	type scored struct {
		id    byte
		count int
	}
	ranked := make([]scored, 0, len(usage))
	for id, count := range usage {
		ranked = append(ranked, scored{id, count})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].count > ranked[j].count })

	allowed := make(map[byte]bool, m.maxSamples)
	for i := 0; i < m.maxSamples && i < len(ranked); i++ {
		allowed[ranked[i].id] = true
	}

	var kept []types.DrumEvent
	for _, ev := range result.DPCM {
		if allowed[ev.SampleID] {
			kept = append(kept, ev)
		} else {
			result.Noise = append(result.Noise, types.NoiseEvent{Frame: ev.Frame, Velocity: ev.Velocity})
		}
	}
	result.DPCM = kept
	return result
}
