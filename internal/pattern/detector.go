// Package pattern implements C8 (detection) and C9 (compression): finding
// repeating spans in a normalized (note, volume-bin) event sequence, and
// compressing both the pattern table and individual event records for
// emission. Grounded on original_source/tracker/pattern_detector.py's
// PatternDetector (quadratic mode, variation detection) and
// fast_pattern_detector.py's FastPatternDetector (hash mode), reconciled
// into one Detect entry point with a selectable mode per the project's resolution
// of the spec's two-implementation ambiguity (see DESIGN.md).
package pattern

import (
	"fmt"
	"sort"

	"midi2nes/internal/config"
	"midi2nes/internal/types"
)

// volumeBinSize quantizes the 4-bit channel volume into coarse bins so
// pattern matching tolerates small velocity noise between otherwise
// identical phrases.
const volumeBinSize = 4

func quantizeVolume(v uint8) uint8 {
	return v / volumeBinSize
}

// Normalize converts note events into the (note, volume_bin) tuples
// pattern matching compares, dropping frame/tick so recurring spans
// compare by content rather than absolute position.
func Normalize(events []types.NoteEvent) []types.PatternEvent {
	seq := make([]types.PatternEvent, len(events))
	for i, e := range events {
		seq[i] = types.PatternEvent{Note: e.Note, Volume: quantizeVolume(e.Velocity)}
	}
	return seq
}

// autoModeThreshold is the event count at which Detect switches from
// quadratic to hash mode under config.PatternModeAuto.
const autoModeThreshold = 2000

// Detect finds repeating patterns in events per spec.md §4.8, picking
// quadratic or hash mode automatically unless cfg.PatternMode pins one.
func Detect(events []types.NoteEvent, cfg config.CompileConfig) []types.Pattern {
	seq := Normalize(events)
	if len(seq) == 0 {
		return nil
	}

	mode := cfg.PatternMode
	if mode == config.PatternModeAuto {
		if len(seq) >= autoModeThreshold {
			mode = config.PatternModeHash
		} else {
			mode = config.PatternModeQuadratic
		}
	}

	var candidates []*candidate
	if mode == config.PatternModeHash {
		candidates = detectHashSharded(seq, cfg)
	} else {
		candidates = detectQuadratic(seq, cfg)
		for _, c := range candidates {
			detectVariations(c, seq)
		}
	}

	selected := selectGreedy(candidates, cfg.OverlapTolerance)
	return toPatterns(selected)
}

// candidate is a detected repeating span before final selection.
type candidate struct {
	events     []types.PatternEvent
	length     int
	positions  []int
	variations []types.PatternVariation
}

func keyFor(window []types.PatternEvent) string {
	s := make([]byte, 0, len(window)*2)
	for _, e := range window {
		s = append(s, e.Note, e.Volume)
	}
	return string(s)
}

// detectQuadratic mirrors PatternDetector.detect_patterns: for every
// length and start, find non-overlapping repeats of that exact window,
// keeping only the first candidate per distinct content (later starts
// producing the same content yield the same match set).
func detectQuadratic(seq []types.PatternEvent, cfg config.CompileConfig) []*candidate {
	maxLen := cfg.MaxPatternLength
	if maxLen > len(seq) {
		maxLen = len(seq)
	}

	seen := make(map[string]bool)
	var candidates []*candidate

	for length := cfg.MinPatternLength; length <= maxLen; length++ {
		for start := 0; start+length <= len(seq); start++ {
			window := seq[start : start+length]
			key := keyFor(window)
			if seen[key] {
				continue
			}
			seen[key] = true

			matches := findMatches(seq, window, start)
			if len(matches) >= cfg.MinOccurrences {
				candidates = append(candidates, &candidate{
					events:    append([]types.PatternEvent(nil), window...),
					length:    length,
					positions: matches,
				})
			}
		}
	}
	return candidates
}

// findMatches finds non-overlapping occurrences of window starting at
// startPos, skipping ahead by the window length on each match (the same
// "avoid overlaps" rule as _find_pattern_matches).
func findMatches(seq []types.PatternEvent, window []types.PatternEvent, startPos int) []int {
	matches := []int{startPos}
	length := len(window)
	pos := startPos + 1
	for pos <= len(seq)-length {
		if equalWindow(seq[pos:pos+length], window) {
			matches = append(matches, pos)
			pos += length
		} else {
			pos++
		}
	}
	return matches
}

func equalWindow(a, b []types.PatternEvent) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// detectVariations scans the whole sequence for windows of the
// candidate's length that match under a constant transposition or a
// constant volume shift, recording them as variations without adding to
// the position list (§4.8: "without blocking its position list").
func detectVariations(c *candidate, seq []types.PatternEvent) {
	length := c.length
	isExact := make(map[int]bool, len(c.positions))
	for _, p := range c.positions {
		isExact[p] = true
	}

	for start := 0; start+length <= len(seq); start++ {
		if isExact[start] {
			continue
		}
		window := seq[start : start+length]

		if transpose, ok := constantTransposition(c.events, window); ok && transpose != 0 {
			c.variations = append(c.variations, types.PatternVariation{Position: uint32(start), Transpose: transpose})
			continue
		}
		if delta, ok := constantVolumeDelta(c.events, window); ok && delta != 0 {
			c.variations = append(c.variations, types.PatternVariation{Position: uint32(start), VolumeDelta: delta})
		}
	}
}

func constantTransposition(canonical, window []types.PatternEvent) (int, bool) {
	if len(canonical) != len(window) {
		return 0, false
	}
	delta := int(window[0].Note) - int(canonical[0].Note)
	for i := range canonical {
		if int(window[i].Note)-int(canonical[i].Note) != delta {
			return 0, false
		}
		if window[i].Volume != canonical[i].Volume {
			return 0, false
		}
	}
	return delta, true
}

func constantVolumeDelta(canonical, window []types.PatternEvent) (int, bool) {
	if len(canonical) != len(window) {
		return 0, false
	}
	delta := int(window[0].Volume) - int(canonical[0].Volume)
	for i := range canonical {
		if int(window[i].Volume)-int(canonical[i].Volume) != delta {
			return 0, false
		}
		if window[i].Note != canonical[i].Note {
			return 0, false
		}
	}
	return delta, true
}

// netBenefit scores a candidate for greedy selection: the bytes saved by
// replacing count occurrences of a length-L span with one template plus
// references, with a small bonus rewarding longer and more frequent
// patterns. The exact bonus weights are this project's own tie-breaking
// choice (spec.md §4.8 names the term but not its constants).
func netBenefit(length, count int) float64 {
	base := float64(length*(count-1) - (length + count))
	lengthBonus := float64(length) * 0.1
	frequencyBonus := float64(count) * 0.05
	return base + lengthBonus + frequencyBonus
}

// selectGreedy sorts candidates by descending net_benefit and accepts
// each one whose covered frames overlap previously accepted patterns by
// no more than overlapTolerance (a fraction of the candidate's own
// coverage), per §4.8.
func selectGreedy(candidates []*candidate, overlapTolerance float64) []*candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return netBenefit(candidates[i].length, len(candidates[i].positions)) >
			netBenefit(candidates[j].length, len(candidates[j].positions))
	})

	used := make(map[int]bool)
	var selected []*candidate

	for _, c := range candidates {
		covered := coveredPositions(c)
		overlap := 0
		for pos := range covered {
			if used[pos] {
				overlap++
			}
		}
		if len(covered) > 0 && float64(overlap)/float64(len(covered)) > overlapTolerance {
			continue
		}
		for pos := range covered {
			used[pos] = true
		}
		selected = append(selected, c)
	}
	return selected
}

func coveredPositions(c *candidate) map[int]bool {
	covered := make(map[int]bool, len(c.positions)*c.length)
	for _, start := range c.positions {
		for i := 0; i < c.length; i++ {
			covered[start+i] = true
		}
	}
	return covered
}

// toPatterns assigns stable pattern_N ids in selection order and
// converts internal candidates to the public types.Pattern shape.
func toPatterns(selected []*candidate) []types.Pattern {
	patterns := make([]types.Pattern, len(selected))
	for i, c := range selected {
		positions := make([]uint32, len(c.positions))
		for j, p := range c.positions {
			positions[j] = uint32(p)
		}
		patterns[i] = types.Pattern{
			ID:         fmt.Sprintf("pattern_%d", i),
			Events:     c.events,
			Length:     c.length,
			Positions:  positions,
			Variations: c.variations,
		}
	}
	return patterns
}
