package trackmap

import "sort"

// ChordType names a detected chord shape, or "unknown" when the interval
// pattern doesn't match one of the four recognized triads.
type ChordType string

const (
	Major      ChordType = "major"
	Minor      ChordType = "minor"
	Augmented  ChordType = "augmented"
	Diminished ChordType = "diminished"
	Unknown    ChordType = "unknown"
)

// ChordInfo is the result of chord detection: the recognized type and the
// root (lowest) note.
type ChordInfo struct {
	Type ChordType
	Root uint8
}

// DetectChord sorts notes and classifies the resulting interval pair, per
// spec.md §4.4: {4,3}=major, {3,4}=minor, {4,4}=augmented, {3,3}=diminished,
// otherwise unknown. Fewer than two notes has no chord.
func DetectChord(notes []uint8) *ChordInfo {
	if len(notes) < 2 {
		return nil
	}

	sorted := append([]uint8(nil), notes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	intervals := make([]int, len(sorted)-1)
	for i := 0; i < len(sorted)-1; i++ {
		intervals[i] = int(sorted[i+1]) - int(sorted[i])
	}

	info := &ChordInfo{Type: Unknown, Root: sorted[0]}
	if len(sorted) == 3 {
		switch {
		case intervals[0] == 4 && intervals[1] == 3:
			info.Type = Major
		case intervals[0] == 3 && intervals[1] == 4:
			info.Type = Minor
		case intervals[0] == 4 && intervals[1] == 4:
			info.Type = Augmented
		case intervals[0] == 3 && intervals[1] == 3:
			info.Type = Diminished
		}
	}
	return info
}
