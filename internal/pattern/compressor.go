// C9: canonicalizing the pattern table, building the reference table that
// replays it, computing compression statistics, and a separate
// record-level RLE/delta compressor for emission. Grounded on
// exporter/compression.py's CompressionEngine.
package pattern

import (
	"fmt"
	"sort"

	"midi2nes/internal/types"
)

// Canonicalize sorts patterns by descending (length * occurrences) - the
// patterns saving the most bytes first - and reassigns ids pattern_0,
// pattern_1, ... in that order.
func Canonicalize(patterns []types.Pattern) []types.Pattern {
	sorted := append([]types.Pattern(nil), patterns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Length*len(sorted[i].Positions) > sorted[j].Length*len(sorted[j].Positions)
	})
	for i := range sorted {
		sorted[i].ID = fmt.Sprintf("pattern_%d", i)
	}
	return sorted
}

// Reference is one entry of the playback reference table: Frame plays
// back PatternID at Offset within that pattern's canonical events.
type Reference struct {
	Frame uint32
	Ref   types.PatternRef
}

type instance struct {
	patternIndex int
	start        int
}

// BuildReferenceTable walks every position in [0, totalLength) and emits
// a reference only where exactly one pattern instance covers it, per
// §4.9. Positions covered by zero or multiple overlapping instances are
// left for the raw frame table to carry directly.
func BuildReferenceTable(patterns []types.Pattern, totalLength int) []Reference {
	coverage := make(map[int][]instance)
	for pi, p := range patterns {
		for _, start := range p.Positions {
			s := int(start)
			for i := 0; i < p.Length; i++ {
				pos := s + i
				coverage[pos] = append(coverage[pos], instance{patternIndex: pi, start: s})
			}
		}
	}

	var refs []Reference
	for pos := 0; pos < totalLength; pos++ {
		covering := coverage[pos]
		if len(covering) != 1 {
			continue
		}
		inst := covering[0]
		p := patterns[inst.patternIndex]
		refs = append(refs, Reference{
			Frame: uint32(pos),
			Ref:   types.PatternRef{PatternID: p.ID, Offset: pos - inst.start},
		})
	}
	return refs
}

// Stats is the compression summary: how many events the raw frame table
// would have held versus how many the pattern table plus reference table
// actually holds.
type Stats struct {
	OriginalSize   int
	CompressedSize int
	Ratio          float64
}

// ComputeStats implements §4.9's compression ratio formula.
func ComputeStats(patterns []types.Pattern, refs []Reference) Stats {
	var original, compressed int
	for _, p := range patterns {
		original += p.Length * len(p.Positions)
		compressed += p.Length
	}
	compressed += len(refs)

	ratio := 1.0
	if compressed > 0 {
		ratio = float64(original) / float64(compressed)
	}
	return Stats{OriginalSize: original, CompressedSize: compressed, Ratio: ratio}
}

// Record is the minimal numeric-field shape record-level compression
// operates on: note, volume and sample id, the three fields §4.9 names
// as eligible for delta compression. Pitch timers and control bytes are
// always re-derived from Note at emission time, so they carry no
// independent information here.
type Record struct {
	Note     uint8
	Volume   uint8
	SampleID byte
}

// blockKind is compression-internal metadata; it never survives a
// Decompress round trip since Decompress returns plain Records.
type blockKind int

const (
	blockRaw blockKind = iota
	blockRLE
	blockDelta
)

// Block is one compressed run of records.
type Block struct {
	kind     blockKind
	single   Record  // raw / RLE payload
	count    int     // RLE repeat count
	start    Record  // delta run's first record
	noteD    []int   // delta run: each record's note minus start's
	volD     []int   // delta run: each record's volume minus start's
	sampleD  []int   // delta run: each record's sample id minus start's
}

const (
	minRLERun   = 2
	minDeltaRun = 3
)

// Compress splits records into RLE runs (>=2 identical records), delta
// runs (>=3 records differing only in Note/Volume/SampleID by a constant
// per-step increment is not required - only that every field's delta is
// representable - matching §4.9's numeric-field delta rule), and raw
// singletons, in that preference order at each position.
func Compress(records []Record) []Block {
	var blocks []Block
	i := 0
	for i < len(records) {
		if run := rleRunLength(records, i); run >= minRLERun {
			blocks = append(blocks, Block{kind: blockRLE, single: records[i], count: run})
			i += run
			continue
		}
		if run := deltaRunLength(records, i); run >= minDeltaRun {
			start := records[i]
			noteD := make([]int, run)
			volD := make([]int, run)
			sampleD := make([]int, run)
			for k := 0; k < run; k++ {
				r := records[i+k]
				noteD[k] = int(r.Note) - int(start.Note)
				volD[k] = int(r.Volume) - int(start.Volume)
				sampleD[k] = int(r.SampleID) - int(start.SampleID)
			}
			blocks = append(blocks, Block{kind: blockDelta, start: start, noteD: noteD, volD: volD, sampleD: sampleD})
			i += run
			continue
		}
		blocks = append(blocks, Block{kind: blockRaw, single: records[i]})
		i++
	}
	return blocks
}

// Decompress reverses Compress exactly; decompress(compress(x)) == x for
// every input, per §4.9.
func Decompress(blocks []Block) []Record {
	var out []Record
	for _, b := range blocks {
		switch b.kind {
		case blockRLE:
			for k := 0; k < b.count; k++ {
				out = append(out, b.single)
			}
		case blockDelta:
			for k := range b.noteD {
				out = append(out, Record{
					Note:     uint8(int(b.start.Note) + b.noteD[k]),
					Volume:   uint8(int(b.start.Volume) + b.volD[k]),
					SampleID: byte(int(b.start.SampleID) + b.sampleD[k]),
				})
			}
		default:
			out = append(out, b.single)
		}
	}
	return out
}

func rleRunLength(records []Record, from int) int {
	run := 1
	for from+run < len(records) && records[from+run] == records[from] {
		run++
	}
	return run
}

// deltaRunLength finds the longest run starting at from whose records
// differ from records[from] only in Note/Volume/SampleID - i.e. it is
// always representable as a start record plus per-step field diffs,
// since Record has no other fields. A run only pays off once it beats
// a single RLE/raw encoding, so it must be at least minDeltaRun long and
// must not itself be a run of identical records (that's RLE's job).
func deltaRunLength(records []Record, from int) int {
	run := 1
	for from+run < len(records) {
		if records[from+run] == records[from] {
			break
		}
		run++
	}
	if run < minDeltaRun {
		return 0
	}
	return run
}
