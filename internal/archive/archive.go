// Package archive implements the pattern archive cache format §6
// describes: a gzip-compressed JSON document round-tripping a compile's
// detected patterns, reference table, and compression stats so a later
// compile of the same song can skip re-running the detector. Grounded
// on schollz-221e/internal/storage/storage.go's save.json.gz pair
// (jsoniter marshal -> gzip.Writer, gzip.Reader -> jsoniter unmarshal).
package archive

import (
	"compress/gzip"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"midi2nes/internal/pattern"
	"midi2nes/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// patternEntry is one pattern's JSON shape, keyed by id in Document.
type patternEntry struct {
	Events     []types.PatternEvent     `json:"events"`
	Length     int                      `json:"length"`
	Positions  []uint32                 `json:"positions"`
	Variations []types.PatternVariation `json:"variations,omitempty"`
}

// referenceEntry is one frame's reference, emitted as the [pattern_id,
// offset] pair §6 names.
type referenceEntry [2]interface{}

// statsEntry mirrors pattern.Stats for JSON, naming the fields §6's
// archive contract uses.
type statsEntry struct {
	CompressionRatio float64 `json:"compression_ratio"`
	OriginalSize     int     `json:"original_size"`
	CompressedSize   int     `json:"compressed_size"`
	UniquePatterns   int     `json:"unique_patterns"`
}

// Document is the archive's JSON shape, per §6: patterns keyed by id,
// references keyed by frame, and the compression stats that produced
// them.
type Document struct {
	Patterns   map[string]patternEntry  `json:"patterns"`
	References map[string]referenceEntry `json:"references"`
	Stats      statsEntry                `json:"stats"`
}

// Build converts the detector/compressor's output into the archive
// document shape.
func Build(patterns []types.Pattern, refs []pattern.Reference, stats pattern.Stats) Document {
	doc := Document{
		Patterns:   make(map[string]patternEntry, len(patterns)),
		References: make(map[string]referenceEntry, len(refs)),
		Stats: statsEntry{
			CompressionRatio: stats.Ratio,
			OriginalSize:     stats.OriginalSize,
			CompressedSize:   stats.CompressedSize,
			UniquePatterns:   len(patterns),
		},
	}
	for _, p := range patterns {
		doc.Patterns[p.ID] = patternEntry{
			Events:     p.Events,
			Length:     p.Length,
			Positions:  p.Positions,
			Variations: p.Variations,
		}
	}
	for _, r := range refs {
		key := fmt.Sprintf("%d", r.Frame)
		doc.References[key] = referenceEntry{r.Ref.PatternID, r.Ref.Offset}
	}
	return doc
}

// ToPatterns reconstructs []types.Pattern from a decoded Document, the
// inverse of Build's pattern half.
func (d Document) ToPatterns() []types.Pattern {
	out := make([]types.Pattern, 0, len(d.Patterns))
	for id, e := range d.Patterns {
		out = append(out, types.Pattern{
			ID:         id,
			Events:     e.Events,
			Length:     e.Length,
			Positions:  e.Positions,
			Variations: e.Variations,
		})
	}
	return out
}

// Write marshals doc to JSON and gzip-compresses it to w.
func Write(w io.Writer, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal pattern archive: %w", err)
	}

	gzw := gzip.NewWriter(w)
	if _, err := gzw.Write(data); err != nil {
		gzw.Close()
		return fmt.Errorf("write pattern archive: %w", err)
	}
	return gzw.Close()
}

// Read decompresses and unmarshals a Document previously written by
// Write.
func Read(r io.Reader) (Document, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return Document{}, fmt.Errorf("open pattern archive: %w", err)
	}
	defer gzr.Close()

	data, err := io.ReadAll(gzr)
	if err != nil {
		return Document{}, fmt.Errorf("read pattern archive: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("unmarshal pattern archive: %w", err)
	}
	// Numbers inside a [pattern_id, offset] pair decode as float64; restore
	// the int offset Build stores so a document round-trips unchanged.
	for key, ref := range doc.References {
		if offset, ok := ref[1].(float64); ok {
			ref[1] = int(offset)
			doc.References[key] = ref
		}
	}
	return doc, nil
}
