package pattern

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Decompress(Compress(records)) must reproduce the original record
// sequence exactly, regardless of which mix of raw/RLE/delta runs
// Compress chose to encode it with.
func TestProperty_CompressDecompressRoundTrips(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	recordGen := gen.Struct(reflect.TypeOf(Record{}), map[string]gopter.Gen{
		"Note":     gen.UInt8Range(0, 127),
		"Volume":   gen.UInt8Range(0, 15),
		"SampleID": gen.UInt8Range(0, 63),
	})

	properties.Property("decompress undoes compress", prop.ForAll(
		func(records []Record) bool {
			blocks := Compress(records)
			out := Decompress(blocks)

			if len(out) != len(records) {
				return false
			}
			for i := range records {
				if out[i] != records[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(recordGen),
	))

	properties.TestingRun(t)
}
