package compile

import (
	"os"
	"path/filepath"
	"strings"
)

// LoadSampleIndex reads every .dmc file in dir into a name-keyed map of
// raw PCM data, per §4.5/§4.6: the sample name is the file's base name
// without extension, matched against drum mapping names. An empty dir
// argument is a valid "no samples" configuration and returns an empty
// map rather than an error, so every drum hit falls back to the noise
// channel.
func LoadSampleIndex(dir string) (map[string][]byte, error) {
	index := make(map[string][]byte)
	if dir == "" {
		return index, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".dmc") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		index[name] = data
	}

	return index, nil
}
