package compile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSampleIndex_EmptyDirArgReturnsEmptyMap(t *testing.T) {
	index, err := LoadSampleIndex("")
	require.NoError(t, err)
	assert.Empty(t, index)
}

func TestLoadSampleIndex_ReadsDMCFilesByBaseName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kick.dmc"), []byte{0x01, 0x02}, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snare.DMC"), []byte{0x03}, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignore me"), 0644))

	index, err := LoadSampleIndex(dir)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x01, 0x02}, index["kick"])
	assert.Equal(t, []byte{0x03}, index["snare"])
	assert.NotContains(t, index, "readme")
}

func TestLoadSampleIndex_MissingDirReturnsError(t *testing.T) {
	_, err := LoadSampleIndex(filepath.Join(t.TempDir(), "nonexistent"))
	assert.Error(t, err)
}
