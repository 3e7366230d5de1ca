package rom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeader_MatchesINESContract(t *testing.T) {
	h := Header()
	assert.Equal(t, byte('N'), h[0])
	assert.Equal(t, byte('E'), h[1])
	assert.Equal(t, byte('S'), h[2])
	assert.Equal(t, byte(0x1A), h[3])
	assert.Equal(t, byte(8), h[4])
	assert.Equal(t, byte(0), h[5])
	assert.Equal(t, byte(0x10), h[6])
	for i := 7; i < HeaderSize; i++ {
		assert.Equal(t, byte(0), h[i])
	}
}
