// Package rom builds the 16-byte iNES header per spec.md §6's table and
// the external interface the assembler toolchain is handed. Grounded on
// original_source/mappers/mmc1.py's generate_header_asm byte values.
package rom

// HeaderSize is the fixed iNES header length in bytes.
const HeaderSize = 16

// PRGBanks is the number of 16 KiB PRG-ROM banks (128 KiB total PRG-ROM).
const PRGBanks = 8

// CHRBanks is the number of 8 KiB CHR-ROM banks; 0 means CHR-RAM.
const CHRBanks = 0

// mapperControlByte is iNES byte 6: the high nibble holds the mapper
// number's low nibble (1, MMC1) and the low nibble holds the flags, all
// clear here (bit 0 clear = horizontal mirroring, no battery, no
// trainer), giving 0x10.
const mapperControlByte = 0x10

// Header builds the 16-byte iNES header.
func Header() [HeaderSize]byte {
	var h [HeaderSize]byte
	copy(h[0:4], []byte("NES\x1a"))
	h[4] = PRGBanks
	h[5] = CHRBanks
	h[6] = mapperControlByte
	// bytes 7..15 stay zero padding.
	return h
}
