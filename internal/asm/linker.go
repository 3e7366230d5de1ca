// Package asm implements C11: emitting music.asm's text, and the
// nes.cfg linker script it assembles against. Grounded on
// original_source/mappers/mmc1.py's generate_linker_config /
// generate_header_asm / generate_init_code for content, and
// tools/forge/serialize/serializer.go for the section-by-section
// builder idiom (there over a []byte, here over a strings.Builder).
package asm

// LinkerScript returns the ld65 configuration targeting the 128 KiB
// PRG-ROM + CHR-RAM MMC1 layout §6 specifies: 8x16KiB PRG banks, mapper
// 1, horizontal mirroring, vectors at $FFFA.
func LinkerScript() string {
	return `MEMORY {
    ZP:       start = $0000, size = $0100, type = rw, define = yes;
    RAM:      start = $0300, size = $0500, type = rw, define = yes;
    HEADER:   start = $0000, size = $0010, file = %O, fill = yes;

    # Switchable banks 0-6 (112KB total)
    PRGSWAP:  start = $8000, size = $1C000, file = %O, fill = yes, fillval = $FF;

    # Fixed bank 7 (16KB) at end of ROM, always mapped at $C000-$FFFF
    PRGFIXED: start = $C000, size = $4000, file = %O, fill = yes, fillval = $FF;
}

SEGMENTS {
    ZEROPAGE: load = ZP, type = zp;
    BSS:      load = RAM, type = bss;
    HEADER:   load = HEADER, type = ro;

    # Music tables live in the switchable banks, accessible at $8000-$BFFF.
    RODATA:   load = PRGSWAP, type = ro;

    # Reset code and vectors live in the fixed bank, always at $C000-$FFFF.
    CODE:     load = PRGFIXED, type = ro;
    VECTORS:  load = PRGFIXED, type = ro, start = $FFFA;
}
`
}
