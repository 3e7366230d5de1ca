package asm

import (
	"fmt"
	"strings"

	"midi2nes/internal/pattern"
	"midi2nes/internal/types"
)

// Input is everything the emitter needs to produce music.asm, already
// computed by the earlier pipeline stages.
type Input struct {
	Pulse1, Pulse2, Triangle types.FrameMap
	Noise                    types.FrameMap
	DPCM                     types.FrameMap
	Patterns                 []types.Pattern
	References               []pattern.Reference
	Loops                    []types.LoopPoint
	MaxFrame                 uint32
}

// pulseQuietByte is the register value a silent pulse channel's control
// byte holds: constant volume, zero volume. Writing it to $4000/$4004
// alone is enough to silence the channel.
const pulseQuietByte = 0x30

// triangleControlByte derives the triangle linear-counter control byte
// from a 0..15 volume, per §3's invariant: zero volume is exactly 0x00,
// never 0x80.
func triangleControlByte(volume byte) byte {
	if volume == 0 {
		return 0x00
	}
	return 0x80 | (volume * 7)
}

// Emit produces music.asm's full text, in the section order §4.11
// specifies.
func Emit(in Input) string {
	var b strings.Builder

	writeHeaderSections(&b)
	writeNoteTable(&b, "pulse1", in.Pulse1, in.MaxFrame)
	writeNoteTable(&b, "pulse2", in.Pulse2, in.MaxFrame)
	writeNoteTable(&b, "triangle", in.Triangle, in.MaxFrame)
	writePulseTables(&b, "pulse1", in.Pulse1, in.MaxFrame)
	writePulseTables(&b, "pulse2", in.Pulse2, in.MaxFrame)
	writeTriangleTables(&b, in.Triangle, in.MaxFrame)
	writeNoiseTable(&b, in.Noise, in.MaxFrame)
	writeDPCMTable(&b, in.DPCM, in.MaxFrame)
	writePatternTables(&b, in.Patterns)
	writeReferenceTable(&b, in.References, in.MaxFrame)
	writeLoopTable(&b, in.Loops)
	writeRoutines(&b)
	writeVectors(&b)

	return b.String()
}

func writeHeaderSections(b *strings.Builder) {
	b.WriteString(`.segment "HEADER"
; iNES header is emitted separately by the rom package; this segment
; exists so the linker script's HEADER memory area has a matching
; segment to place.

.segment "ZEROPAGE"
frame_counter: .res 2

.segment "BSS"
last_pulse1_note: .res 1
last_pulse2_note: .res 1
last_triangle_note: .res 1
last_noise_note: .res 1
last_dpcm_sample: .res 1

.segment "RODATA"
.export init_music, update_music

`)
}

func noteAt(frames types.FrameMap, f uint32) uint8 {
	rec, ok := frames[f]
	if !ok {
		return 0
	}
	return rec.Note
}

func writeNoteTable(b *strings.Builder, channel string, frames types.FrameMap, maxFrame uint32) {
	fmt.Fprintf(b, "%s_note_table:\n", channel)
	writeByteTable(b, maxFrame, func(f uint32) byte { return noteAt(frames, f) })
}

func writePulseTables(b *strings.Builder, channel string, frames types.FrameMap, maxFrame uint32) {
	fmt.Fprintf(b, "%s_timer_lo:\n", channel)
	writeByteTable(b, maxFrame, func(f uint32) byte {
		rec, ok := frames[f]
		if !ok {
			return 0
		}
		return byte(rec.PitchTimer & 0xFF)
	})

	fmt.Fprintf(b, "%s_timer_hi:\n", channel)
	writeByteTable(b, maxFrame, func(f uint32) byte {
		rec, ok := frames[f]
		if !ok {
			return 0
		}
		return byte(rec.PitchTimer >> 8)
	})

	fmt.Fprintf(b, "%s_control:\n", channel)
	writeByteTable(b, maxFrame, func(f uint32) byte {
		rec, ok := frames[f]
		if !ok {
			return pulseQuietByte
		}
		return rec.ControlByte
	})
}

func writeTriangleTables(b *strings.Builder, frames types.FrameMap, maxFrame uint32) {
	b.WriteString("triangle_timer_lo:\n")
	writeByteTable(b, maxFrame, func(f uint32) byte {
		rec, ok := frames[f]
		if !ok {
			return 0
		}
		return byte(rec.PitchTimer & 0xFF)
	})

	b.WriteString("triangle_timer_hi:\n")
	writeByteTable(b, maxFrame, func(f uint32) byte {
		rec, ok := frames[f]
		if !ok {
			return 0
		}
		return byte(rec.PitchTimer >> 8)
	})

	b.WriteString("triangle_control:\n")
	writeByteTable(b, maxFrame, func(f uint32) byte {
		rec, ok := frames[f]
		if !ok {
			return 0x00
		}
		return triangleControlByte(rec.Volume)
	})
}

func writeNoiseTable(b *strings.Builder, frames types.FrameMap, maxFrame uint32) {
	b.WriteString("noise_mode_table:\n")
	writeByteTable(b, maxFrame, func(f uint32) byte {
		rec, ok := frames[f]
		if !ok {
			return 0
		}
		return rec.NoiseMode
	})

	b.WriteString("noise_volume_table:\n")
	writeByteTable(b, maxFrame, func(f uint32) byte {
		rec, ok := frames[f]
		if !ok {
			return 0
		}
		return rec.Volume
	})
}

func writeDPCMTable(b *strings.Builder, frames types.FrameMap, maxFrame uint32) {
	b.WriteString("dpcm_sample_table:\n")
	writeByteTable(b, maxFrame, func(f uint32) byte {
		rec, ok := frames[f]
		if !ok {
			return 0
		}
		return rec.SampleID
	})

	b.WriteString("dpcm_enable_table:\n")
	writeByteTable(b, maxFrame, func(f uint32) byte {
		rec, ok := frames[f]
		if !ok || !rec.Enable {
			return 0
		}
		return 1
	})
}

// writeByteTable emits one byte per frame, 16 values to a .byte line to
// keep the assembly readable.
func writeByteTable(b *strings.Builder, maxFrame uint32, value func(uint32) byte) {
	const perLine = 16
	for f := uint32(0); f < maxFrame; f++ {
		if f%perLine == 0 {
			if f > 0 {
				b.WriteString("\n")
			}
			b.WriteString("    .byte ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "$%02X", value(f))
	}
	if maxFrame == 0 {
		b.WriteString("    .byte $00 ; empty channel padding\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writePatternTables(b *strings.Builder, patterns []types.Pattern) {
	for _, p := range patterns {
		fmt.Fprintf(b, "pattern_%s_data:\n", patternSuffix(p.ID))
		for i := 0; i < len(p.Events); i += 16 {
			end := i + 16
			if end > len(p.Events) {
				end = len(p.Events)
			}
			b.WriteString("    .byte ")
			for j := i; j < end; j++ {
				if j > i {
					b.WriteString(", ")
				}
				fmt.Fprintf(b, "$%02X, $%02X", p.Events[j].Note, p.Events[j].Volume)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
}

// patternSuffix strips the "pattern_" prefix types.Pattern.ID already
// carries, so the emitted label isn't "pattern_pattern_0_data".
func patternSuffix(id string) string {
	return strings.TrimPrefix(id, "pattern_")
}

func writeReferenceTable(b *strings.Builder, refs []pattern.Reference, maxFrame uint32) {
	byFrame := make(map[uint32]pattern.Reference, len(refs))
	for _, r := range refs {
		byFrame[r.Frame] = r
	}

	b.WriteString("pattern_ptr_lo:\n")
	writeRefTable(b, maxFrame, byFrame, func(r pattern.Reference) string {
		return fmt.Sprintf("<pattern_%s_data", patternSuffix(r.Ref.PatternID))
	})
	b.WriteString("pattern_ptr_hi:\n")
	writeRefTable(b, maxFrame, byFrame, func(r pattern.Reference) string {
		return fmt.Sprintf(">pattern_%s_data", patternSuffix(r.Ref.PatternID))
	})
	b.WriteString("pattern_offset:\n")
	writeRefTable(b, maxFrame, byFrame, func(r pattern.Reference) string {
		return fmt.Sprintf("$%02X", r.Ref.Offset)
	})
}

func writeRefTable(b *strings.Builder, maxFrame uint32, byFrame map[uint32]pattern.Reference, expr func(pattern.Reference) string) {
	const perLine = 8
	for f := uint32(0); f < maxFrame; f++ {
		if f%perLine == 0 {
			if f > 0 {
				b.WriteString("\n")
			}
			b.WriteString("    .byte ")
		} else {
			b.WriteString(", ")
		}
		if r, ok := byFrame[f]; ok {
			b.WriteString(expr(r))
		} else {
			b.WriteString("$00")
		}
	}
	if maxFrame == 0 {
		b.WriteString("    .byte $00 ; no references\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// writeLoopTable emits the jump-table loopmgr.DetectLoops produces: a
// count plus parallel end/start frame tables update_music's check_loop
// consults every frame. Frame numbers are truncated to one byte, matching
// every other table in this file's 8-bit frame_counter indexing.
func writeLoopTable(b *strings.Builder, loops []types.LoopPoint) {
	fmt.Fprintf(b, "loop_count: .byte $%02X\n", len(loops))
	b.WriteString("loop_end_table:\n    .byte ")
	if len(loops) == 0 {
		b.WriteString("$00")
	}
	for i, l := range loops {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "$%02X", byte(l.EndFrame))
	}
	b.WriteString("\nloop_start_table:\n    .byte ")
	if len(loops) == 0 {
		b.WriteString("$00")
	}
	for i, l := range loops {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "$%02X", byte(l.StartFrame))
	}
	b.WriteString("\n\n")
}

func writeRoutines(b *strings.Builder) {
	b.WriteString(`.segment "CODE"
.proc init_music
    lda #$0F
    sta $4015              ; enable pulse1, pulse2, triangle, noise

    lda #$30
    sta $4000
    sta $4004
    lda #$00
    sta $4008

    lda #$00
    sta last_pulse1_note
    sta last_pulse2_note
    sta last_triangle_note
    sta last_noise_note
    sta last_dpcm_sample
    rts
.endproc

.proc update_music
    inc frame_counter
    bne @no_carry
    inc frame_counter+1
@no_carry:
    jsr play_pulse1
    jsr play_pulse2
    jsr play_triangle
    jsr play_noise
    jsr play_dpcm
    jsr check_loop
    rts
.endproc

.proc check_loop
    ldx #$00
    ldy loop_count
    beq @done
@scan:
    lda frame_counter
    cmp loop_end_table,x
    bne @next
    lda loop_start_table,x
    sta frame_counter
@next:
    inx
    dey
    bne @scan
@done:
    rts
.endproc

.proc play_pulse1
    ldy frame_counter
    lda pulse1_note_table,y
    beq @silence
    cmp last_pulse1_note
    beq @sustain
    sta last_pulse1_note
    lda pulse1_timer_lo,y
    sta $4002
    lda pulse1_timer_hi,y
    sta $4003
@sustain:
    lda pulse1_control,y
    sta $4000
    rts
@silence:
    lda #$30
    sta $4000
    lda #$00
    sta last_pulse1_note
    rts
.endproc

.proc play_pulse2
    ldy frame_counter
    lda pulse2_note_table,y
    beq @silence
    cmp last_pulse2_note
    beq @sustain
    sta last_pulse2_note
    lda pulse2_timer_lo,y
    sta $4006
    lda pulse2_timer_hi,y
    sta $4007
@sustain:
    lda pulse2_control,y
    sta $4004
    rts
@silence:
    lda #$30
    sta $4004
    lda #$00
    sta last_pulse2_note
    rts
.endproc

.proc play_triangle
    ldy frame_counter
    lda triangle_note_table,y
    beq @silence
    cmp last_triangle_note
    beq @sustain
    sta last_triangle_note
    lda triangle_timer_lo,y
    sta $400A
    lda triangle_timer_hi,y
    sta $400B
@sustain:
    lda triangle_control,y
    sta $4008
    rts
@silence:
    lda #$00
    sta $4008
    lda #$00
    sta last_triangle_note
    rts
.endproc

.proc play_noise
    ldy frame_counter
    lda noise_mode_table,y
    sta $400E
    lda noise_volume_table,y
    ora #$30
    sta $400C
    rts
.endproc

.proc play_dpcm
    ldy frame_counter
    lda dpcm_enable_table,y
    beq @stop
    lda dpcm_sample_table,y
    cmp last_dpcm_sample
    beq @done
    sta last_dpcm_sample
    lda #$1F
    sta $4015
@done:
    rts
@stop:
    lda #$0F
    sta $4015
    rts
.endproc

.proc reset_handler
    sei
    cld
    ldx #$40
    stx $4017
    ldx #$FF
    txs
    inx
    stx $2000
    stx $2001
    stx $4010

@vblank1:
    bit $2002
    bpl @vblank1
@vblank2:
    bit $2002
    bpl @vblank2

    jsr init_music
@loop:
    jmp @loop
.endproc

.proc nmi_handler
    jsr update_music
    rti
.endproc

.proc irq_handler
    rti
.endproc

`)
}

func writeVectors(b *strings.Builder) {
	b.WriteString(`.segment "VECTORS"
.addr nmi_handler, reset_handler, irq_handler
`)
}
