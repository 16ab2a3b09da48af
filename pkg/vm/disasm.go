package vm

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// DecodedInstruction is one instruction word plus its literal tail (if
// any) and the byte offset it was fetched from.
type DecodedInstruction struct {
	Offset uint32
	Word   Word
	Tail   []byte
}

// Size returns the instruction's full byte length in the code stream.
func (d DecodedInstruction) Size() uint32 {
	return WordSize + uint32(len(d.Tail))
}

// DecodeProgram walks the module's code stream into individual
// instructions. A word whose tail is truncated yields
// ErrReadOutOfBounds along with everything decoded so far.
func DecodeProgram(m Module) ([]DecodedInstruction, error) {
	var out []DecodedInstruction

	for cur := uint32(0); cur < m.Len(); {
		word, err := m.ReadWord(cur)
		if err != nil {
			return out, err
		}

		d := DecodedInstruction{Offset: cur, Word: word}
		if word.hasTail() {
			tail, err := m.ReadU32(cur + WordSize)
			if err != nil {
				return out, err
			}
			d.Tail = []byte{byte(tail), byte(tail >> 8), byte(tail >> 16), byte(tail >> 24)}
		}

		out = append(out, d)
		cur += d.Size()
	}

	return out, nil
}

// Encode appends the instruction's bytes (word plus tail) to dst.
func (d DecodedInstruction) Encode(dst []byte) []byte {
	w := uint32(d.Word)
	dst = append(dst, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	return append(dst, d.Tail...)
}

func (d DecodedInstruction) tailU32() uint32 {
	if len(d.Tail) < 4 {
		return 0
	}
	return uint32(d.Tail[0]) | uint32(d.Tail[1])<<8 | uint32(d.Tail[2])<<16 | uint32(d.Tail[3])<<24
}

// Source renders the instruction as one line of assembly. The output
// re-assembles to the identical byte encoding.
func (d DecodedInstruction) Source() string {
	w := d.Word
	switch w.Group() {
	case GroupControl:
		if ControlOp(w.Op()) == OpExit {
			return "EXIT"
		}

	case GroupALU:
		switch ALUOp(w.Op()) {
		case OpMov:
			return fmt.Sprintf("MOV %%%s %%%s", w.RegA(), w.RegB())
		case OpALUF32F32:
			return fmt.Sprintf("ALU_F32_F32 %s %%%s %%%s", w.SubOp(), w.RegA(), w.RegB())
		}

	case GroupImmMem:
		switch ImmMemOp(w.Op()) {
		case OpSetF32:
			f := Value(d.tailU32()).F32()
			return fmt.Sprintf("SET_F32 %%%s %s", w.Target(), formatF32(f))
		case OpLoadF32:
			return fmt.Sprintf("LD_F32 %%%s %s", w.Target(), strings.ToUpper(strconv.FormatUint(uint64(d.tailU32()), 16)))
		case OpAbsF32:
			return fmt.Sprintf("ABS_F32 %%%s", w.Target())
		}
	}

	return fmt.Sprintf("; unknown instruction 0x%08X", uint32(w))
}

// formatF32 renders f with the fewest digits that survive the round
// trip back through the assembler's f32 narrowing.
func formatF32(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

// Disassemble converts a module back to assembly source. After a
// leading comment line, the output carries the module-type directive
// so the type survives a re-assembly round trip.
func Disassemble(m Module) (string, error) {
	decoded, err := DecodeProgram(m)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "; disassembled schism module, %d instructions\n", len(decoded))
	fmt.Fprintf(&buf, ".%s\n", m.Type())

	for _, d := range decoded {
		fmt.Fprintf(&buf, "%s\n", d.Source())
	}

	return buf.String(), nil
}
