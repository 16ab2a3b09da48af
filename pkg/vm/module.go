package vm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Module file format:
//   - Magic: 0x4D534353 "SCSM" (4 bytes, little-endian)
//   - Type: uint16 (0 = Vertex, 1 = Fragment)
//   - CodeLen: uint32
//   - Code bytes (CodeLen == N)
//
// Type and CodeLen are packed with no intervening padding.

// ModuleMagic identifies a schism module file ("SCSM" little-endian).
const ModuleMagic uint32 = 0x4D534353

// moduleHeaderSize covers magic + type + code length.
const moduleHeaderSize = 4 + 2 + 4

// ModuleType distinguishes vertex from fragment programs.
type ModuleType uint16

const (
	ModuleVertex   ModuleType = 0
	ModuleFragment ModuleType = 1
)

// String returns the module type's name.
func (t ModuleType) String() string {
	switch t {
	case ModuleVertex:
		return "vertex"
	case ModuleFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

var (
	ErrReadOutOfBounds = errors.New("module read out of bounds")
	ErrFileCorrupt     = errors.New("module file corrupt")
	ErrFileNotFound    = errors.New("module file not found")
)

// Module is an immutable compiled program: a type tag plus code bytes.
// The code buffer is shared, not copied; callers must not mutate it
// after handing it to NewModule.
type Module struct {
	typ  ModuleType
	code []byte
}

// NewModule wraps code bytes as a module, taking ownership of the
// slice.
func NewModule(typ ModuleType, code []byte) Module {
	return Module{typ: typ, code: code}
}

// Type returns the module's program type.
func (m Module) Type() ModuleType {
	return m.typ
}

// Code returns the module's code bytes. The slice is shared; treat it
// as read-only.
func (m Module) Code() []byte {
	return m.code
}

// Len returns the code section length in bytes.
func (m Module) Len() uint32 {
	return uint32(len(m.code))
}

func (m Module) inBounds(cur uint32, n int) bool {
	return uint64(cur)+uint64(n) <= uint64(len(m.code))
}

// ReadU32 reads a little-endian u32 from the code stream.
func (m Module) ReadU32(cur uint32) (uint32, error) {
	if !m.inBounds(cur, 4) {
		return 0, ErrReadOutOfBounds
	}
	return binary.LittleEndian.Uint32(m.code[cur:]), nil
}

// ReadWord reads an instruction word from the code stream.
func (m Module) ReadWord(cur uint32) (Word, error) {
	u, err := m.ReadU32(cur)
	return Word(u), err
}

// ReadF32 reads a little-endian f32 from the code stream.
func (m Module) ReadF32(cur uint32) (float32, error) {
	u, err := m.ReadU32(cur)
	return Value(u).F32(), err
}

// Encode serializes the module to its on-disk layout.
func (m Module) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(moduleHeaderSize + len(m.code))

	binary.Write(buf, binary.LittleEndian, ModuleMagic)
	binary.Write(buf, binary.LittleEndian, uint16(m.typ))
	binary.Write(buf, binary.LittleEndian, uint32(len(m.code)))
	buf.Write(m.code)

	return buf.Bytes()
}

// WriteFile writes the serialized module to path.
func (m Module) WriteFile(path string) error {
	if err := os.WriteFile(path, m.Encode(), 0644); err != nil {
		return fmt.Errorf("writing module: %w", err)
	}
	return nil
}

// DecodeModule parses a serialized module, validating the magic and
// the recorded code length.
func DecodeModule(data []byte) (Module, error) {
	if len(data) < moduleHeaderSize {
		return Module{}, fmt.Errorf("%w: %d byte header truncated", ErrFileCorrupt, len(data))
	}

	magic := binary.LittleEndian.Uint32(data[0:])
	if magic != ModuleMagic {
		return Module{}, fmt.Errorf("%w: bad magic 0x%08X", ErrFileCorrupt, magic)
	}

	typ := ModuleType(binary.LittleEndian.Uint16(data[4:]))
	codeLen := binary.LittleEndian.Uint32(data[6:])

	code := data[moduleHeaderSize:]
	if uint64(codeLen) != uint64(len(code)) {
		return Module{}, fmt.Errorf("%w: header says %d code bytes, file has %d", ErrFileCorrupt, codeLen, len(code))
	}

	return NewModule(typ, code), nil
}

// LoadModule reads and parses a module file. The whole file is read
// into memory within this call; no handle is held afterwards.
func LoadModule(path string) (Module, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Module{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return Module{}, fmt.Errorf("reading module: %w", err)
	}
	return DecodeModule(data)
}
