// Package assembler lowers schism assembly source to encoded module
// bytes.
//
// The source language is line-oriented: one instruction per line,
// `;` comments, case-insensitive mnemonics, `%`-prefixed registers,
// float literals, and unprefixed hex addresses. Each line is claimed
// by one of three group encoders tried in order; a mnemonic is unknown
// only if no group claims it.
package assembler

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/schism-vm/schism/pkg/vm"
)

var (
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// errNotClaimed is internal: the group did not recognize the mnemonic,
// try the next one. It never surfaces to callers.
var errNotClaimed = errors.New("no instruction found")

// Program is the result of one compile: the module type plus encoded
// code bytes, ready to wrap as a vm.Module.
type Program struct {
	Type vm.ModuleType
	Code []byte
}

// Module wraps the program as an immutable VM module.
func (p *Program) Module() vm.Module {
	return vm.NewModule(p.Type, p.Code)
}

// WriteFile serializes the program to an .scsm module file.
func (p *Program) WriteFile(path string) error {
	return p.Module().WriteFile(path)
}

// Assemble compiles assembly source text. The first error aborts the
// compile; its message carries the offending source line number.
func Assemble(source string) (*Program, error) {
	parsed, err := NewParser(source).Parse()
	if err != nil {
		return nil, err
	}

	a := &assembler{}
	for _, inst := range parsed.Instructions {
		if err := a.assembleInstruction(inst); err != nil {
			return nil, fmt.Errorf("line %d: %w", inst.Line, err)
		}
	}

	return &Program{Type: parsed.Type, Code: a.buf.Bytes()}, nil
}

// AssembleFile reads and compiles an .scsa source file.
func AssembleFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	return Assemble(string(data))
}

type assembler struct {
	buf bytes.Buffer
}

// assembleInstruction tries the group encoders in order. Each either
// claims the mnemonic (and emits or fails) or passes with errNotClaimed.
func (a *assembler) assembleInstruction(inst SourceInstruction) error {
	for _, group := range []func(SourceInstruction) error{
		a.assembleGroupControl,
		a.assembleGroupALU,
		a.assembleGroupImmMem,
	} {
		err := group(inst)
		if errors.Is(err, errNotClaimed) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", ErrUnknownInstruction, inst.Mnemonic)
}

// ===== Group encoders =====

func (a *assembler) assembleGroupControl(inst SourceInstruction) error {
	switch inst.Mnemonic {
	case "EXIT":
		if err := wantArgs(inst, 0); err != nil {
			return err
		}
		a.emitWord(vm.EncodeExit())
		return nil
	default:
		return errNotClaimed
	}
}

func (a *assembler) assembleGroupALU(inst SourceInstruction) error {
	switch inst.Mnemonic {
	case "MOV":
		if err := wantArgs(inst, 2); err != nil {
			return err
		}
		regA, err := argRegister(inst.Args[0])
		if err != nil {
			return err
		}
		regB, err := argRegister(inst.Args[1])
		if err != nil {
			return err
		}
		a.emitWord(vm.EncodeMov(regA, regB))
		return nil

	case "ALU_F32_F32":
		if err := wantArgs(inst, 3); err != nil {
			return err
		}
		sub, ok := vm.ALUSubOpFromString(inst.Args[0].Value)
		if !ok {
			return fmt.Errorf("%w: unknown sub-operation %s", ErrInvalidArgument, inst.Args[0].Value)
		}
		regA, err := argRegister(inst.Args[1])
		if err != nil {
			return err
		}
		regB, err := argRegister(inst.Args[2])
		if err != nil {
			return err
		}
		a.emitWord(vm.EncodeALU(sub, regA, regB))
		return nil

	default:
		return errNotClaimed
	}
}

func (a *assembler) assembleGroupImmMem(inst SourceInstruction) error {
	switch inst.Mnemonic {
	case "SET_F32":
		if err := wantArgs(inst, 2); err != nil {
			return err
		}
		target, err := argRegister(inst.Args[0])
		if err != nil {
			return err
		}
		lit, err := argFloat(inst.Args[1])
		if err != nil {
			return err
		}
		a.emitWord(vm.EncodeSetF32(target))
		a.emitF32(lit)
		return nil

	case "LD_F32":
		if err := wantArgs(inst, 2); err != nil {
			return err
		}
		target, err := argRegister(inst.Args[0])
		if err != nil {
			return err
		}
		addr, err := argHex(inst.Args[1])
		if err != nil {
			return err
		}
		a.emitWord(vm.EncodeLoadF32(target))
		a.emitU32(addr)
		return nil

	case "ABS_F32":
		if err := wantArgs(inst, 1); err != nil {
			return err
		}
		target, err := argRegister(inst.Args[0])
		if err != nil {
			return err
		}
		a.emitWord(vm.EncodeAbsF32(target))
		return nil

	default:
		return errNotClaimed
	}
}

// ===== Emission =====

func (a *assembler) emitU32(v uint32) {
	a.buf.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

func (a *assembler) emitWord(w vm.Word) {
	a.emitU32(uint32(w))
}

func (a *assembler) emitF32(f float32) {
	a.emitU32(vm.F32Value(f).U32())
}

// ===== Argument decoding =====

func wantArgs(inst SourceInstruction, n int) error {
	if len(inst.Args) != n {
		return fmt.Errorf("%w: %s expects %d arguments, got %d",
			ErrInvalidArgument, inst.Mnemonic, n, len(inst.Args))
	}
	return nil
}

func argRegister(tok Token) (vm.Register, error) {
	if tok.Type != TokenRegister {
		return 0, fmt.Errorf("%w: expected register, got %q", ErrInvalidArgument, tok.Value)
	}
	reg, ok := vm.RegisterFromName(tok.Value)
	if !ok {
		return 0, fmt.Errorf("%w: bad register %%%s", ErrInvalidArgument, tok.Value)
	}
	return reg, nil
}

func argFloat(tok Token) (float32, error) {
	if tok.Type != TokenWord {
		return 0, fmt.Errorf("%w: expected float literal, got %q", ErrInvalidArgument, tok.Value)
	}
	f, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad float literal %q", ErrInvalidArgument, tok.Value)
	}
	return float32(f), nil
}

func argHex(tok Token) (uint32, error) {
	if tok.Type != TokenWord {
		return 0, fmt.Errorf("%w: expected hex address, got %q", ErrInvalidArgument, tok.Value)
	}
	u, err := strconv.ParseUint(tok.Value, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad hex address %q", ErrInvalidArgument, tok.Value)
	}
	return uint32(u), nil
}
