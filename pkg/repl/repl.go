// Package repl provides an interactive assemble/step/inspect loop for
// schism programs: type instructions to build a program, poke pixel
// inputs, then single-step it while watching registers and memory.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/schism-vm/schism/pkg/assembler"
	"github.com/schism-vm/schism/pkg/vm"
)

const prompt = "schism> "

// REPL holds the interactive session state: the accumulated source,
// its latest assembled module, and the machine under inspection.
type REPL struct {
	machine *vm.VM
	source  []string
	loaded  bool
	done    bool
}

// New creates a REPL with the conventional VM memory size.
func New() *REPL {
	return &REPL{machine: vm.New(vm.DefaultMemorySize)}
}

// Start runs the loop until EOF or quit.
func (r *REPL) Start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "schism REPL - software shader toolchain")
	fmt.Fprintln(out, "Type 'help' for commands; bare instructions extend the program")
	fmt.Fprintln(out)

	for !r.done {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if r.handleCommand(line, out) {
			continue
		}
		r.appendInstruction(line, out)
	}
}

func (r *REPL) handleCommand(line string, out io.Writer) bool {
	parts := strings.Fields(line)

	switch parts[0] {
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Goodbye!")
		r.done = true
		return true

	case "help", "h", "?":
		r.printHelp(out)
		return true

	case "regs":
		r.machine.DumpRegisters(out)
		return true

	case "stack":
		r.machine.DumpStack(out)
		return true

	case "mem":
		r.dumpMemory(parts[1:], out)
		return true

	case "poke":
		r.poke(parts[1:], out)
		return true

	case "pixel":
		r.pixel(parts[1:], out)
		return true

	case "step":
		r.step(parts[1:], out)
		return true

	case "run":
		r.run(out)
		return true

	case "reset":
		r.machine.ResetRegisters()
		fmt.Fprintln(out, "registers reset")
		return true

	case "list":
		for i, src := range r.source {
			fmt.Fprintf(out, "%3d: %s\n", i+1, src)
		}
		return true

	case "clear":
		r.source = nil
		r.loaded = false
		r.machine = vm.New(vm.DefaultMemorySize)
		fmt.Fprintln(out, "program cleared")
		return true

	case "load":
		if len(parts) != 2 {
			fmt.Fprintln(out, "Usage: load <file.scsa|file.scsm>")
			return true
		}
		r.load(parts[1], out)
		return true

	case "save":
		if len(parts) != 2 {
			fmt.Fprintln(out, "Usage: save <file.scsm>")
			return true
		}
		r.save(parts[1], out)
		return true

	case "disasm":
		r.disasm(out)
		return true
	}

	return false
}

// appendInstruction treats the line as assembly, re-assembles the
// accumulated program, and reloads the machine. A line that fails to
// assemble is discarded.
func (r *REPL) appendInstruction(line string, out io.Writer) {
	candidate := append(append([]string{}, r.source...), line)

	program, err := assembler.Assemble(strings.Join(candidate, "\n"))
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	r.source = candidate
	r.machine.LoadProgram(program.Module())
	r.loaded = true
	fmt.Fprintf(out, "program now %d bytes\n", program.Module().Len())
}

func (r *REPL) step(args []string, out io.Writer) {
	if !r.loaded {
		fmt.Fprintln(out, "no program loaded")
		return
	}

	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			fmt.Fprintln(out, "Usage: step [count]")
			return
		}
		n = v
	}

	for i := 0; i < n; i++ {
		if !r.machine.Step() {
			if err := r.machine.Fault(); err != nil {
				fmt.Fprintf(out, "halted: %v\n", err)
			} else {
				fmt.Fprintln(out, "halted: EXIT")
			}
			return
		}
	}
	fmt.Fprintf(out, "ip = %d\n", r.machine.GetRegister(vm.RegIP).U32())
}

func (r *REPL) run(out io.Writer) {
	if !r.loaded {
		fmt.Fprintln(out, "no program loaded")
		return
	}

	r.machine.Run()
	if err := r.machine.Fault(); err != nil {
		fmt.Fprintf(out, "halted: %v\n", err)
		return
	}
	fmt.Fprintf(out, "=> FB = (%g, %g, %g, %g)\n",
		r.machine.GetRegister(vm.RegFB0).F32(),
		r.machine.GetRegister(vm.RegFB1).F32(),
		r.machine.GetRegister(vm.RegFB2).F32(),
		r.machine.GetRegister(vm.RegFB3).F32(),
	)
}

func (r *REPL) poke(args []string, out io.Writer) {
	if len(args) != 2 {
		fmt.Fprintln(out, "Usage: poke <hex-offset> <float>")
		return
	}
	offset, err := strconv.ParseUint(strings.ToUpper(args[0]), 16, 32)
	if err != nil {
		fmt.Fprintf(out, "bad offset %q\n", args[0])
		return
	}
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(out, "bad value %q\n", args[1])
		return
	}
	if err := r.machine.PokeF32(uint32(offset), float32(value)); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "mem[0x%X] = %g\n", offset, value)
}

// pixel pokes the conventional per-pixel inputs: x, y and optionally
// the surface extents.
func (r *REPL) pixel(args []string, out io.Writer) {
	if len(args) != 2 && len(args) != 4 {
		fmt.Fprintln(out, "Usage: pixel <x> <y> [width height]")
		return
	}

	vals := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			fmt.Fprintf(out, "bad number %q\n", a)
			return
		}
		vals[i] = v
	}

	r.machine.PokeF32(vm.InputOffsetX, float32(vals[0]))
	r.machine.PokeF32(vm.InputOffsetY, float32(vals[1]))
	if len(vals) == 4 {
		r.machine.PokeF32(vm.InputOffsetMaxX, float32(vals[2]-1))
		r.machine.PokeF32(vm.InputOffsetMaxY, float32(vals[3]-1))
	}
	fmt.Fprintf(out, "pixel (%g, %g)\n", vals[0], vals[1])
}

func (r *REPL) dumpMemory(args []string, out io.Writer) {
	offset := uint64(0)
	count := 16
	var err error
	if len(args) > 0 {
		offset, err = strconv.ParseUint(strings.ToUpper(args[0]), 16, 32)
		if err != nil {
			fmt.Fprintf(out, "bad offset %q\n", args[0])
			return
		}
	}
	if len(args) > 1 {
		count, err = strconv.Atoi(args[1])
		if err != nil || count < 1 {
			fmt.Fprintf(out, "bad count %q\n", args[1])
			return
		}
	}

	b, err := r.machine.Peek(uint32(offset), count)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	for i := 0; i < len(b); i += 8 {
		end := i + 8
		if end > len(b) {
			end = len(b)
		}
		fmt.Fprintf(out, "0x%04X:", offset+uint64(i))
		for _, by := range b[i:end] {
			fmt.Fprintf(out, " %02x", by)
		}
		fmt.Fprintln(out)
	}
}

func (r *REPL) load(path string, out io.Writer) {
	var m vm.Module

	if strings.HasSuffix(strings.ToLower(path), ".scsm") {
		loaded, err := vm.LoadModule(path)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		m = loaded
	} else {
		program, err := assembler.AssembleFile(path)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		m = program.Module()
	}

	// Rebuild the source listing from the module so `list` stays honest.
	src, err := vm.Disassemble(m)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	r.source = nil
	for _, line := range strings.Split(strings.TrimSpace(src), "\n") {
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		r.source = append(r.source, line)
	}

	r.machine.LoadProgram(m)
	r.loaded = true
	fmt.Fprintf(out, "loaded %s (%d code bytes, %s)\n", path, m.Len(), m.Type())
}

func (r *REPL) save(path string, out io.Writer) {
	if !r.loaded {
		fmt.Fprintln(out, "no program loaded")
		return
	}
	m, _ := r.machine.Program()
	if err := m.WriteFile(path); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "wrote %s\n", path)
}

func (r *REPL) disasm(out io.Writer) {
	if !r.loaded {
		fmt.Fprintln(out, "no program loaded")
		return
	}
	m, _ := r.machine.Program()
	src, err := vm.Disassemble(m)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprint(out, src)
}

func (r *REPL) printHelp(out io.Writer) {
	help := `
schism REPL commands:
  help, h, ?          Show this help message
  quit, exit, q       Exit the REPL
  regs                Dump the register file
  stack               Dump the operand stack
  mem [off] [n]       Dump n memory bytes from hex offset
  poke <off> <f>      Write an f32 at a hex memory offset
  pixel <x> <y> [w h] Poke the conventional per-pixel inputs
  step [n]            Execute n instructions
  run                 Run to completion and print the framebuffer
  reset               Zero the registers (memory is kept)
  list                Show the accumulated program source
  clear               Discard the program and memory
  load <path>         Load an .scsa source or .scsm module file
  save <path>         Write the program as an .scsm module
  disasm              Disassemble the loaded program

Anything else is assembled as an instruction and appended:
  SET_F32 %FB0 1.0
  ALU_F32_F32 ADD %V0 %V1
  EXIT
`
	fmt.Fprint(out, help)
}
