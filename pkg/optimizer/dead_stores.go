package optimizer

import (
	"github.com/schism-vm/schism/pkg/vm"
)

// regSet tracks liveness over the real register file.
type regSet [vm.RegisterCount]bool

func (s *regSet) add(regs []vm.Register) {
	for _, r := range regs {
		if r.Real() {
			s[r] = true
		}
	}
}

func (s *regSet) remove(regs []vm.Register) {
	for _, r := range regs {
		if r.Real() {
			s[r] = false
		}
	}
}

func (s *regSet) anyLive(regs []vm.Register) bool {
	for _, r := range regs {
		if !r.Real() || s[r] {
			return true
		}
	}
	return false
}

// lanesOf expands an operand into the real registers it touches. A
// virtual alias covers its lane span; anything unresolvable is
// reported as-is so the caller treats it conservatively.
func lanesOf(r vm.Register) []vm.Register {
	if !r.Virtual() {
		return []vm.Register{r}
	}
	// Virtual aliases rebase to S(4i) or S(16i); ExpandAlias gives the
	// scalar base and the lane count.
	base, lanes := vm.ExpandAlias(r)
	out := make([]vm.Register, 0, lanes)
	for d := 0; d < lanes; d++ {
		out = append(out, base+vm.Register(d))
	}
	return out
}

// effects describes one instruction's register reads and writes.
type effects struct {
	reads  []vm.Register
	writes []vm.Register

	// removable marks instructions with no effect other than their
	// register writes. LD_F32 is excluded: its memory read can fault
	// and halt the program, which removal would change.
	removable bool
}

func instructionEffects(w vm.Word) effects {
	switch w.Group() {
	case vm.GroupControl:
		return effects{}

	case vm.GroupALU:
		switch vm.ALUOp(w.Op()) {
		case vm.OpMov:
			a := lanesOf(w.RegA())[:1]
			b := lanesOf(w.RegB())[:1]
			return effects{reads: b, writes: a, removable: true}
		case vm.OpALUF32F32:
			a := lanesOf(w.RegA())
			b := lanesOf(w.RegB())
			// A V/M operand pair halts on a lane mismatch; keep it.
			lanesOK := len(a) == len(b) || len(a) == 1 || len(b) == 1
			return effects{reads: append(append([]vm.Register{}, a...), b...), writes: a, removable: lanesOK}
		}

	case vm.GroupImmMem:
		t := []vm.Register{w.Target()}
		switch vm.ImmMemOp(w.Op()) {
		case vm.OpSetF32:
			return effects{writes: t, removable: true}
		case vm.OpLoadF32:
			return effects{writes: t}
		case vm.OpAbsF32:
			return effects{reads: t, writes: t, removable: true}
		}
	}

	// Unknown instruction: touch everything so nothing moves.
	all := make([]vm.Register, vm.RegisterCount)
	for r := range all {
		all[r] = vm.Register(r)
	}
	return effects{reads: all}
}

// deadStoreElimination removes pure register stores whose results are
// overwritten before any read. Framebuffer registers are live at exit
// (the host reads them), and SP/IP writes are never removed.
func deadStoreElimination(decoded []vm.DecodedInstruction) []vm.DecodedInstruction {
	fb := []vm.Register{vm.RegFB0, vm.RegFB1, vm.RegFB2, vm.RegFB3}
	var live regSet
	live.add(fb)

	keep := make([]bool, len(decoded))
	for i := len(decoded) - 1; i >= 0; i-- {
		eff := instructionEffects(decoded[i].Word)
		if decoded[i].Word.Group() == vm.GroupControl {
			// EXIT halts: only the framebuffer is live at this point.
			live = regSet{}
			live.add(fb)
		}

		dead := eff.removable && len(eff.writes) > 0 &&
			!live.anyLive(eff.writes) && !touchesSystemRegs(eff.writes)
		if dead {
			continue
		}

		keep[i] = true
		live.remove(eff.writes)
		live.add(eff.reads)
	}

	out := decoded[:0:0]
	for i, d := range decoded {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}

func touchesSystemRegs(regs []vm.Register) bool {
	for _, r := range regs {
		if r == vm.RegSP || r == vm.RegIP {
			return true
		}
	}
	return false
}
