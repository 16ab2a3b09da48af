package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/schism-vm/schism/internal/testutil"
)

// script runs a REPL session over the given input lines and returns
// everything it printed.
func script(t *testing.T, lines ...string) string {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	New().Start(in, &out)
	return out.String()
}

func TestREPL_Quit(t *testing.T) {
	out := script(t, "quit")
	if !strings.Contains(out, "Goodbye!") {
		t.Errorf("expected goodbye message:\n%s", out)
	}
}

func TestREPL_Help(t *testing.T) {
	out := script(t, "help", "quit")
	for _, want := range []string{"step", "regs", "poke", "disasm"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected help to mention %q:\n%s", want, out)
		}
	}
}

func TestREPL_BuildAndRun(t *testing.T) {
	out := script(t,
		"SET_F32 %FB0 1.0",
		"SET_F32 %FB1 0.5",
		"EXIT",
		"run",
		"quit",
	)

	if !strings.Contains(out, "=> FB = (1, 0.5, 0, 0)") {
		t.Errorf("expected framebuffer output:\n%s", out)
	}
}

func TestREPL_BadInstructionDiscarded(t *testing.T) {
	out := script(t,
		"FROB %S0",
		"EXIT",
		"run",
		"quit",
	)

	if !strings.Contains(out, "Error:") {
		t.Errorf("expected an error for the bad line:\n%s", out)
	}
	// The program still runs: only EXIT survived.
	if !strings.Contains(out, "=> FB = (0, 0, 0, 0)") {
		t.Errorf("expected the remaining program to run:\n%s", out)
	}
}

func TestREPL_StepAndRegs(t *testing.T) {
	out := script(t,
		"SET_F32 %S0 2.0",
		"EXIT",
		"step",
		"regs",
		"quit",
	)

	if !strings.Contains(out, "ip = 8") {
		t.Errorf("expected ip = 8 after stepping SET_F32:\n%s", out)
	}
	if !strings.Contains(out, "S0   = 2") {
		t.Errorf("expected register dump to show S0 = 2:\n%s", out)
	}
}

func TestREPL_PokeAndRun(t *testing.T) {
	out := script(t,
		"LD_F32 %FB0 10",
		"EXIT",
		"poke 10 6.5",
		"run",
		"quit",
	)

	if !strings.Contains(out, "=> FB = (6.5, 0, 0, 0)") {
		t.Errorf("expected poked value in FB0:\n%s", out)
	}
}

func TestREPL_PixelInputs(t *testing.T) {
	out := script(t,
		"LD_F32 %FB0 0",
		"LD_F32 %FB1 4",
		"EXIT",
		"pixel 5 7",
		"run",
		"quit",
	)

	if !strings.Contains(out, "=> FB = (5, 7, 0, 0)") {
		t.Errorf("expected pixel coordinates in FB0/FB1:\n%s", out)
	}
}

func TestREPL_ListAndDisasm(t *testing.T) {
	out := script(t,
		"SET_F32 %FB0 1.0",
		"EXIT",
		"list",
		"disasm",
		"quit",
	)

	if !strings.Contains(out, "1: SET_F32 %FB0 1.0") {
		t.Errorf("expected source listing:\n%s", out)
	}
	if !strings.Contains(out, "SET_F32 %FB0 1\n") {
		t.Errorf("expected disassembly:\n%s", out)
	}
}

func TestREPL_LoadSourceFile(t *testing.T) {
	path := testutil.TempFile(t, "SET_F32 %FB3 1.0\nEXIT\n", ".scsa")

	out := script(t,
		"load "+path,
		"run",
		"quit",
	)

	if !strings.Contains(out, "=> FB = (0, 0, 0, 1)") {
		t.Errorf("expected loaded program to run:\n%s", out)
	}
}

func TestREPL_SaveAndLoadModule(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/prog.scsm"

	out := script(t,
		"SET_F32 %FB0 0.25",
		"EXIT",
		"save "+path,
		"clear",
		"load "+path,
		"run",
		"quit",
	)

	if !strings.Contains(out, "wrote "+path) {
		t.Errorf("expected save confirmation:\n%s", out)
	}
	if !strings.Contains(out, "=> FB = (0.25, 0, 0, 0)") {
		t.Errorf("expected reloaded program to run:\n%s", out)
	}
}

func TestREPL_MemoryDump(t *testing.T) {
	out := script(t,
		"poke 0 1.0",
		"mem 0 4",
		"quit",
	)

	// 1.0f is 00 00 80 3F little-endian.
	if !strings.Contains(out, "0x0000: 00 00 80 3f") {
		t.Errorf("expected memory dump of 1.0f:\n%s", out)
	}
}
