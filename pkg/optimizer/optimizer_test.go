package optimizer

import (
	"bytes"
	"testing"

	"github.com/schism-vm/schism/internal/testutil"
	"github.com/schism-vm/schism/pkg/vm"
)

func optimize(t *testing.T, m vm.Module, opts ...Option) vm.Module {
	t.Helper()
	out, err := New(opts...).Optimize(m)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	return out
}

// framebuffer runs the module for one pixel and returns FB0..FB3.
func framebuffer(t *testing.T, m vm.Module) [4]float32 {
	t.Helper()
	machine := vm.New(vm.DefaultMemorySize)
	machine.LoadProgram(m)
	machine.Run()
	return [4]float32{
		machine.GetRegister(vm.RegFB0).F32(),
		machine.GetRegister(vm.RegFB1).F32(),
		machine.GetRegister(vm.RegFB2).F32(),
		machine.GetRegister(vm.RegFB3).F32(),
	}
}

func TestOptimize_NoPassesIsIdentity(t *testing.T) {
	m := testutil.MustAssemble(t, testutil.ConstantColourSource())

	out := optimize(t, m)
	if !bytes.Equal(out.Code(), m.Code()) {
		t.Errorf("expected identical code with no passes enabled")
	}
	if out.Type() != m.Type() {
		t.Errorf("module type changed: %v -> %v", m.Type(), out.Type())
	}
}

func TestOptimize_PostExitTrim(t *testing.T) {
	m := testutil.MustAssemble(t, `
SET_F32 %FB0 1.0
EXIT
SET_F32 %FB1 1.0
SET_F32 %FB2 1.0
`)

	out := optimize(t, m, WithPostExitTrim())
	want := testutil.MustAssemble(t, "SET_F32 %FB0 1.0\nEXIT\n")
	if !bytes.Equal(out.Code(), want.Code()) {
		t.Errorf("expected trailing code removed:\n  got  %x\n  want %x", out.Code(), want.Code())
	}
}

func TestOptimize_DeadStoreRemoved(t *testing.T) {
	m := testutil.MustAssemble(t, `
SET_F32 %S0 1.0
SET_F32 %S0 2.0
MOV %FB0 %S0
EXIT
`)

	out := optimize(t, m, WithDeadStoreElimination())
	want := testutil.MustAssemble(t, `
SET_F32 %S0 2.0
MOV %FB0 %S0
EXIT
`)
	if !bytes.Equal(out.Code(), want.Code()) {
		t.Errorf("expected dead store removed:\n  got  %x\n  want %x", out.Code(), want.Code())
	}
	if framebuffer(t, out) != framebuffer(t, m) {
		t.Errorf("optimization changed program output")
	}
}

func TestOptimize_UnreadScalarStoreRemoved(t *testing.T) {
	m := testutil.MustAssemble(t, `
SET_F32 %S5 9.0
SET_F32 %FB0 1.0
EXIT
`)

	out := optimize(t, m, WithDeadStoreElimination())
	want := testutil.MustAssemble(t, "SET_F32 %FB0 1.0\nEXIT\n")
	if !bytes.Equal(out.Code(), want.Code()) {
		t.Errorf("expected unread scalar store removed:\n  got  %x\n  want %x", out.Code(), want.Code())
	}
}

func TestOptimize_FramebufferStoresKept(t *testing.T) {
	m := testutil.MustAssemble(t, testutil.ConstantColourSource())

	out := optimize(t, m, WithAllOptimizations())
	if !bytes.Equal(out.Code(), m.Code()) {
		t.Errorf("framebuffer stores must survive optimization")
	}
}

func TestOptimize_LoadKeptForFaultSemantics(t *testing.T) {
	// LD_F32 can halt on an out-of-range address; removing it would
	// change observable behaviour even though S0 is rewritten.
	m := testutil.MustAssemble(t, `
LD_F32 %S0 FFFF
SET_F32 %S0 1.0
MOV %FB0 %S0
EXIT
`)

	out := optimize(t, m, WithDeadStoreElimination())
	if !bytes.Equal(out.Code(), m.Code()) {
		t.Errorf("LD_F32 must not be eliminated")
	}
}

func TestOptimize_VectorLivenessTracksLanes(t *testing.T) {
	// The vector add reads S0..S3 and S4..S7, so all eight stores are
	// live even though only FB0 is read at the end.
	source := `
SET_F32 %S0 1.0
SET_F32 %S1 2.0
SET_F32 %S2 3.0
SET_F32 %S3 4.0
SET_F32 %S4 10.0
SET_F32 %S5 10.0
SET_F32 %S6 10.0
SET_F32 %S7 10.0
ALU_F32_F32 ADD %V0 %V1
MOV %FB0 %S0
EXIT
`
	m := testutil.MustAssemble(t, source)

	out := optimize(t, m, WithAllOptimizations())
	if !bytes.Equal(out.Code(), m.Code()) {
		t.Errorf("lane-covered stores must survive optimization")
	}
	if framebuffer(t, out) != framebuffer(t, m) {
		t.Errorf("optimization changed program output")
	}
}

func TestOptimize_DeadALUChainRemoved(t *testing.T) {
	// S10/S11 feed an add whose result nothing reads.
	m := testutil.MustAssemble(t, `
SET_F32 %S10 1.0
SET_F32 %S11 2.0
ALU_F32_F32 ADD %S10 %S11
SET_F32 %FB0 1.0
EXIT
`)

	out := optimize(t, m, WithDeadStoreElimination())
	want := testutil.MustAssemble(t, "SET_F32 %FB0 1.0\nEXIT\n")
	if !bytes.Equal(out.Code(), want.Code()) {
		t.Errorf("expected dead ALU chain removed:\n  got  %x\n  want %x", out.Code(), want.Code())
	}
}
