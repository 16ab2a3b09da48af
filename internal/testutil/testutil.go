// Package testutil provides shared helpers for schism tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/schism-vm/schism/pkg/assembler"
	"github.com/schism-vm/schism/pkg/vm"
)

// MustAssemble compiles source, failing the test on error.
func MustAssemble(t *testing.T, source string) vm.Module {
	t.Helper()
	program, err := assembler.Assemble(source)
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	return program.Module()
}

// TempFile creates a temporary file with the given content and
// extension, cleaned up when the test finishes.
func TempFile(t *testing.T, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+ext)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// AssertF32Near checks that two float32 values are approximately equal.
func AssertF32Near(t *testing.T, expected, actual, tolerance float32) {
	t.Helper()
	if actual < expected-tolerance || actual > expected+tolerance {
		t.Errorf("expected %g, got %g (tolerance %g)", expected, actual, tolerance)
	}
}

// RegF32 reads a register's f32 view.
func RegF32(machine *vm.VM, r vm.Register) float32 {
	return machine.GetRegister(r).F32()
}

// ConstantColourSource is a fragment program writing a fixed RGBA.
func ConstantColourSource() string {
	return `
; constant orange
SET_F32 %FB0 1.0
SET_F32 %FB1 0.5
SET_F32 %FB2 0.0
SET_F32 %FB3 1.0
EXIT
`
}
