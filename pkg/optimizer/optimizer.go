// Package optimizer applies clean-up passes to assembled schism
// modules. Passes operate on the decoded instruction stream and
// re-encode it, so tailed instructions keep their literals intact.
package optimizer

import (
	"github.com/schism-vm/schism/pkg/vm"
)

// Optimizer applies optimizations to a compiled module.
type Optimizer struct {
	enablePostExitTrim bool
	enableDeadStores   bool
}

// Option is a functional option for the Optimizer.
type Option func(*Optimizer)

// WithPostExitTrim enables removal of code after the first EXIT.
func WithPostExitTrim() Option {
	return func(o *Optimizer) {
		o.enablePostExitTrim = true
	}
}

// WithDeadStoreElimination enables removal of register stores that are
// overwritten before any read.
func WithDeadStoreElimination() Option {
	return func(o *Optimizer) {
		o.enableDeadStores = true
	}
}

// WithAllOptimizations enables every pass.
func WithAllOptimizations() Option {
	return func(o *Optimizer) {
		o.enablePostExitTrim = true
		o.enableDeadStores = true
	}
}

// New creates a new Optimizer with the given options.
func New(opts ...Option) *Optimizer {
	opt := &Optimizer{}
	for _, o := range opts {
		o(opt)
	}
	return opt
}

// Optimize applies the enabled passes and returns a new module of the
// same type. The input module is left untouched.
func (o *Optimizer) Optimize(m vm.Module) (vm.Module, error) {
	decoded, err := vm.DecodeProgram(m)
	if err != nil {
		return vm.Module{}, err
	}

	if o.enablePostExitTrim {
		decoded = postExitTrim(decoded)
	}
	if o.enableDeadStores {
		decoded = deadStoreElimination(decoded)
	}

	var code []byte
	for _, d := range decoded {
		code = d.Encode(code)
	}
	return vm.NewModule(m.Type(), code), nil
}

// postExitTrim drops everything after the first EXIT; without control
// flow nothing past it can execute.
func postExitTrim(decoded []vm.DecodedInstruction) []vm.DecodedInstruction {
	for i, d := range decoded {
		if d.Word.Group() == vm.GroupControl && vm.ControlOp(d.Word.Op()) == vm.OpExit {
			return decoded[:i+1]
		}
	}
	return decoded
}
