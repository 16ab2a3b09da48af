// Package shade provides the Go embedding API for schism. Pass
// assembly source or a module, get the pixel colour out.
//
// Basic usage:
//
//	c, err := shade.Execute(`
//	    SET_F32 %FB0 1.0
//	    SET_F32 %FB3 1.0
//	    EXIT
//	`)
//
// With per-pixel inputs:
//
//	c, err := shade.Execute(src,
//	    shade.WithPixel(12, 7),
//	    shade.WithSurface(64, 64),
//	)
package shade

import (
	"github.com/schism-vm/schism/pkg/assembler"
	"github.com/schism-vm/schism/pkg/vm"
)

// Color is one pixel's framebuffer output: RGBA as f32 in [0,1].
type Color [4]float32

// Options configures a single-pixel execution.
type Options struct {
	// X, Y are the pixel coordinates poked to memory offsets 0 and 4.
	X, Y float32

	// Width, Height are the surface extents; width-1 and height-1 are
	// poked to offsets 8 and 12.
	Width, Height float32

	// MemoryBytes sizes the VM memory. Zero means vm.DefaultMemorySize.
	MemoryBytes int

	// MaxSteps bounds the instruction count. Zero means unlimited.
	MaxSteps int64

	// Pokes are extra f32 inputs written before execution.
	Pokes map[uint32]float32
}

// Option is a functional option for Execute.
type Option func(*Options)

// WithPixel sets the pixel coordinates.
func WithPixel(x, y float32) Option {
	return func(o *Options) {
		o.X, o.Y = x, y
	}
}

// WithSurface sets the surface extents.
func WithSurface(width, height float32) Option {
	return func(o *Options) {
		o.Width, o.Height = width, height
	}
}

// WithMemory sets the VM memory size in bytes.
func WithMemory(n int) Option {
	return func(o *Options) {
		o.MemoryBytes = n
	}
}

// WithMaxSteps bounds the instruction count.
func WithMaxSteps(n int64) Option {
	return func(o *Options) {
		o.MaxSteps = n
	}
}

// WithPoke adds an extra f32 memory input.
func WithPoke(offset uint32, value float32) Option {
	return func(o *Options) {
		if o.Pokes == nil {
			o.Pokes = make(map[uint32]float32)
		}
		o.Pokes[offset] = value
	}
}

// Execute assembles source and runs it for one pixel.
func Execute(source string, opts ...Option) (Color, error) {
	program, err := assembler.Assemble(source)
	if err != nil {
		return Color{}, err
	}
	return ExecuteModule(program.Module(), opts...)
}

// ExecuteFile reads an .scsa file and executes it for one pixel.
func ExecuteFile(path string, opts ...Option) (Color, error) {
	program, err := assembler.AssembleFile(path)
	if err != nil {
		return Color{}, err
	}
	return ExecuteModule(program.Module(), opts...)
}

// ExecuteModule runs an already-compiled module for one pixel. A
// runtime fault is returned as the error alongside whatever colour the
// framebuffer registers held when the VM halted.
func ExecuteModule(m vm.Module, opts ...Option) (Color, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}
	if options.MemoryBytes <= 0 {
		options.MemoryBytes = vm.DefaultMemorySize
	}

	machine := vm.New(options.MemoryBytes)
	machine.SetMaxSteps(options.MaxSteps)
	machine.LoadProgram(m)

	machine.PokeF32(vm.InputOffsetX, options.X)
	machine.PokeF32(vm.InputOffsetY, options.Y)
	if options.Width > 0 {
		machine.PokeF32(vm.InputOffsetMaxX, options.Width-1)
	}
	if options.Height > 0 {
		machine.PokeF32(vm.InputOffsetMaxY, options.Height-1)
	}
	for offset, value := range options.Pokes {
		if err := machine.PokeF32(offset, value); err != nil {
			return Color{}, err
		}
	}

	machine.Run()

	c := Color{
		machine.GetRegister(vm.RegFB0).F32(),
		machine.GetRegister(vm.RegFB1).F32(),
		machine.GetRegister(vm.RegFB2).F32(),
		machine.GetRegister(vm.RegFB3).F32(),
	}
	return c, machine.Fault()
}
