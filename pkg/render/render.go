// Package render drives a schism fragment module over a rectangular
// surface, producing a framebuffer image.
//
// The renderer executes the module once per pixel: it pokes the pixel
// coordinates and surface extents into VM memory, resets registers,
// runs the program to completion, and reads the framebuffer registers
// back as normalized RGBA. Pixels are distributed row-by-row over a
// pool of workers, one VM per worker, sharing the immutable module.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/schism-vm/schism/pkg/vm"
)

// Options configures a render pass.
type Options struct {
	// Width and Height are the surface extents in pixels.
	Width  int
	Height int

	// Workers is the number of rendering goroutines. Zero means one
	// per CPU.
	Workers int

	// MemoryBytes sizes each worker VM's linear memory. Zero means
	// vm.DefaultMemorySize.
	MemoryBytes int

	// MaxSteps bounds instructions per pixel. Zero means unlimited;
	// with no control flow a program cannot loop, so the bound only
	// guards degenerate modules.
	MaxSteps int64

	// Logger receives per-pass progress. Nil disables logging.
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.MemoryBytes <= 0 {
		o.MemoryBytes = vm.DefaultMemorySize
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Stats summarizes a completed render pass.
type Stats struct {
	Pixels int
	Faults int64 // pixels whose program halted on a fault rather than EXIT
}

// Render executes the module for every pixel of the surface and
// returns the resulting image. A per-pixel fault is not an error: the
// pixel keeps whatever the framebuffer registers held when the VM
// halted, and the fault is counted in Stats.
func Render(ctx context.Context, m vm.Module, opts Options) (*image.RGBA, Stats, error) {
	opts = opts.withDefaults()
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, Stats{}, fmt.Errorf("render: bad surface %dx%d", opts.Width, opts.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))

	rows := make(chan int)
	var faults int64
	var wg sync.WaitGroup

	workers := opts.Workers
	if workers > opts.Height {
		workers = opts.Height
	}

	opts.Logger.Debug("render pass starting",
		zap.Int("width", opts.Width),
		zap.Int("height", opts.Height),
		zap.Int("workers", workers),
		zap.String("module_type", m.Type().String()),
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			renderRows(m, opts, img, rows, &faults)
		}()
	}

	var err error
feed:
	for y := 0; y < opts.Height; y++ {
		select {
		case rows <- y:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(rows)
	wg.Wait()

	if err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{Pixels: opts.Width * opts.Height, Faults: atomic.LoadInt64(&faults)}
	if stats.Faults > 0 {
		opts.Logger.Warn("render pass finished with faulted pixels",
			zap.Int64("faults", stats.Faults))
	}
	return img, stats, nil
}

// renderRows is one worker: an owned VM consuming row indices until
// the channel closes.
func renderRows(m vm.Module, opts Options, img *image.RGBA, rows <-chan int, faults *int64) {
	machine := vm.New(opts.MemoryBytes)
	machine.SetMaxSteps(opts.MaxSteps)
	machine.LoadProgram(m)

	// Surface extents are constant across the pass.
	machine.PokeF32(vm.InputOffsetMaxX, float32(opts.Width-1))
	machine.PokeF32(vm.InputOffsetMaxY, float32(opts.Height-1))

	for y := range rows {
		for x := 0; x < opts.Width; x++ {
			machine.PokeF32(vm.InputOffsetX, float32(x))
			machine.PokeF32(vm.InputOffsetY, float32(y))

			machine.ResetRegisters()
			machine.Run()
			if machine.Fault() != nil {
				atomic.AddInt64(faults, 1)
			}

			img.SetRGBA(x, y, color.RGBA{
				R: channelByte(machine.GetRegister(vm.RegFB0).F32()),
				G: channelByte(machine.GetRegister(vm.RegFB1).F32()),
				B: channelByte(machine.GetRegister(vm.RegFB2).F32()),
				A: channelByte(machine.GetRegister(vm.RegFB3).F32()),
			})
		}
	}
}

// channelByte converts a normalized framebuffer channel to 8 bits:
// clamp to [0,1], multiply by 255, truncate.
func channelByte(f float32) uint8 {
	if f != f || f <= 0 { // NaN renders as black
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f * 255)
}
