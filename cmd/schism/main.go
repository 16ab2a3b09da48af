// Package main provides the CLI entry point for the schism software
// shader toolchain.
//
// Usage:
//
//	schism asm shader.scsa              # Assemble to a module (.scsm)
//	schism run -x 3 -y 4 shader.scsa    # Execute for one pixel
//	schism render -o out.png shader.scsa
//	schism disasm shader.scsm           # Disassemble a module
//	schism profile shader.scsa          # Per-opcode execution counts
//	schism repl                         # Interactive stepper
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gitlab.com/efronlicht/enve"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/schism-vm/schism/pkg/assembler"
	"github.com/schism-vm/schism/pkg/optimizer"
	"github.com/schism-vm/schism/pkg/profile"
	"github.com/schism-vm/schism/pkg/render"
	"github.com/schism-vm/schism/pkg/repl"
	"github.com/schism-vm/schism/pkg/shade"
	"github.com/schism-vm/schism/pkg/vm"
)

// Version info set by GoReleaser via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	switch cmd := os.Args[1]; cmd {
	case "asm":
		return asmCommand(os.Args[2:])
	case "run":
		return runCommand(os.Args[2:])
	case "render":
		return renderCommand(os.Args[2:])
	case "disasm":
		return disasmCommand(os.Args[2:])
	case "profile":
		return profileCommand(os.Args[2:])
	case "repl":
		return replCommand()
	case "version":
		fmt.Printf("schism version %s\n", version)
		if commit != "none" {
			fmt.Printf("  commit: %s\n", commit)
		}
		if date != "unknown" {
			fmt.Printf("  built:  %s\n", date)
		}
		return nil
	case "help", "-h", "--help":
		return printUsage()
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// setupLogger installs a console zap logger as the global logger.
func setupLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	logger := zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(os.Stderr),
		level,
	))
	zap.ReplaceGlobals(logger)
	return logger
}

// loadInput assembles an .scsa source or loads an .scsm module,
// depending on the file extension.
func loadInput(path string) (vm.Module, error) {
	if strings.EqualFold(filepath.Ext(path), ".scsm") {
		return vm.LoadModule(path)
	}
	program, err := assembler.AssembleFile(path)
	if err != nil {
		return vm.Module{}, err
	}
	return program.Module(), nil
}

func asmCommand(args []string) error {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	output := fs.String("o", "", "output file (default: input with .scsm extension)")
	optimize := fs.Bool("O", false, "enable optimizations (post-EXIT trim, dead store elimination)")
	verbose := fs.Bool("v", false, "verbose output")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: schism asm [-o output.scsm] <file.scsa>")
	}

	inputPath := fs.Arg(0)
	outputPath := *output
	if outputPath == "" {
		ext := filepath.Ext(inputPath)
		outputPath = strings.TrimSuffix(inputPath, ext) + ".scsm"
	}

	program, err := assembler.AssembleFile(inputPath)
	if err != nil {
		return fmt.Errorf("assembling: %w", err)
	}
	module := program.Module()

	if *optimize {
		before := module.Len()
		module, err = optimizer.New(optimizer.WithAllOptimizations()).Optimize(module)
		if err != nil {
			return fmt.Errorf("optimizing: %w", err)
		}
		if *verbose {
			fmt.Printf("Optimized: %d -> %d code bytes\n", before, module.Len())
		}
	}

	if err := module.WriteFile(outputPath); err != nil {
		return err
	}

	if *verbose {
		fmt.Printf("Assembled %s module, %d code bytes\n", module.Type(), module.Len())
	}
	fmt.Printf("Compiled: %s\n", outputPath)
	return nil
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	x := fs.Float64("x", 0, "pixel x coordinate")
	y := fs.Float64("y", 0, "pixel y coordinate")
	width := fs.Float64("W", 64, "surface width")
	height := fs.Float64("H", 64, "surface height")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: schism run [-x N] [-y N] <file.scsa|file.scsm>")
	}

	module, err := loadInput(fs.Arg(0))
	if err != nil {
		return err
	}

	colour, err := shade.ExecuteModule(module,
		shade.WithPixel(float32(*x), float32(*y)),
		shade.WithSurface(float32(*width), float32(*height)),
	)
	if err != nil {
		return fmt.Errorf("executing: %w", err)
	}

	fmt.Printf("FB = (%g, %g, %g, %g)\n", colour[0], colour[1], colour[2], colour[3])
	return nil
}

func renderCommand(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	output := fs.String("o", "out.png", "output image (.png, .jpg, .bmp)")
	width := fs.Int("W", 64, "surface width in pixels")
	height := fs.Int("H", 64, "surface height in pixels")
	workers := fs.Int("workers", enve.Or(strconv.Atoi, "SCHISM_WORKERS", 0), "render workers (0 = one per CPU)")
	memBytes := fs.Int("mem", enve.Or(strconv.Atoi, "SCHISM_MEM_BYTES", vm.DefaultMemorySize), "VM memory bytes")
	verbose := fs.Bool("v", false, "verbose output")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: schism render [-o out.png] <file.scsa|file.scsm>")
	}

	logger := setupLogger(*verbose)
	defer logger.Sync()
	logger = logger.With(zap.String("job_id", uuid.NewString()))

	module, err := loadInput(fs.Arg(0))
	if err != nil {
		return err
	}

	img, stats, err := render.Render(context.Background(), module, render.Options{
		Width:       *width,
		Height:      *height,
		Workers:     *workers,
		MemoryBytes: *memBytes,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("rendering: %w", err)
	}

	if err := render.SaveImage(*output, img); err != nil {
		return err
	}

	logger.Info("render complete",
		zap.String("output", *output),
		zap.Int("pixels", stats.Pixels),
		zap.Int64("faulted_pixels", stats.Faults),
	)
	return nil
}

func disasmCommand(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	output := fs.String("o", "", "output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: schism disasm [-o output.scsa] <file.scsm>")
	}

	module, err := vm.LoadModule(fs.Arg(0))
	if err != nil {
		return err
	}

	asm, err := vm.Disassemble(module)
	if err != nil {
		return fmt.Errorf("disassembling: %w", err)
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(asm), 0644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		fmt.Printf("Disassembled to: %s\n", *output)
		return nil
	}
	fmt.Print(asm)
	return nil
}

func profileCommand(args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	width := fs.Int("W", 64, "surface width in pixels")
	height := fs.Int("H", 64, "surface height in pixels")
	output := fs.String("o", "", "also export the report as CSV to this path")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: schism profile [-W N] [-H N] [-o out.csv] <file.scsa|file.scsm>")
	}

	module, err := loadInput(fs.Arg(0))
	if err != nil {
		return err
	}

	ctx := context.Background()
	report, err := profile.Collect(ctx, module, profile.Options{Width: *width, Height: *height})
	if err != nil {
		return fmt.Errorf("profiling: %w", err)
	}

	fmt.Printf("%d pixels, %d instructions executed, %d faulted pixels\n",
		report.Pixels, report.Steps, report.Faults)
	fmt.Println(report.Table())

	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("creating CSV: %w", err)
		}
		defer f.Close()
		if err := report.WriteCSV(ctx, f); err != nil {
			return err
		}
		fmt.Printf("Profile CSV: %s\n", *output)
	}
	return nil
}

func replCommand() error {
	repl.New().Start(os.Stdin, os.Stdout)
	return nil
}

func printUsage() error {
	fmt.Println(`schism - software shader toolchain (assembler + per-pixel VM)

Usage:
  schism <command> [arguments]

Commands:
  asm <file.scsa>       Assemble source to a module (.scsm)
  run <file>            Execute for a single pixel and print FB registers
  render <file>         Render a full surface to an image
  disasm <file.scsm>    Disassemble a module to source
  profile <file>        Count executed opcodes over a surface
  repl                  Start the interactive stepper
  version               Print version information
  help                  Show this help message

Asm Options:
  -o <file>             Output file (default: input with .scsm extension)
  -O                    Enable optimizations
  -v                    Verbose output

Run Options:
  -x, -y                Pixel coordinates (default 0, 0)
  -W, -H                Surface extents (default 64x64)

Render Options:
  -o <file>             Output image: .png, .jpg or .bmp (default out.png)
  -W, -H                Surface size in pixels (default 64x64)
  -workers <n>          Worker goroutines ($SCHISM_WORKERS, 0 = per CPU)
  -mem <n>              VM memory bytes ($SCHISM_MEM_BYTES, default 512)
  -v                    Verbose output

Profile Options:
  -W, -H                Surface size in pixels (default 64x64)
  -o <file>             Export the report as CSV

Examples:
  schism asm examples/gradient.scsa
  schism render -W 256 -H 256 -o gradient.png examples/gradient.scsm
  schism run -x 12 -y 7 examples/gradient.scsa
  schism disasm examples/gradient.scsm
  schism repl`)
	return nil
}
