// Package profile collects per-opcode execution statistics for a
// schism module run over a surface, and reports them as dataframes.
package profile

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/rocketlaunchr/dataframe-go/imports"

	"github.com/schism-vm/schism/pkg/vm"
)

// Report aggregates execution statistics for one profiling pass.
type Report struct {
	Width  int
	Height int

	Pixels int
	Steps  int64
	Faults int64

	// OpCounts is the number of times each mnemonic executed across
	// the whole surface.
	OpCounts map[string]int
}

// Options configures a profiling pass.
type Options struct {
	Width       int
	Height      int
	MemoryBytes int
	MaxSteps    int64
}

// Collect runs the module once per pixel with statistics enabled and
// aggregates the counts. Profiling is single-threaded; its point is
// counting, not speed.
func Collect(ctx context.Context, m vm.Module, opts Options) (*Report, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("profile: bad surface %dx%d", opts.Width, opts.Height)
	}
	if opts.MemoryBytes <= 0 {
		opts.MemoryBytes = vm.DefaultMemorySize
	}

	machine := vm.New(opts.MemoryBytes)
	machine.SetMaxSteps(opts.MaxSteps)
	machine.EnableStats()
	machine.LoadProgram(m)

	machine.PokeF32(vm.InputOffsetMaxX, float32(opts.Width-1))
	machine.PokeF32(vm.InputOffsetMaxY, float32(opts.Height-1))

	report := &Report{
		Width:    opts.Width,
		Height:   opts.Height,
		Pixels:   opts.Width * opts.Height,
		OpCounts: make(map[string]int),
	}

	for y := 0; y < opts.Height; y++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for x := 0; x < opts.Width; x++ {
			machine.PokeF32(vm.InputOffsetX, float32(x))
			machine.PokeF32(vm.InputOffsetY, float32(y))

			machine.ResetRegisters()
			machine.Run()
			if machine.Fault() != nil {
				report.Faults++
			}
		}
	}

	stats := machine.Stats()
	report.Steps = stats.StepsExecuted
	for op, n := range stats.OpCounts {
		report.OpCounts[op] = n
	}

	return report, nil
}

// DataFrame renders the report as a three-column frame: opcode, count,
// and share of all executed instructions. Rows are ordered by count
// descending, then opcode name.
func (r *Report) DataFrame() *dataframe.DataFrame {
	type row struct {
		op    string
		count int
	}
	rows := make([]row, 0, len(r.OpCounts))
	for op, n := range r.OpCounts {
		rows = append(rows, row{op: op, count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].op < rows[j].op
	})

	ops := make([]interface{}, len(rows))
	counts := make([]interface{}, len(rows))
	shares := make([]interface{}, len(rows))
	for i, rw := range rows {
		ops[i] = rw.op
		counts[i] = int64(rw.count)
		share := 0.0
		if r.Steps > 0 {
			share = float64(rw.count) / float64(r.Steps)
		}
		shares[i] = share
	}

	return dataframe.NewDataFrame(
		dataframe.NewSeriesString("opcode", nil, ops...),
		dataframe.NewSeriesInt64("count", nil, counts...),
		dataframe.NewSeriesFloat64("share", nil, shares...),
	)
}

// Table renders the report as a human-readable table.
func (r *Report) Table() string {
	return r.DataFrame().Table()
}

// WriteCSV exports the report's dataframe as CSV.
func (r *Report) WriteCSV(ctx context.Context, w io.Writer) error {
	if err := exports.ExportToCSV(ctx, w, r.DataFrame()); err != nil {
		return fmt.Errorf("exporting profile CSV: %w", err)
	}
	return nil
}

// LoadCSV reads a previously exported profile back as a dataframe,
// for comparing runs.
func LoadCSV(path string) (*dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	df, err := imports.LoadFromCSV(context.Background(), file, imports.CSVLoadOptions{
		InferDataTypes: true,
	})
	if err != nil {
		return nil, fmt.Errorf("loading profile CSV: %w", err)
	}
	return df, nil
}
