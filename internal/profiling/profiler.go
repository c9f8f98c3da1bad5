// Package profiling captures pprof profiles around a single CLI command.
package profiling

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Options names the files to write. Empty paths are skipped.
type Options struct {
	CPU   string
	Heap  string
	Trace string
}

// Enabled reports whether any profile was requested.
func (o Options) Enabled() bool {
	return o.CPU != "" || o.Heap != "" || o.Trace != ""
}

// Run is an in-progress profiling run. Stop it exactly once.
type Run struct {
	opts      Options
	cpuFile   *os.File
	traceFile *os.File
}

// Start begins CPU profiling and tracing as requested. The heap profile is
// written by Stop.
func Start(opts Options) (*Run, error) {
	r := &Run{opts: opts}

	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		r.cpuFile = f
	}

	if opts.Trace != "" {
		f, err := os.Create(opts.Trace)
		if err != nil {
			_ = r.stopCPU()
			return nil, fmt.Errorf("failed to create trace file: %w", err)
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			_ = r.stopCPU()
			return nil, fmt.Errorf("failed to start trace: %w", err)
		}
		r.traceFile = f
	}

	return r, nil
}

func (r *Run) stopCPU() error {
	if r.cpuFile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := r.cpuFile.Close()
	r.cpuFile = nil
	return err
}

// Stop flushes the CPU profile and trace, then writes the heap profile.
func (r *Run) Stop() error {
	var errs []error
	if err := r.stopCPU(); err != nil {
		errs = append(errs, err)
	}
	if r.traceFile != nil {
		trace.Stop()
		if err := r.traceFile.Close(); err != nil {
			errs = append(errs, err)
		}
		r.traceFile = nil
	}
	if r.opts.Heap != "" {
		if err := writeHeap(r.opts.Heap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}
