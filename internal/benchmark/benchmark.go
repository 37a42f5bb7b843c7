// Package benchmark times the recognizer's hot paths on synthetic words.
package benchmark

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  // Currently allocated bytes
	TotalAllocBytes uint64  // Total allocated bytes (cumulative)
	SysBytes        uint64  // Total bytes from system
	NumGC           uint32  // Number of GC runs
	GCCPUFraction   float64 // Fraction of CPU time spent in GC
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.SysBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// Result holds the result of a benchmark run.
type Result struct {
	Name         string
	Iterations   int
	Items        int // Samples processed per iteration
	Durations    []time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Error        error
}

// Total returns the summed iteration time.
func (r Result) Total() time.Duration {
	var total time.Duration
	for _, d := range r.Durations {
		total += d
	}
	return total
}

// MeanStd returns the mean and standard deviation of iteration times.
func (r Result) MeanStd() (time.Duration, time.Duration) {
	if len(r.Durations) == 0 {
		return 0, 0
	}
	xs := make([]float64, len(r.Durations))
	for i, d := range r.Durations {
		xs[i] = float64(d)
	}
	if len(xs) == 1 {
		return r.Durations[0], 0
	}
	mean, std := stat.MeanStdDev(xs, nil)
	return time.Duration(mean), time.Duration(std)
}

// Throughput returns processed samples per second.
func (r Result) Throughput() float64 {
	total := r.Total()
	if total <= 0 || r.Items == 0 {
		return 0
	}
	return float64(r.Items*len(r.Durations)) / total.Seconds()
}

// String returns a formatted string representation of the benchmark result.
func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	mean, std := r.MeanStd()
	memDiff := int64(r.MemoryAfter.TotalAllocBytes) - int64(r.MemoryBefore.TotalAllocBytes) //nolint:gosec // G115: display only
	return fmt.Sprintf("%s: %d iterations, avg: %v ± %v, total: %v, %.1f samples/s, alloc: %d KB",
		r.Name, len(r.Durations), mean.Round(time.Microsecond), std.Round(time.Microsecond),
		r.Total().Round(time.Millisecond), r.Throughput(), memDiff/1024)
}

// Benchmark is a named function processing Items samples per call.
type Benchmark struct {
	Name  string
	Items int
	Func  func() error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates a new benchmark suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add adds a benchmark to the suite.
func (s *Suite) Add(name string, items int, fn func() error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Items: items, Func: fn})
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return runBenchmark(b, iterations)
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
}

// RunAll runs all benchmarks in the suite.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, runBenchmark(b, iterations))
	}
	return s.results
}

// runBenchmark executes a single benchmark, stopping at the first error.
func runBenchmark(b Benchmark, iterations int) Result {
	// Force garbage collection before measuring
	runtime.GC()
	res := Result{
		Name:         b.Name,
		Iterations:   iterations,
		Items:        b.Items,
		Durations:    make([]time.Duration, 0, iterations),
		MemoryBefore: GetMemoryStats(),
	}
	for range iterations {
		start := time.Now()
		if err := b.Func(); err != nil {
			res.Error = err
			break
		}
		res.Durations = append(res.Durations, time.Since(start))
	}
	res.MemoryAfter = GetMemoryStats()
	return res
}

// Results returns the last run results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// WriteResults prints formatted benchmark results.
func (s *Suite) WriteResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "\nBenchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
	_, _ = fmt.Fprintln(w)
}

// WriteCSV writes one row per result.
func (s *Suite) WriteCSV(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "name,iterations,items,mean_ms,std_ms,samples_per_sec,error"); err != nil {
		return err
	}
	for _, r := range s.Results() {
		mean, std := r.MeanStd()
		errText := ""
		if r.Error != nil {
			errText = r.Error.Error()
		}
		if _, err := fmt.Fprintf(w, "%s,%d,%d,%.3f,%.3f,%.1f,%q\n", r.Name, len(r.Durations), r.Items,
			float64(mean)/1e6, float64(std)/1e6, r.Throughput(), errText); err != nil {
			return err
		}
	}
	return nil
}
