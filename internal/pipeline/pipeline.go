// Package pipeline orchestrates the whole run: call graph construction,
// target discovery, bounded slicing, symbolic execution, and feature
// extraction, fanned out across targets and slices and written to disk.
package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"sync"

	deadlock "github.com/sasha-s/go-deadlock"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"

	"arbitrar/internal/blocktrace"
	"arbitrar/internal/callgraph"
	"arbitrar/internal/config"
	"arbitrar/internal/diagnostics"
	"arbitrar/internal/features"
	"arbitrar/internal/ir"
	"arbitrar/internal/slicer"
	"arbitrar/internal/solver"
	"arbitrar/internal/symexec"
)

// Run executes one end-to-end pass over module under opts, writing slices,
// traces, and features to opts.Output. It returns the first fatal error
// encountered (module load is the caller's concern; everything from call
// graph construction onward is this package's).
func Run(module ir.Module, opts config.Options, log *Logger) error {
	if err := ensureOutputTree(opts); err != nil {
		return diagnostics.New(diagnostics.ErrOutputDir, "failed to create output directory", errors.Wrap(err, "creating output tree"))
	}

	includeFilter, err := compileFilter(opts.IncludeFilter, opts.UseRegexFilter)
	if err != nil {
		return diagnostics.New(diagnostics.ErrFilterParse, "invalid include-target filter", errors.Wrap(err, "compiling include filter"))
	}
	excludeFilter, err := compileFilter(opts.ExcludeFilter, opts.UseRegexFilter)
	if err != nil {
		return diagnostics.New(diagnostics.ErrFilterParse, "invalid exclude-target filter", errors.Wrap(err, "compiling exclude filter"))
	}
	var entryFilter *regexp.Regexp
	if opts.EntryFilter != "" {
		entryFilter, err = regexp.Compile(opts.EntryFilter)
		if err != nil {
			return diagnostics.New(diagnostics.ErrFilterParse, "invalid entry-location filter", errors.Wrap(err, "compiling entry filter"))
		}
	}

	graph := callgraph.FromModule(module, !opts.NoRemoveLLVMFuncs)
	targetFilter := slicer.TargetFilter{Include: includeFilter, Exclude: excludeFilter}
	targetEdges := slicer.BuildTargetEdgesMap(graph, targetFilter)

	s := &slicer.Slicer{
		Graph:         graph,
		SliceDepth:    opts.SliceDepth,
		EntryFilter:   entryFilter,
		NoReduceSlice: opts.NoReduceSlice,
	}
	targetSlices := s.BuildTargetSlicesMap(targetEdges)

	log.Printf("found %d target(s) with %d total slice(s)", len(targetSlices), countSlices(targetSlices))

	numSlicesMap := make(map[string]int, len(targetSlices))
	var numSlicesMu sync.Mutex

	targets := make([]string, 0, len(targetSlices))
	for t := range targetSlices {
		targets = append(targets, t)
	}

	targetWork := func(target string) error {
		slices := filterByAvgBlocks(targetSlices[target], opts.MaxAvgNumBlocks)
		numSlicesMu.Lock()
		numSlicesMap[target] = len(slices)
		numSlicesMu.Unlock()
		if len(slices) == 0 {
			return nil
		}

		target0, targetType := slices[0].Callee, slices[0].Callee.Type()
		pipe := features.NewPipeline(target0, targetType)
		var pipeMu deadlock.Mutex

		sliceWork := func(i int) error {
			sl := slices[i]
			return runSlice(opts, log, graph, sl, target, i, pipe, &pipeMu)
		}

		return runPool(len(slices), opts.UseSerial, sliceWork)
	}

	names := make([]string, len(targets))
	copy(names, targets)
	var firstErr error
	var errOnce sync.Once
	err = runPoolNamed(names, opts.UseSerial, func(name string) error {
		if e := targetWork(name); e != nil {
			errOnce.Do(func() { firstErr = e })
			return e
		}
		return nil
	})
	if err != nil {
		return err
	}
	if firstErr != nil {
		return firstErr
	}

	if err := writeTargetNumSlicesMap(opts, numSlicesMap); err != nil {
		return diagnostics.New(diagnostics.ErrOutputDir, "failed to write target-num-slices-map", errors.Wrap(err, "writing target-num-slices-map"))
	}
	log.Printf("run complete")
	return nil
}

func countSlices(m slicer.TargetSlicesMap) int {
	n := 0
	for _, s := range m {
		n += len(s)
	}
	return n
}

func ensureOutputTree(opts config.Options) error {
	for _, dir := range []string{opts.Output, opts.SliceDirPath(), opts.TraceDirPath(), opts.FeaturesDirPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// compileFilter turns an option string into a regex filter. When
// useRegex is false the pattern is matched literally, via QuoteMeta,
// matching the original tool's plain-substring mode.
func compileFilter(pattern string, useRegex bool) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	if !useRegex {
		return regexp.Compile(regexp.QuoteMeta(pattern))
	}
	return regexp.Compile(pattern)
}

// filterByAvgBlocks drops slices whose average per-function block count
// exceeds the budget -- a cheap proxy for "this slice is too large to be
// worth exploring" restored from the original tool's CLI (see
// original_source bin/analyzer.rs).
func filterByAvgBlocks(slices []*slicer.Slice, max int) []*slicer.Slice {
	if max <= 0 {
		return slices
	}
	out := make([]*slicer.Slice, 0, len(slices))
	for _, sl := range slices {
		if averageBlockCount(sl) <= float64(max) {
			out = append(out, sl)
		}
	}
	return out
}

func averageBlockCount(sl *slicer.Slice) float64 {
	if len(sl.Functions) == 0 {
		return 0
	}
	total := 0
	for _, fn := range sl.Functions {
		total += len(fn.Blocks())
	}
	return float64(total) / float64(len(sl.Functions))
}

// runSlice explores one slice, writes its slice/trace/feature files, and
// folds its traces through the target's shared feature-extractor
// pipeline (serialized across slices of one target via pipeMu, per the
// pipeline's "mutated sequentially per target" resource rule).
func runSlice(opts config.Options, log *Logger, graph *callgraph.CallGraph, sl *slicer.Slice, target string, sliceID int, pipe *features.Pipeline, pipeMu *deadlock.Mutex) error {
	if err := writeJSONAtomic(opts.SliceFilePath(target, sliceID), sliceJSON{
		Entry:     sl.Entry.SimpName(),
		Caller:    sl.Caller.SimpName(),
		Callee:    sl.Callee.SimpName(),
		Instr:     sl.Instr.DebugLoc(),
		Functions: functionNames(sl.Functions),
	}); err != nil {
		return diagnostics.New(diagnostics.ErrSliceWrite, "failed to write slice file", errors.Wrap(err, "writing slice json"))
	}

	interp := &symexec.Interpreter{
		Slice:   sl,
		Checker: solver.New(),
		Budgets: symexec.Budgets{
			MaxWork:                  opts.MaxWork,
			MaxTracePerSlice:         opts.MaxTracePerSlice,
			MaxExploredTracePerSlice: opts.MaxExploredTracePerSlice,
			MaxNodePerTrace:          opts.MaxNodePerTrace,
		},
		NoRandomWork: opts.NoRandomWork,
		Seed:         opts.Seed,
	}

	seeds := buildSeeds(graph, sl, opts)
	result := interp.Run(seeds)
	traces := result.Traces

	pipeMu.Lock()
	for _, tr := range traces {
		pipe.Init(sliceAliasID(target, sliceID), sl, len(traces), &tr)
	}
	pipe.Finalize()
	pipeMu.Unlock()

	for i, tr := range traces {
		if err := writeJSONAtomic(opts.TraceFilePath(target, sliceID, i), tr); err != nil {
			return diagnostics.New(diagnostics.ErrTraceWrite, "failed to write trace file", errors.Wrap(err, "writing trace json"))
		}
		feat := pipe.Extract(sliceAliasID(target, sliceID), sl, &tr)
		if err := writeJSONAtomic(opts.FeaturesFilePath(target, sliceID, i), feat); err != nil {
			return diagnostics.New(diagnostics.ErrFeatureWrite, "failed to write features file", errors.Wrap(err, "writing features json"))
		}
	}
	log.Printf("target %s slice %d: %d trace(s) (%+v)", target, sliceID, len(traces), result.Meta)
	return nil
}

// sliceAliasID identifies a slice uniquely across the whole run, for the
// per-slice bookkeeping feature extractors keep internally (e.g.
// returnCheck's slice_checked aggregate).
func sliceAliasID(target string, sliceID int) string {
	return target + "#" + strconv.Itoa(sliceID)
}

// buildSeeds produces the symbolic executor's starting work items for a
// slice: one guided seed per composite block trace found from the entry
// to the target call site, falling back to a single free-mode seed at the
// entry's first block when no composite trace can be built (e.g. the
// entry has no reachable path through the call graph's edge set, or
// NoPrefilterBlockTrace disables the search).
func buildSeeds(graph *callgraph.CallGraph, sl *slicer.Slice, opts config.Options) []symexec.Seed {
	first, ok := sl.Entry.FirstBlock()
	if !ok {
		return nil
	}
	if opts.NoPrefilterBlockTrace {
		return []symexec.Seed{{Block: first, Cursor: nil}}
	}

	composites := guidedComposites(graph, sl, opts.MaxTracePerSlice)
	if len(composites) == 0 {
		return []symexec.Seed{{Block: first, Cursor: nil}}
	}
	seeds := make([]symexec.Seed, 0, len(composites))
	for _, c := range composites {
		seeds = append(seeds, symexec.Seed{Block: first, Cursor: blocktrace.NewCursor(c)})
	}
	return seeds
}

// guidedComposites builds every composite block trace from the slice's
// entry down to its target call site: a call-graph path from entry to
// caller, with a final synthetic hop appended for the slice's own call
// instruction (the edge Composite needs to cover the last leg, which
// BuildTargetSlicesMap never materializes as a graph edge endpoint since
// the callee's body is never entered).
func guidedComposites(graph *callgraph.CallGraph, sl *slicer.Slice, maxTraces int) []blocktrace.CompositeTrace {
	if sl.Entry.Name() == sl.Caller.Name() {
		path := callgraph.Path{From: sl.Entry, Steps: []callgraph.PathStep{
			{Edge: callgraph.Edge{Caller: sl.Caller, Callee: sl.Callee, Instr: sl.Instr}, To: sl.Callee},
		}}
		return blocktrace.Composite(path, maxTraces)
	}

	var out []blocktrace.CompositeTrace
	for _, p := range graph.Paths(sl.Entry, sl.Caller, len(sl.Functions)+1) {
		full := callgraph.Path{From: p.From, Steps: append(append([]callgraph.PathStep(nil), p.Steps...),
			callgraph.PathStep{Edge: callgraph.Edge{Caller: sl.Caller, Callee: sl.Callee, Instr: sl.Instr}, To: sl.Callee})}
		out = append(out, blocktrace.Composite(full, maxTraces)...)
		if len(out) >= maxTraces {
			break
		}
	}
	return out
}

func functionNames(m map[string]ir.Function) []string {
	out := make([]string, 0, len(m))
	for _, fn := range m {
		out = append(out, fn.SimpName())
	}
	return out
}

type sliceJSON struct {
	Entry     string   `json:"entry"`
	Caller    string   `json:"caller"`
	Callee    string   `json:"callee"`
	Instr     string   `json:"instr"`
	Functions []string `json:"functions"`
}

// writeJSONAtomic encodes v and renames it into place, so a process that
// dies mid-write never leaves a half-written file at path.
func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + "." + ksuid.New().String() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeTargetNumSlicesMap(opts config.Options, m map[string]int) error {
	return writeJSONAtomic(opts.TargetNumSlicesMapFilePath(), m)
}

// runPool drains [0, n) over a fixed-size worker pool, width
// runtime.GOMAXPROCS(0) or 1 when serial is requested, matching the
// fixed-size channel-fed pool idiom (gopool-style) named for this
// pipeline's two parallelism axes.
func runPool(n int, serial bool, work func(i int) error) error {
	width := runtime.GOMAXPROCS(0)
	if serial || width < 1 {
		width = 1
	}
	if n == 0 {
		return nil
	}
	items := make(chan int, n)
	for i := 0; i < n; i++ {
		items <- i
	}
	close(items)

	errs := make(chan error, n)
	var wg sync.WaitGroup
	for w := 0; w < width; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range items {
				if err := work(i); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}
	return nil
}

// runPoolNamed is runPool over string keys instead of integer indices, for
// the outer (across-targets) fan-out.
func runPoolNamed(names []string, serial bool, work func(name string) error) error {
	width := runtime.GOMAXPROCS(0)
	if serial || width < 1 {
		width = 1
	}
	if len(names) == 0 {
		return nil
	}
	items := make(chan string, len(names))
	for _, n := range names {
		items <- n
	}
	close(items)

	errs := make(chan error, len(names))
	var wg sync.WaitGroup
	for w := 0; w < width; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range items {
				if err := work(name); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}
	return nil
}
