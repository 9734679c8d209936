// Package config holds the pipeline's run-time options: defaults, an
// optional YAML file layer, and command-line flag overrides, plus the
// derived output-path helpers every stage of the pipeline writes through.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Options carries every tunable named in the run's external interface.
// Zero value is not meaningful; use Defaults to obtain a populated value.
type Options struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	Subfolder string `yaml:"subfolder"`
	UseSerial bool   `yaml:"use_serial"`
	Seed      int64  `yaml:"seed"`

	NoRemoveLLVMFuncs bool `yaml:"no_remove_llvm_funcs"`

	SliceDepth        int    `yaml:"slice_depth"`
	MaxAvgNumBlocks   int    `yaml:"max_avg_num_blocks"`
	IncludeFilter     string `yaml:"include_target"`
	ExcludeFilter     string `yaml:"exclude_target"`
	EntryFilter       string `yaml:"entry_location"`
	UseRegexFilter    bool   `yaml:"use_regex_filter"`
	NoReduceSlice     bool   `yaml:"no_reduce_slice"`
	UseBatch          bool   `yaml:"use_batch"`
	BatchSize         int    `yaml:"batch_size"`

	MaxWork                  int  `yaml:"max_work"`
	MaxTracePerSlice         int  `yaml:"max_trace_per_slice"`
	MaxExploredTracePerSlice int  `yaml:"max_explored_trace_per_slice"`
	MaxNodePerTrace          int  `yaml:"max_node_per_trace"`
	NoRandomWork             bool `yaml:"no_random_work"`
	NoTraceReduction         bool `yaml:"no_trace_reduction"`
	NoPrefilterBlockTrace    bool `yaml:"no_prefilter_block_trace"`

	CausalityDictionarySize int `yaml:"causality_dictionary_size"`
}

// Defaults returns the option set named in the run's external interface.
func Defaults() Options {
	return Options{
		SliceDepth:               1,
		MaxAvgNumBlocks:          300,
		UseBatch:                 false,
		BatchSize:                50,
		MaxWork:                  50,
		MaxTracePerSlice:         50,
		MaxExploredTracePerSlice: 1000,
		MaxNodePerTrace:          5000,
		NoRandomWork:             false,
		NoTraceReduction:         false,
		NoReduceSlice:            false,
		NoRemoveLLVMFuncs:        false,
		NoPrefilterBlockTrace:    false,
		UseRegexFilter:           false,
		CausalityDictionarySize:  10,
		Seed:                     12345,
		UseSerial:                false,
	}
}

// LoadYAML merges a YAML defaults file onto o, field by field, only where
// the file sets a value. A file that cannot be read (including a missing
// one) is returned as an error; the caller decides whether to call this at
// all, i.e. whether a path was actually requested.
func LoadYAML(o *Options, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, o)
}

// ParseFlags overlays command-line flags onto a copy of base and returns
// the merged Options. input and output are positional; everything else is
// a named flag whose default is base's current value, so an already-loaded
// YAML layer survives unless a flag explicitly overrides it.
func ParseFlags(base Options, args []string) (Options, error) {
	o := base
	fs := flag.NewFlagSet("arbitrar-core", flag.ContinueOnError)

	fs.StringVar(&o.Subfolder, "subfolder", o.Subfolder, "output subfolder")
	fs.BoolVar(&o.UseSerial, "serial", o.UseSerial, "serialize execution rather than parallel")
	fs.Int64Var(&o.Seed, "seed", o.Seed, "random seed for work-list popping")

	fs.BoolVar(&o.NoRemoveLLVMFuncs, "no-remove-llvm-funcs", o.NoRemoveLLVMFuncs, "do not remove llvm intrinsic functions from the call graph")

	fs.IntVar(&o.SliceDepth, "slice-depth", o.SliceDepth, "slice depth")
	fs.IntVar(&o.MaxAvgNumBlocks, "max-avg-num-blocks", o.MaxAvgNumBlocks, "skip targets whose average block count exceeds this")
	fs.StringVar(&o.IncludeFilter, "include-target", o.IncludeFilter, "include target functions (regex)")
	fs.StringVar(&o.ExcludeFilter, "exclude-target", o.ExcludeFilter, "exclude target functions (regex)")
	fs.StringVar(&o.EntryFilter, "entry-location", o.EntryFilter, "entry location filter (regex)")
	fs.BoolVar(&o.UseRegexFilter, "use-regex-filter", o.UseRegexFilter, "use regex in inclusion/exclusion filters")
	fs.BoolVar(&o.NoReduceSlice, "no-reduce-slice", o.NoReduceSlice, "skip the relevance reduction pass over slices")
	fs.BoolVar(&o.UseBatch, "use-batch", o.UseBatch, "batch targets during slicing")
	fs.IntVar(&o.BatchSize, "batch-size", o.BatchSize, "batch size")

	fs.IntVar(&o.MaxWork, "max-work", o.MaxWork, "max number of work items in the work list")
	fs.IntVar(&o.MaxTracePerSlice, "max-trace-per-slice", o.MaxTracePerSlice, "max proper traces kept per slice")
	fs.IntVar(&o.MaxExploredTracePerSlice, "max-explored-trace-per-slice", o.MaxExploredTracePerSlice, "max finished work items per slice")
	fs.IntVar(&o.MaxNodePerTrace, "max-node-per-trace", o.MaxNodePerTrace, "max trace nodes before a trace is cut off")
	fs.BoolVar(&o.NoRandomWork, "no-random-work", o.NoRandomWork, "pop the work list in LIFO order instead of randomized order")
	fs.BoolVar(&o.NoTraceReduction, "no-trace-reduction", o.NoTraceReduction, "keep duplicate block traces instead of reducing them")
	fs.BoolVar(&o.NoPrefilterBlockTrace, "no-prefilter-block-trace", o.NoPrefilterBlockTrace, "skip the block-trace prefilter before symbolic execution")

	fs.IntVar(&o.CausalityDictionarySize, "causality-dictionary-size", o.CausalityDictionarySize, "top-K causality dictionary size")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	positional := fs.Args()
	if len(positional) > 0 {
		o.Input = positional[0]
	}
	if len(positional) > 1 {
		o.Output = positional[1]
	}
	if o.Input == "" || o.Output == "" {
		return o, fmt.Errorf("config: input and output paths are required")
	}
	return o, nil
}

func (o Options) withSubfolder(path string) string {
	if o.Subfolder == "" {
		return path
	}
	return filepath.Join(path, o.Subfolder)
}

// SliceDirPath is <output>/slices.
func (o Options) SliceDirPath() string { return filepath.Join(o.Output, "slices") }

// SliceTargetDirPath is <output>/slices/<target>[/<subfolder>].
func (o Options) SliceTargetDirPath(target string) string {
	return o.withSubfolder(filepath.Join(o.SliceDirPath(), target))
}

// SliceFilePath is <output>/slices/<target>[/<subfolder>]/<sliceID>.json.
func (o Options) SliceFilePath(target string, sliceID int) string {
	return filepath.Join(o.SliceTargetDirPath(target), fmt.Sprintf("%d.json", sliceID))
}

// TraceDirPath is <output>/traces.
func (o Options) TraceDirPath() string { return filepath.Join(o.Output, "traces") }

// TraceTargetSliceDirPath is <output>/traces/<target>[/<subfolder>]/<sliceID>.
func (o Options) TraceTargetSliceDirPath(target string, sliceID int) string {
	return filepath.Join(o.withSubfolder(filepath.Join(o.TraceDirPath(), target)), fmt.Sprintf("%d", sliceID))
}

// TraceFilePath is .../<sliceID>/<traceID>.json.
func (o Options) TraceFilePath(target string, sliceID, traceID int) string {
	return filepath.Join(o.TraceTargetSliceDirPath(target, sliceID), fmt.Sprintf("%d.json", traceID))
}

// FeaturesDirPath is <output>/features.
func (o Options) FeaturesDirPath() string { return filepath.Join(o.Output, "features") }

// FeaturesTargetSliceDirPath is <output>/features/<target>[/<subfolder>]/<sliceID>.
func (o Options) FeaturesTargetSliceDirPath(target string, sliceID int) string {
	return filepath.Join(o.withSubfolder(filepath.Join(o.FeaturesDirPath(), target)), fmt.Sprintf("%d", sliceID))
}

// FeaturesFilePath is .../<sliceID>/<traceID>.json.
func (o Options) FeaturesFilePath(target string, sliceID, traceID int) string {
	return filepath.Join(o.FeaturesTargetSliceDirPath(target, sliceID), fmt.Sprintf("%d.json", traceID))
}

// LogFilePath is <output>/log.txt.
func (o Options) LogFilePath() string { return filepath.Join(o.Output, "log.txt") }

// TargetNumSlicesMapFilePath is <output>/target-num-slices-map.
func (o Options) TargetNumSlicesMapFilePath() string {
	return filepath.Join(o.Output, "target-num-slices-map")
}
