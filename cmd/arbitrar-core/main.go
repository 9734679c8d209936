// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"os"

	"arbitrar/internal/config"
	"arbitrar/internal/diagnostics"
	"arbitrar/internal/pipeline"
)

// preScanConfigPath pulls a leading -options=<file> flag out of args
// before the full flag set is built, since that file supplies the
// defaults every other flag is registered against.
func preScanConfigPath(args []string) (path string, rest []string) {
	fs := flag.NewFlagSet("arbitrar-core-prescan", flag.ContinueOnError)
	configPath := fs.String("options", "", "optional YAML file of option defaults")
	fs.ParseErrorsWhitelist.UnknownFlags = true
	_ = fs.Parse(args)
	return *configPath, fs.Args()
}

func main() {
	configPath, rest := preScanConfigPath(os.Args[1:])
	defaults := config.Defaults()
	if configPath != "" {
		if err := config.LoadYAML(&defaults, configPath); err != nil {
			fmt.Fprintln(os.Stderr, diagnostics.New(diagnostics.ErrConfigParse, "failed to read options file "+configPath, err))
			os.Exit(1)
		}
	}

	opts, err := config.ParseFlags(defaults, rest)
	if err != nil {
		fmt.Fprintln(os.Stderr, diagnostics.New(diagnostics.ErrConfigParse, "invalid command line", err))
		os.Exit(1)
	}

	module, err := loadModule(opts.Input)
	if err != nil {
		fmt.Fprintln(os.Stderr, diagnostics.New(diagnostics.ErrModuleLoad, "failed to load module "+opts.Input, err))
		os.Exit(1)
	}

	if err := os.MkdirAll(opts.Output, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, diagnostics.New(diagnostics.ErrOutputDir, "failed to create output directory", err))
		os.Exit(1)
	}
	log, err := pipeline.NewLogger(opts.LogFilePath())
	if err != nil {
		fmt.Fprintln(os.Stderr, diagnostics.New(diagnostics.ErrLogFileOpen, "failed to open log file", err))
		os.Exit(1)
	}
	defer log.Close()

	if err := pipeline.Run(module, opts, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
