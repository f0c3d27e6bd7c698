// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"gopkg.microglot.org/udfc.go/internal/backend"
	"gopkg.microglot.org/udfc.go/internal/cache"
	"gopkg.microglot.org/udfc.go/internal/compiler"
	"gopkg.microglot.org/udfc.go/internal/exc"
	"gopkg.microglot.org/udfc.go/internal/fs"
	"gopkg.microglot.org/udfc.go/internal/logutil"
	"gopkg.microglot.org/udfc.go/internal/manifest"
)

type opts struct {
	Manifest       string
	Workspace      string
	JobID          int
	MaxConcurrency int
	CacheCapacity  int
	Tools          backend.Tools
	Log            logutil.LogConfig
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv))
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer, lookupEnv func(string) (string, bool)) int {
	op := &opts{}
	defaults := backend.DefaultTools()
	flags := pflag.NewFlagSet("udfc", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: udfc --manifest job.yaml [flags]")
		flags.PrintDefaults()
	}
	flags.StringVar(&op.Manifest, "manifest", "", "YAML file listing the job's UDFs in compile order.")
	flags.StringVar(&op.Workspace, "workspace", fs.DefaultRoot(lookupEnv), "Directory UDF sources and artifacts are written to.")
	flags.IntVar(&op.JobID, "job-id", -1, "Job id passed to backends. Overrides the manifest's jobId when set.")
	flags.IntVar(&op.MaxConcurrency, "max-concurrency", 0, "Maximum concurrent backend invocations. 0 picks the CPU count.")
	flags.IntVar(&op.CacheCapacity, "cache-capacity", 0, "Maximum number of compiled UDFs remembered. 0 is unbounded.")
	flags.StringVar(&op.Tools.Javac, "javac", defaults.Javac, "Java compiler executable.")
	flags.StringVar(&op.Tools.Scalac, "scalac", defaults.Scalac, "Scala compiler executable.")
	flags.StringVar(&op.Tools.Python, "python", defaults.Python, "Python interpreter used to byte-compile Python UDFs.")
	flags.StringVar(&op.Log.Level, "log-level", "info", "Log level: debug, info, warn or error.")
	flags.StringVar(&op.Log.Format, "log-format", "console", "Log format: console or json.")
	flags.StringVar(&op.Log.Filename, "log-file", "", "Write logs to this file, rotating it, instead of stderr.")
	flags.IntVar(&op.Log.MaxSize, "log-max-size", 100, "Megabytes before the log file is rotated.")
	flags.IntVar(&op.Log.MaxDays, "log-max-days", 7, "Days to keep rotated log files.")
	flags.IntVar(&op.Log.MaxBackups, "log-max-backups", 5, "Rotated log files to keep.")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if op.Manifest == "" {
		fmt.Fprintln(stderr, "--manifest is required")
		flags.Usage()
		return 2
	}

	logger, err := op.Log.Build(stderr)
	if err != nil {
		return fail(stderr, err, 2)
	}
	defer func() { _ = logger.Sync() }()

	m, err := manifest.Load(op.Manifest)
	if err != nil {
		return fail(stderr, err, 1)
	}
	jobID := m.JobID
	if op.JobID >= 0 {
		jobID = op.JobID
	}

	ws, err := fs.NewFileSystemLocal(op.Workspace)
	if err != nil {
		return fail(stderr, err, 1)
	}
	registry, err := compiler.NewRegistry(backend.Defaults(ws, op.Tools, logger.Named("backend"))...)
	if err != nil {
		return fail(stderr, err, 1)
	}
	reporter := exc.NewReporter()
	d, err := compiler.New(
		compiler.OptionWithRegistry(registry),
		compiler.OptionWithCache(cache.New(cache.WithCapacity(op.CacheCapacity))),
		compiler.OptionWithLogger(logger.Named("compiler")),
		compiler.OptionWithExcReporter(reporter),
		compiler.OptionWithMaxConcurrency(op.MaxConcurrency),
	)
	if err != nil {
		return fail(stderr, err, 2)
	}

	logger.Info("compiling udfs",
		zap.String("manifest", op.Manifest),
		zap.String("workspace", ws.Root()),
		zap.Int("jobID", jobID),
		zap.Int("count", len(m.UDFs)),
	)
	if err := compiler.NewBatch(d).CompileAll(ctx, m.UDFs, m.Config, jobID); err != nil {
		for _, e := range reporter.Reported() {
			fmt.Fprintln(stderr, e.Error())
		}
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	fmt.Fprintf(stdout, "compiled %d udfs for job %d\n", len(m.UDFs), jobID)
	return 0
}

// fail prints err and returns status. Errors that are not already an
// exception are reported as unknown fatal ones so every diagnostic carries a
// code.
func fail(stderr io.Writer, err error, status int) int {
	var e exc.Exception
	if !errors.As(err, &e) {
		e = exc.WrapUnknown(exc.Subject{}, err)
	}
	fmt.Fprintln(stderr, e.Error())
	return status
}
