// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"gopkg.microglot.org/udfc.go/internal/cache"
	"gopkg.microglot.org/udfc.go/internal/exc"
	"gopkg.microglot.org/udfc.go/internal/udf"
)

type Option func(d *Dispatcher) error

func OptionWithRegistry(r *Registry) Option {
	return func(d *Dispatcher) error {
		d.Registry = r
		return nil
	}
}

func OptionWithCache(c *cache.Cache) Option {
	return func(d *Dispatcher) error {
		d.Cache = c
		return nil
	}
}

func OptionWithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) error {
		d.Logger = l
		return nil
	}
}

func OptionWithExcReporter(reporter exc.Reporter) Option {
	return func(d *Dispatcher) error {
		d.Reporter = reporter
		return nil
	}
}

// OptionWithMaxConcurrency caps the number of backend invocations that may
// run at the same time. Requests for a key that is already compiling never
// count against the cap since they wait on the running invocation.
func OptionWithMaxConcurrency(n int) Option {
	return func(d *Dispatcher) error {
		if n < 0 {
			return fmt.Errorf("max concurrency must not be negative: %d", n)
		}
		d.MaxConcurrency = n
		return nil
	}
}

func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.Registry == nil {
		r, err := NewRegistry()
		if err != nil {
			return nil, err
		}
		d.Registry = r
	}
	if d.Cache == nil {
		d.Cache = cache.New()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Reporter == nil {
		d.Reporter = exc.NewReporter()
	}
	if d.MaxConcurrency == 0 {
		procs := runtime.GOMAXPROCS(-1)
		cpus := runtime.NumCPU()
		if procs > cpus {
			procs = cpus
		}
		d.MaxConcurrency = procs
	}
	d.semaphore = newSemaphore(d.MaxConcurrency)
	return d, nil
}

// Dispatcher compiles one UDF at a time through the backend registered for
// its language, skipping UDFs whose cache key is already compiled. It is safe
// for concurrent use; concurrent requests for the same uncompiled key share a
// single backend invocation and its outcome.
type Dispatcher struct {
	Registry       *Registry
	Cache          *cache.Cache
	Logger         *zap.Logger
	Reporter       exc.Reporter
	MaxConcurrency int

	semaphore *semaphore
	flights   singleflight.Group
	stats     stats
	// joined is called once a request is attached to a flight. Tests use it
	// to line requests up behind one invocation.
	joined func(key string)
}

type stats struct {
	hits        atomic.Int64
	misses      atomic.Int64
	invocations atomic.Int64
	failures    atomic.Int64
	joined      atomic.Int64
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	// Hits counts requests answered from the cache without a flight.
	Hits int64
	// Misses counts requests that reached the registry.
	Misses int64
	// Invocations counts calls into a backend.
	Invocations int64
	// Failures counts backend calls that reported failure.
	Failures int64
	// Joined counts requests that received the result of a flight they
	// shared with at least one other request.
	Joined int64
}

func (self *Dispatcher) Stats() Stats {
	return Stats{
		Hits:        self.stats.hits.Load(),
		Misses:      self.stats.misses.Load(),
		Invocations: self.stats.invocations.Load(),
		Failures:    self.stats.failures.Load(),
		Joined:      self.stats.joined.Load(),
	}
}

// Compile ensures u is compiled. The input checks run before the cache is
// consulted, so an invalid UDF fails even when its key is already cached.
// Failures are never cached; the next request for the same key compiles
// again.
func (self *Dispatcher) Compile(ctx context.Context, u *udf.UDF, conf udf.JobConfig, jobID int) error {
	if e := validate(u); e != nil {
		return self.Reporter.Report(e)
	}
	key := u.CacheKey()
	fields := udfFields(u, jobID)
	if self.Cache.Contains(key) {
		self.stats.hits.Add(1)
		self.Logger.Debug("udf already compiled", fields...)
		return nil
	}
	self.stats.misses.Add(1)

	b, ok := self.Registry.Lookup(u.FunctionLanguage)
	if !ok {
		e := exc.New(exc.SubjectOf(u), exc.CodeUnsupportedLanguage, fmt.Sprintf("function language %s is not supported", u.FunctionLanguage))
		self.Logger.Warn("unsupported function language", fields...)
		return self.Reporter.Report(e)
	}

	// The flight outlives any single caller. A caller that gives up
	// waiting leaves the running invocation in place so a retry joins it
	// rather than starting a second one.
	flightCtx := context.WithoutCancel(ctx)
	results := self.flights.DoChan(key, func() (interface{}, error) {
		return nil, self.compileOnce(flightCtx, b, u, conf, jobID)
	})
	if self.joined != nil {
		self.joined(key)
	}
	select {
	case <-ctx.Done():
		self.Logger.Debug("stopped waiting for udf compile", append(fields, zap.Error(ctx.Err()))...)
		return exc.WrapMessage(exc.SubjectOf(u), exc.CodeCanceled, "stopped waiting for compile", ctx.Err())
	case result := <-results:
		if result.Shared {
			self.stats.joined.Add(1)
			self.Logger.Debug("shared udf compile result", fields...)
		}
		return result.Err
	}
}

func (self *Dispatcher) compileOnce(ctx context.Context, b Backend, u *udf.UDF, conf udf.JobConfig, jobID int) error {
	key := u.CacheKey()
	fields := udfFields(u, jobID)
	// A flight for this key may have committed between the caller's cache
	// check and the start of this flight.
	if self.Cache.Contains(key) {
		self.Logger.Debug("udf compiled by an earlier flight", fields...)
		return nil
	}

	start := time.Now()
	self.Logger.Info("compiling udf", fields...)
	err := self.invoke(ctx, b, u, conf, jobID)
	if err != nil {
		self.stats.failures.Add(1)
		self.Logger.Warn("udf compile failed", append(fields, zap.Duration("elapsed", time.Since(start)), zap.Error(err))...)
		return self.Reporter.Report(exc.Wrap(exc.SubjectOf(u), exc.CodeBackendCompileFailure, err))
	}
	if !self.Cache.MarkCompiled(key) {
		self.Logger.Warn("compile cache is full, udf will be compiled again on next request", fields...)
	}
	self.Logger.Info("udf compiled", append(fields, zap.Duration("elapsed", time.Since(start)))...)
	return nil
}

// invoke runs the backend while holding a semaphore slot. A backend panic
// becomes an error for this key only.
func (self *Dispatcher) invoke(ctx context.Context, b Backend, u *udf.UDF, conf udf.JobConfig, jobID int) (err error) {
	self.semaphore.acquire()
	defer self.semaphore.release()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	self.stats.invocations.Add(1)
	return b.Compile(ctx, u, conf, jobID)
}

func validate(u *udf.UDF) exc.Exception {
	if u == nil {
		return exc.New(exc.Subject{}, exc.CodeValidation, "udf is nil")
	}
	if u.Code == "" {
		return exc.New(exc.SubjectOf(u), exc.CodeValidation, "udf code is empty")
	}
	if u.ClassName == "" {
		return exc.New(exc.SubjectOf(u), exc.CodeValidation, "udf class name is empty")
	}
	return nil
}

func udfFields(u *udf.UDF, jobID int) []zap.Field {
	return []zap.Field{
		zap.String("language", u.FunctionLanguage.String()),
		zap.String("class", u.ClassName),
		zap.Int("jobID", jobID),
	}
}

// IsCanceled reports whether err is the result of the caller's context
// ending rather than a compile failure. Such errors carry CodeCanceled.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
