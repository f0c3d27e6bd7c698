// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gopkg.microglot.org/udfc.go/internal/cache"
	"gopkg.microglot.org/udfc.go/internal/exc"
	"gopkg.microglot.org/udfc.go/internal/udf"
)

type countingBackend struct {
	language udf.Language
	release  chan struct{}
	err      error

	calls      atomic.Int64
	running    atomic.Int64
	maxRunning atomic.Int64
}

func (b *countingBackend) Language() udf.Language {
	return b.language
}

func (b *countingBackend) Compile(ctx context.Context, u *udf.UDF, conf udf.JobConfig, jobID int) error {
	b.calls.Add(1)
	n := b.running.Add(1)
	defer b.running.Add(-1)
	for {
		m := b.maxRunning.Load()
		if n <= m || b.maxRunning.CompareAndSwap(m, n) {
			break
		}
	}
	if b.release != nil {
		<-b.release
	}
	return b.err
}

func newMockBackend(ctrl *gomock.Controller, l udf.Language) *MockBackend {
	m := NewMockBackend(ctrl)
	m.EXPECT().Language().Return(l).AnyTimes()
	return m
}

func newDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	opts = append([]Option{OptionWithLogger(zaptest.NewLogger(t))}, opts...)
	d, err := New(opts...)
	require.NoError(t, err)
	return d
}

func newRegistry(t *testing.T, backends ...Backend) *Registry {
	t.Helper()
	r, err := NewRegistry(backends...)
	require.NoError(t, err)
	return r
}

func javaUDF(className string) *udf.UDF {
	return &udf.UDF{ClassName: className, FunctionLanguage: udf.LanguageJava, Code: "public class " + className + " {}"}
}

func TestCompileOnce(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	java := newMockBackend(ctrl, udf.LanguageJava)
	conf := udf.JobConfig{"parallelism.default": "4"}
	u := javaUDF("Upper")
	// A second trip to the backend exceeds Times(1) and fails the test.
	java.EXPECT().Compile(gomock.Any(), u, conf, 7).Return(nil).Times(1)

	d := newDispatcher(t, OptionWithRegistry(newRegistry(t, java)))
	ctx := context.Background()
	require.NoError(t, d.Compile(ctx, u, conf, 7))
	require.NoError(t, d.Compile(ctx, u, conf, 8))
	require.True(t, d.Cache.Contains("UpperJAVA"))
	require.Equal(t, Stats{Hits: 1, Misses: 1, Invocations: 1}, d.Stats())
}

func TestCacheKeyIgnoresCode(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	java := newMockBackend(ctrl, udf.LanguageJava)
	java.EXPECT().Compile(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	d := newDispatcher(t, OptionWithRegistry(newRegistry(t, java)))
	first := javaUDF("Upper")
	changed := &udf.UDF{ClassName: "Upper", FunctionLanguage: udf.LanguageJava, Code: "public class Upper { int v; }"}
	require.NoError(t, d.Compile(context.Background(), first, nil, 1))
	require.NoError(t, d.Compile(context.Background(), changed, nil, 2))
}

func TestCacheKeyIndependence(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	java := newMockBackend(ctrl, udf.LanguageJava)
	python := newMockBackend(ctrl, udf.LanguagePython)
	javaA := javaUDF("A")
	pythonA := &udf.UDF{ClassName: "A", FunctionLanguage: udf.LanguagePython, Code: "def a(): pass"}
	java.EXPECT().Compile(gomock.Any(), javaA, gomock.Any(), gomock.Any()).Return(nil).Times(1)
	python.EXPECT().Compile(gomock.Any(), pythonA, gomock.Any(), gomock.Any()).Return(nil).Times(1)

	d := newDispatcher(t, OptionWithRegistry(newRegistry(t, java, python)))
	require.NoError(t, d.Compile(context.Background(), javaA, nil, 1))
	require.True(t, d.Cache.Contains("AJAVA"))
	require.False(t, d.Cache.Contains("APYTHON"))
	require.NoError(t, d.Compile(context.Background(), pythonA, nil, 1))
	require.Equal(t, []string{"AJAVA", "APYTHON"}, d.Cache.Keys())
}

func TestFailureNotCached(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	java := newMockBackend(ctrl, udf.LanguageJava)
	cause := errors.New("javac: cannot find symbol")
	java.EXPECT().Compile(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(cause).Times(2)

	reporter := exc.NewReporter()
	d := newDispatcher(t, OptionWithRegistry(newRegistry(t, java)), OptionWithExcReporter(reporter))
	w := javaUDF("W")
	for x := 0; x < 2; x = x + 1 {
		err := d.Compile(context.Background(), w, nil, 1)
		require.Error(t, err)
		require.True(t, exc.Is(err, exc.CodeBackendCompileFailure))
		require.ErrorIs(t, err, cause)
		var e exc.Exception
		require.True(t, errors.As(err, &e))
		require.Equal(t, exc.Subject{Language: udf.LanguageJava, ClassName: "W"}, e.Subject())
	}
	require.Equal(t, 0, d.Cache.Len())
	require.Len(t, reporter.Reported(), 2)
	require.Equal(t, Stats{Misses: 2, Invocations: 2, Failures: 2}, d.Stats())
}

func TestUnsupportedLanguage(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	java := newMockBackend(ctrl, udf.LanguageJava)
	java.EXPECT().Compile(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	d := newDispatcher(t, OptionWithRegistry(newRegistry(t, java)))
	testCases := []struct {
		name     string
		language udf.Language
	}{
		{name: "unregistered", language: udf.LanguagePython},
		{name: "unknown", language: udf.Language(99)},
	}
	for _, testCase := range testCases {
		err := d.Compile(context.Background(), &udf.UDF{ClassName: "A", FunctionLanguage: testCase.language, Code: "x"}, nil, 1)
		require.Error(t, err, testCase.name)
		require.True(t, exc.Is(err, exc.CodeUnsupportedLanguage), testCase.name)
		require.Contains(t, err.Error(), testCase.language.String(), testCase.name)
	}
	require.Equal(t, 0, d.Cache.Len())
}

func TestValidation(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	java := newMockBackend(ctrl, udf.LanguageJava)
	java.EXPECT().Compile(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	c := cache.New()
	c.MarkCompiled("AJAVA")
	d := newDispatcher(t, OptionWithRegistry(newRegistry(t, java)), OptionWithCache(c))

	testCases := []struct {
		name  string
		input *udf.UDF
	}{
		{name: "nil udf", input: nil},
		{name: "empty code on cached key", input: &udf.UDF{ClassName: "A", FunctionLanguage: udf.LanguageJava}},
		{name: "empty class name", input: &udf.UDF{FunctionLanguage: udf.LanguageJava, Code: "x"}},
	}
	for _, testCase := range testCases {
		err := d.Compile(context.Background(), testCase.input, nil, 1)
		require.Error(t, err, testCase.name)
		require.True(t, exc.Is(err, exc.CodeValidation), testCase.name)
	}
	require.Equal(t, Stats{}, d.Stats())
}

func TestSingleFlightSuccess(t *testing.T) {
	t.Parallel()
	const callers = 16
	backend := &countingBackend{language: udf.LanguageScala, release: make(chan struct{})}
	d := newDispatcher(t, OptionWithRegistry(newRegistry(t, backend)))
	var joined sync.WaitGroup
	joined.Add(callers)
	d.joined = func(string) { joined.Done() }

	u := &udf.UDF{ClassName: "Shared", FunctionLanguage: udf.LanguageScala, Code: "object Shared"}
	errs := make([]error, callers)
	var done sync.WaitGroup
	for x := 0; x < callers; x = x + 1 {
		done.Add(1)
		go func(x int) {
			defer done.Done()
			errs[x] = d.Compile(context.Background(), u, nil, x)
		}(x)
	}
	joined.Wait()
	close(backend.release)
	done.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, backend.calls.Load())
	require.True(t, d.Cache.Contains("SharedSCALA"))
	require.EqualValues(t, callers, d.Stats().Joined)
}

func TestSingleFlightFailure(t *testing.T) {
	t.Parallel()
	const callers = 8
	backend := &countingBackend{
		language: udf.LanguagePython,
		release:  make(chan struct{}),
		err:      errors.New("SyntaxError: invalid syntax"),
	}
	reporter := exc.NewReporter()
	d := newDispatcher(t, OptionWithRegistry(newRegistry(t, backend)), OptionWithExcReporter(reporter))
	var joined sync.WaitGroup
	joined.Add(callers)
	d.joined = func(string) { joined.Done() }

	u := &udf.UDF{ClassName: "m.Broken", FunctionLanguage: udf.LanguagePython, Code: "def broken(:"}
	errs := make([]error, callers)
	var done sync.WaitGroup
	for x := 0; x < callers; x = x + 1 {
		done.Add(1)
		go func(x int) {
			defer done.Done()
			errs[x] = d.Compile(context.Background(), u, nil, 1)
		}(x)
	}
	joined.Wait()
	close(backend.release)
	done.Wait()

	require.EqualValues(t, 1, backend.calls.Load())
	for _, err := range errs {
		require.Error(t, err)
		require.Same(t, errs[0], err)
		require.True(t, exc.Is(err, exc.CodeBackendCompileFailure))
	}
	require.Len(t, reporter.Reported(), 1)
	require.Equal(t, 0, d.Cache.Len())
}

func TestCallerCancelLeavesFlightRunning(t *testing.T) {
	t.Parallel()
	backend := &countingBackend{language: udf.LanguageJava, release: make(chan struct{})}
	d := newDispatcher(t, OptionWithRegistry(newRegistry(t, backend)))
	u := javaUDF("Slow")

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- d.Compile(ctx, u, nil, 1)
	}()
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, 5*time.Second, time.Millisecond)
	cancel()
	err := <-errc
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, IsCanceled(err))
	require.True(t, exc.Is(err, exc.CodeCanceled))
	var e exc.Exception
	require.True(t, errors.As(err, &e))
	require.Equal(t, exc.Subject{Language: udf.LanguageJava, ClassName: "Slow"}, e.Subject())

	// A retry either joins the running invocation or finds it committed.
	retry := make(chan error, 1)
	go func() {
		retry <- d.Compile(context.Background(), u, nil, 1)
	}()
	close(backend.release)
	require.NoError(t, <-retry)
	require.EqualValues(t, 1, backend.calls.Load())
	require.True(t, d.Cache.Contains("SlowJAVA"))
}

func TestMaxConcurrency(t *testing.T) {
	t.Parallel()
	backend := &countingBackend{language: udf.LanguageJava, release: make(chan struct{})}
	d := newDispatcher(t, OptionWithRegistry(newRegistry(t, backend)), OptionWithMaxConcurrency(1))
	require.Equal(t, 1, d.semaphore.capacity())

	var done sync.WaitGroup
	for _, name := range []string{"A", "B", "C"} {
		done.Add(1)
		go func(name string) {
			defer done.Done()
			assert.NoError(t, d.Compile(context.Background(), javaUDF(name), nil, 1))
		}(name)
	}
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, 5*time.Second, time.Millisecond)
	require.Equal(t, 1, d.semaphore.inUse())
	close(backend.release)
	done.Wait()

	require.EqualValues(t, 3, backend.calls.Load())
	require.EqualValues(t, 1, backend.maxRunning.Load())
	require.Equal(t, 0, d.semaphore.inUse())
}

type panicOnceBackend struct {
	calls atomic.Int64
}

func (b *panicOnceBackend) Language() udf.Language {
	return udf.LanguageScala
}

func (b *panicOnceBackend) Compile(ctx context.Context, u *udf.UDF, conf udf.JobConfig, jobID int) error {
	if b.calls.Add(1) == 1 {
		panic("scalac crashed")
	}
	return nil
}

func TestBackendPanic(t *testing.T) {
	t.Parallel()
	backend := &panicOnceBackend{}
	reporter := exc.NewReporter()
	d := newDispatcher(t, OptionWithRegistry(newRegistry(t, backend)), OptionWithExcReporter(reporter), OptionWithMaxConcurrency(1))
	u := &udf.UDF{ClassName: "org.acme.Lower", FunctionLanguage: udf.LanguageScala, Code: "class Lower"}

	err := d.Compile(context.Background(), u, nil, 1)
	require.Error(t, err)
	require.True(t, exc.Is(err, exc.CodeBackendCompileFailure))
	require.Contains(t, err.Error(), "scalac crashed")
	require.Equal(t, 0, d.semaphore.inUse())
	require.False(t, d.Cache.Contains(u.CacheKey()))
	require.Len(t, reporter.Reported(), 1)

	require.NoError(t, d.Compile(context.Background(), u, nil, 1))
	require.True(t, d.Cache.Contains(u.CacheKey()))
	require.Equal(t, Stats{Misses: 2, Invocations: 2, Failures: 1}, d.Stats())
}

func TestNegativeMaxConcurrency(t *testing.T) {
	t.Parallel()
	_, err := New(OptionWithMaxConcurrency(-1))
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	d, err := New()
	require.NoError(t, err)
	require.NotNil(t, d.Registry)
	require.NotNil(t, d.Cache)
	require.NotNil(t, d.Logger)
	require.NotNil(t, d.Reporter)
	require.Greater(t, d.MaxConcurrency, 0)
	require.Empty(t, d.Registry.Languages())

	err = d.Compile(context.Background(), javaUDF("A"), nil, 1)
	require.True(t, exc.Is(err, exc.CodeUnsupportedLanguage))
}

func TestCacheFullRecompiles(t *testing.T) {
	t.Parallel()
	backend := &countingBackend{language: udf.LanguageJava}
	d := newDispatcher(t, OptionWithRegistry(newRegistry(t, backend)), OptionWithCache(cache.New(cache.WithCapacity(1))))
	ctx := context.Background()
	require.NoError(t, d.Compile(ctx, javaUDF("A"), nil, 1))
	require.NoError(t, d.Compile(ctx, javaUDF("B"), nil, 1))
	require.NoError(t, d.Compile(ctx, javaUDF("B"), nil, 1))
	require.NoError(t, d.Compile(ctx, javaUDF("A"), nil, 1))
	require.EqualValues(t, 3, backend.calls.Load())
	require.Equal(t, []string{"AJAVA"}, d.Cache.Keys())
}
