// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

package exc

import "sync"

// Reporter is used to accumulate exceptions raised while compiling a set of
// UDFs so that the full list can be shown to the user once the run ends.
// Reporting never alters control flow; callers still return the exception.
type Reporter interface {
	// Report adds the given exception to the set and returns it.
	Report(Exception) Exception
	// Reported returns a copy of the accumulated exceptions in report order.
	Reported() []Exception
}

// NewReporter returns a concurrent-safe implementation of Reporter.
func NewReporter() Reporter {
	return &reporterLock{
		Reporter: &reporter{},
		lock:     &sync.Mutex{},
	}
}

type reporter struct {
	reported []Exception
}

func (r *reporter) Report(e Exception) Exception {
	if e == nil {
		return nil
	}
	r.reported = append(r.reported, e)
	return e
}

func (r *reporter) Reported() []Exception {
	out := make([]Exception, len(r.reported))
	copy(out, r.reported)
	return out
}

type reporterLock struct {
	Reporter
	lock sync.Locker
}

func (r *reporterLock) Report(e Exception) Exception {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.Reporter.Report(e)
}

func (r *reporterLock) Reported() []Exception {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.Reporter.Reported()
}
