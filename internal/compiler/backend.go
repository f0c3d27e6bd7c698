// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.microglot.org/udfc.go/internal/udf"
)

//go:generate mockgen -destination=mock_backend_test.go -package=compiler . Backend

// Backend turns the source of a UDF into a loadable artifact for one
// language. A nil error means the artifact was produced. The Registry hands
// the same Backend to every concurrent caller so implementations must be safe
// for concurrent use.
type Backend interface {
	Language() udf.Language
	Compile(ctx context.Context, u *udf.UDF, conf udf.JobConfig, jobID int) error
}

// Registry maps each language to the long-lived Backend that compiles it.
type Registry struct {
	mu       sync.RWMutex
	backends map[udf.Language]Backend
}

// NewRegistry builds a Registry holding exactly one backend per language.
func NewRegistry(backends ...Backend) (*Registry, error) {
	r := &Registry{
		backends: make(map[udf.Language]Backend, len(backends)),
	}
	for _, b := range backends {
		if b == nil {
			return nil, errors.New("nil backend")
		}
		if _, ok := r.backends[b.Language()]; ok {
			return nil, fmt.Errorf("duplicate backend for language %s", b.Language())
		}
		r.backends[b.Language()] = b
	}
	return r, nil
}

// Register installs b for its language, replacing any previous backend.
func (self *Registry) Register(b Backend) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.backends[b.Language()] = b
}

func (self *Registry) Lookup(l udf.Language) (Backend, bool) {
	self.mu.RLock()
	defer self.mu.RUnlock()
	b, ok := self.backends[l]
	return b, ok
}

func (self *Registry) Languages() []udf.Language {
	self.mu.RLock()
	out := make([]udf.Language, 0, len(self.backends))
	for l := range self.backends {
		out = append(out, l)
	}
	self.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
