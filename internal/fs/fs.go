// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

// Package fs is the on-disk workspace backends write UDF sources and compiled
// artifacts into.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.microglot.org/udfc.go/internal/exc"
)

// FileSystem resolves slash separated workspace paths against a root
// directory. Paths never escape the root; ".." segments are cleaned against
// the root the way they would be against "/".
type FileSystem interface {
	// Write replaces the file at path with content, creating parent
	// directories as needed.
	Write(ctx context.Context, path string, content string) error
	// MkdirAll creates the directory at path and any missing parents.
	MkdirAll(ctx context.Context, path string) error
	// Abs returns the local absolute path for a workspace path.
	Abs(path string) string
	// Root returns the absolute workspace root.
	Root() string
}

type FileSystemLocalOption func(*fileSystemLocal)

// WithOptionFileMode sets the permission bits used for written files. The
// default is 0o644.
func WithOptionFileMode(mode os.FileMode) FileSystemLocalOption {
	return func(rfs *fileSystemLocal) {
		rfs.fileMode = mode
	}
}

// WithOptionDirMode sets the permission bits used for created directories.
// The default is 0o755.
func WithOptionDirMode(mode os.FileMode) FileSystemLocalOption {
	return func(rfs *fileSystemLocal) {
		rfs.dirMode = mode
	}
}

type fileSystemLocal struct {
	root     string
	fileMode os.FileMode
	dirMode  os.FileMode
}

// NewFileSystemLocal creates a new FileSystem rooted at root on the local
// disk. The root is created if it does not exist.
func NewFileSystemLocal(root string, options ...FileSystemLocalOption) (FileSystem, error) {
	absroot, err := filepath.Abs(root)
	if err != nil {
		return nil, exc.Wrap(exc.Subject{}, exc.CodeWorkspace, err)
	}
	result := &fileSystemLocal{
		root:     absroot,
		fileMode: 0o644,
		dirMode:  0o755,
	}
	for _, option := range options {
		option(result)
	}
	if err := os.MkdirAll(absroot, result.dirMode); err != nil {
		return nil, fsErr(absroot, err)
	}
	return result, nil
}

func (r *fileSystemLocal) Root() string {
	return r.root
}

func (r *fileSystemLocal) Abs(path string) string {
	return filepath.Join(r.root, filepath.Clean(filepath.Join("/", filepath.FromSlash(path))))
}

func (r *fileSystemLocal) Write(ctx context.Context, path string, content string) error {
	p := r.Abs(path)
	d := filepath.Dir(p)
	if err := os.MkdirAll(d, r.dirMode); err != nil {
		return fsErr(d, err)
	}
	if err := os.WriteFile(p, []byte(content), r.fileMode); err != nil {
		return fsErr(p, err)
	}
	return nil
}

func (r *fileSystemLocal) MkdirAll(ctx context.Context, path string) error {
	p := r.Abs(path)
	if err := os.MkdirAll(p, r.dirMode); err != nil {
		return fsErr(p, err)
	}
	return nil
}

func fsErr(path string, err error) error {
	var errT *fs.PathError
	if errors.As(err, &errT) {
		if errors.Is(errT.Err, fs.ErrPermission) {
			return exc.Wrap(exc.Subject{}, exc.CodeWorkspace, fmt.Errorf("permission denied writing workspace path %s: %w", errT.Path, errT))
		}
		return exc.Wrap(exc.Subject{}, exc.CodeWorkspace, errT)
	}
	return exc.Wrap(exc.Subject{}, exc.CodeWorkspace, fmt.Errorf("%s: %w", path, err))
}
