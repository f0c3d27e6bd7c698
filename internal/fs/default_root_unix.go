// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

//go:build aix || darwin || dragonfly || freebsd || (js && wasm) || linux || netbsd || openbsd || solaris

package fs

import (
	"os"
	"path/filepath"
)

func getDefaultRoot(lookup func(string) (string, bool)) string {
	if xdg, ok := lookup("XDG_CACHE_HOME"); ok && xdg != "" {
		return filepath.Join(xdg, "udfc")
	}
	if home, ok := lookup("HOME"); ok && home != "" {
		return filepath.Join(home, ".cache", "udfc")
	}
	return filepath.Join(os.TempDir(), "udfc")
}
