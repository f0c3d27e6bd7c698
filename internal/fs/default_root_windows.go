// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package fs

import (
	"os"
	"path/filepath"
)

func getDefaultRoot(lookup func(string) (string, bool)) string {
	if local, ok := lookup("LOCALAPPDATA"); ok && local != "" {
		return filepath.Join(local, "udfc")
	}
	return filepath.Join(os.TempDir(), "udfc")
}
