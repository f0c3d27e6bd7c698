// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

package fs

// DefaultRoot returns the workspace root to use when none is configured.
// UDFC_WORKSPACE wins when set; otherwise a per-user cache directory.
func DefaultRoot(lookup func(string) (string, bool)) string {
	if v, ok := lookup("UDFC_WORKSPACE"); ok && v != "" {
		return v
	}
	return getDefaultRoot(lookup)
}
