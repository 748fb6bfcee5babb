//go:build !windows

package util

// StartedFromExplorer is always false outside Windows, a terminal stays
// open after the process exits.
func StartedFromExplorer() bool { return false }
