//go:build !unix

package filestore

import "os"

// Advisory locking is unavailable; the data directory is assumed to be
// owned by a single process.
func flockExclusive(*os.File) error { return nil }

func flockUnlock(*os.File) error { return nil }
