//go:build !unix && !windows

package cache

import "os"

// Platforms without advisory locks rely on the in-process mutex only.
func tryLock(*os.File, bool) (bool, error) { return false, nil }

func unlock(*os.File) error { return nil }
