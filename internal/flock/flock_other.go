//go:build !unix

package flock

import "os"

// Locking is a no-op on platforms without flock(2).
func tryLock(*os.File) error { return nil }

func unlock(*os.File) error { return nil }
