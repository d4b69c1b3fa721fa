// Package affinity pins the calling OS thread to a CPU.
//
// Callers lock the goroutine to its thread (runtime.LockOSThread) before
// pinning, otherwise the scheduler may move the goroutine away from the
// pinned thread.
package affinity

import "runtime"

// Pin binds the calling thread to cpu modulo the number of CPUs.
func Pin(cpu int) error {
	if cpu < 0 {
		cpu = -cpu
	}
	return pinPlatform(cpu % runtime.NumCPU())
}

// Supported reports whether Pin can succeed on this platform.
func Supported() bool {
	return supported
}
