//go:build linux

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const supported = true

func pinPlatform(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity cpu %d: %w", cpu, err)
	}
	return nil
}
