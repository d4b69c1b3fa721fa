//go:build !linux

package affinity

import "errors"

const supported = false

func pinPlatform(int) error {
	return errors.New("affinity: not supported on this platform")
}
