//go:build !unix

package arch

import "runtime"

func hostOS() string {
	return runtime.GOOS
}
