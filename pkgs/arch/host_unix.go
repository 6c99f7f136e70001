//go:build unix

package arch

import (
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

func hostOS() string {
	if runtime.GOOS == "linux" {
		if name := osRelease("/etc/os-release"); name != "" {
			return name
		}
	}
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return runtime.GOOS
	}
	sys := strings.ToLower(unix.ByteSliceToString(u.Sysname[:]))
	release := unix.ByteSliceToString(u.Release[:])
	if major, _, ok := strings.Cut(release, "."); ok {
		release = major
	}
	if sys == "darwin" {
		sys = "macos"
	}
	return sys + release
}
