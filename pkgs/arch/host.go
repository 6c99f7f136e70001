package arch

import (
	"bufio"
	"os"
	"runtime"
	"strings"
	"sync"
)

var targets = map[string]string{
	"amd64":   "x86_64",
	"386":     "x86",
	"arm64":   "aarch64",
	"ppc64le": "ppc64le",
	"ppc64":   "ppc64",
	"riscv64": "riscv64",
	"s390x":   "s390x",
}

// Host returns the architecture of the running machine. The result is
// computed once.
var Host = sync.OnceValue(func() Arch {
	target, ok := targets[runtime.GOARCH]
	if !ok {
		target = runtime.GOARCH
	}
	return Arch{
		Platform: runtime.GOOS,
		OS:       hostOS(),
		Target:   target,
	}
})

// osRelease derives an os name such as "ubuntu22.04" from an os-release file.
func osRelease(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var id, ver string
	s := bufio.NewScanner(f)
	for s.Scan() {
		k, v, ok := strings.Cut(s.Text(), "=")
		if !ok {
			continue
		}
		v = strings.Trim(v, `"'`)
		switch k {
		case "ID":
			id = v
		case "VERSION_ID":
			ver = v
		}
	}
	return id + ver
}
