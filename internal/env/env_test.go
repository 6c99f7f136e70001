package env

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWorkDir(t *testing.T) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		t.Skipf("os.UserCacheDir() returned error: %v", err)
	}
	workDir, err := WorkDir()
	if err != nil {
		t.Fatalf("WorkDir() returned error: %v", err)
	}
	if want := filepath.Join(userCacheDir, ".spk"); workDir != want {
		t.Errorf("WorkDir() = %q, want %q", workDir, want)
	}

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"InstallRoot", InstallRoot, filepath.Join(workDir, "opt")},
		{"ReposDir", ReposDir, filepath.Join(workDir, "repos")},
	}
	for _, tt := range tests {
		got, err := tt.fn()
		if err != nil {
			t.Fatalf("%s() returned error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestConfigFile(t *testing.T) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		t.Skipf("os.UserConfigDir() returned error: %v", err)
	}
	got, err := ConfigFile()
	if err != nil {
		t.Fatalf("ConfigFile() returned error: %v", err)
	}
	if want := filepath.Join(userConfigDir, "spk", "config.yaml"); got != want {
		t.Errorf("ConfigFile() = %q, want %q", got, want)
	}
}
