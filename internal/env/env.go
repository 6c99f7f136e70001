package env

import (
	"os"
	"path/filepath"
)

// WorkDir returns the directory holding spk state, <UserCacheDir>/.spk.
func WorkDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".spk"), nil
}

// InstallRoot returns the default root of the install tree.
func InstallRoot() (string, error) {
	return subDir("opt")
}

// ReposDir returns the directory holding package repositories.
func ReposDir() (string, error) {
	return subDir("repos")
}

// ConfigFile returns the default configuration file,
// <UserConfigDir>/spk/config.yaml. The file may not exist.
func ConfigFile() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "spk", "config.yaml"), nil
}

func subDir(name string) (string, error) {
	dir, err := WorkDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
