//go:build !windows

package autostart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// On Linux desktops autostart is an XDG .desktop entry.
func entryPath(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "autostart", appName+".desktop"), nil
}

// registered returns the Exec line of the entry, or "" when there is none.
func registered(appName string) (string, error) {
	path, err := entryPath(appName)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(string(data), "\n") {
		if command, ok := strings.CutPrefix(strings.TrimSpace(line), "Exec="); ok {
			return command, nil
		}
	}
	return "", nil
}

func Enable(appName string, executablePath string, args ...string) error {
	path, err := entryPath(appName)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	entry := fmt.Sprintf("[Desktop Entry]\nType=Application\nName=%s\nExec=%s\nX-GNOME-Autostart-enabled=true\n",
		appName, CommandLine(executablePath, args...))

	return os.WriteFile(path, []byte(entry), 0o644)
}

func Disable(appName string) error {
	path, err := entryPath(appName)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}
