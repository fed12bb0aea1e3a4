//go:build windows

package autostart

import (
	"errors"

	"golang.org/x/sys/windows/registry"
)

// Windows starts the programs listed under the user's Run key at logon.
const runKeyPath = `Software\Microsoft\Windows\CurrentVersion\Run`

// withRunKey opens the Run key with access and passes it to fn. A missing key
// is created only when create is set; otherwise fn is skipped.
func withRunKey(access uint32, create bool, fn func(registry.Key) error) error {
	var (
		k   registry.Key
		err error
	)
	if create {
		k, _, err = registry.CreateKey(registry.CURRENT_USER, runKeyPath, access)
	} else {
		k, err = registry.OpenKey(registry.CURRENT_USER, runKeyPath, access)
	}
	if errors.Is(err, registry.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		_ = k.Close()
	}()
	return fn(k)
}

func registered(appName string) (string, error) {
	var command string
	err := withRunKey(registry.QUERY_VALUE, false, func(k registry.Key) error {
		v, _, err := k.GetStringValue(appName)
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		command = v
		return err
	})
	return command, err
}

func Enable(appName string, executablePath string, args ...string) error {
	return withRunKey(registry.SET_VALUE, true, func(k registry.Key) error {
		return k.SetStringValue(appName, CommandLine(executablePath, args...))
	})
}

func Disable(appName string) error {
	return withRunKey(registry.SET_VALUE, false, func(k registry.Key) error {
		if err := k.DeleteValue(appName); !errors.Is(err, registry.ErrNotExist) {
			return err
		}
		return nil
	})
}
