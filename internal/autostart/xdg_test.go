//go:build !windows

package autostart

import (
	"os"
	"strings"
	"testing"
)

func TestEnableDisable(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)

	if on, err := IsEnabled("BizantiPOS"); err != nil || on {
		t.Fatalf("enabled before Enable: %v %v", on, err)
	}
	if err := Enable("BizantiPOS", "/opt/bizanti-pos", "tray"); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if on, err := IsEnabled("BizantiPOS"); err != nil || !on {
		t.Fatalf("not enabled: %v %v", on, err)
	}

	path, err := entryPath("BizantiPOS")
	if err != nil || !strings.HasPrefix(path, dir) {
		t.Fatalf("entry path = %q (%v)", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), `Exec="/opt/bizanti-pos" tray`) {
		t.Fatalf("entry = %q (%v)", data, err)
	}

	if got, err := registered("BizantiPOS"); err != nil || got != CommandLine("/opt/bizanti-pos", "tray") {
		t.Fatalf("registered = %q (%v)", got, err)
	}

	if err := os.WriteFile(path, []byte("[Desktop Entry]\nExec=\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if on, err := IsEnabled("BizantiPOS"); err != nil || on {
		t.Fatalf("empty Exec counted as enabled: %v %v", on, err)
	}

	if err := Disable("BizantiPOS"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := Disable("BizantiPOS"); err != nil {
		t.Fatalf("second disable: %v", err)
	}
}
