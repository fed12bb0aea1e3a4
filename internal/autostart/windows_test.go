//go:build windows

package autostart

import (
	"fmt"
	"os"
	"testing"
)

func TestRunKeyEnableDisable(t *testing.T) {
	appName := fmt.Sprintf("BizantiPOSTest%d", os.Getpid())
	t.Cleanup(func() { _ = Disable(appName) })

	if on, err := IsEnabled(appName); err != nil || on {
		t.Fatalf("enabled before Enable: %v %v", on, err)
	}
	if err := Enable(appName, `C:\Program Files\BizantiPOS\bizanti-pos.exe`, "tray"); err != nil {
		t.Fatalf("enable: %v", err)
	}
	got, err := registered(appName)
	if err != nil || got != `"C:\Program Files\BizantiPOS\bizanti-pos.exe" tray` {
		t.Fatalf("registered = %q (%v)", got, err)
	}

	if err := Disable(appName); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := Disable(appName); err != nil {
		t.Fatalf("second disable: %v", err)
	}
	if on, err := IsEnabled(appName); err != nil || on {
		t.Fatalf("still enabled: %v %v", on, err)
	}
}
