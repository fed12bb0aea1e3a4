package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func useTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("ProgramData", dir)
	return dir
}

func TestLoadOrCreateDefault_WritesFile(t *testing.T) {
	useTempDir(t)

	cfg, err := LoadOrCreateDefault()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
	if _, err := os.Stat(Path()); err != nil {
		t.Fatalf("config not written: %v", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	useTempDir(t)

	cfg := Default()
	cfg.AgentToken = "secret"
	cfg.Printer.AsyncMode = true
	cfg.Printer.Bitmaps = []BitmapConfig{{Number: 1, Station: "receipt", FileName: "logo.png", Width: 384}}
	cfg.Display.Enabled = true
	cfg.Display.Units[0].CharacterSets = []int{997, 998}
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestLoad_Fallbacks(t *testing.T) {
	useTempDir(t)

	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		t.Fatal(err)
	}
	raw := `{"heartbeat_seconds": -1, "printer": {"driver": "pdf", "name": ""}, "display": {"units": []}}`
	if err := os.WriteFile(Path(), []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HeartbeatSeconds != 30 {
		t.Errorf("heartbeat = %d", cfg.HeartbeatSeconds)
	}
	if cfg.Printer.Name != "POSPrinter" {
		t.Errorf("printer name = %q", cfg.Printer.Name)
	}
	if cfg.Printer.JournalPath != filepath.Join(Dir(), "journal.pdf") {
		t.Errorf("journal path = %q", cfg.Printer.JournalPath)
	}
	if len(cfg.Display.Units) != 1 || cfg.Display.Units[0].Rows != 4 {
		t.Errorf("display units = %+v", cfg.Display.Units)
	}
}
