package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"github.com/NowakAdmin/BizantiPOS/internal/display"
	"github.com/NowakAdmin/BizantiPOS/internal/driver/transport"
	"github.com/NowakAdmin/BizantiPOS/internal/escseq"
	"github.com/NowakAdmin/BizantiPOS/internal/validate"
)

const (
	DriverESCPOS = "escpos"
	DriverPDF    = "pdf"
)

type BitmapConfig struct {
	Number    int    `json:"number"`
	Station   string `json:"station"`
	FileName  string `json:"file_name"`
	Width     int    `json:"width"`
	Alignment int    `json:"alignment"`
}

type PrinterConfig struct {
	Enabled      bool             `json:"enabled"`
	Name         string           `json:"name"`
	Driver       string           `json:"driver"`
	Transport    transport.Config `json:"transport"`
	Capabilities validate.Matrix  `json:"capabilities"`
	CheckStatus  bool             `json:"check_status"`
	AsyncMode    bool             `json:"async_mode"`
	CharacterSet int              `json:"character_set,omitempty"`
	JournalPath  string           `json:"journal_path,omitempty"`
	TopLogo      string           `json:"top_logo,omitempty"`
	BottomLogo   string           `json:"bottom_logo,omitempty"`
	Bitmaps      []BitmapConfig   `json:"bitmaps,omitempty"`
}

type DisplayConfig struct {
	Enabled   bool               `json:"enabled"`
	Name      string             `json:"name"`
	Transport transport.Config   `json:"transport"`
	Units     []display.UnitCaps `json:"units"`
	AsyncMode bool               `json:"async_mode"`
}

type Config struct {
	ServerURL        string        `json:"server_url"`
	WebSocketURL     string        `json:"websocket_url"`
	AgentID          string        `json:"agent_id"`
	AgentToken       string        `json:"agent_token"`
	TenantID         string        `json:"tenant_id,omitempty"`
	DeviceName       string        `json:"device_name"`
	HeartbeatSeconds int           `json:"heartbeat_seconds"`
	Printer          PrinterConfig `json:"printer"`
	Display          DisplayConfig `json:"display"`
}

// ReceiptCaps is a typical 80 mm thermal receipt station.
func ReceiptCaps() validate.StationCaps {
	return validate.StationCaps{
		Present:              true,
		Bold:                 true,
		Underline:            true,
		DoubleWide:           true,
		DoubleHigh:           true,
		DoubleHighDoubleWide: true,
		Reverse:              true,
		Barcode:              true,
		Bitmap:               true,
		PaperCut:             true,
		Left90:               true,
		Right90:              true,
		Rotate180:            true,
		PageMode:             true,
		Transaction:          true,
		Color:                escseq.ColorPrimary,
		RuledLine:            escseq.RuledHorizontal,
		LineChars:            48,
		LineWidth:            576,
	}
}

func defaultUnit() display.UnitCaps {
	return display.UnitCaps{Rows: 4, Columns: 20, Cursor: true, Clocks: 1, Transaction: true}
}

func Default() *Config {
	return &Config{
		ServerURL:        "https://bizanti.pl",
		WebSocketURL:     "wss://bizanti.pl/agent/ws",
		AgentID:          "",
		AgentToken:       "",
		TenantID:         "",
		DeviceName:       "Kasa",
		HeartbeatSeconds: 30,
		Printer: PrinterConfig{
			Enabled: true,
			Name:    "POSPrinter",
			Driver:  DriverESCPOS,
			Transport: transport.Config{
				Transport: "tcp",
				Host:      "192.168.1.100",
				Port:      9100,
			},
			Capabilities: validate.Matrix{Receipt: ReceiptCaps()},
			CheckStatus:  true,
		},
		Display: DisplayConfig{
			Name:      "RemoteOrderDisplay",
			Transport: transport.Config{Transport: "console"},
			Units:     []display.UnitCaps{defaultUnit()},
		},
	}
}

func LoadOrCreateDefault() (*Config, error) {
	if _, err := os.Stat(Path()); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if errSave := Save(cfg); errSave != nil {
			return nil, errSave
		}
		return cfg, nil
	}

	return Load()
}

func Load() (*Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err = json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.HeartbeatSeconds <= 0 {
		cfg.HeartbeatSeconds = 30
	}

	if cfg.Printer.Driver == "" {
		cfg.Printer.Driver = DriverESCPOS
	}

	if cfg.Printer.Name == "" {
		cfg.Printer.Name = "POSPrinter"
	}

	if cfg.Printer.Driver == DriverPDF && cfg.Printer.JournalPath == "" {
		cfg.Printer.JournalPath = filepath.Join(Dir(), "journal.pdf")
	}

	if cfg.Display.Name == "" {
		cfg.Display.Name = "RemoteOrderDisplay"
	}

	if len(cfg.Display.Units) == 0 {
		cfg.Display.Units = []display.UnitCaps{defaultUnit()}
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(Path(), data, 0o600)
}

func Dir() string {
	programData := os.Getenv("ProgramData")
	if runtime.GOOS == "windows" {
		if programData == "" {
			programData = "C:\\ProgramData"
		}
		return filepath.Join(programData, "BizantiPOS")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}

	return filepath.Join(configDir, "bizanti-pos")
}

func LogDir() string {
	return filepath.Join(Dir(), "logs")
}

func Path() string {
	return filepath.Join(Dir(), "config.json")
}
