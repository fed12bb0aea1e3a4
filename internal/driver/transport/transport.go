// Package transport opens the byte channel to a printer or display.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Config selects and parameterises a transport.
type Config struct {
	Transport     string `json:"transport"`
	Host          string `json:"host,omitempty"`
	Port          int    `json:"port,omitempty"`
	SerialPort    string `json:"serial_port,omitempty"`
	BaudRate      int    `json:"baud_rate,omitempty"`
	Path          string `json:"path,omitempty"`
	WriteTimeoutS int    `json:"write_timeout_s,omitempty"`
	ReadTimeoutMs int    `json:"read_timeout_ms,omitempty"`
}

// Describe names the endpoint for logs and the tray menu.
func (c Config) Describe() string {
	switch normalize(c.Transport) {
	case "serial":
		return "serial " + c.SerialPort
	case "file":
		return "file " + c.Path
	case "console":
		return "console"
	}
	return fmt.Sprintf("tcp %s:%d", c.Host, c.port())
}

func (c Config) port() int {
	if c.Port <= 0 {
		return 9100
	}
	return c.Port
}

func (c Config) writeTimeout() time.Duration {
	if c.WriteTimeoutS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.WriteTimeoutS) * time.Second
}

func (c Config) readTimeout() time.Duration {
	if c.ReadTimeoutMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

func normalize(transport string) string {
	switch strings.ToLower(strings.TrimSpace(transport)) {
	case "", "raw_tcp", "tcp", "network", "jetdirect":
		return "raw_tcp"
	case "serial", "rs232", "com":
		return "serial"
	case "file", "device", "lp":
		return "file"
	case "console", "stdout":
		return "console"
	}
	return strings.ToLower(strings.TrimSpace(transport))
}

// Open connects to the device described by cfg.
func Open(cfg Config) (io.ReadWriteCloser, error) {
	switch transport := normalize(cfg.Transport); transport {
	case "raw_tcp":
		return openRawTCP(cfg)
	case "serial":
		return openSerial(cfg)
	case "file":
		return openFile(cfg)
	case "console":
		return consoleConn{}, nil
	default:
		return nil, fmt.Errorf("nieobsługiwany transport: %s", transport)
	}
}

type tcpConn struct {
	net.Conn
	writeTimeout time.Duration
	readTimeout  time.Duration
}

func (c *tcpConn) Write(p []byte) (int, error) {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.Conn.Write(p)
}

func (c *tcpConn) Read(p []byte) (int, error) {
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	return c.Conn.Read(p)
}

func openRawTCP(cfg Config) (io.ReadWriteCloser, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errors.New("brak host w konfiguracji transportu")
	}

	addr := net.JoinHostPort(host, fmt.Sprint(cfg.port()))
	conn, err := net.DialTimeout("tcp", addr, cfg.writeTimeout())
	if err != nil {
		return nil, err
	}
	return &tcpConn{Conn: conn, writeTimeout: cfg.writeTimeout(), readTimeout: cfg.readTimeout()}, nil
}

func openSerial(cfg Config) (io.ReadWriteCloser, error) {
	if strings.TrimSpace(cfg.SerialPort) == "" {
		return nil, errors.New("brak serial_port w konfiguracji")
	}

	baud := cfg.BaudRate
	if baud <= 0 {
		baud = 9600
	}

	port, err := serial.Open(cfg.SerialPort, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(cfg.readTimeout()); err != nil {
		_ = port.Close()
		return nil, err
	}
	return port, nil
}

// fileConn writes to a device node or capture file. Reads report io.EOF since
// a file cannot answer status requests.
type fileConn struct {
	*os.File
}

func (fileConn) Read([]byte) (int, error) {
	return 0, io.EOF
}

func openFile(cfg Config) (io.ReadWriteCloser, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("brak path w konfiguracji transportu")
	}
	f, err := os.OpenFile(cfg.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return fileConn{File: f}, nil
}

type consoleConn struct{}

func (consoleConn) Read([]byte) (int, error)    { return 0, io.EOF }
func (consoleConn) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (consoleConn) Close() error                { return nil }

// Query writes request and returns the first bytes the device answers with,
// at most limit of them.
func Query(rw io.ReadWriter, request []byte, limit int) ([]byte, error) {
	if len(request) > 0 {
		if _, err := rw.Write(request); err != nil {
			return nil, err
		}
	}

	buffer := make([]byte, limit)
	n, err := rw.Read(buffer)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, ErrNoResponse
		}
		return nil, err
	}
	return buffer[:n], nil
}

// ErrNoResponse is returned by Query when the device stays silent.
var ErrNoResponse = errors.New("pusta odpowiedź z urządzenia")
