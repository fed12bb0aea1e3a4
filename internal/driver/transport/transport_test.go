package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpen_FileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.bin")
	for _, chunk := range []string{"ab", "cd"} {
		conn, err := Open(Config{Transport: "file", Path: path})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, err := conn.Write([]byte(chunk)); err != nil {
			t.Fatalf("write: %v", err)
		}
		_ = conn.Close()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}
	if string(data) != "abcd" {
		t.Fatalf("unexpected capture %q", data)
	}
}

func TestOpen_RawTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 3)
		_, _ = io.ReadFull(conn, buf)
		received <- buf
		_, _ = conn.Write([]byte{0x12})
	}()

	addr := ln.Addr().(*net.TCPAddr)
	conn, err := Open(Config{Transport: "tcp", Host: "127.0.0.1", Port: addr.Port})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	status, err := Query(conn, []byte{0x10, 0x04, 0x01}, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !bytes.Equal(status, []byte{0x12}) {
		t.Fatalf("unexpected status %v", status)
	}
	select {
	case got := <-received:
		if !bytes.Equal(got, []byte{0x10, 0x04, 0x01}) {
			t.Fatalf("unexpected request %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not receive request")
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []Config{
		{Transport: "carrier-pigeon"},
		{Transport: "raw_tcp"},
		{Transport: "serial"},
		{Transport: "file"},
	}
	for _, cfg := range tests {
		if _, err := Open(cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}

func TestQuery_FileHasNoAnswer(t *testing.T) {
	conn, err := Open(Config{Transport: "file", Path: filepath.Join(t.TempDir(), "x")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if _, err := Query(conn, []byte{0x10, 0x04, 0x01}, 1); !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected no response, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	if got := (Config{Host: "10.0.0.5"}).Describe(); got != "tcp 10.0.0.5:9100" {
		t.Fatalf("unexpected description %q", got)
	}
	if got := (Config{Transport: "COM", SerialPort: "COM3"}).Describe(); got != "serial COM3" {
		t.Fatalf("unexpected description %q", got)
	}
}
