package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/NowakAdmin/BizantiPOS/internal/agent"
	"github.com/NowakAdmin/BizantiPOS/internal/config"
	"github.com/NowakAdmin/BizantiPOS/internal/markupcheck"
	"github.com/NowakAdmin/BizantiPOS/internal/tray"
	"github.com/NowakAdmin/BizantiPOS/internal/validate"
	"github.com/NowakAdmin/BizantiPOS/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "configure":
			runConfigure()
			return
		case "headless":
			runHeadless()
			return
		case "parse":
			os.Exit(markupcheck.Run(os.Args[2:], os.Stdin, os.Stdout, os.Stderr, configuredCaps))
		case "version":
			fmt.Printf("BizantiPOS %s\n", version.Version)
			return
		case "tray":
		}
	}

	runTray()
}

func runConfigure() {
	cfg, err := config.LoadOrCreateDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Błąd odczytu konfiguracji: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	serverURL := fs.String("server", cfg.ServerURL, "Base URL API Bizanti, np. https://bizanti.pl")
	wsURL := fs.String("ws", cfg.WebSocketURL, "URL WebSocket agenta, np. wss://bizanti.pl/agent/ws")
	agentID := fs.String("agent-id", cfg.AgentID, "ID konta agenta")
	token := fs.String("token", cfg.AgentToken, "Token API agenta")
	tenantID := fs.String("tenant-id", cfg.TenantID, "Opcjonalny tenant ID")
	deviceName := fs.String("name", cfg.DeviceName, "Nazwa stanowiska widoczna w Bizanti")
	printerDriver := fs.String("printer-driver", cfg.Printer.Driver, "Sterownik drukarki: escpos albo pdf")
	printerTransport := fs.String("printer-transport", cfg.Printer.Transport.Transport, "Połączenie drukarki: tcp, serial, file, console")
	printerHost := fs.String("printer-host", cfg.Printer.Transport.Host, "Adres IP drukarki")
	printerPort := fs.Int("printer-port", cfg.Printer.Transport.Port, "Port TCP drukarki")
	printerSerial := fs.String("printer-serial", cfg.Printer.Transport.SerialPort, "Port szeregowy drukarki, np. COM3")
	printerBaud := fs.Int("printer-baud", cfg.Printer.Transport.BaudRate, "Prędkość portu szeregowego drukarki")
	journalPath := fs.String("journal", cfg.Printer.JournalPath, "Plik PDF dziennika (sterownik pdf)")
	async := fs.Bool("async", cfg.Printer.AsyncMode, "Drukowanie asynchroniczne")
	displayEnabled := fs.Bool("display", cfg.Display.Enabled, "Włącz wyświetlacz zamówień")
	displayTransport := fs.String("display-transport", cfg.Display.Transport.Transport, "Połączenie wyświetlacza: tcp, serial, file, console")
	displaySerial := fs.String("display-serial", cfg.Display.Transport.SerialPort, "Port szeregowy wyświetlacza")

	_ = fs.Parse(os.Args[2:])

	cfg.ServerURL = *serverURL
	cfg.WebSocketURL = *wsURL
	cfg.AgentID = *agentID
	cfg.AgentToken = *token
	cfg.TenantID = *tenantID
	cfg.DeviceName = *deviceName
	cfg.Printer.Driver = *printerDriver
	cfg.Printer.Transport.Transport = *printerTransport
	cfg.Printer.Transport.Host = *printerHost
	cfg.Printer.Transport.Port = *printerPort
	cfg.Printer.Transport.SerialPort = *printerSerial
	cfg.Printer.Transport.BaudRate = *printerBaud
	cfg.Printer.JournalPath = *journalPath
	cfg.Printer.AsyncMode = *async
	cfg.Display.Enabled = *displayEnabled
	cfg.Display.Transport.Transport = *displayTransport
	cfg.Display.Transport.SerialPort = *displaySerial

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Błąd zapisu konfiguracji: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Konfiguracja zapisana: %s\n", config.Path())
}

func configuredCaps() (validate.Matrix, error) {
	cfg, err := config.LoadOrCreateDefault()
	if err != nil {
		return validate.Matrix{}, err
	}
	return cfg.Printer.Capabilities, nil
}

func runHeadless() {
	cfg, err := config.LoadOrCreateDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Błąd konfiguracji: %v\n", err)
		os.Exit(1)
	}

	logger, closeFn, err := buildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Błąd loggera: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	a, err := agent.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Błędna konfiguracja urządzeń: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		logger.Fatalf("Nie udało się wystartować agenta: %v", err)
	}

	<-ctx.Done()
	a.Stop()
}

func runTray() {
	cfg, err := config.LoadOrCreateDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Błąd konfiguracji: %v\n", err)
		os.Exit(1)
	}

	logger, closeFn, err := buildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Błąd loggera: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	a, err := agent.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Błędna konfiguracja urządzeń: %v", err)
	}
	t := tray.New(cfg, a, logger)
	t.Run()
}

func buildLogger() (*log.Logger, func(), error) {
	logPath := filepath.Join(config.LogDir(), "pos.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, nil, err
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}

	w := io.MultiWriter(os.Stdout, f)
	logger := log.New(w, "[bizanti-pos] ", log.LstdFlags|log.Lmicroseconds)

	return logger, func() {
		_ = f.Close()
	}, nil
}
