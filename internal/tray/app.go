package tray

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/getlantern/systray"

	"github.com/NowakAdmin/BizantiPOS/internal/agent"
	"github.com/NowakAdmin/BizantiPOS/internal/autostart"
	"github.com/NowakAdmin/BizantiPOS/internal/config"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
	"github.com/NowakAdmin/BizantiPOS/internal/version"
)

const appName = "BizantiPOS"

type App struct {
	cfg    *config.Config
	agent  *agent.Agent
	logger *log.Logger
}

func New(cfg *config.Config, agentInstance *agent.Agent, logger *log.Logger) *App {
	return &App{
		cfg:    cfg,
		agent:  agentInstance,
		logger: logger,
	}
}

func (a *App) Run() {
	systray.Run(a.onReady, a.onExit)
}

// deviceTitle is the menu line for one device.
func deviceTitle(label, name string, state upos.State, queued int, errText string) string {
	title := fmt.Sprintf("%s %s: %s", label, name, state)
	if queued > 0 {
		title += fmt.Sprintf(" (%d w kolejce)", queued)
	}
	if state == upos.StateError && errText != "" {
		title += " - " + errText
	}
	return title
}

func (a *App) printerTitle() string {
	p := a.agent.Printer()
	if p == nil {
		return "Drukarka: brak"
	}
	props := p.Properties()
	return deviceTitle("Drukarka", props.Name, props.State, props.QueueLength, props.ErrorString)
}

func (a *App) displayTitle() string {
	d := a.agent.Display()
	if d == nil {
		return "Wyświetlacz: brak"
	}
	props := d.Properties()
	return deviceTitle("Wyświetlacz", props.Name, props.State, props.QueueLength, props.ErrorString)
}

func (a *App) onReady() {
	iconData := generateIcon(16)
	systray.SetIcon(iconData)

	systray.SetTitle("Bizanti POS")
	systray.SetTooltip("Bizanti POS - drukarka i wyświetlacz zamówień")

	status := systray.AddMenuItem("Status: offline", "Status połączenia")
	status.Disable()

	printerItem := systray.AddMenuItem(a.printerTitle(), "Stan drukarki")
	printerItem.Disable()
	displayItem := systray.AddMenuItem(a.displayTitle(), "Stan wyświetlacza")
	displayItem.Disable()

	retryItem := systray.AddMenuItem("Ponów wydruk", "Ponów wydruk zakończony błędem")
	clearItem := systray.AddMenuItem("Wyczyść kolejkę", "Usuń oczekujące wydruki i komunikaty")

	systray.AddSeparator()
	start := systray.AddMenuItem("Połącz", "Połącz z Bizanti")
	stop := systray.AddMenuItem("Rozłącz", "Rozłącz agenta")
	stop.Disable()

	autostartItem := systray.AddMenuItemCheckbox("Autostart", "Uruchamiaj przy logowaniu", false)
	enabled, err := autostart.IsEnabled(appName)
	if err == nil && enabled {
		autostartItem.Check()
	}

	versionItem := systray.AddMenuItem("Wersja: "+version.Version, "Wersja BizantiPOS")
	versionItem.Disable()

	systray.AddSeparator()
	quit := systray.AddMenuItem("Zamknij", "Zamknij BizantiPOS")

	ctx := context.Background()
	refresh := time.NewTicker(2 * time.Second)

	go func() {
		defer refresh.Stop()

		for {
			select {
			case <-refresh.C:
				printerItem.SetTitle(a.printerTitle())
				displayItem.SetTitle(a.displayTitle())

			case <-retryItem.ClickedCh:
				if p := a.agent.Printer(); p != nil {
					if retryErr := p.RetryOutput(); retryErr != nil {
						a.logger.Printf("Nie można ponowić wydruku: %v", retryErr)
					}
				}
				if d := a.agent.Display(); d != nil {
					if retryErr := d.RetryOutput(); retryErr != nil {
						a.logger.Printf("Nie można ponowić wyświetlania: %v", retryErr)
					}
				}

			case <-clearItem.ClickedCh:
				if p := a.agent.Printer(); p != nil {
					if clearErr := p.ClearOutput(); clearErr != nil {
						a.logger.Printf("Nie można wyczyścić kolejki drukarki: %v", clearErr)
					}
				}
				if d := a.agent.Display(); d != nil {
					if clearErr := d.ClearOutput(); clearErr != nil {
						a.logger.Printf("Nie można wyczyścić kolejki wyświetlacza: %v", clearErr)
					}
				}

			case <-start.ClickedCh:
				if a.agent.IsRunning() {
					continue
				}

				if startErr := a.agent.Start(ctx); startErr != nil {
					a.logger.Printf("Błąd startu agenta: %v", startErr)
					continue
				}

				status.SetTitle("Status: online")
				start.Disable()
				stop.Enable()

			case <-stop.ClickedCh:
				a.agent.Stop()
				status.SetTitle("Status: offline")
				start.Enable()
				stop.Disable()

			case <-autostartItem.ClickedCh:
				if autostartItem.Checked() {
					if disableErr := autostart.Disable(appName); disableErr != nil {
						a.logger.Printf("Błąd wyłączenia autostartu: %v", disableErr)
						continue
					}
					autostartItem.Uncheck()
					continue
				}

				executablePath, pathErr := os.Executable()
				if pathErr != nil {
					a.logger.Printf("Błąd ścieżki EXE: %v", pathErr)
					continue
				}

				if enableErr := autostart.Enable(appName, executablePath, "tray"); enableErr != nil {
					a.logger.Printf("Błąd autostartu: %v", enableErr)
					continue
				}

				autostartItem.Check()

			case <-quit.ClickedCh:
				a.agent.Stop()
				systray.Quit()
				return
			}
		}
	}()

	if startErr := a.agent.Start(ctx); startErr != nil {
		a.logger.Printf("Błąd startu agenta: %v", startErr)
		return
	}
	status.SetTitle("Status: online")
	start.Disable()
	stop.Enable()
}

func (a *App) onExit() {
	a.agent.Stop()
}

// generateIcon tworzy ikonę PNG z zarysem paragonu
func generateIcon(size int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	white := color.RGBA{255, 255, 255, 255}
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			img.SetRGBA(x, y, white)
		}
	}

	teal := color.RGBA{0, 128, 128, 255}
	margin := size / 5

	// Krawędzie paragonu
	for y := 0; y < size; y++ {
		img.SetRGBA(margin, y, teal)
		img.SetRGBA(size-margin-1, y, teal)
	}
	for x := margin; x < size-margin; x++ {
		img.SetRGBA(x, 0, teal)
		if x%2 == 0 {
			img.SetRGBA(x, size-1, teal)
		}
	}

	// Linie tekstu
	for y := 3; y < size-3; y += 3 {
		for x := margin + 2; x < size-margin-2; x++ {
			img.SetRGBA(x, y, teal)
		}
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
