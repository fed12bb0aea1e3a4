package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/NowakAdmin/BizantiPOS/internal/config"
	"github.com/NowakAdmin/BizantiPOS/internal/display"
	"github.com/NowakAdmin/BizantiPOS/internal/driver/escpos"
	"github.com/NowakAdmin/BizantiPOS/internal/driver/pdfjournal"
	"github.com/NowakAdmin/BizantiPOS/internal/driver/vtdisplay"
	"github.com/NowakAdmin/BizantiPOS/internal/printer"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

const eventBuffer = 64

func (a *Agent) buildDevices() error {
	if pc := a.cfg.Printer; pc.Enabled {
		var drv printer.Driver
		switch pc.Driver {
		case config.DriverESCPOS, "":
			drv = escpos.New(escpos.Options{
				Transport:   pc.Transport,
				Caps:        pc.Capabilities,
				CheckStatus: pc.CheckStatus,
			}, a.logger)
		case config.DriverPDF:
			drv = pdfjournal.New(pdfjournal.Options{Path: pc.JournalPath, Caps: pc.Capabilities}, a.logger)
		default:
			return fmt.Errorf("nieznany sterownik drukarki: %s", pc.Driver)
		}
		a.printer = printer.New(pc.Name, drv, a.logger, a.Forward)
	}

	if dc := a.cfg.Display; dc.Enabled {
		drv := vtdisplay.New(vtdisplay.Options{Transport: dc.Transport, Units: dc.Units}, a.logger)
		a.display = display.New(dc.Name, drv, a.logger, a.Forward)
	}

	return nil
}

// openDevices opens, claims and enables the configured devices. A device that
// cannot be claimed is logged and left closed; the agent keeps running.
func (a *Agent) openDevices(ctx context.Context) {
	claimCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if a.printer != nil {
		if err := a.openPrinter(claimCtx); err != nil {
			a.logger.Printf("Drukarka %s niedostępna: %v", a.printer.Name(), err)
			_ = a.printer.Close()
		}
	}

	if a.display != nil {
		if err := a.openDisplay(claimCtx); err != nil {
			a.logger.Printf("Wyświetlacz %s niedostępny: %v", a.display.Name(), err)
			_ = a.display.Close()
		}
	}
}

func (a *Agent) openPrinter(ctx context.Context) error {
	pc := a.cfg.Printer
	p := a.printer
	if err := p.Open(); err != nil {
		return err
	}
	if err := p.Claim(ctx); err != nil {
		return err
	}
	if err := p.SetDeviceEnabled(true); err != nil {
		return err
	}

	p.SetAsyncMode(pc.AsyncMode)
	if pc.CharacterSet > 0 {
		p.SetCharacterSet(pc.CharacterSet)
		p.SetMapCharacterSet(true)
	}
	if err := p.SetLogo(printer.LogoTop, pc.TopLogo); err != nil {
		return err
	}
	if err := p.SetLogo(printer.LogoBottom, pc.BottomLogo); err != nil {
		return err
	}

	for _, bm := range pc.Bitmaps {
		station, err := upos.ParseStation(bm.Station)
		if err != nil {
			return err
		}
		if err = p.SetBitmap(ctx, bm.Number, station, bm.FileName, bm.Width, bm.Alignment); err != nil {
			a.logger.Printf("Nie można załadować bitmapy %d (%s): %v", bm.Number, bm.FileName, err)
		}
	}

	return nil
}

func (a *Agent) openDisplay(ctx context.Context) error {
	d := a.display
	if err := d.Open(); err != nil {
		return err
	}
	if err := d.Claim(ctx); err != nil {
		return err
	}
	if err := d.SetDeviceEnabled(true); err != nil {
		return err
	}
	d.SetAsyncMode(a.cfg.Display.AsyncMode)
	return nil
}

func (a *Agent) closeDevices() {
	if a.printer != nil {
		if err := a.printer.Close(); err != nil {
			a.logger.Printf("Błąd zamykania drukarki: %v", err)
		}
	}

	if a.display != nil {
		if err := a.display.Close(); err != nil {
			a.logger.Printf("Błąd zamykania wyświetlacza: %v", err)
		}
	}
}

func (a *Agent) Printer() *printer.Printer {
	return a.printer
}

func (a *Agent) Display() *display.Display {
	return a.display
}

// Forward queues a device event for delivery to the server. It runs on the
// device worker goroutine and never blocks.
func (a *Agent) Forward(ev upos.Event) {
	message := eventMessage(ev)
	message.AgentID = a.cfg.AgentID

	select {
	case a.events <- message:
	default:
		a.logger.Printf("Kolejka zdarzeń pełna, pomijam %v", message.Data["event"])
	}
}

func eventMessage(ev upos.Event) OutgoingMessage {
	data := map[string]any{"event_id": uuid.NewString()}

	switch e := ev.(type) {
	case upos.OutputCompleteEvent:
		data["event"] = "output_complete"
		data["device"] = e.Device
		data["output_id"] = e.OutputID
	case upos.ErrorEvent:
		data["event"] = "error"
		data["device"] = e.Device
		data["output_id"] = e.OutputID
		data["code"] = e.Code
		data["extended"] = e.Extended
		data["message"] = e.Message
		if e.Station != 0 {
			data["station"] = e.Station.String()
		}
		if e.Units != 0 {
			data["units"] = e.Units
		}
	case upos.StatusUpdateEvent:
		data["event"] = "status_update"
		data["device"] = e.Device
		data["status"] = e.Status
		if e.Units != 0 {
			data["units"] = e.Units
		}
	case upos.PropertyChangeEvent:
		data["event"] = "property_change"
		data["device"] = e.Device
		data["unit"] = e.Unit
		data["property"] = e.Name
		data["value"] = e.New
	}

	return OutgoingMessage{
		Type:      "event",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
}
