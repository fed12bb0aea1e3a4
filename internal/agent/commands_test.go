package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NowakAdmin/BizantiPOS/internal/config"
	"github.com/NowakAdmin/BizantiPOS/internal/display"
	"github.com/NowakAdmin/BizantiPOS/internal/driver/transport"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
	"github.com/NowakAdmin/BizantiPOS/internal/validate"
)

func newTestAgent(t *testing.T, async bool) (*Agent, string) {
	t.Helper()
	screen := filepath.Join(t.TempDir(), "rod.txt")

	cfg := config.Default()
	cfg.Printer.Driver = config.DriverPDF
	cfg.Printer.AsyncMode = async
	cfg.Printer.Capabilities = validate.Matrix{
		Journal:          validate.StationCaps{Present: true, LineChars: 40},
		Receipt:          config.ReceiptCaps(),
		ConcurrentJrnRec: true,
	}
	cfg.Display.Enabled = true
	cfg.Display.Transport = transport.Config{Transport: "file", Path: screen}
	cfg.Display.Units = []display.UnitCaps{{Rows: 2, Columns: 20, Transaction: true}}

	a, err := New(cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	a.openDevices(context.Background())
	t.Cleanup(a.closeDevices)
	return a, screen
}

func run(t *testing.T, a *Agent, command string, payload any) (map[string]any, error) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return a.executeCommand(context.Background(), command, raw)
}

func TestExecuteCommand_Print(t *testing.T) {
	a, _ := newTestAgent(t, false)

	result, err := run(t, a, "print", PrintPayload{Data: "\x1b|bCParagon\n"})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	if result["state"] != upos.StateIdle.String() {
		t.Fatalf("result = %v", result)
	}

	if _, err = run(t, a, "print_two", PrintTwoPayload{Stations: int(upos.StationJournalReceipt), Data1: "J\n", Data2: "R\n"}); err != nil {
		t.Fatalf("print_two: %v", err)
	}
	if _, err = run(t, a, "cut", CutPayload{Percentage: 90}); err != nil {
		t.Fatalf("cut: %v", err)
	}
}

func TestExecuteCommand_Transaction(t *testing.T) {
	a, _ := newTestAgent(t, false)

	steps := []struct {
		command string
		payload any
	}{
		{"transaction", TransactionPayload{Action: "begin"}},
		{"print", PrintPayload{Station: "rec", Data: "Linia 1\n"}},
		{"print", PrintPayload{Station: "rec", Data: "Linia 2\n"}},
		{"transaction", TransactionPayload{Action: "end"}},
	}
	for _, step := range steps {
		if _, err := run(t, a, step.command, step.payload); err != nil {
			t.Fatalf("%s: %v", step.command, err)
		}
	}

	if _, err := run(t, a, "transaction", TransactionPayload{Action: "later"}); err == nil {
		t.Fatalf("unknown action accepted")
	}
}

func TestExecuteCommand_Errors(t *testing.T) {
	a, _ := newTestAgent(t, false)

	_, err := run(t, a, "print", PrintPayload{Station: "drawer", Data: "x"})
	if err == nil || !strings.Contains(err.Error(), "kod 106") || !errors.Is(err, upos.ErrInvalid) {
		t.Fatalf("invalid station err = %v", err)
	}

	if _, err = run(t, a, "format_disk", nil); err == nil {
		t.Fatalf("unknown command accepted")
	}

	if _, err = run(t, a, "retry_output", DevicePayload{}); !errors.Is(err, upos.ErrIllegal) {
		t.Fatalf("retry without failure err = %v", err)
	}

	if _, err = run(t, a, "clear_output", DevicePayload{Device: "scale"}); err == nil {
		t.Fatalf("unknown device accepted")
	}
}

func TestExecuteCommand_Display(t *testing.T) {
	a, screen := newTestAgent(t, false)

	if _, err := run(t, a, "display_transaction", TransactionPayload{Units: 1, Action: "begin"}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := run(t, a, "clear_video", DisplayPayload{Units: 1}); err != nil {
		t.Fatalf("clear_video: %v", err)
	}
	if _, err := run(t, a, "display", DisplayPayload{Units: 1, Row: 1, Data: "Nr 7 gotowe"}); err != nil {
		t.Fatalf("display: %v", err)
	}
	if data, _ := os.ReadFile(screen); strings.Contains(string(data), "Nr 7") {
		t.Fatalf("transaction output shown before end")
	}
	if _, err := run(t, a, "display_transaction", TransactionPayload{Units: 1, Action: "end"}); err != nil {
		t.Fatalf("end: %v", err)
	}
	data, err := os.ReadFile(screen)
	if err != nil || !strings.Contains(string(data), "Nr 7 gotowe") {
		t.Fatalf("screen = %q (%v)", data, err)
	}

	if _, err = run(t, a, "display", DisplayPayload{Units: 2, Data: "x"}); !errors.Is(err, upos.ErrInvalid) {
		t.Fatalf("missing unit err = %v", err)
	}
}

func TestForward_AsyncOutputComplete(t *testing.T) {
	a, _ := newTestAgent(t, true)

	result, err := run(t, a, "print", PrintPayload{Data: "async\n"})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	if _, ok := result["output_id"]; !ok {
		t.Fatalf("no output id in %v", result)
	}

	select {
	case event := <-a.events:
		if event.Type != "event" || event.Data["event"] != "output_complete" || event.Data["output_id"] != result["output_id"] {
			t.Fatalf("event = %+v", event)
		}
		if id, _ := event.Data["event_id"].(string); id == "" {
			t.Fatalf("event without id")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event forwarded")
	}
}

func TestEventMessage_Error(t *testing.T) {
	msg := eventMessage(upos.ErrorEvent{Device: "POSPrinter", OutputID: 3, Station: upos.StationReceipt, Code: 114, Extended: 203, Message: "receipt empty"})
	if msg.Data["event"] != "error" || msg.Data["station"] != "receipt" || msg.Data["extended"] != 203 {
		t.Fatalf("message = %+v", msg)
	}
	if _, ok := msg.Data["units"]; ok {
		t.Fatalf("units set for a printer error")
	}
}
