package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/NowakAdmin/BizantiPOS/internal/display"
	"github.com/NowakAdmin/BizantiPOS/internal/printer"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

type PrintPayload struct {
	Station   string `json:"station"`
	Data      string `json:"data"`
	Immediate bool   `json:"immediate"`
}

type PrintTwoPayload struct {
	Stations int    `json:"stations"`
	Data1    string `json:"data1"`
	Data2    string `json:"data2"`
}

type CutPayload struct {
	Percentage int `json:"percentage"`
}

type TransactionPayload struct {
	Station string `json:"station"`
	Units   uint32 `json:"units"`
	Action  string `json:"action"`
}

type DevicePayload struct {
	Device string `json:"device"`
}

type DisplayPayload struct {
	Units     uint32 `json:"units"`
	Row       int    `json:"row"`
	Column    int    `json:"column"`
	Attribute int    `json:"attribute"`
	Data      string `json:"data"`
}

func decode(rawPayload json.RawMessage, v any) error {
	if len(rawPayload) == 0 {
		return nil
	}
	if err := json.Unmarshal(rawPayload, v); err != nil {
		return fmt.Errorf("niepoprawny payload: %w", err)
	}
	return nil
}

func transactionBegin(action string) (bool, error) {
	switch strings.ToLower(action) {
	case "begin":
		return true, nil
	case "end":
		return false, nil
	}
	return false, fmt.Errorf("nieznana akcja transakcji: %q", action)
}

func (a *Agent) needPrinter() (*printer.Printer, error) {
	if a.printer == nil {
		return nil, fmt.Errorf("drukarka nie jest skonfigurowana")
	}
	return a.printer, nil
}

func (a *Agent) needDisplay() (*display.Display, error) {
	if a.display == nil {
		return nil, fmt.Errorf("wyświetlacz nie jest skonfigurowany")
	}
	return a.display, nil
}

// printerResult reports the output id of an asynchronous request.
func printerResult(p *printer.Printer) map[string]any {
	props := p.Properties()
	result := map[string]any{"printer": props.Name, "state": props.State.String()}
	if props.AsyncMode {
		result["output_id"] = props.OutputID
	}
	return result
}

func displayResult(d *display.Display) map[string]any {
	props := d.Properties()
	result := map[string]any{"display": props.Name, "state": props.State.String()}
	if props.AsyncMode {
		result["output_id"] = props.OutputID
	}
	return result
}

// commandError appends the UPOS result code to device errors.
func commandError(err error) error {
	var e *upos.Error
	if errors.As(err, &e) {
		return fmt.Errorf("%w (kod %d)", err, upos.Code(err))
	}
	return err
}

func (a *Agent) executeCommand(ctx context.Context, command string, rawPayload json.RawMessage) (map[string]any, error) {
	result, err := a.dispatchCommand(ctx, command, rawPayload)
	if err != nil {
		return nil, commandError(err)
	}
	return result, nil
}

func (a *Agent) dispatchCommand(ctx context.Context, command string, rawPayload json.RawMessage) (map[string]any, error) {
	switch command {
	case "ping":
		return map[string]any{"pong": true}, nil

	case "status":
		result := map[string]any{}
		if a.printer != nil {
			props := a.printer.Properties()
			result["printer"] = map[string]any{
				"name":         props.Name,
				"state":        props.State.String(),
				"queue_length": props.QueueLength,
				"error_code":   props.ErrorCode,
				"error":        props.ErrorString,
			}
		}
		if a.display != nil {
			props := a.display.Properties()
			result["display"] = map[string]any{
				"name":         props.Name,
				"state":        props.State.String(),
				"units":        props.DeviceUnits,
				"queue_length": props.QueueLength,
				"error_units":  props.ErrorUnits,
			}
		}
		return result, nil

	case "print":
		var payload PrintPayload
		if err := decode(rawPayload, &payload); err != nil {
			return nil, err
		}
		p, err := a.needPrinter()
		if err != nil {
			return nil, err
		}
		if payload.Station == "" {
			payload.Station = "receipt"
		}
		station, err := upos.ParseStation(payload.Station)
		if err != nil {
			return nil, err
		}
		if payload.Immediate {
			err = p.PrintImmediate(ctx, station, payload.Data)
		} else {
			err = p.PrintNormal(ctx, station, payload.Data)
		}
		if err != nil {
			return nil, err
		}
		return printerResult(p), nil

	case "print_two":
		var payload PrintTwoPayload
		if err := decode(rawPayload, &payload); err != nil {
			return nil, err
		}
		p, err := a.needPrinter()
		if err != nil {
			return nil, err
		}
		if err = p.PrintTwoNormal(ctx, upos.Station(payload.Stations), payload.Data1, payload.Data2); err != nil {
			return nil, err
		}
		return printerResult(p), nil

	case "cut":
		payload := CutPayload{Percentage: 100}
		if err := decode(rawPayload, &payload); err != nil {
			return nil, err
		}
		p, err := a.needPrinter()
		if err != nil {
			return nil, err
		}
		if err = p.CutPaper(ctx, payload.Percentage); err != nil {
			return nil, err
		}
		return printerResult(p), nil

	case "transaction":
		var payload TransactionPayload
		if err := decode(rawPayload, &payload); err != nil {
			return nil, err
		}
		p, err := a.needPrinter()
		if err != nil {
			return nil, err
		}
		begin, err := transactionBegin(payload.Action)
		if err != nil {
			return nil, err
		}
		control := printer.TransactionEnd
		if begin {
			control = printer.TransactionBegin
		}
		if payload.Station == "" {
			payload.Station = "receipt"
		}
		station, err := upos.ParseStation(payload.Station)
		if err != nil {
			return nil, err
		}
		if err = p.TransactionPrint(ctx, station, control); err != nil {
			return nil, err
		}
		return printerResult(p), nil

	case "clear_output", "retry_output":
		var payload DevicePayload
		if err := decode(rawPayload, &payload); err != nil {
			return nil, err
		}
		return a.controlOutput(command, payload.Device)

	case "display":
		var payload DisplayPayload
		if err := decode(rawPayload, &payload); err != nil {
			return nil, err
		}
		d, err := a.needDisplay()
		if err != nil {
			return nil, err
		}
		if err = d.DisplayData(ctx, payload.Units, payload.Row, payload.Column, payload.Attribute, payload.Data); err != nil {
			return nil, err
		}
		return displayResult(d), nil

	case "clear_video":
		var payload DisplayPayload
		if err := decode(rawPayload, &payload); err != nil {
			return nil, err
		}
		d, err := a.needDisplay()
		if err != nil {
			return nil, err
		}
		if err = d.ClearVideo(ctx, payload.Units, payload.Attribute); err != nil {
			return nil, err
		}
		return displayResult(d), nil

	case "display_transaction":
		var payload TransactionPayload
		if err := decode(rawPayload, &payload); err != nil {
			return nil, err
		}
		d, err := a.needDisplay()
		if err != nil {
			return nil, err
		}
		begin, err := transactionBegin(payload.Action)
		if err != nil {
			return nil, err
		}
		function := display.TransactionEnd
		if begin {
			function = display.TransactionBegin
		}
		if err = d.TransactionDisplay(ctx, payload.Units, function); err != nil {
			return nil, err
		}
		return displayResult(d), nil

	default:
		return nil, fmt.Errorf("nieobsługiwana komenda: %s", command)
	}
}

func (a *Agent) controlOutput(command, device string) (map[string]any, error) {
	retry := command == "retry_output"

	switch device {
	case "", "printer":
		p, err := a.needPrinter()
		if err != nil {
			return nil, err
		}
		if retry {
			err = p.RetryOutput()
		} else {
			err = p.ClearOutput()
		}
		if err != nil {
			return nil, err
		}
		return printerResult(p), nil

	case "display":
		d, err := a.needDisplay()
		if err != nil {
			return nil, err
		}
		if retry {
			err = d.RetryOutput()
		} else {
			err = d.ClearOutput()
		}
		if err != nil {
			return nil, err
		}
		return displayResult(d), nil
	}

	return nil, fmt.Errorf("nieznane urządzenie: %s", device)
}
