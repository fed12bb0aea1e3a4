package validate

import (
	"errors"
	"testing"

	"github.com/NowakAdmin/BizantiPOS/internal/escseq"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

func receiptMatrix(mod func(*StationCaps)) Matrix {
	caps := StationCaps{
		Present:    true,
		Bold:       true,
		Underline:  true,
		DoubleWide: true,
		PaperCut:   true,
		Bitmap:     true,
		Color:      escseq.ColorPrimary | escseq.ColorCustom1,
		RuledLine:  escseq.RuledHorizontal,
		LineChars:  42,
		LineWidth:  512,
	}
	if mod != nil {
		mod(&caps)
	}
	return Matrix{Receipt: caps}
}

func validBarcode() escseq.Barcode {
	return escseq.Barcode{
		Symbology:    escseq.SymEAN13,
		Height:       60,
		Width:        200,
		Alignment:    escseq.BarcodeCenter,
		TextPosition: escseq.BarcodeTextBelow,
		Data:         "5901234123457",
	}
}

func TestValidate_BarcodeCapability(t *testing.T) {
	parts := []escseq.Part{validBarcode()}

	off := Pipeline{Caps: receiptMatrix(nil)}
	if err := off.Validate(upos.StationReceipt, parts); !errors.Is(err, upos.ErrUnsupported) {
		t.Fatalf("expected unsupported without barcode capability, got %v", err)
	}

	on := Pipeline{Caps: receiptMatrix(func(c *StationCaps) { c.Barcode = true })}
	if err := on.Validate(upos.StationReceipt, parts); err != nil {
		t.Fatalf("expected valid barcode, got %v", err)
	}
}

func TestValidate_BarcodeParameters(t *testing.T) {
	p := Pipeline{Caps: receiptMatrix(func(c *StationCaps) { c.Barcode = true })}
	tests := []struct {
		name string
		mod  func(*escseq.Barcode)
	}{
		{"symbology", func(b *escseq.Barcode) { b.Symbology = 100 }},
		{"height", func(b *escseq.Barcode) { b.Height = 0 }},
		{"width", func(b *escseq.Barcode) { b.Width = 513 }},
		{"alignment", func(b *escseq.Barcode) { b.Alignment = 400 }},
		{"text position", func(b *escseq.Barcode) { b.TextPosition = -14 }},
		{"data", func(b *escseq.Barcode) { b.Data = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBarcode()
			tt.mod(&b)
			err := p.Validate(upos.StationReceipt, []escseq.Part{b})
			if !errors.Is(err, upos.ErrInvalid) {
				t.Fatalf("expected invalid parameter, got %v", err)
			}
		})
	}
}

func TestValidate_UnknownAlwaysFails(t *testing.T) {
	p := Pipeline{Caps: receiptMatrix(nil)}
	parts := escseq.Parse("fine\x1b|9Z", escseq.Options{})
	if err := p.Validate(upos.StationReceipt, parts); !errors.Is(err, upos.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestValidate_MissingStation(t *testing.T) {
	p := Pipeline{Caps: receiptMatrix(nil)}
	if err := p.Validate(upos.StationSlip, nil); !errors.Is(err, upos.ErrUnsupported) {
		t.Fatalf("expected unsupported slip, got %v", err)
	}
	if err := p.Validate(upos.StationReceiptSlip, nil); !errors.Is(err, upos.ErrInvalid) {
		t.Fatalf("expected invalid station, got %v", err)
	}
}

func TestValidate_Families(t *testing.T) {
	p := Pipeline{Caps: receiptMatrix(nil)}
	tests := []struct {
		markup string
		want   error
	}{
		{"\x1b|bCBold\x1b|!bC", nil},
		{"\x1b|iC", upos.ErrUnsupported},
		{"\x1b|!iC", nil},
		{"\x1b|2C", nil},
		{"\x1b|3C", upos.ErrUnsupported},
		{"\x1b|7C", upos.ErrInvalid},
		{"\x1b|2hC", nil},
		{"\x1b|2vC", upos.ErrUnsupported},
		{"\x1b|rC", nil},
		{"\x1b|8rC", upos.ErrUnsupported},
		{"\x1b|3rC", upos.ErrInvalid},
		{"\x1b|255fC", upos.ErrUnsupported},
		{"\x1b|50P", nil},
		{"\x1b|150P", upos.ErrInvalid},
		{"\x1b|sP", upos.ErrUnsupported},
		{"\x1b|5B", nil},
		{"\x1b|21B", upos.ErrInvalid},
		{"\x1b|2rF", upos.ErrUnsupported},
		{"\x1b|3lF", nil},
		{"\x1b|1fT", upos.ErrInvalid},
		{"\x1b|0fT", nil},
		{"\x1b|uC", nil},
		{"\x1b|stC", upos.ErrUnsupported},
		{"\x1b|!stC", nil},
		{"\x1b|50sC", upos.ErrUnsupported},
		{"\x1b|sL", upos.ErrUnsupported},
	}
	for _, tt := range tests {
		err := p.Validate(upos.StationReceipt, escseq.Parse(tt.markup, escseq.Options{}))
		if tt.want == nil && err != nil {
			t.Errorf("%q: unexpected error %v", tt.markup, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%q: expected %v, got %v", tt.markup, tt.want, err)
		}
	}
}

func TestValidate_RuledLine(t *testing.T) {
	p := Pipeline{Caps: receiptMatrix(nil)}
	tests := []struct {
		line escseq.RuledLine
		want error
	}{
		{escseq.RuledLine{Positions: "0,100;200,300", Direction: escseq.RuledHorizontal, Width: 1, Style: 1, Color: 1}, nil},
		{escseq.RuledLine{Positions: "0,100", Direction: escseq.RuledVertical, Width: 1, Style: 1, Color: 1}, upos.ErrUnsupported},
		{escseq.RuledLine{Positions: "0,100", Direction: -1, Width: 1, Style: 1, Color: 1}, upos.ErrInvalid},
		{escseq.RuledLine{Positions: "0,100", Direction: 1, Width: 0, Style: 1, Color: 1}, upos.ErrInvalid},
		{escseq.RuledLine{Positions: "0,100", Direction: 1, Width: 1, Style: 5, Color: 1}, upos.ErrInvalid},
		{escseq.RuledLine{Positions: "0,100", Direction: 1, Width: 1, Style: 1, Color: escseq.ColorCustom2}, upos.ErrUnsupported},
		{escseq.RuledLine{Positions: "0,x", Direction: 1, Width: 1, Style: 1, Color: 1}, upos.ErrInvalid},
		{escseq.RuledLine{Positions: "0,600", Direction: 1, Width: 1, Style: 1, Color: 1}, upos.ErrInvalid},
		{escseq.RuledLine{Positions: "300,200", Direction: 1, Width: 1, Style: 1, Color: 1}, upos.ErrInvalid},
	}
	for i, tt := range tests {
		err := p.Validate(upos.StationReceipt, []escseq.Part{tt.line})
		if tt.want == nil && err != nil {
			t.Errorf("case %d: unexpected error %v", i, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("case %d: expected %v, got %v", i, tt.want, err)
		}
	}
}

func TestValidate_LogoValidatesInnerParts(t *testing.T) {
	p := Pipeline{Caps: receiptMatrix(nil)}
	parts := escseq.Parse("\x1b|tL", escseq.Options{TopLogo: "\x1b|iCShop"})
	if err := p.Validate(upos.StationReceipt, parts); !errors.Is(err, upos.ErrUnsupported) {
		t.Fatalf("expected unsupported italic inside logo, got %v", err)
	}
}

func TestValidate_HookSkipsGenericChecks(t *testing.T) {
	var seen []escseq.Part
	hook := HookFunc(func(_ upos.Station, part escseq.Part) (Verdict, error) {
		seen = append(seen, part)
		if _, ok := part.(escseq.Barcode); ok {
			return SkipRemaining, nil
		}
		return Continue, nil
	})
	p := Pipeline{Caps: receiptMatrix(nil), Hook: hook}
	parts := []escseq.Part{escseq.PlainText{Text: "x"}, validBarcode()}
	if err := p.Validate(upos.StationReceipt, parts); err != nil {
		t.Fatalf("expected hook to accept barcode, got %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected hook to see 2 parts, saw %d", len(seen))
	}
}

func TestValidate_HookErrorsBecomeInvalidParameter(t *testing.T) {
	hook := HookFunc(func(upos.Station, escseq.Part) (Verdict, error) {
		return Continue, errors.New("too long for this head")
	})
	p := Pipeline{Caps: receiptMatrix(nil), Hook: Chain(NopHook{}, hook)}
	err := p.Validate(upos.StationReceipt, []escseq.Part{escseq.PlainText{Text: "x"}})
	if !errors.Is(err, upos.ErrInvalid) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
}

func TestMatrix_Concurrent(t *testing.T) {
	m := Matrix{
		Journal:          StationCaps{Present: true},
		Receipt:          StationCaps{Present: true},
		ConcurrentJrnRec: true,
	}
	if !m.Concurrent(upos.StationJournalReceipt.Mask()) {
		t.Fatalf("journal+receipt should be concurrent")
	}
	if m.Concurrent(upos.StationReceiptSlip.Mask()) {
		t.Fatalf("receipt+slip should not be concurrent")
	}
	if m.Concurrent(upos.StationReceipt.Mask()) {
		t.Fatalf("a single station is not a concurrent pair")
	}
	all := upos.StationJournalReceipt.Mask() | upos.StationSlip.Mask()
	if m.Concurrent(all) {
		t.Fatalf("all three stations need every pair allowed")
	}
	m.ConcurrentJrnSlp, m.ConcurrentRecSlp = true, true
	if !m.Concurrent(all) {
		t.Fatalf("all pairs allowed, all three stations should be concurrent")
	}
	if got := m.Stations(); got != 3 {
		t.Fatalf("expected station mask 3, got %d", got)
	}
}
