package escseq

import (
	"reflect"
	"testing"
)

func text(s string) PlainText {
	return PlainText{Text: s}
}

func TestParse_CRLFSuppressesCR(t *testing.T) {
	got := Parse("Hello\r\nWorld", Options{})
	want := []Part{text("Hello"), ControlChar{Char: '\n'}, text("World")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parts:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestParse_CollapsesCRRuns(t *testing.T) {
	got := Parse("A\r\r\rB", Options{})
	want := []Part{text("A"), ControlChar{Char: '\r'}, text("B")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parts:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestParse_TrailingCRAppendsEmptyText(t *testing.T) {
	got := Parse("Total\r", Options{})
	want := []Part{text("Total"), ControlChar{Char: '\r'}, text("")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parts:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestParse_CarriesCharacterSet(t *testing.T) {
	got := Parse("Zażółć", Options{CharacterSet: 1250, MapCharacterSet: true})
	want := []Part{PlainText{Text: "Zażółć", CharacterSet: 1250, MapCharacterSet: true}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parts:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestParse_Sequences(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   Part
	}{
		{"full cut", "\x1b|P", Cut{Percent: 100}},
		{"partial cut", "\x1b|75P", Cut{Percent: 75}},
		{"feed and cut", "\x1b|90fP", Cut{Percent: 90, Feed: true}},
		{"stamp cut", "\x1b|sP", Cut{Percent: 100, Feed: true, Stamp: true}},
		{"normalize", "\x1b|N", Normalize{}},
		{"stamp", "\x1b|sL", Stamp{}},
		{"bitmap", "\x1b|3B", Bitmap{Number: 3}},
		{"feed lines", "\x1b|4lF", Feed{Count: 4}},
		{"feed units", "\x1b|20uF", Feed{Count: 20, Units: true}},
		{"reverse feed", "\x1b|2rF", Feed{Count: 2, Reverse: true}},
		{"embedded", "\x1b|3Eabc", Embedded{Data: "abc"}},
		{"font", "\x1b|2fT", FontTypeface{Index: 2}},
		{"center", "\x1b|cA", Alignment{Value: AlignCenter}},
		{"right", "\x1b|rA", Alignment{Value: AlignRight}},
		{"double wide", "\x1b|2C", Scale{Value: 2}},
		{"scale horizontal", "\x1b|3hC", Scale{Value: 3, Horizontal: true}},
		{"scale vertical", "\x1b|2vC", Scale{Value: 2, Vertical: true}},
		{"bold", "\x1b|bC", SimpleAttribute{Activate: true, Kind: AttrBold}},
		{"bold off", "\x1b|!bC", SimpleAttribute{Kind: AttrBold}},
		{"reverse video", "\x1b|rvC", SimpleAttribute{Activate: true, Kind: AttrReverse}},
		{"subscript", "\x1b|tbC", SimpleAttribute{Activate: true, Kind: AttrSubscript}},
		{"underline", "\x1b|2uC", Line{Thickness: 2, Underline: true}},
		{"underline off", "\x1b|!uC", Line{Thickness: 0, Underline: true}},
		{"strike", "\x1b|stC", Line{Thickness: 1}},
		{"alternate color", "\x1b|rC", Color{Value: ColorCustom1}},
		{"cartridge color", "\x1b|4rC", Color{Value: 4}},
		{"rgb color", "\x1b|16711680fC", Color{RGB: true, Value: 0xff0000}},
		{"shade", "\x1b|25sC", Shade{Percent: 25}},
		{"unknown family", "\x1b|9Z", Unknown{Raw: "\x1b|9Z"}},
		{"negated cut", "\x1b|!P", Unknown{Raw: "\x1b|!P"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.markup, Options{})
			if len(got) != 1 || !reflect.DeepEqual(got[0], tt.want) {
				t.Fatalf("Parse(%q) = %#v, want [%#v]", tt.markup, got, tt.want)
			}
		})
	}
}

func TestParse_TextAroundSequences(t *testing.T) {
	got := Parse("Left\x1b|cACenter\n\x1b|bCBold", Options{})
	want := []Part{
		text("Left"),
		Alignment{Value: AlignCenter},
		text("Center"),
		ControlChar{Char: '\n'},
		SimpleAttribute{Activate: true, Kind: AttrBold},
		text("Bold"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parts:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestParse_RuledLinePayload(t *testing.T) {
	got := Parse("A\x1b|*12dLp1,2d1w2s1c1World", Options{})
	want := []Part{
		text("A"),
		RuledLine{Positions: "1,2", Direction: 1, Width: 2, Style: 1, Color: 1},
		text("World"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parts:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestParse_LengthPrefixedPayloadIsExact(t *testing.T) {
	got := Parse("A\x1b|*3dLp10World", Options{})
	if len(got) != 3 {
		t.Fatalf("expected 3 parts, got %#v", got)
	}
	line, ok := got[1].(RuledLine)
	if !ok {
		t.Fatalf("expected ruled line, got %#v", got[1])
	}
	if line.Positions != "10" {
		t.Fatalf("payload not limited to 3 characters: %#v", line)
	}
	if got[2] != text("World") {
		t.Fatalf("expected trailing text, got %#v", got[2])
	}
}

func TestParse_Barcode(t *testing.T) {
	payload := "<s>104<h>60<w>200<a>-2<t>-13<d>590123412345<e>"
	markup := "\x1b|" + itoa(len(payload)) + "R" + payload + "after"
	got := Parse(markup, Options{})
	want := []Part{
		Barcode{Symbology: 104, Height: 60, Width: 200, Alignment: BarcodeCenter, TextPosition: BarcodeTextBelow, Data: "590123412345"},
		text("after"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parts:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestParse_BarcodeWithoutDataIsUnknown(t *testing.T) {
	payload := "<s>104<h>60<e>"
	markup := "\x1b|" + itoa(len(payload)) + "R" + payload
	got := Parse(markup, Options{})
	if len(got) != 1 {
		t.Fatalf("expected one part, got %#v", got)
	}
	if _, ok := got[0].(Unknown); !ok {
		t.Fatalf("expected unknown, got %#v", got[0])
	}
}

func TestParse_LogoResolvesConfiguredText(t *testing.T) {
	opts := Options{TopLogo: "\x1b|cAShop\n", BottomLogo: "Thanks"}
	got := Parse("\x1b|tL\x1b|bL", opts)
	want := []Part{
		Logo{Top: true, Parts: []Part{Alignment{Value: AlignCenter}, text("Shop"), ControlChar{Char: '\n'}}},
		Logo{Parts: []Part{text("Thanks")}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parts:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestParse_NestedLogoDoesNotRecurse(t *testing.T) {
	got := Parse("\x1b|tL", Options{TopLogo: "\x1b|tL"})
	logo, ok := got[0].(Logo)
	if !ok || len(logo.Parts) != 1 {
		t.Fatalf("unexpected parts: %#v", got)
	}
	inner, ok := logo.Parts[0].(Logo)
	if !ok || len(inner.Parts) != 0 {
		t.Fatalf("nested logo should resolve to nothing, got %#v", logo.Parts[0])
	}
}

func TestParse_TruncatedSequence(t *testing.T) {
	tests := []struct {
		markup string
		want   []Part
	}{
		{"abc\x1b|12", []Part{text("abc"), Unknown{Raw: "\x1b|12"}}},
		{"abc\x1b|", []Part{text("abc"), Unknown{Raw: "\x1b|"}}},
		{"\x1b|10Eshort", []Part{Unknown{Raw: "\x1b|10Eshort"}}},
		{"x\x1b|*9dLp1", []Part{text("x"), Unknown{Raw: "\x1b|*9dLp1"}}},
	}
	for _, tt := range tests {
		got := Parse(tt.markup, Options{})
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Parse(%q):\n got: %#v\nwant: %#v", tt.markup, got, tt.want)
		}
	}
}

func TestParse_InvalidTerminatorResumes(t *testing.T) {
	got := Parse("\x1b|12 text", Options{})
	want := []Part{Unknown{Raw: "\x1b|12"}, text(" text")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parts:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestCutEscape_RoundTrip(t *testing.T) {
	for _, cut := range []Cut{
		{Percent: 100},
		{Percent: 0},
		{Percent: 50, Feed: true},
		{Percent: 90, Feed: true, Stamp: true},
	} {
		got := Parse("head"+cut.Escape()+"tail", Options{})
		if len(got) != 3 || got[1] != Part(cut) {
			t.Errorf("round trip of %#v gave %#v", cut, got)
		}
	}
}

func TestEscape_RoundTripOtherFamilies(t *testing.T) {
	parts := []Part{
		Feed{Count: 3},
		Feed{Count: 2, Reverse: true},
		Bitmap{Number: 7},
		Barcode{Symbology: SymCode128, Height: 80, Width: 300, Alignment: BarcodeRight, TextPosition: BarcodeTextAbove, Data: "A<1>"},
		RuledLine{Positions: "0,200;300,400", Direction: RuledHorizontal, Width: 2, Style: LineBroken, Color: ColorPrimary},
	}
	for _, part := range parts {
		var markup string
		switch p := part.(type) {
		case Feed:
			markup = p.Escape()
		case Bitmap:
			markup = p.Escape()
		case Barcode:
			markup = p.Escape()
		case RuledLine:
			markup = p.Escape()
		}
		got := Parse(markup, Options{})
		if len(got) != 1 || !reflect.DeepEqual(got[0], part) {
			t.Errorf("round trip of %#v gave %#v", part, got)
		}
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(Cut{Percent: 50, Feed: true}); got != "cut 50% feed=true stamp=false" {
		t.Fatalf("unexpected description %q", got)
	}
	if got := Describe(ControlChar{Char: '\n'}); got != "LF" {
		t.Fatalf("unexpected description %q", got)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	return string(buf)
}
