// Package escseq turns UPOS printer markup into a sequence of typed parts.
//
// Markup is plain text interleaved with escape sequences introduced by ESC '|'.
// Parse never fails: sequences it does not understand, and a truncated sequence
// at the end of the input, come back as Unknown parts so that validation can
// reject them with a precise reason.
package escseq

// Introducer starts every escape sequence.
const Introducer = "\x1b|"

// Part is one parsed fragment of printer markup. The set of implementations is
// closed; switch on the concrete type.
type Part interface {
	part()
}

// PlainText is printable text without line controls.
type PlainText struct {
	Text            string
	CharacterSet    int
	MapCharacterSet bool
}

// ControlChar is a CR or LF from the text stream.
type ControlChar struct {
	Char byte
}

// Cut is ESC|#P, ESC|#fP or ESC|#sP. Stamp implies Feed.
type Cut struct {
	Percent int
	Feed    bool
	Stamp   bool
}

// RuledLine is ESC|*#dL followed by a p/d/w/s/c field payload. Numeric fields
// that are missing or not numeric hold -1.
type RuledLine struct {
	Positions string
	Direction int
	Width     int
	Style     int
	Color     int
}

// Logo is ESC|tL or ESC|bL; Parts holds the parsed logo text.
type Logo struct {
	Top   bool
	Parts []Part
}

// Stamp is ESC|sL.
type Stamp struct{}

// Bitmap is ESC|#B.
type Bitmap struct {
	Number int
}

// Feed is ESC|#lF, ESC|#uF or ESC|#rF.
type Feed struct {
	Count   int
	Reverse bool
	Units   bool
}

// Embedded is ESC|#E; Data is passed to the device untouched.
type Embedded struct {
	Data string
}

// Barcode is ESC|#R with a <s><h><w><a><t><d><e> payload.
type Barcode struct {
	Symbology    int
	Height       int
	Width        int
	Alignment    int
	TextPosition int
	Data         string
}

// FontTypeface is ESC|#fT; index 0 selects the default font.
type FontTypeface struct {
	Index int
}

// Alignment is ESC|cA, ESC|rA or ESC|lA.
type Alignment struct {
	Value Align
}

// Normalize is ESC|N.
type Normalize struct{}

// SimpleAttribute switches one character attribute on or off.
type SimpleAttribute struct {
	Activate bool
	Kind     Attribute
}

// Line is ESC|#uC (underline) or ESC|#stC (strike-through). Thickness 0 turns it off.
type Line struct {
	Thickness int
	Underline bool
}

// Color is ESC|rC / ESC|#rC (cartridge color) or ESC|#fC (RGB value).
type Color struct {
	RGB   bool
	Value int
}

// Scale is ESC|#C (mode 1..4), ESC|#hC or ESC|#vC.
type Scale struct {
	Value      int
	Horizontal bool
	Vertical   bool
}

// Shade is ESC|#sC.
type Shade struct {
	Percent int
}

// Unknown is an escape sequence no recognizer accepted, or the truncated rest
// of the input.
type Unknown struct {
	Raw string
}

func (PlainText) part()       {}
func (ControlChar) part()     {}
func (Cut) part()             {}
func (RuledLine) part()       {}
func (Logo) part()            {}
func (Stamp) part()           {}
func (Bitmap) part()          {}
func (Feed) part()            {}
func (Embedded) part()        {}
func (Barcode) part()         {}
func (FontTypeface) part()    {}
func (Alignment) part()       {}
func (Normalize) part()       {}
func (SimpleAttribute) part() {}
func (Line) part()            {}
func (Color) part()           {}
func (Scale) part()           {}
func (Shade) part()           {}
func (Unknown) part()         {}

// Align is a horizontal alignment.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Attribute names a simple character attribute.
type Attribute int

const (
	AttrBold Attribute = iota + 1
	AttrItalic
	AttrReverse
	AttrSubscript
	AttrSuperscript
)

// Barcode alignment and text position constants.
const (
	BarcodeLeft   = -1
	BarcodeCenter = -2
	BarcodeRight  = -3

	BarcodeTextNone  = -11
	BarcodeTextAbove = -12
	BarcodeTextBelow = -13

	// SymbologyMin is the smallest valid symbology code (UPC-A).
	SymbologyMin = 101
)

// Symbology codes.
const (
	SymUPCA    = 101
	SymUPCE    = 102
	SymEAN8    = 103
	SymEAN13   = 104
	SymITF     = 106
	SymCodabar = 107
	SymCode39  = 108
	SymCode93  = 109
	SymCode128 = 110
	SymQRCode  = 204
)

// Ruled line directions, styles and cartridge colors.
const (
	RuledHorizontal = 1
	RuledVertical   = 2

	LineSingleSolid = 1
	LineDoubleSolid = 2
	LineBroken      = 3
	LineChain       = 4

	ColorPrimary = 0x00000001
	ColorCustom1 = 0x00000002
	ColorCustom2 = 0x00000004
	ColorCustom3 = 0x00000008
	ColorCustom4 = 0x00000010
	ColorCustom5 = 0x00000020
	ColorCustom6 = 0x00000040
	ColorFull    = -0x80000000
)
