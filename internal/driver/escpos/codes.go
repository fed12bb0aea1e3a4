package escpos

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/NowakAdmin/BizantiPOS/internal/escseq"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

const (
	lf  = 0x0A
	cr  = 0x0D
	ff  = 0x0C
	esc = 0x1B
	gs  = 0x1D
	dle = 0x10
	eot = 0x04
)

const (
	lineSingle = escseq.LineSingleSolid
	lineDouble = escseq.LineDoubleSolid
	lineBroken = escseq.LineBroken
	lineChain  = escseq.LineChain
)

var (
	cmdInit       = []byte{esc, '@'}
	cmdPageMode   = []byte{esc, 'L'}
	cmdPagePrint  = []byte{ff}
	cmdFullCut    = []byte{gs, 'V', 0}
	cmdPartialCut = []byte{gs, 'V', 1}
	cmdStamp      = []byte{esc, 'o'}
	cmdSlipEject  = []byte{esc, 'q'}
	cmdMarkFeed   = []byte{gs, ff}
	cmdNormalize  = []byte{
		esc, '!', 0,
		gs, '!', 0,
		esc, 'E', 0,
		esc, '-', 0,
		esc, '4', 0,
		gs, 'B', 0,
		esc, 'M', 0,
		esc, 'a', 0,
		esc, 'r', 0,
	}
)

// Real-time status requests and the bits the driver looks at.
var (
	statusOffline = []byte{dle, eot, 2}
	statusPaper   = []byte{dle, eot, 4}
	statusSlip    = []byte{dle, eot, 5}
)

const (
	offlineCoverOpen = 0x04
	paperEnd         = 0x60
	slipWaiting      = 0x20
)

// feedToCutter is the line count between the print head and the cutter.
const feedToCutter = 4

// stationSelect maps a station to the ESC c 0 argument.
func stationSelect(st upos.Station) byte {
	switch st {
	case upos.StationJournal:
		return 1
	case upos.StationSlip:
		return 4
	}
	return 2
}

// symbologies maps UPOS symbology codes to GS k function B codes.
var symbologies = map[int]byte{
	escseq.SymUPCA:    65,
	escseq.SymUPCE:    66,
	escseq.SymEAN13:   67,
	escseq.SymEAN8:    68,
	escseq.SymCode39:  69,
	escseq.SymITF:     70,
	escseq.SymCodabar: 71,
	escseq.SymCode93:  72,
	escseq.SymCode128: 73,
}

// codePage is an ESC t table together with the matching encoder.
type codePage struct {
	table   byte
	charmap *charmap.Charmap
}

// codePages maps UPOS character set numbers to printer code tables.
var codePages = map[int]codePage{
	437:  {table: 0, charmap: charmap.CodePage437},
	850:  {table: 2, charmap: charmap.CodePage850},
	852:  {table: 18, charmap: charmap.CodePage852},
	858:  {table: 19, charmap: charmap.CodePage858},
	866:  {table: 17, charmap: charmap.CodePage866},
	1250: {table: 45, charmap: charmap.Windows1250},
	1252: {table: 16, charmap: charmap.Windows1252},
}

// CharacterSets lists the character sets the driver can map to.
func CharacterSets() []int {
	return []int{437, 850, 852, 858, 866, 1250, 1252}
}

func (c codePage) encode(s string) []byte {
	enc := encoding.ReplaceUnsupported(c.charmap.NewEncoder())
	out, err := enc.String(s)
	if err != nil {
		return []byte(s)
	}
	return []byte(out)
}
