// Package validate checks parsed printer markup against what a station can do.
package validate

import "github.com/NowakAdmin/BizantiPOS/internal/upos"

// StationCaps lists the features of one printer station. Color holds the
// supported cartridge bits (escseq.ColorPrimary...) and escseq.ColorFull when
// RGB colors are available. RuledLine holds direction bits.
type StationCaps struct {
	Present bool `json:"present"`

	Bold                 bool `json:"bold"`
	Italic               bool `json:"italic"`
	Underline            bool `json:"underline"`
	Strikethrough        bool `json:"strikethrough"`
	DoubleWide           bool `json:"double_wide"`
	DoubleHigh           bool `json:"double_high"`
	DoubleHighDoubleWide bool `json:"double_high_double_wide"`
	Reverse              bool `json:"reverse"`
	Subscript            bool `json:"subscript"`
	Superscript          bool `json:"superscript"`
	Shading              bool `json:"shading"`

	Barcode     bool `json:"barcode"`
	Bitmap      bool `json:"bitmap"`
	PaperCut    bool `json:"paper_cut"`
	Stamp       bool `json:"stamp"`
	ReverseFeed bool `json:"reverse_feed"`

	Left90      bool `json:"left90"`
	Right90     bool `json:"right90"`
	Rotate180   bool `json:"rotate180"`
	PageMode    bool `json:"page_mode"`
	Transaction bool `json:"transaction"`

	Color         int `json:"color"`
	RuledLine     int `json:"ruled_line"`
	MarkFeed      int `json:"mark_feed"`
	FontTypefaces int `json:"font_typefaces"`
	LineChars     int `json:"line_chars"`
	LineWidth     int `json:"line_width"`
}

// Matrix is the capability set of a printer. It is copied by value and never
// changed after the device is configured.
type Matrix struct {
	Journal StationCaps `json:"journal"`
	Receipt StationCaps `json:"receipt"`
	Slip    StationCaps `json:"slip"`

	ConcurrentJrnRec bool `json:"concurrent_jrn_rec"`
	ConcurrentJrnSlp bool `json:"concurrent_jrn_slp"`
	ConcurrentRecSlp bool `json:"concurrent_rec_slp"`
}

// Station returns the capabilities of a single station.
func (m Matrix) Station(st upos.Station) (StationCaps, error) {
	var caps StationCaps
	switch st {
	case upos.StationJournal:
		caps = m.Journal
	case upos.StationReceipt:
		caps = m.Receipt
	case upos.StationSlip:
		caps = m.Slip
	default:
		return StationCaps{}, upos.Invalid("%s nie jest pojedynczą stacją", st)
	}
	if !caps.Present {
		return StationCaps{}, upos.Unsupported("brak stacji %s", st)
	}
	return caps, nil
}

// Stations returns the mask of present stations.
func (m Matrix) Stations() uint32 {
	var mask uint32
	for _, st := range []upos.Station{upos.StationJournal, upos.StationReceipt, upos.StationSlip} {
		if _, err := m.Station(st); err == nil {
			mask |= st.Mask()
		}
	}
	return mask
}

// Concurrent reports whether the stations in mask may print at the same
// time. Every pair in mask must be allowed; a single station never is.
func (m Matrix) Concurrent(mask uint32) bool {
	pairs := []struct {
		mask    uint32
		allowed bool
	}{
		{upos.StationJournalReceipt.Mask(), m.ConcurrentJrnRec},
		{upos.StationJournalSlip.Mask(), m.ConcurrentJrnSlp},
		{upos.StationReceiptSlip.Mask(), m.ConcurrentRecSlp},
	}
	found := false
	for _, pair := range pairs {
		if mask&pair.mask != pair.mask {
			continue
		}
		if !pair.allowed {
			return false
		}
		found = true
	}
	return found
}
