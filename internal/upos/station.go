package upos

import "fmt"

// Station is a printer station bit, or a combination for two-station calls.
type Station int

const (
	StationJournal        Station = 1
	StationReceipt        Station = 2
	StationSlip           Station = 4
	StationJournalReceipt Station = 3
	StationJournalSlip    Station = 5
	StationReceiptSlip    Station = 6

	TwoReceiptJournal Station = 0x8003
	TwoSlipJournal    Station = 0x8005
	TwoSlipReceipt    Station = 0x8006
)

func (s Station) String() string {
	switch s {
	case StationJournal:
		return "journal"
	case StationReceipt:
		return "receipt"
	case StationSlip:
		return "slip"
	case StationJournalReceipt:
		return "journal+receipt"
	case StationJournalSlip:
		return "journal+slip"
	case StationReceiptSlip:
		return "receipt+slip"
	case TwoReceiptJournal:
		return "two:receipt,journal"
	case TwoSlipJournal:
		return "two:slip,journal"
	case TwoSlipReceipt:
		return "two:slip,receipt"
	}
	return fmt.Sprintf("station(%#x)", int(s))
}

// Single reports whether s names exactly one station.
func (s Station) Single() bool {
	return s == StationJournal || s == StationReceipt || s == StationSlip
}

// Mask returns the target bitmask used by the output queue.
func (s Station) Mask() uint32 {
	return uint32(s) & 0x7
}

// ParseStation accepts the names used in configuration and remote commands.
func ParseStation(name string) (Station, error) {
	switch name {
	case "journal", "jrn":
		return StationJournal, nil
	case "receipt", "rec":
		return StationReceipt, nil
	case "slip", "slp":
		return StationSlip, nil
	}
	return 0, Invalid("nieznana stacja %q", name)
}

// Device states.
type State int

const (
	StateClosed State = 1
	StateIdle   State = 2
	StateBusy   State = 3
	StateError  State = 4
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ForeverTimeout waits without limit in BeginInsertion/BeginRemoval.
const ForeverTimeout = -1
