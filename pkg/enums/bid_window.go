package enums

// BidWindowMode selects how a window picks its winner.
type BidWindowMode string

const (
	BidWindowModeCompetitive BidWindowMode = "competitive"
	BidWindowModeInstant     BidWindowMode = "instant"
	BidWindowModeEmergency   BidWindowMode = "emergency"
)

var bidWindowModes = []BidWindowMode{BidWindowModeCompetitive, BidWindowModeInstant, BidWindowModeEmergency}

func (m BidWindowMode) String() string { return string(m) }
func (m BidWindowMode) IsValid() bool  { return member(bidWindowModes, m) }

// IsFirstAccept reports whether the first accepting driver wins outright.
func (m BidWindowMode) IsFirstAccept() bool {
	return m == BidWindowModeInstant || m == BidWindowModeEmergency
}

func ParseBidWindowMode(value string) (BidWindowMode, error) {
	return parse(bidWindowModes, "bid window mode", value)
}

// BidWindowStatus is the persisted state of a window.
type BidWindowStatus string

const (
	BidWindowStatusOpen     BidWindowStatus = "open"
	BidWindowStatusClosed   BidWindowStatus = "closed"
	BidWindowStatusResolved BidWindowStatus = "resolved"
)

var bidWindowStatuses = []BidWindowStatus{BidWindowStatusOpen, BidWindowStatusClosed, BidWindowStatusResolved}

func (s BidWindowStatus) String() string { return string(s) }
func (s BidWindowStatus) IsValid() bool  { return member(bidWindowStatuses, s) }

func ParseBidWindowStatus(value string) (BidWindowStatus, error) {
	return parse(bidWindowStatuses, "bid window status", value)
}

// BidWindowTrigger records what opened a window. The set is closed.
type BidWindowTrigger string

const (
	BidWindowTriggerAuto         BidWindowTrigger = "auto"
	BidWindowTriggerCancellation BidWindowTrigger = "cancellation"
	BidWindowTriggerManager      BidWindowTrigger = "manager"
	BidWindowTriggerNoShow       BidWindowTrigger = "no_show"
	BidWindowTriggerCron         BidWindowTrigger = "cron"
)

var bidWindowTriggers = []BidWindowTrigger{
	BidWindowTriggerAuto,
	BidWindowTriggerCancellation,
	BidWindowTriggerManager,
	BidWindowTriggerNoShow,
	BidWindowTriggerCron,
}

func (t BidWindowTrigger) String() string { return string(t) }
func (t BidWindowTrigger) IsValid() bool  { return member(bidWindowTriggers, t) }

// AllowsEmergency reports whether the trigger may open an emergency window.
func (t BidWindowTrigger) AllowsEmergency() bool {
	return t == BidWindowTriggerManager || t == BidWindowTriggerNoShow
}

func ParseBidWindowTrigger(value string) (BidWindowTrigger, error) {
	return parse(bidWindowTriggers, "bid window trigger", value)
}

// BidStatus tracks an individual bid.
type BidStatus string

const (
	BidStatusPending BidStatus = "pending"
	BidStatusWon     BidStatus = "won"
	BidStatusLost    BidStatus = "lost"
)

var bidStatuses = []BidStatus{BidStatusPending, BidStatusWon, BidStatusLost}

func (s BidStatus) String() string { return string(s) }
func (s BidStatus) IsValid() bool  { return member(bidStatuses, s) }

func ParseBidStatus(value string) (BidStatus, error) {
	return parse(bidStatuses, "bid status", value)
}
