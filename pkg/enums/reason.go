package enums

// Reason is a machine-checkable business outcome code returned in results.
// Reasons are never errors; callers assert on them directly.
type Reason string

const (
	ReasonNone Reason = ""

	ReasonAssignmentNotFound    Reason = "assignment_not_found"
	ReasonAssignmentNotUnfilled Reason = "assignment_not_unfilled"
	ReasonShiftAlreadyStarted   Reason = "shift_already_started"
	ReasonInvalidMode           Reason = "invalid_mode"
	ReasonInvalidTrigger        Reason = "invalid_trigger"

	ReasonResolved                 Reason = "resolved"
	ReasonTransitionedToInstant    Reason = "transitioned_to_instant"
	ReasonWindowNotFound           Reason = "window_not_found"
	ReasonWindowNotOpen            Reason = "window_not_open"
	ReasonWindowNotCompetitive     Reason = "window_not_competitive"
	ReasonConflictRetriesExhausted Reason = "conflict_retries_exhausted"

	ReasonRouteAlreadyAssigned  Reason = "route_already_assigned"
	ReasonWindowClosed          Reason = "window_closed"
	ReasonWindowIsCompetitive   Reason = "window_is_competitive"
	ReasonWindowExpired         Reason = "window_expired"
	ReasonDriverIneligible      Reason = "driver_ineligible"
	ReasonDriverAlreadyAssigned Reason = "driver_already_assigned"

	ReasonWindowIsInstant Reason = "window_is_instant"

	ReasonInvalidTransition Reason = "invalid_transition"

	ReasonWeeklyCapReached Reason = "weekly_cap_reached"
	ReasonHardStopped      Reason = "hard_stopped"
	ReasonNotADriver       Reason = "not_a_driver"
	ReasonUserNotFound     Reason = "user_not_found"
)

// Message is the human readable text paired with a reason.
func (r Reason) Message() string {
	switch r {
	case ReasonRouteAlreadyAssigned:
		return "Route already assigned"
	case ReasonAssignmentNotFound:
		return "Assignment not found"
	case ReasonAssignmentNotUnfilled:
		return "Assignment is not unfilled"
	case ReasonShiftAlreadyStarted:
		return "Shift has already started"
	case ReasonInvalidMode:
		return "Invalid bid window mode"
	case ReasonInvalidTrigger:
		return "Invalid bid window trigger"
	case ReasonResolved:
		return "Bid window resolved"
	case ReasonTransitionedToInstant:
		return "No bids received; window switched to instant"
	case ReasonWindowNotFound:
		return "Bid window not found"
	case ReasonWindowNotOpen:
		return "Bid window is not open"
	case ReasonWindowNotCompetitive:
		return "Bid window is not competitive"
	case ReasonConflictRetriesExhausted:
		return "Concurrent updates prevented resolution"
	case ReasonWindowClosed:
		return "Bid window is closed"
	case ReasonWindowIsCompetitive:
		return "Bid window requires a bid"
	case ReasonWindowExpired:
		return "Bid window has expired"
	case ReasonDriverIneligible:
		return "Driver is not eligible for this route"
	case ReasonDriverAlreadyAssigned:
		return "Driver already has a route that day"
	case ReasonWindowIsInstant:
		return "Bid window accepts instantly"
	case ReasonInvalidTransition:
		return "Assignment cannot make that transition"
	case ReasonWeeklyCapReached:
		return "Weekly cap reached"
	case ReasonHardStopped:
		return "Driver is on hard stop"
	case ReasonNotADriver:
		return "User is not a driver"
	case ReasonUserNotFound:
		return "User not found"
	case ReasonNone:
		return ""
	default:
		return string(r)
	}
}
