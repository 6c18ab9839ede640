package enums

// AssignmentStatus tracks a shift slot through its lifecycle.
type AssignmentStatus string

const (
	AssignmentStatusUnfilled  AssignmentStatus = "unfilled"
	AssignmentStatusScheduled AssignmentStatus = "scheduled"
	AssignmentStatusActive    AssignmentStatus = "active"
	AssignmentStatusCompleted AssignmentStatus = "completed"
	AssignmentStatusCancelled AssignmentStatus = "cancelled"
)

var assignmentStatuses = []AssignmentStatus{
	AssignmentStatusUnfilled,
	AssignmentStatusScheduled,
	AssignmentStatusActive,
	AssignmentStatusCompleted,
	AssignmentStatusCancelled,
}

func (s AssignmentStatus) String() string { return string(s) }
func (s AssignmentStatus) IsValid() bool  { return member(assignmentStatuses, s) }

// IsTerminal reports whether no further transition is allowed.
func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentStatusCompleted || s == AssignmentStatusCancelled
}

func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	return parse(assignmentStatuses, "assignment status", value)
}

// AssignedBy records which path filled an assignment.
type AssignedBy string

const (
	AssignedByAlgorithm AssignedBy = "algorithm"
	AssignedByManager   AssignedBy = "manager"
	AssignedByBid       AssignedBy = "bid"
)

var assignedBySources = []AssignedBy{AssignedByAlgorithm, AssignedByManager, AssignedByBid}

func (a AssignedBy) String() string { return string(a) }
func (a AssignedBy) IsValid() bool  { return member(assignedBySources, a) }

func ParseAssignedBy(value string) (AssignedBy, error) {
	return parse(assignedBySources, "assigned by", value)
}
