package lineup

import (
	"fmt"
	"strings"

	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/types"
)

// Rules a lineup can violate.
var (
	ErrLineupShape          = failure.New(failure.Validation, "lineup_shape", "lineup does not match the formation")
	ErrIncompleteAssignment = failure.New(failure.Validation, "incomplete_assignment", "assignment is incomplete")
	ErrDuplicateDrone       = failure.New(failure.Validation, "duplicate_drone", "drone assigned more than once")
	ErrUnknownDrone         = failure.New(failure.Validation, "unknown_drone", "unknown drone")
	ErrDroneRoleMismatch    = failure.New(failure.Validation, "drone_role_mismatch", "drone role does not match position")
	ErrPilotNotOnRoster     = failure.New(failure.Validation, "pilot_not_on_roster", "pilot is not on the team roster")
	ErrPilotRoleMismatch    = failure.New(failure.Validation, "pilot_role_mismatch", "pilot role does not match position")
)

// Violation is the first failed check, with the offending slot.
type Violation struct {
	Rule     error
	Team     types.Team
	Position types.Role
	DroneID  string
	Pilot    string
	Detail   string
}

func (v *Violation) Error() string {
	var b strings.Builder
	b.WriteString(v.Rule.Error())
	fmt.Fprintf(&b, " (team %s", v.Team)
	if v.Position != "" {
		fmt.Fprintf(&b, ", position %s", v.Position)
	}
	if v.DroneID != "" {
		fmt.Fprintf(&b, ", drone %s", v.DroneID)
	}
	if v.Pilot != "" {
		fmt.Fprintf(&b, ", pilot %s", v.Pilot)
	}
	b.WriteString(")")
	if v.Detail != "" {
		b.WriteString(": " + v.Detail)
	}
	return b.String()
}

func (v *Violation) Unwrap() error { return v.Rule }

// RuleCode is the violated rule's stable code, used as a metric label.
func (v *Violation) RuleCode() string { return failure.CodeOf(v.Rule) }
