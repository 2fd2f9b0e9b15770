package models

import "fmt"

// Reason classifies a scheduling failure. Callers branch on the reason,
// never on the message text.
type Reason string

const (
	ReasonWrongStatus        Reason = "wrong_status"
	ReasonAlreadyAssigned    Reason = "already_assigned"
	ReasonIncompatible       Reason = "incompatible"
	ReasonMachineUnavailable Reason = "machine_unavailable"
	ReasonConflict           Reason = "conflict"
	ReasonNoFreeSlot         Reason = "no_free_slot"
	ReasonNotFound           Reason = "not_found"
	ReasonInvariantViolation Reason = "invariant_violation"
)

// SchedulingError represents a typed scheduling failure.
type SchedulingError struct {
	Reason  Reason
	Message string
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// NewError creates a typed scheduling error.
func NewError(reason Reason, format string, args ...interface{}) *SchedulingError {
	return &SchedulingError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ReasonOf returns the failure reason of err, or ok=false when err is not
// a scheduling error.
func ReasonOf(err error) (Reason, bool) {
	if se, ok := err.(*SchedulingError); ok {
		return se.Reason, true
	}
	return "", false
}

// IsReason reports whether err is a scheduling error with the given reason.
func IsReason(err error, reason Reason) bool {
	r, ok := ReasonOf(err)
	return ok && r == reason
}

// HumanMessage translates a failure reason into operator-facing text.
func HumanMessage(err error) string {
	reason, ok := ReasonOf(err)
	if !ok {
		return "internal error"
	}
	switch reason {
	case ReasonWrongStatus:
		return "The order is not in a state that allows this operation."
	case ReasonAlreadyAssigned:
		return "The order is already scheduled on a machine."
	case ReasonIncompatible:
		return "The selected machine cannot run this kind of job."
	case ReasonMachineUnavailable:
		return "The machine is not available for production."
	case ReasonConflict:
		return "The requested time overlaps an existing slot. Pick a later start."
	case ReasonNoFreeSlot:
		return "No free slot was found in the search window."
	case ReasonNotFound:
		return "The requested record does not exist."
	default:
		return "The schedule is in an inconsistent state. Contact an administrator."
	}
}
