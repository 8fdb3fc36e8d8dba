package enums

import "fmt"

// RegistrationStatus maps to the registration_status enum in Postgres.
type RegistrationStatus string

const (
	RegistrationStatusAwaitingService RegistrationStatus = "awaiting_service"
	RegistrationStatusScheduled       RegistrationStatus = "scheduled"
	RegistrationStatusWaitlisted      RegistrationStatus = "waitlisted"
	RegistrationStatusAttended        RegistrationStatus = "attended"
	RegistrationStatusCanceled        RegistrationStatus = "canceled"
	RegistrationStatusNoShow          RegistrationStatus = "no_show"
)

var validRegistrationStatuses = []RegistrationStatus{
	RegistrationStatusAwaitingService,
	RegistrationStatusScheduled,
	RegistrationStatusWaitlisted,
	RegistrationStatusAttended,
	RegistrationStatusCanceled,
	RegistrationStatusNoShow,
}

// ActiveRegistrationStatuses occupy a campaign slot.
var ActiveRegistrationStatuses = []RegistrationStatus{
	RegistrationStatusAwaitingService,
	RegistrationStatusScheduled,
}

func (s RegistrationStatus) String() string {
	return string(s)
}

func (s RegistrationStatus) IsValid() bool {
	for _, candidate := range validRegistrationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive reports whether the status consumes a slot.
func (s RegistrationStatus) IsActive() bool {
	for _, candidate := range ActiveRegistrationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo guards admin status changes. Attended, canceled and no_show are final.
func (s RegistrationStatus) CanTransitionTo(next RegistrationStatus) bool {
	if !next.IsValid() || s == next {
		return false
	}
	switch s {
	case RegistrationStatusWaitlisted:
		return next == RegistrationStatusAwaitingService || next == RegistrationStatusScheduled || next == RegistrationStatusCanceled
	case RegistrationStatusAwaitingService:
		return next != RegistrationStatusWaitlisted
	case RegistrationStatusScheduled:
		return next != RegistrationStatusWaitlisted
	default:
		return false
	}
}

func ParseRegistrationStatus(value string) (RegistrationStatus, error) {
	for _, candidate := range validRegistrationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid registration status %q", value)
}
