package enums

import "testing"

func TestMessageStatusTerminal(t *testing.T) {
	for _, status := range []MessageStatus{MessageStatusSent, MessageStatusFailed, MessageStatusExpired} {
		if !status.IsTerminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	for _, status := range []MessageStatus{MessageStatusQueued, MessageStatusSending} {
		if status.IsTerminal() {
			t.Fatalf("expected %s to be non-terminal", status)
		}
	}
	if _, err := ParseMessageStatus("delivered"); err == nil {
		t.Fatal("expected unknown status to fail parsing")
	}
}

func TestRegistrationStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to RegistrationStatus
		ok       bool
	}{
		{RegistrationStatusWaitlisted, RegistrationStatusAwaitingService, true},
		{RegistrationStatusWaitlisted, RegistrationStatusAttended, false},
		{RegistrationStatusAwaitingService, RegistrationStatusScheduled, true},
		{RegistrationStatusScheduled, RegistrationStatusAttended, true},
		{RegistrationStatusScheduled, RegistrationStatusWaitlisted, false},
		{RegistrationStatusAttended, RegistrationStatusScheduled, false},
		{RegistrationStatusCanceled, RegistrationStatusAwaitingService, false},
		{RegistrationStatusScheduled, RegistrationStatusScheduled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
	if !RegistrationStatusScheduled.IsActive() || RegistrationStatusWaitlisted.IsActive() {
		t.Fatal("unexpected active classification")
	}
}
