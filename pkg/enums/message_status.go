package enums

import "fmt"

// MessageStatus maps to the message_status enum in Postgres.
type MessageStatus string

const (
	MessageStatusQueued  MessageStatus = "queued"
	MessageStatusSending MessageStatus = "sending"
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusFailed  MessageStatus = "failed"
	MessageStatusExpired MessageStatus = "expired"
)

var validMessageStatuses = []MessageStatus{
	MessageStatusQueued,
	MessageStatusSending,
	MessageStatusSent,
	MessageStatusFailed,
	MessageStatusExpired,
}

// TerminalMessageStatuses lists the statuses purge may remove.
var TerminalMessageStatuses = []MessageStatus{
	MessageStatusSent,
	MessageStatusFailed,
	MessageStatusExpired,
}

func (s MessageStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical message_status enum.
func (s MessageStatus) IsValid() bool {
	for _, candidate := range validMessageStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no automatic transition leaves this status.
func (s MessageStatus) IsTerminal() bool {
	for _, candidate := range TerminalMessageStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseMessageStatus converts raw input into MessageStatus.
func ParseMessageStatus(value string) (MessageStatus, error) {
	for _, candidate := range validMessageStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid message status %q", value)
}
