package enums

import "fmt"

// MessageKind identifies which flow produced a message.
type MessageKind string

const (
	MessageKindRegistrationConfirmed  MessageKind = "registration_confirmed"
	MessageKindRegistrationWaitlisted MessageKind = "registration_waitlisted"
	MessageKindStatusChanged          MessageKind = "status_changed"
	MessageKindSlotPromoted           MessageKind = "slot_promoted"
	MessageKindOTPCode                MessageKind = "otp_code"
	MessageKindReplyAck               MessageKind = "reply_ack"
)

var validMessageKinds = []MessageKind{
	MessageKindRegistrationConfirmed,
	MessageKindRegistrationWaitlisted,
	MessageKindStatusChanged,
	MessageKindSlotPromoted,
	MessageKindOTPCode,
	MessageKindReplyAck,
}

func (k MessageKind) IsValid() bool {
	for _, candidate := range validMessageKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func ParseMessageKind(value string) (MessageKind, error) {
	for _, candidate := range validMessageKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid message kind %q", value)
}
