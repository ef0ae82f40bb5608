package errors

import "fmt"

var (
	ErrMissingSender      = fmt.Errorf("message has no sender")
	ErrExclusiveRecipient = fmt.Errorf("message needs exactly one of a recipient or a group")
	ErrNotGroupMember     = fmt.Errorf("sender is not a member of the group")
	ErrGroupNotFound      = fmt.Errorf("group not found")
	ErrMessageNotFound    = fmt.Errorf("message not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrInvalidToken       = fmt.Errorf("invalid handshake token")
	ErrMissingIdentity    = fmt.Errorf("handshake carries no identity")
	ErrUnknownEvent       = fmt.Errorf("unknown event name")
	ErrInvalidMessageType = fmt.Errorf("invalid message type")
)
