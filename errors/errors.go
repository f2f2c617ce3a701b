package errors

import "fmt"

// Session level failures. Every one of them ends the session.
var (
	ErrStartup          = fmt.Errorf("startup failed")
	ErrIdentity         = fmt.Errorf("input closed before a name was entered")
	ErrPublish          = fmt.Errorf("failed to produce")
	ErrRecv             = fmt.Errorf("failed to read message")
	ErrMalformedMessage = fmt.Errorf("malformed message")
)

var (
	ErrEmptySender   = fmt.Errorf("sender must not be empty")
	ErrUnknownBroker = fmt.Errorf("unknown broker kind")
	ErrClosed        = fmt.Errorf("broker connection closed")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrEmptyWords    = fmt.Errorf("no words have been found")
)

// Wrap tags err with one of the sentinels above so that callers can test both.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, err)
}
