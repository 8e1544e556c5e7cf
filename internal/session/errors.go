package session

import "fmt"

// Code is a stable machine-readable failure category. Callers branch on
// codes, never on message text.
type Code string

const (
	CodeNoConnection      Code = "no_connection"      // client id never connected or fully torn down
	CodeNotConnected      Code = "not_connected"      // entry exists but the venue session is dead
	CodeConnectionFailed  Code = "connection_failed"  // connect attempt did not succeed
	CodeOperationFailed   Code = "operation_failed"   // venue error during a guarded call
	CodePartialCompletion Code = "partial_completion" // multi-step order workflow stopped partway
)

// Error is the structured failure every session operation returns. It
// always names the originating client id.
type Error struct {
	Code     Code
	ClientID int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (client %d): %s: %v", e.Code, e.ClientID, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (client %d): %s", e.Code, e.ClientID, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNoConnection reports that no entry exists for the client id.
func ErrNoConnection(clientID int) *Error {
	return &Error{Code: CodeNoConnection, ClientID: clientID, Message: "No connection found for clientId"}
}

// ErrNotConnected reports a present but disconnected entry.
func ErrNotConnected(clientID int) *Error {
	return &Error{Code: CodeNotConnected, ClientID: clientID, Message: "Not connected"}
}

// ErrConnectionFailed reports a failed connect attempt.
func ErrConnectionFailed(clientID int, err error) *Error {
	return &Error{Code: CodeConnectionFailed, ClientID: clientID, Message: "Connection failed", Err: err}
}

// ErrOperationFailed wraps a venue error surfaced during a guarded call.
func ErrOperationFailed(clientID int, op string, err error) *Error {
	return &Error{Code: CodeOperationFailed, ClientID: clientID, Message: op + " failed", Err: err}
}
