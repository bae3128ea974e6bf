// Package errors provides standardized error codes for the desktop agent.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (server, session, image, client)
//   - error: The specific error type within that domain
//
// Codes travel to the phone in the `code` field of error frames so the app can
// react programmatically. Human-readable messages are provided alongside codes.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
const (
	// Server domain - transport and framing errors
	CodeServerInvalidMessage = "server.invalid_message" // Non-JSON frame or missing type
	CodeServerUnknownType    = "server.unknown_type"    // Frame type not recognized
	CodeServerAddressInUse   = "server.address_in_use"  // Port already bound by another process
	CodeServerListenFailed   = "server.listen_failed"   // Any other bind failure
	CodeServerUpgradeFailed  = "server.upgrade_failed"  // WebSocket upgrade failed

	// Session domain - single-writer ownership of the input surface
	CodeSessionClaimed = "session.claimed" // Another phone currently owns the input surface

	// Workspace and image domain
	CodeWorkspaceMissing  = "workspace.missing"      // No workspace directory configured
	CodeInboxWriteFailed  = "workspace.inbox_failed" // Legacy side file could not be appended
	CodeImageDecodeFailed = "image.decode_failed"    // base64 payload could not be decoded
	CodeImageSaveFailed   = "image.save_failed"      // Image could not be written to disk
	CodeImageInvalidID    = "image.invalid_id"       // Client-supplied id is unusable as a file name

	// Input domain
	CodeInputRateLimited = "input.rate_limited" // Too many frames per second

	// Command domain
	CodeCommandUnsupported = "command.unsupported" // Command not available in this variant

	// Automation domain - OS clipboard and keystroke steps
	CodeAutomationUnavailable = "automation.unavailable" // No keystroke tool for this platform
	CodeAutomationStepFailed  = "automation.step_failed" // A clipboard or keystroke step failed
	CodeAutomationUnconfirmed = "automation.unconfirmed" // Clipboard read-back did not match

	// Client domain - phone-side connection manager
	CodeClientNotConnected   = "client.not_connected"   // No open connection
	CodeClientConnectTimeout = "client.connect_timeout" // Connect did not complete in time
	CodeClientConnectFailed  = "client.connect_failed"  // Dial failed

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal server error
)

// CodedError wraps an error with a stable error code.
type CodedError struct {
	Code    string // Stable error code (e.g., "session.claimed")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for errors that carry no code.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// ToCodeAndMessage extracts both code and message from an error.
// This is the primary function for converting errors to client responses.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}

	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Common error constructors for frequently used error types.

// InvalidMessage creates a "server.invalid_message" error.
func InvalidMessage(reason string) *CodedError {
	return New(CodeServerInvalidMessage, reason)
}

// UnknownType creates a "server.unknown_type" error naming the offending type.
func UnknownType(msgType string) *CodedError {
	return New(CodeServerUnknownType, fmt.Sprintf("unknown message type: %s", msgType))
}

// AddressInUse creates a "server.address_in_use" error.
// Callers tell the user to stop the existing service rather than report a
// generic failure.
func AddressInUse(addr string, cause error) *CodedError {
	msg := fmt.Sprintf("address %s is already in use (stop the existing service or choose another port)", addr)
	return Wrap(CodeServerAddressInUse, msg, cause)
}

// ListenFailed creates a "server.listen_failed" error.
func ListenFailed(addr string, cause error) *CodedError {
	return Wrap(CodeServerListenFailed, fmt.Sprintf("failed to listen on %s", addr), cause)
}

// SessionClaimed creates a "session.claimed" error.
func SessionClaimed(owner string) *CodedError {
	return New(CodeSessionClaimed, fmt.Sprintf("input surface is in use by another connection (%s)", owner))
}

// WorkspaceMissing creates a "workspace.missing" error.
func WorkspaceMissing() *CodedError {
	return New(CodeWorkspaceMissing, "no workspace is open")
}

// CommandUnsupported creates a "command.unsupported" error.
func CommandUnsupported(command, variant string) *CodedError {
	return New(CodeCommandUnsupported, fmt.Sprintf("%s is not supported in %s mode", command, variant))
}

// StepFailed creates an "automation.step_failed" error for the named step.
func StepFailed(step string, cause error) *CodedError {
	return Wrap(CodeAutomationStepFailed, fmt.Sprintf("%s failed", step), cause)
}

// NotConnected creates a "client.not_connected" error.
func NotConnected() *CodedError {
	return New(CodeClientNotConnected, "websocket is not connected")
}

// ConnectTimeout creates a "client.connect_timeout" error.
func ConnectTimeout(url string, cause error) *CodedError {
	return Wrap(CodeClientConnectTimeout, fmt.Sprintf("connecting to %s timed out", url), cause)
}

// ConnectFailed creates a "client.connect_failed" error.
func ConnectFailed(url string, cause error) *CodedError {
	return Wrap(CodeClientConnectFailed, fmt.Sprintf("failed to connect to %s", url), cause)
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}
