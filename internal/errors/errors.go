// Package errors defines the error taxonomy of the connector: configuration errors
// that stop the service at startup, expired bot sessions that are recovered by
// starting a new conversation, and backend failures that end the current request.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a ConnectorError.
type Kind string

const (
	// KindConfig marks missing or invalid configuration. Fatal at startup.
	KindConfig Kind = "config"
	// KindSessionExpired marks a bot conversation token rejected by the Chatbot API.
	KindSessionExpired Kind = "session_expired"
	// KindBackend marks any other failure of a backend call.
	KindBackend Kind = "backend"
)

// ConnectorError is the error type returned by the backend clients and the engine.
type ConnectorError struct {
	Kind    Kind
	Service string
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface
func (e *ConnectorError) Error() string {
	prefix := string(e.Kind)
	if e.Service != "" {
		prefix = e.Service
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying cause error
func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// Config creates a configuration error
func Config(format string, args ...any) *ConnectorError {
	return &ConnectorError{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// SessionExpired creates the error the Chatbot API answers when the conversation
// token is no longer valid.
func SessionExpired(code int, message string) *ConnectorError {
	return &ConnectorError{Kind: KindSessionExpired, Service: "chatbot", Code: code, Message: message}
}

// Backend wraps a failure of the named backend service.
func Backend(service string, code int, message string, cause error) *ConnectorError {
	return &ConnectorError{Kind: KindBackend, Service: service, Code: code, Message: message, Cause: cause}
}

// IsKind reports whether any error in err's chain is a ConnectorError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *ConnectorError
	if stderrors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// IsSessionExpired reports whether err means the bot conversation must be restarted.
func IsSessionExpired(err error) bool {
	return IsKind(err, KindSessionExpired)
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	return IsKind(err, KindConfig)
}
