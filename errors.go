/*
Package sigident extracts the code-signing identity of a file and decides
whether the file is trusted.

An Extractor reads the signer certificate embedded in a PE image (or a raw
PKCS #7 signature file), renders its issuer and subject distinguished names,
pulls out the organizations and the public key fingerprint, and asks a trust
engine for a verdict. On Windows the engine is WinVerifyTrust; elsewhere the
signature and the Authenticode image digest are verified and the signer
chain is checked against a root pool with crypto/x509.

Extraction never fails. A missing, unsigned or corrupt file yields the zero
SigningIdentity, and the reason is reported through the configured logger.
Failures to read a certificate are reported once per path per time window.
*/
package sigident

import "errors"

// ErrorCode identifies the category of a sigident error.
type ErrorCode int

const (
	// CodeInvalidConfiguration indicates an Extractor option is invalid.
	// Multiple configuration errors are joined using errors.Join.
	CodeInvalidConfiguration ErrorCode = iota + 1
)

func (c ErrorCode) String() string {
	switch c {
	case CodeInvalidConfiguration:
		return "InvalidConfiguration"
	default:
		return "Unknown"
	}
}

// LoadFailure is the reason a signer certificate could not be loaded. The
// zero value means the certificate was loaded.
type LoadFailure int

const (
	// LoadNotFound indicates the path does not exist.
	LoadNotFound LoadFailure = iota + 1
	// LoadNoCertificate indicates the file exists but no signer certificate
	// could be read from it.
	LoadNoCertificate
)

func (f LoadFailure) String() string {
	switch f {
	case 0:
		return "Loaded"
	case LoadNotFound:
		return "NotFound"
	case LoadNoCertificate:
		return "NoCertificate"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by this package. It implements the error
// interface and supports error chain inspection via errors.Is and errors.As.
type Error struct {
	// Code identifies the category of this error.
	Code ErrorCode
	// Message is a human-readable description of the error.
	Message string
	// Cause is the underlying error that triggered this error, if any.
	Cause error
}

// Error returns a string representation of the error, including the cause if present.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error by comparing error codes. This
// enables errors.Is(err, sigident.ErrInvalidConfiguration) to match any *Error
// with the same code, regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for use with errors.Is.
var (
	// ErrInvalidConfiguration is returned by New when an option is invalid.
	ErrInvalidConfiguration = &Error{Code: CodeInvalidConfiguration}
)

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func wrapError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

func newConfigError(msg string) *Error {
	return newError(CodeInvalidConfiguration, msg)
}

// joinErrors returns a joined error from the provided slice, or nil if empty.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
