package container

// ErrorCode identifies why a file did not yield a verified signer certificate.
type ErrorCode int

const (
	// CodeNotSigned indicates a well-formed file that carries no signature.
	CodeNotSigned ErrorCode = iota
	// CodeMalformed indicates a signature table or PKCS #7 block that could
	// not be decoded, or that exceeds the configured size limit.
	CodeMalformed
	// CodeUnsupportedFormat indicates a file that is neither a PE image nor a
	// raw PKCS #7 signature.
	CodeUnsupportedFormat
	// CodeIO indicates the file could not be read.
	CodeIO
	// CodeBadSignature indicates the signer's signature, a signed attribute
	// or the image digest does not match what was signed.
	CodeBadSignature
	// CodeUnsupportedAlgorithm indicates a digest or signature algorithm the
	// verifier does not implement.
	CodeUnsupportedAlgorithm
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNotSigned:
		return "not signed"
	case CodeMalformed:
		return "malformed"
	case CodeUnsupportedFormat:
		return "unsupported format"
	case CodeIO:
		return "i/o"
	case CodeBadSignature:
		return "bad signature"
	case CodeUnsupportedAlgorithm:
		return "unsupported algorithm"
	default:
		return "unknown"
	}
}

// Error is the error type returned by the parser. Two errors are equal under
// errors.Is when their codes match.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is.
var (
	ErrNotSigned         = &Error{Code: CodeNotSigned}
	ErrMalformed         = &Error{Code: CodeMalformed}
	ErrUnsupportedFormat = &Error{Code: CodeUnsupportedFormat}
	ErrIO                = &Error{Code: CodeIO}

	ErrBadSignature         = &Error{Code: CodeBadSignature}
	ErrUnsupportedAlgorithm = &Error{Code: CodeUnsupportedAlgorithm}
)

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func wrapError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}
