package resp

import "errors"

// Protocol errors terminate the connection that produced them, per the
// proxy's error-handling design: malformed RESP is never recoverable
// in-place.
var (
	ErrMalformedLength = errors.New("resp: malformed length")
	ErrMissingCRLF     = errors.New("resp: missing CRLF after declared length")
	ErrIntegerOverflow = errors.New("resp: integer overflow")
	ErrUnknownType     = errors.New("resp: unknown type byte")
	ErrNestedDepth     = errors.New("resp: array nesting too deep")
)
