// Package errcode defines the error codes shared by the extraction packages.
//
// Errors are built with github.com/agilira/go-errors so every failure carries a
// machine-checkable code plus key/value context (offsets, section names).
package errcode

import (
	stderrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes.
const (
	Format          = "FFLAG_FORMAT"            // image headers unparsable
	SectionNotFound = "FFLAG_SECTION_NOT_FOUND" // required section missing
	OutOfBounds     = "FFLAG_OUT_OF_BOUNDS"     // read past buffer end
	Encoding        = "FFLAG_ENCODING"          // invalid UTF-8 in a decoded string
	Parse           = "FFLAG_PARSE"             // settings value does not match its type
	NotFound        = "FFLAG_NOT_FOUND"         // flag name absent from a registry
	Unusable        = "FFLAG_UNUSABLE"          // flag present but Invalid/Uninit
	StaleCache      = "FFLAG_STALE_CACHE"       // cached version differs
	Overflow        = "FFLAG_OVERFLOW"          // value does not fit its encoded width
	Pattern         = "FFLAG_PATTERN"           // malformed byte signature
	Config          = "FFLAG_CONFIG"            // invalid configuration
	IO              = "FFLAG_IO"                // filesystem failure
)

// New returns a coded error.
func New(code, msg string) *errors.Error {
	return errors.New(errors.ErrorCode(code), msg)
}

// Wrap attaches a code and message to err.
func Wrap(err error, code, msg string) *errors.Error {
	return errors.Wrap(err, errors.ErrorCode(code), msg)
}

// Of returns the outermost code found in err's chain, or "" if none.
func Of(err error) string {
	var coder errors.ErrorCoder
	if stderrors.As(err, &coder) {
		return string(coder.ErrorCode())
	}
	return ""
}

// Has reports whether any error in err's chain carries code.
func Has(err error, code string) bool {
	for err != nil {
		if coder, ok := err.(errors.ErrorCoder); ok && string(coder.ErrorCode()) == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}
