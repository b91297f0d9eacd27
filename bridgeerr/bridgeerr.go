// Package bridgeerr defines the relay engine's error taxonomy and the
// fail-fast formatting cmd/bridge uses to print a chained error to the
// operator.
package bridgeerr

import (
	"errors"
	"fmt"
	"strings"
)

// Category is one of the fixed error kinds the relay engine recognizes.
// Errors built with New carry one, and CategoryOf recovers it from a
// wrapped chain; nothing in the metrics package counts errors by category.
type Category string

const (
	Config      Category = "config"
	IO          Category = "io"
	MissingFile Category = "missing_file"
	RPC         Category = "rpc"
	Timeout     Category = "timeout"
	AbiDecode   Category = "abi_decode"
	Contract    Category = "contract"
	Logic       Category = "logic"
)

// Error wraps a cause with its category and a human-readable message.
type Error struct {
	Category Category
	Message  string
	Cause    error
}

func New(cat Category, message string, cause error) *Error {
	return &Error{Category: cat, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// CategoryOf walks err's Unwrap chain looking for the first *Error, and
// returns its Category, or "" if none is found.
func CategoryOf(err error) Category {
	var be *Error
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

// Chain renders err and its full cause chain in the operator-facing
// format cmd/bridge and cmd/deploy print on a fatal error:
//
//	<message>
//
//	Caused by:
//	  <cause>
//
//	Caused by:
//	  ...
//
// Each level prints only its own message: the ": <cause>" suffix a
// wrapping error appends is trimmed, since the cause follows on its own.
func Chain(err error) string {
	var b strings.Builder
	for e, i := err, 0; e != nil; e, i = errors.Unwrap(e), i+1 {
		if i > 0 {
			b.WriteString("\n\nCaused by:\n  ")
		}
		msg := e.Error()
		if cause := errors.Unwrap(e); cause != nil {
			msg = strings.TrimSuffix(msg, ": "+cause.Error())
		}
		b.WriteString(msg)
	}
	return b.String()
}
