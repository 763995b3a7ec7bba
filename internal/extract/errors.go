package extract

import (
	"fmt"

	"github.com/lherron/relink/internal/domain"
)

// UnknownDialectError is returned for a note whose markup dialect is not supported.
// The note is skipped; the run continues.
type UnknownDialectError struct {
	Dialect domain.Dialect
	Err     error
}

func (e *UnknownDialectError) Error() string {
	return fmt.Sprintf("unknown markup dialect %s", e.Dialect)
}

func (e *UnknownDialectError) Unwrap() error {
	return e.Err
}

// CheckDialect returns *UnknownDialectError unless d is a supported dialect
func CheckDialect(d domain.Dialect) error {
	if err := domain.ValidateDialect(d); err != nil {
		return &UnknownDialectError{Dialect: d, Err: err}
	}
	return nil
}

// MalformedLinkError is yielded for a legacy link whose URI cannot be parsed.
// The link is skipped; it is not a resolution failure.
type MalformedLinkError struct {
	URI    string
	Reason string
	Start  int
}

func (e *MalformedLinkError) Error() string {
	return fmt.Sprintf("malformed legacy link %q at offset %d: %s", e.URI, e.Start, e.Reason)
}
