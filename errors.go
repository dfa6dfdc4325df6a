package bitslab

import (
	"errors"
	"fmt"
)

var (
	// ErrContractViolation is wrapped by every panic the Store raises for
	// caller misuse (unknown symbols, out-of-range vector accesses, use after
	// Close).
	ErrContractViolation = errors.New("bitslab: contract violation")

	// ErrClosed is returned by IO operations on a closed Store.
	ErrClosed = errors.New("bitslab: store closed")
)

// ErrUnknownSymbol indicates a symbol that was never created or has been
// released.
//
// It unwraps to ErrContractViolation.
type ErrUnknownSymbol struct {
	Symbol Symbol
}

func (e *ErrUnknownSymbol) Error() string {
	return fmt.Sprintf("bitslab: unknown symbol %d", e.Symbol)
}

func (e *ErrUnknownSymbol) Unwrap() error { return ErrContractViolation }

// ErrCorruptImage indicates an image that cannot be decoded into a
// consistent Store.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrCorruptImage struct {
	Section string
	cause   error
}

func (e *ErrCorruptImage) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("bitslab: corrupt image (%s)", e.Section)
	}
	return fmt.Sprintf("bitslab: corrupt image (%s): %v", e.Section, e.cause)
}

func (e *ErrCorruptImage) Unwrap() error { return e.cause }

func corrupt(section string, err error) error {
	return &ErrCorruptImage{Section: section, cause: err}
}
