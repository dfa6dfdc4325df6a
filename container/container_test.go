package container

import (
	"errors"
	"testing"

	"github.com/hupe1980/bitslab/bitvec"
	"github.com/stretchr/testify/require"
)

func newRoot() Root {
	return NewRoot(bitvec.New(0))
}

// requirePanicIs runs fn and requires it to panic with an error wrapping target.
func requirePanicIs(t *testing.T, target error, fn func()) {
	t.Helper()

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.True(t, errors.Is(err, target), "panic %v does not wrap %v", err, target)
	}()

	fn()
}
