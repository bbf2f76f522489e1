package threadloop

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPanicError(t *testing.T) {
	err := PanicError{Value: `boom`}
	assert.Equal(t, `threadloop: operation panicked: boom`, err.Error())
	assert.Nil(t, err.Unwrap())

	err = PanicError{Value: io.EOF}
	assert.ErrorIs(t, err, io.EOF)
}

func TestInvariantError(t *testing.T) {
	var err error = &InvariantError{Message: `oops`}
	assert.Equal(t, `threadloop: invariant violated: oops`, err.Error())
	var target *InvariantError
	assert.True(t, errors.As(err, &target))
}
