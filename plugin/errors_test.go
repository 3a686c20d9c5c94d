package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatalRecognizesWrappedFatalError(t *testing.T) {
	base := errors.New("device unreachable")
	wrapped := &FatalError{Err: base}

	assert.True(t, IsFatal(wrapped))
	assert.False(t, IsFatal(base))
}

func TestNewSourceErrorClassifiesFatalFromErrType(t *testing.T) {
	retry := NewSourceError("source/plug/s1", errors.New("timeout"))
	assert.False(t, retry.Fatal)

	fatal := NewSourceError("source/plug/s1", &FatalError{Err: errors.New("config invalid")})
	assert.True(t, fatal.Fatal)
}
