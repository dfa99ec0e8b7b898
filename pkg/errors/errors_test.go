package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{301, ErrorTypeRedirect},
		{302, ErrorTypeRedirect},
		{400, ErrorTypeRateLimit},
		{401, ErrorTypeAuth},
		{403, ErrorTypeServerError},
		{404, ErrorTypeNotFound},
		{500, ErrorTypeServerError},
		{502, ErrorTypeServerError},
		{503, ErrorTypeServerError},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatus(tt.status))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	for _, typ := range []ErrorType{ErrorTypeNetwork, ErrorTypeConnection, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeRedirect} {
		assert.True(t, IsRetryable(typ), typ)
	}
	for _, typ := range []ErrorType{ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeCanceled, ErrorTypeUnknown} {
		assert.False(t, IsRetryable(typ), typ)
	}
}

func TestTypeThroughWrapping(t *testing.T) {
	base := Wrap(ErrorTypeConnection, 0, io.ErrUnexpectedEOF, "incomplete read")
	wrapped := fmt.Errorf("friends page 2 of 42: %w", base)

	assert.Equal(t, ErrorTypeConnection, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeConnection))
	assert.False(t, Is(wrapped, ErrorTypeNetwork))
	assert.True(t, errors.Is(wrapped, io.ErrUnexpectedEOF))

	assert.Equal(t, ErrorTypeUnknown, TypeOf(io.EOF))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(nil))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "not_found error (code 404): no such user", New(ErrorTypeNotFound, 404, "no such %s", "user").Error())
	assert.Equal(t, "connection error (code 0): incomplete read: unexpected EOF",
		Wrap(ErrorTypeConnection, 0, io.ErrUnexpectedEOF, "incomplete read").Error())
}
