package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := NewUnavailableError("city lookup failed", cause)

	assert.Equal(t, "UNAVAILABLE: city lookup failed: dial tcp: refused", err.Error())
	assert.True(t, stderrors.Is(err, cause))

	plain := NewNotFoundError("address not in database")
	assert.Equal(t, "NOT_FOUND: address not in database", plain.Error())
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("window skipped: %w", NewExternalError("analytics api", 502, nil))
	assert.Equal(t, ErrorTypeExternal, TypeOf(wrapped))
	assert.Equal(t, ErrorType(""), TypeOf(fmt.Errorf("plain")))
}

func TestIsType_Joined(t *testing.T) {
	err := stderrors.Join(
		NewNotFoundError("asn"),
		fmt.Errorf("city: %w", NewMalformedInputError("bad ip", nil)),
	)

	assert.True(t, IsType(err, ErrorTypeNotFound))
	assert.True(t, IsType(err, ErrorTypeMalformedInput))
	assert.False(t, IsType(err, ErrorTypeUnavailable))
	assert.False(t, IsType(nil, ErrorTypeNotFound))
}

func TestIsType_NestedAppError(t *testing.T) {
	err := NewPayloadError("page rejected", NewMalformedInputError("json", nil))
	assert.True(t, IsType(err, ErrorTypePayload))
	assert.True(t, IsType(err, ErrorTypeMalformedInput))
}

func TestIsType_WrappedJoin(t *testing.T) {
	err := fmt.Errorf("geo: %w", stderrors.Join(
		NewNotFoundError("city"),
		NewUnavailableError("asn reader closed", nil),
	))

	assert.True(t, IsType(err, ErrorTypeNotFound))
	assert.True(t, IsType(err, ErrorTypeUnavailable))
	assert.Equal(t, ErrorTypeNotFound, TypeOf(err))
}
