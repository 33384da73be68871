package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Instance not found")
		assert.Equal(t, "NOT_FOUND: Instance not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(ErrCodeChannelUnavailable, "Channel dropped", cause)
		assert.Contains(t, err.Error(), "CHANNEL_UNAVAILABLE")
		assert.Contains(t, err.Error(), "Channel dropped")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "instanceId", "reason": "empty"}
		err := New(ErrCodeInvalidInput, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})

	t.Run("errors.Is matches wrapped cause", func(t *testing.T) {
		cause := errors.New("dial tcp: refused")
		err := ChannelUnavailable("could not open channel", cause)
		assert.True(t, errors.Is(err, cause))
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"RequestFailed", func() *AppError { return RequestFailed("test", nil) }, ErrCodeRequestFailed},
		{"ChannelUnavailable", func() *AppError { return ChannelUnavailable("test", nil) }, ErrCodeChannelUnavailable},
		{"MalformedEvent", func() *AppError { return MalformedEvent(errors.New("bad json")) }, ErrCodeMalformedEvent},
		{"ArtifactExpired", func() *AppError { return ArtifactExpired() }, ErrCodeArtifactExpired},
		{"InvalidState", func() *AppError { return InvalidState("regenerate", "idle") }, ErrCodeInvalidState},
		{"SessionDisposed", func() *AppError { return SessionDisposed() }, ErrCodeSessionDisposed},
		{"InvalidInput", func() *AppError { return InvalidInput("instanceId", "empty") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("instanceId") }, ErrCodeMissingRequired},
		{"NotFound", func() *AppError { return NotFound("Instance") }, ErrCodeNotFound},
		{"AlreadyExists", func() *AppError { return AlreadyExists("Instance") }, ErrCodeAlreadyExists},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestHelpers(t *testing.T) {
	t.Run("IsAppError detects AppError", func(t *testing.T) {
		assert.True(t, IsAppError(New(ErrCodeInternal, "x")))
		assert.False(t, IsAppError(errors.New("plain")))
	})

	t.Run("IsAppError detects wrapped AppError", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", RequestFailed("inner", nil))
		assert.True(t, IsAppError(wrapped))
	})

	t.Run("AsAppError extracts AppError", func(t *testing.T) {
		orig := InvalidState("start", "linked")
		appErr, ok := AsAppError(fmt.Errorf("wrap: %w", orig))
		assert.True(t, ok)
		assert.Equal(t, ErrCodeInvalidState, appErr.Code)
	})

	t.Run("GetCode falls back to internal", func(t *testing.T) {
		assert.Equal(t, ErrCodeRequestFailed, GetCode(RequestFailed("x", nil)))
		assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
	})
}
