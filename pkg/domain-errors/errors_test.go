package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapAndCodes(t *testing.T) {
	t.Run("wrap nil returns nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		base := New(CodeRateLimited, "cooldown active")
		err := fmt.Errorf("transfer: %w", base)
		assert.True(t, HasCode(err, CodeRateLimited))
		assert.Equal(t, CodeRateLimited, CodeOf(err))
	})

	t.Run("wrapped cause is reachable", func(t *testing.T) {
		cause := errors.New("disk on fire")
		err := Wrap(cause, CodeInternal, "failed to load balance")
		require.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to load balance: disk on fire", err.Error())
	})

	t.Run("plain errors report internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeUnauthorized:        http.StatusForbidden,
		CodeValidation:          http.StatusBadRequest,
		CodeUsernameTaken:       http.StatusConflict,
		CodeSystemPaused:        http.StatusServiceUnavailable,
		CodeRateLimited:         http.StatusTooManyRequests,
		CodeQuotaExceeded:       http.StatusTooManyRequests,
		CodeInsufficientBalance: http.StatusUnprocessableEntity,
		CodeInvalidRate:         http.StatusBadGateway,
		CodeInternal:            http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
