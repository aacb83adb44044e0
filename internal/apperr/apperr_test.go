package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(KindAuth, "invalid key")
	wrapped := fmt.Errorf("embed: %w", err)

	assert.Equal(t, KindAuth, KindOf(err))
	assert.Equal(t, KindAuth, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.True(t, Is(wrapped, KindAuth))
	assert.False(t, Is(nil, KindAuth))
}

func TestMessage(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(KindUpstream, cause, "embedding request failed")

	assert.Equal(t, "embedding request failed", Message(err))
	assert.Equal(t, "embedding request failed: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "plain", Message(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalidInput, http.StatusBadRequest},
		{KindMissingCredential, http.StatusBadRequest},
		{KindResourceLimit, http.StatusBadRequest},
		{KindAuth, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindUpstream, http.StatusInternalServerError},
		{KindUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}
