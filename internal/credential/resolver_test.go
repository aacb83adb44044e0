package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-studio/internal/apperr"
)

func TestResolve(t *testing.T) {
	t.Run("request key wins", func(t *testing.T) {
		key, err := NewResolver("sk-default").Resolve("sk-request")
		require.NoError(t, err)
		assert.Equal(t, "sk-request", key)
	})

	t.Run("falls back to default", func(t *testing.T) {
		key, err := NewResolver("sk-default").Resolve("  ")
		require.NoError(t, err)
		assert.Equal(t, "sk-default", key)
	})

	t.Run("missing everywhere", func(t *testing.T) {
		r := NewResolver("")
		_, err := r.Resolve("")
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindMissingCredential))
		assert.False(t, r.HasDefault())
	})

	t.Run("nil resolver", func(t *testing.T) {
		var r *Resolver
		_, err := r.Resolve("")
		assert.True(t, apperr.Is(err, apperr.KindMissingCredential))
	})
}
