package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bull/rag-studio/internal/config"
)

func TestNew_WiresFromConfig(t *testing.T) {
	t.Setenv("UPLOAD_MAX_FILE_BYTES", "2048")
	t.Setenv("SESSION_MAX_SESSIONS", "1")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := config.Load("")
	require.NoError(t, err)

	a := New(cfg, zap.NewNop())
	require.NotNil(t, a.Pipeline)
	require.NotNil(t, a.Metrics)
	assert.True(t, a.Credentials.HasDefault())
	assert.Equal(t, int64(2048), a.Extractor.Limits().MaxFileBytes)
	assert.Equal(t, int64(2048), a.Pipeline.UploadLimits().MaxFileBytes)

	_, err = a.Pipeline.CreateSession()
	require.NoError(t, err)
	_, err = a.Pipeline.CreateSession()
	assert.Error(t, err)
}
