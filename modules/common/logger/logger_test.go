package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("whatever"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "****", Mask("short"))
	assert.Equal(t, "abcd****mnop", Mask("abcdefghmnop"))
}

func TestMaskedLoggerHidesSecrets(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := Masked(zap.New(core)).With(zap.String("api_key", "AIzaSyDUMMYKEY1234"))

	log.Info("calling upstream", zap.String("token", "eyJhbGciOiJSUzI1NiJ9"), zap.String("user_id", "user_1"))

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "AIza**********1234", ctx["api_key"])
	assert.Equal(t, Mask("eyJhbGciOiJSUzI1NiJ9"), ctx["token"])
	assert.Equal(t, "user_1", ctx["user_id"])
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	log, err := New("debug", "json", path)
	require.NoError(t, err)
	log.Debug("hello")
	assert.NoError(t, log.Sync())
	assert.FileExists(t, path)
}
