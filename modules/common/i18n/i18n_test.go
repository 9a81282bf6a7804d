package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	m, err := NewManager("en", zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, language.English, m.Match(""))
	assert.Equal(t, language.English, m.Match("fr-FR,fr;q=0.9"))
	assert.Equal(t, language.Arabic, m.Match("ar-OM,ar;q=0.9,en;q=0.8"))
	assert.Equal(t, language.English, m.Match("en-US"))
}

func TestLocalize(t *testing.T) {
	m, err := NewManager("en", zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "Too many requests. Please wait 12 seconds and try again.",
		m.Localize("en", MsgRateLimited, map[string]interface{}{"WaitSeconds": 12}))
	assert.Contains(t, m.Localize("ar", MsgRateLimited, map[string]interface{}{"WaitSeconds": 12}), "12")
	assert.Equal(t, "يرجى تسجيل الدخول للمتابعة.", m.Localize("ar-OM", MsgUnauthorized, nil))
	assert.Equal(t, "NoSuchMessage", m.Localize("en", "NoSuchMessage", nil))
}
