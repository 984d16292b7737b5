package localization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalizer(t *testing.T) *Localizer {
	t.Helper()
	l, err := NewLocalizer()
	require.NoError(t, err)
	return l
}

func TestGetString_LoadsEmbeddedCatalogs(t *testing.T) {
	l := newLocalizer(t)

	for _, lang := range []string{"kk", "ru", "en"} {
		got := l.GetString(lang, "welcome")
		assert.NotEqual(t, "welcome", got, "missing welcome text for %s", lang)
	}
	// languages differ
	assert.NotEqual(t, l.GetString("kk", "welcome"), l.GetString("ru", "welcome"))
}

func TestGetString_FallsBackToDefaultLanguage(t *testing.T) {
	l := newLocalizer(t)
	assert.Equal(t, l.GetString(DefaultLanguage, "welcome"), l.GetString("de", "welcome"))
}

func TestGetString_UnknownKeyReturnsKey(t *testing.T) {
	l := newLocalizer(t)
	assert.Equal(t, "no_such_key", l.GetString("kk", "no_such_key"))
}
