package cookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSessionID(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionID(rec, "sess-42", 24*time.Hour)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	c := cookies[0]
	assert.Equal(t, SessionIDCookie, c.Name)
	assert.Equal(t, "sess-42", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 86400, c.MaxAge)
}

func TestClearSession(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearSession(rec)

	cleared := make(map[string]bool)
	for _, c := range rec.Result().Cookies() {
		assert.Negative(t, c.MaxAge)
		cleared[c.Name] = true
	}
	assert.True(t, cleared[SessionIDCookie])
	assert.True(t, cleared[LegacySessionIDCookie])
	assert.True(t, cleared[LegacyAuthCookie])
}

func TestGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionIDCookie, Value: "sess-42"})

	value, err := Get(req, SessionIDCookie)
	require.NoError(t, err)
	assert.Equal(t, "sess-42", value)

	_, err = Get(req, "absent")
	assert.Error(t, err)
}
