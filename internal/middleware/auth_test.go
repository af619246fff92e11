package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActorMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		headers   map[string]string
		actor     string
		userID    string
		sessionID string
	}{
		{"anonymous", nil, "System", "", ""},
		{"session only", map[string]string{HeaderSessionID: "sess-1"}, "System", "", "sess-1"},
		{"user", map[string]string{HeaderUserID: " user-1 "}, "user-1", "user-1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			var called bool
			err := ActorMiddleware()(func(c echo.Context) error {
				called = true
				assert.Equal(t, tt.actor, Actor(c))
				assert.Equal(t, tt.userID, UserID(c))
				assert.Equal(t, tt.sessionID, SessionID(c))
				return nil
			})(c)
			require.NoError(t, err)
			assert.True(t, called)
		})
	}
}

func TestActor_WithoutMiddleware(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, "System", Actor(c))
	assert.Empty(t, UserID(c))
}
