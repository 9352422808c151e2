package identity

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var colourTag = regexp.MustCompile(`^#[0-9a-f]{6}$`)

func TestNew(t *testing.T) {
	a, b := New(), New()
	assert.Regexp(t, colourTag, a)
	assert.Regexp(t, colourTag, b)
}

func TestMiddleware_StableAcrossRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Sessions("0123456789abcdef0123456789abcdef"), Middleware())
	r.GET("/whoami", func(c *gin.Context) { c.String(http.StatusOK, FromContext(c)) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusOK, first.Code)
	id := first.Body.String()
	assert.Regexp(t, colourTag, id)

	cookies := first.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	second := httptest.NewRecorder()
	r.ServeHTTP(second, req)
	assert.Equal(t, id, second.Body.String())

	third := httptest.NewRecorder()
	r.ServeHTTP(third, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.NotEqual(t, id, third.Body.String(), "a new session gets a new identity")
}
