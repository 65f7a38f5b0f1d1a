package httpgin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestWriteJSONWithCache_SetsETagAndBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	writeJSONWithCache(c, http.StatusOK, map[string]int{"n": 1}, "public, max-age=15", true)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=15", w.Header().Get("Cache-Control"))
	tag := w.Header().Get("ETag")
	assert.NotEmpty(t, tag)
	assert.True(t, tag[0] == 'W', "expected a weak ETag, got %s", tag)
	assert.JSONEq(t, `{"n":1}`, w.Body.String())
}

func TestWriteJSONWithCache_NotModified(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// first request to learn the tag
	w1 := httptest.NewRecorder()
	c1, _ := gin.CreateTestContext(w1)
	c1.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	writeJSONWithCache(c1, http.StatusOK, map[string]int{"n": 1}, "", true)
	tag := w1.Header().Get("ETag")

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.Header.Set("If-None-Match", tag)
	writeJSONWithCache(c2, http.StatusOK, map[string]int{"n": 1}, "", true)

	assert.Equal(t, http.StatusNotModified, w2.Code)
	assert.Empty(t, w2.Body.String())
}

func TestWriteJSONWithCache_TagChangesWithBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w1 := httptest.NewRecorder()
	c1, _ := gin.CreateTestContext(w1)
	c1.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	writeJSONWithCache(c1, http.StatusOK, map[string]int{"n": 1}, "", true)

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	writeJSONWithCache(c2, http.StatusOK, map[string]int{"n": 2}, "", true)

	assert.NotEqual(t, w1.Header().Get("ETag"), w2.Header().Get("ETag"))
}
