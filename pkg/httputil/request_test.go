package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard header", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi"},
		{"mixed case scheme", "BeArEr tok", "tok"},
		{"no header", "", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ""},
		{"scheme without token", "Bearer", ""},
		{"padded token", "Bearer   tok  ", "tok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, BearerToken(r))
		})
	}
}

func TestClientIP(t *testing.T) {
	t.Run("remote addr without proxy", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.7:51234"
		assert.Equal(t, "192.0.2.7", ClientIP(r))
	})

	t.Run("first forwarded entry wins", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "10.0.0.1:80"
		r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
		assert.Equal(t, "198.51.100.4", ClientIP(r))
	})

	t.Run("remote addr without port", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.7"
		assert.Equal(t, "192.0.2.7", ClientIP(r))
	})
}

func TestParseJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@uni.edu"}`))
		var p payload
		require.NoError(t, ParseJSON(r, &p))
		assert.Equal(t, "a@uni.edu", p.Email)
	})

	t.Run("invalid body writes 400", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{broken`))
		w := httptest.NewRecorder()
		var p payload
		assert.False(t, ParseJSONOrError(w, r, &p))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid JSON")
	})
}

func TestResponseWriters(t *testing.T) {
	t.Run("error envelope", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteUnauthorized(w, "authentication required")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"error":"authentication required"}`, w.Body.String())
	})

	t.Run("internal error hides details", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteInternalError(w)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	})

	t.Run("success passes data through", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteSuccess(w, map[string]string{"status": "ok"}))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("no content has an empty body", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteNoContent(w)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}
