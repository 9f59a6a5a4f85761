package json

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantError  string
	}{
		{
			name:       "bad request",
			write:      func(w http.ResponseWriter) { WriteBadRequest(w, "email is required") },
			wantStatus: http.StatusBadRequest,
			wantError:  "bad_request",
		},
		{
			name:       "unauthorized",
			write:      func(w http.ResponseWriter) { WriteUnauthorized(w, "invalid credentials") },
			wantStatus: http.StatusUnauthorized,
			wantError:  "unauthorized",
		},
		{
			name:       "forbidden",
			write:      func(w http.ResponseWriter) { WriteForbidden(w, "access denied") },
			wantStatus: http.StatusForbidden,
			wantError:  "forbidden",
		},
		{
			name:       "too many requests",
			write:      func(w http.ResponseWriter) { WriteTooManyRequests(w, "slow down") },
			wantStatus: http.StatusTooManyRequests,
			wantError:  "too_many_requests",
		},
		{
			name:       "service unavailable",
			write:      func(w http.ResponseWriter) { WriteServiceUnavailable(w, "upstream down") },
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "service_unavailable",
		},
		{
			name:       "gateway timeout",
			write:      func(w http.ResponseWriter) { WriteGatewayTimeout(w, "upstream timed out") },
			wantStatus: http.StatusGatewayTimeout,
			wantError:  "upstream_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp ErrorResponse
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestWrite(t *testing.T) {
	w := httptest.NewRecorder()

	assert.NoError(t, Write(w, map[string]any{"success": true}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true}`, w.Body.String())
}
