package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestNewSystemHandler(t *testing.T) {
	h := NewSystemHandler("ledger", "1.2.3", nil)
	assert.NotNil(t, h)
	assert.False(t, h.startTime.IsZero())
}

func TestSystemHandler_Health(t *testing.T) {
	tests := []struct {
		name         string
		database     Pinger
		wantStatus   int
		wantHealth   string
		wantDatabase string
	}{
		{"no database", nil, http.StatusOK, "ok", "unknown"},
		{"database up", pingerFunc(func(context.Context) error { return nil }), http.StatusOK, "ok", "ok"},
		{
			"database down",
			pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
			http.StatusServiceUnavailable, "degraded", "unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler("ledger", "1.2.3", tt.database)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
			h.Health(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			env := decode[HealthResponse](t, w)
			assert.Equal(t, tt.wantHealth, env.Data.Status)
			assert.Equal(t, tt.wantDatabase, env.Data.Database)
			assert.Equal(t, "ledger", env.Data.Name)
			assert.Equal(t, "1.2.3", env.Data.Version)
			assert.NotEmpty(t, env.Data.GoVersion)
		})
	}
}

func TestHealthRoute(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, w).Data.Database)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
