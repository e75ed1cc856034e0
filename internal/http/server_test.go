package http

import (
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	httpH "github.com/atelierhq/roomora-backend/internal/http/handlers"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewServer(RouterConfig{Log: log, HealthHandler: httpH.NewHealthHandler()})
}

func TestServerServesHealthcheck(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(nethttp.MethodGet, "/healthcheck", nil)
	rec := httptest.NewRecorder()
	s.Engine.ServeHTTP(rec, req)

	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestServerRunAfterShutdownReturnsClean(t *testing.T) {
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")
	s := testServer(t)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	// A shut-down server refuses to listen; Run swallows ErrServerClosed so
	// the caller sees a clean exit.
	if err := s.Run(""); err != nil {
		t.Fatalf("run after shutdown: %v", err)
	}
	if s.srv.Addr != "127.0.0.1:0" {
		t.Fatalf("empty address did not fall back to HTTP_ADDR: %q", s.srv.Addr)
	}
}
