package http

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelierhq/roomora-backend/internal/platform/envutil"
)

const defaultAddr = ":8080"

// Server runs the gin engine behind an http.Server so shutdown drains
// in-flight requests instead of dropping them mid-edit.
type Server struct {
	Engine *gin.Engine
	srv    *nethttp.Server
}

func NewServer(cfg RouterConfig) *Server {
	engine := NewRouter(cfg)
	return &Server{
		Engine: engine,
		srv: &nethttp.Server{
			Handler:           engine,
			ReadHeaderTimeout: envutil.Seconds("HTTP_READ_HEADER_TIMEOUT_SECONDS", 10),
		},
	}
}

// Run serves until the listener fails or Shutdown is called. An empty
// address falls back to HTTP_ADDR, then defaultAddr.
func (s *Server) Run(address string) error {
	if address == "" {
		address = envutil.Str("HTTP_ADDR", defaultAddr)
	}
	s.srv.Addr = address
	if err := s.srv.ListenAndServe(); !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting new requests and waits for in-flight ones,
// bounded by the passed context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
