// Package api exposes the estimator over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zeitprognose/utils"
)

const shutdownTimeout = 10 * time.Second

func NewRouter(h *Handler, log *utils.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(log))

	r.GET("/healthz", h.HealthCheck)

	v1 := r.Group("/v1")
	{
		v1.GET("/model", h.Model)
		v1.POST("/estimates", h.Estimate)
		v1.GET("/orders", h.ListOrders)
		v1.GET("/orders/:number/estimate", h.EstimateOrder)
	}
	return r
}

// Server runs the router until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger *utils.Logger
}

func NewServer(addr string, handler http.Handler, logger *utils.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run blocks until ctx is done, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[api] listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("[api] shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
