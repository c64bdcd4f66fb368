package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const readinessTimeout = 5 * time.Second

// ReadinessCheck probes one dependency. A nil return means ready.
type ReadinessCheck func(ctx context.Context) error

// Server is the operational HTTP surface of the bot: liveness, readiness
// and a plain health endpoint for load balancers.
type Server struct {
	httpServer *http.Server
}

type Options struct {
	Port   int
	Origin string
	Debug  bool

	// Checks are probed by /ready, keyed by dependency name.
	Checks map[string]ReadinessCheck
}

func NewServer(opts Options) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           newRouter(opts),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func newRouter(opts Options) *gin.Engine {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), Logger())

	if opts.Origin != "" {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = []string{opts.Origin}
		router.Use(cors.New(corsConfig))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})
	router.GET("/ready", readinessHandler(opts.Checks))

	return router
}

func readinessHandler(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		results := make(gin.H, len(checks))
		ready := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				ready = false
			} else {
				results[name] = "ok"
			}
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": ready, "checks": results})
	}
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
