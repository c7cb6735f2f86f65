package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/config"
)

// Server wraps the standard http.Server configured with the Gin router.
type Server struct {
	*http.Server
	logger zerolog.Logger
}

// NewServer builds and configures the Gin server, including the
// notification API and the health check endpoint.
func NewServer(cfg *config.Config, handlers *Handlers, logger *zerolog.Logger) *Server {
	log := logger.With().Str("layer", "http_server").Logger()

	gin.SetMode(cfg.HTTP.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	handlers.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &Server{
		Server: &http.Server{
			Addr:    cfg.HTTP.Port,
			Handler: router,
		},
		logger: log,
	}
}
