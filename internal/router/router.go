// Package router wires the HTTP handlers into a gin engine.
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Brownie44l1/dept-classifier/internal/config"
	"github.com/Brownie44l1/dept-classifier/internal/handlers"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func New(h *handlers.Handler, cfg config.ServerSettings, log *slog.Logger) *gin.Engine {
	r := gin.New()

	r.Use(
		RequestID(),
		AccessLog(log),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			log.Error("panic while handling request", "panic", recovered, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusInternalServerError, handlers.ErrorResponse{
				Error:  "Prediction failed",
				Detail: "internal server error",
			})
		}),
		cors.New(corsConfig(cfg.CORSOrigins)),
		BodyLimit(cfg.MaxBodyBytes),
	)

	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)
	r.POST("/predict/image", h.PredictFromImage)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", "Content-Type", HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
