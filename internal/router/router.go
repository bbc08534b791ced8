package router

import (
	"github.com/gin-gonic/gin"

	"mcaptracker/internal/handler"
	"mcaptracker/internal/ws"
)

type Config struct {
	TokenHandler *handler.TokenHandler
	Hub          *ws.Hub
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()

	registerTokenRoutes(router, cfg.TokenHandler)

	if cfg.Hub != nil {
		router.GET("/ws", cfg.Hub.Handle)
	}

	return router
}
