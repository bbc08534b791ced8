package router

import (
	"github.com/gin-gonic/gin"

	"mcaptracker/internal/handler"
)

func registerTokenRoutes(router *gin.Engine, tokenHandler *handler.TokenHandler) {
	router.POST("/add-token", tokenHandler.AddToken)
	router.GET("/health", tokenHandler.Health)

	tokens := router.Group("/tokens")
	{
		tokens.GET("", tokenHandler.ListTokens)
		tokens.GET("/:id", tokenHandler.GetToken)
	}
}
