package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mcaptracker/internal/model"
	"mcaptracker/internal/service"
)

type AddTokenRequest struct {
	Name      string  `json:"name" binding:"required"`
	Link      string  `json:"link" binding:"required"`
	Address   *string `json:"address"`
	Timestamp int64   `json:"timestamp"`
	Liquidity *string `json:"liquidity"`
	MarketCap string  `json:"market_cap" binding:"required"`
	Narrative *string `json:"narrative"`
}

type TokenHandler struct {
	tokenService *service.TokenService
	logger       *logrus.Logger

	// Publish, when set, receives the stored view of every ingested token.
	Publish func(model.TokenView)
}

func NewTokenHandler(service *service.TokenService, logger *logrus.Logger) *TokenHandler {
	return &TokenHandler{
		tokenService: service,
		logger:       logger,
	}
}

func (h *TokenHandler) AddToken(c *gin.Context) {
	var req AddTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.tokenService.AddToken(c.Request.Context(), service.AddTokenInput{
		Name:      req.Name,
		Link:      req.Link,
		Address:   req.Address,
		Timestamp: req.Timestamp,
		Liquidity: req.Liquidity,
		MarketCap: req.MarketCap,
		Narrative: req.Narrative,
	})
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to store token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store token"})
		return
	}

	if h.Publish != nil {
		if view, err := h.tokenService.GetToken(c.Request.Context(), id); err == nil && view != nil {
			h.Publish(*view)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"id":      id,
		"message": "token tracked",
	})
}

func (h *TokenHandler) ListTokens(c *gin.Context) {
	views, err := h.tokenService.ListTokens(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list tokens")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tokens"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": views})
}

func (h *TokenHandler) GetToken(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
		return
	}

	view, err := h.tokenService.GetToken(c.Request.Context(), uint(id))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get token"})
		return
	}
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TokenHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
