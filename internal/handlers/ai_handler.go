package handlers

import (
	"net/http"

	"go-consign/internal/ai"
	"go-consign/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AskRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// AskAI answers an admin's question through the assistant.
func AskAI(agent *ai.Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. The assistant is optional
		if !agent.Enabled() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Assistant is not configured"})
			return
		}

		var req AskRequest
		if !bindAndValidate(c, &req) {
			return
		}

		// 2. Run the agent on the request context so a dropped client stops it
		response, err := agent.Ask(c.Request.Context(), req.Message)
		if err != nil {
			log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("assistant failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Assistant is unavailable right now"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"reply": response})
	}
}
