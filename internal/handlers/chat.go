package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"talkify/api/internal/response"
)

func (h HandlerSet) StreamToken(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}

	token, err := h.services.Chat.StreamToken(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"token": token}, "Stream token generated successfully")
}
