package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"referloop/message"
)

func messageJSON(m message.Message) gin.H {
	return gin.H{
		"id":         m.ID,
		"match_id":   m.MatchID,
		"sender_id":  m.SenderID,
		"body":       m.Body,
		"created_at": m.CreatedAt,
	}
}

func (s *Server) sendMessage(c *gin.Context) {
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	m, err := s.messages.Send(c.Request.Context(), c.Param("id"), actingProfile(c), req.Body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, messageJSON(m))
}

func (s *Server) matchThread(c *gin.Context) {
	ms, err := s.messages.Thread(c.Request.Context(), c.Param("id"), actingProfile(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(ms))
	for _, m := range ms {
		out = append(out, messageJSON(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}
