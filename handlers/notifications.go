package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) listNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	ns, err := s.notifications.List(c.Request.Context(), actingProfile(c), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(ns))
	for _, n := range ns {
		out = append(out, gin.H{
			"id":         n.ID,
			"kind":       n.Kind,
			"ref_id":     n.RefID,
			"read":       n.Read,
			"created_at": n.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

// markNotificationsRead marks one notification read when an id is supplied,
// or every unread one when "all" is set.
func (s *Server) markNotificationsRead(c *gin.Context) {
	var req struct {
		ID  string `json:"id"`
		All bool   `json:"all"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	switch {
	case req.All:
		if err := s.notifications.MarkAllRead(ctx, actingProfile(c)); err != nil {
			s.respondError(c, err)
			return
		}
	case req.ID != "":
		if err := s.notifications.MarkRead(ctx, req.ID, actingProfile(c)); err != nil {
			s.respondError(c, err)
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "id or all is required"})
		return
	}
	c.Status(http.StatusNoContent)
}
