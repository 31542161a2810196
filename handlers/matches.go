package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"referloop/match"
)

func matchJSON(m match.Match) gin.H {
	return gin.H{
		"id":              m.ID,
		"ask_listing_id":  m.AskListingID,
		"give_listing_id": m.GiveListingID,
		"asker_id":        m.AskerID,
		"giver_id":        m.GiverID,
		"status":          m.Status,
		"acknowledge_by":  m.AcknowledgeBy,
		"submit_by":       m.SubmitBy,
		"created_at":      m.CreatedAt,
	}
}

func (s *Server) createMatch(c *gin.Context) {
	var req struct {
		MyListingID     string `json:"my_listing_id"`
		TargetListingID string `json:"target_listing_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.MyListingID == "" || req.TargetListingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "my_listing_id and target_listing_id are required"})
		return
	}

	m, err := s.matches.Create(c.Request.Context(), actingProfile(c), req.MyListingID, req.TargetListingID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, matchJSON(m))
}

func (s *Server) myMatches(c *gin.Context) {
	ms, err := s.matches.ListForProfile(c.Request.Context(), actingProfile(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(ms))
	for _, m := range ms {
		out = append(out, matchJSON(m))
	}
	c.JSON(http.StatusOK, gin.H{"matches": out})
}

func (s *Server) getMatch(c *gin.Context) {
	m, err := s.matches.GetForParticipant(c.Request.Context(), c.Param("id"), actingProfile(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matchJSON(m))
}

func (s *Server) acceptMatch(c *gin.Context) {
	m, err := s.matches.Accept(c.Request.Context(), c.Param("id"), actingProfile(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matchJSON(m))
}

func (s *Server) declineMatch(c *gin.Context) {
	if err := s.matches.Decline(c.Request.Context(), c.Param("id"), actingProfile(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) releaseMatch(c *gin.Context) {
	m, err := s.matches.Release(c.Request.Context(), c.Param("id"), actingProfile(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matchJSON(m))
}

func (s *Server) runSweep(c *gin.Context) {
	res, err := s.sweep.Sweep(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"candidates": res.Candidates,
		"expired":    res.ExpiredIDs,
		"failed":     res.Failed,
	})
}

func (s *Server) previewSweep(c *gin.Context) {
	ids, err := s.sweep.Preview(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"expirable": ids})
}
