package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"referloop/credit"
	"referloop/profile"
)

func profileJSON(p profile.Profile) gin.H {
	return gin.H{
		"id":                 p.ID,
		"email":              p.Email,
		"name":               p.Name,
		"image":              p.Image,
		"total_matches":      p.TotalMatches,
		"successful_matches": p.SuccessfulMatches,
		"completion_rate":    p.CompletionRate,
		"created_at":         p.CreatedAt,
	}
}

func (s *Server) me(c *gin.Context) {
	p, err := s.profiles.GetByID(c.Request.Context(), actingProfile(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileJSON(p))
}

func (s *Server) updateMe(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	p, err := s.profiles.Rename(c.Request.Context(), actingProfile(c), req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileJSON(p))
}

func (s *Server) creditBalance(c *gin.Context) {
	b, err := s.ledger.BalanceFor(c.Request.Context(), actingProfile(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"available": b.Available,
		"escrowed":  b.Escrowed,
		"spent":     b.Spent,
		"returned":  b.Returned,
	})
}

// grantCredit is the self-serve top-up used for onboarding and demos.
func (s *Server) grantCredit(c *gin.Context) {
	cr, err := s.ledger.Grant(c.Request.Context(), actingProfile(c), credit.SourceGrant)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         cr.ID,
		"status":     cr.Status,
		"source":     cr.Source,
		"created_at": cr.CreatedAt,
	})
}
