package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"referloop/listing"
)

func listingJSON(l listing.Listing) gin.H {
	return gin.H{
		"id":             l.ID,
		"profile_id":     l.ProfileID,
		"type":           l.Type,
		"role":           l.Role,
		"level":          l.Level,
		"target_company": l.TargetCompany,
		"notes":          l.Notes,
		"active":         l.Active,
		"created_at":     l.CreatedAt,
		"updated_at":     l.UpdatedAt,
	}
}

func listingsJSON(ls []listing.Listing) []gin.H {
	out := make([]gin.H, 0, len(ls))
	for _, l := range ls {
		out = append(out, listingJSON(l))
	}
	return out
}

func (s *Server) createListing(c *gin.Context) {
	var req struct {
		Type          listing.Type `json:"type"`
		Role          *string      `json:"role"`
		Level         *string      `json:"level"`
		TargetCompany *string      `json:"target_company"`
		Notes         *string      `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	l, err := s.listings.Create(c.Request.Context(), listing.Listing{
		ProfileID:     actingProfile(c),
		Type:          req.Type,
		Role:          req.Role,
		Level:         req.Level,
		TargetCompany: req.TargetCompany,
		Notes:         req.Notes,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listingJSON(l))
}

func (s *Server) myListings(c *gin.Context) {
	ls, err := s.listings.Mine(c.Request.Context(), actingProfile(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listingsJSON(ls)})
}

func (s *Server) exploreListings(c *gin.Context) {
	ls, err := s.listings.Explore(c.Request.Context(), listing.PublicFilters{
		Type:             listing.Type(c.Query("type")),
		ExcludeProfileID: actingProfile(c),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listingsJSON(ls)})
}

func (s *Server) updateListing(c *gin.Context) {
	var req struct {
		Role          *string `json:"role"`
		Level         *string `json:"level"`
		TargetCompany *string `json:"target_company"`
		Notes         *string `json:"notes"`
		Active        *bool   `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	l, err := s.listings.Update(c.Request.Context(), c.Param("id"), actingProfile(c), listing.Patch{
		Role:          req.Role,
		Level:         req.Level,
		TargetCompany: req.TargetCompany,
		Notes:         req.Notes,
		Active:        req.Active,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingJSON(l))
}

func (s *Server) deleteListing(c *gin.Context) {
	if err := s.listings.Delete(c.Request.Context(), c.Param("id"), actingProfile(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
