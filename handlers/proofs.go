package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"referloop/proof"
)

func proofJSON(p proof.Proof) gin.H {
	return gin.H{
		"id":           p.ID,
		"match_id":     p.MatchID,
		"submitter_id": p.SubmitterID,
		"file_url":     p.FileURL,
		"note":         p.Note,
		"status":       p.Status,
		"review_note":  p.ReviewNote,
		"reviewed_at":  p.ReviewedAt,
		"created_at":   p.CreatedAt,
	}
}

func (s *Server) submitProof(c *gin.Context) {
	var req struct {
		FileURL string  `json:"file_url"`
		Note    *string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.FileURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_url is required"})
		return
	}

	p, err := s.proofs.Submit(c.Request.Context(), c.Param("id"), actingProfile(c), req.FileURL, req.Note)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, proofJSON(p))
}

func (s *Server) listProofs(c *gin.Context) {
	ps, err := s.proofs.ListForMatch(c.Request.Context(), c.Param("id"), actingProfile(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(ps))
	for _, p := range ps {
		out = append(out, proofJSON(p))
	}
	c.JSON(http.StatusOK, gin.H{"proofs": out})
}

func (s *Server) reviewProof(c *gin.Context) {
	var req struct {
		Decision string  `json:"decision"`
		Note     *string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Decision != "approve" && req.Decision != "reject" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be approve or reject"})
		return
	}

	p, err := s.proofs.Review(c.Request.Context(), c.Param("id"), actingProfile(c), req.Decision == "approve", req.Note)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, proofJSON(p))
}
