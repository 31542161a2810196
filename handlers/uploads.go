package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"referloop/storage"
)

// uploadFile accepts a multipart proof attachment and returns the URL to
// reference from a proof submission. The upload happens before and outside
// any ledger transaction.
func (s *Server) uploadFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if header.Size > storage.MaxUploadBytes {
		s.respondError(c, storage.ErrTooLarge)
		return
	}

	f, err := header.Open()
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer f.Close()

	url, err := s.uploads.Save(c.Request.Context(),
		header.Filename, header.Header.Get("Content-Type"), header.Size, f)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url})
}
