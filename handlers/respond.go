package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"referloop/auth"
	"referloop/credit"
	"referloop/listing"
	"referloop/match"
	"referloop/message"
	"referloop/notify"
	"referloop/profile"
	"referloop/proof"
	"referloop/storage"
)

// respondError maps domain sentinels onto HTTP statuses. Anything unmapped
// is an internal error and gets logged with the request path.
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, match.ErrListingNotFound),
		errors.Is(err, match.ErrNotFound),
		errors.Is(err, listing.ErrNotFound),
		errors.Is(err, profile.ErrNotFound),
		errors.Is(err, proof.ErrNotFound),
		errors.Is(err, notify.ErrNotFound),
		errors.Is(err, credit.ErrNotFound),
		errors.Is(err, auth.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, match.ErrForbidden),
		errors.Is(err, proof.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, match.ErrSelfMatch),
		errors.Is(err, match.ErrTypeMismatch),
		errors.Is(err, match.ErrInvalidTransition),
		errors.Is(err, credit.ErrInvalidState),
		errors.Is(err, proof.ErrMatchNotOpen),
		errors.Is(err, proof.ErrAlreadyReviewed),
		errors.Is(err, listing.ErrInvalidType),
		errors.Is(err, message.ErrEmptyBody),
		errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, auth.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, match.ErrDuplicate),
		errors.Is(err, listing.ErrInUse),
		errors.Is(err, auth.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, credit.ErrInsufficientCredit):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})

	case errors.Is(err, storage.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})

	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	default:
		s.log.Error("internal error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
