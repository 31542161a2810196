package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"referloop/auth"
	"referloop/config"
	"referloop/credit"
	"referloop/listing"
	"referloop/match"
	"referloop/message"
	"referloop/notify"
	"referloop/profile"
	"referloop/proof"
	"referloop/storage"
	"referloop/sweeper"
)

// Server bundles the services behind the HTTP surface.
type Server struct {
	cfg           config.Config
	log           *zap.Logger
	auth          *auth.Service
	profiles      *profile.Service
	ledger        *credit.Ledger
	listings      *listing.Service
	matches       *match.Service
	proofs        *proof.Service
	messages      *message.Service
	notifications *notify.Service
	sweep         *sweeper.Sweeper
	uploads       storage.Store
}

// Deps enumerates everything the server needs; all fields are required
// except Log.
type Deps struct {
	Config        config.Config
	Log           *zap.Logger
	Auth          *auth.Service
	Profiles      *profile.Service
	Ledger        *credit.Ledger
	Listings      *listing.Service
	Matches       *match.Service
	Proofs        *proof.Service
	Messages      *message.Service
	Notifications *notify.Service
	Sweeper       *sweeper.Sweeper
	Uploads       storage.Store
}

func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:           d.Config,
		log:           log,
		auth:          d.Auth,
		profiles:      d.Profiles,
		ledger:        d.Ledger,
		listings:      d.Listings,
		matches:       d.Matches,
		proofs:        d.Proofs,
		messages:      d.Messages,
		notifications: d.Notifications,
		sweep:         d.Sweeper,
		uploads:       d.Uploads,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", s.health)
	r.Static("/uploads", s.cfg.UploadDir)

	api := r.Group("/api")
	api.POST("/auth/register", s.register)
	api.POST("/auth/login", s.login)

	authed := api.Group("", s.requireAuth())
	authed.GET("/me", s.me)
	authed.PATCH("/me", s.updateMe)

	authed.GET("/credits", s.creditBalance)
	authed.POST("/credits", s.grantCredit)

	authed.GET("/listings", s.myListings)
	authed.POST("/listings", s.createListing)
	authed.GET("/listings/explore", s.exploreListings)
	authed.PATCH("/listings/:id", s.updateListing)
	authed.DELETE("/listings/:id", s.deleteListing)

	authed.GET("/matches", s.myMatches)
	authed.POST("/matches", s.createMatch)
	authed.GET("/matches/:id", s.getMatch)
	authed.POST("/matches/:id/accept", s.acceptMatch)
	authed.POST("/matches/:id/decline", s.declineMatch)
	authed.POST("/matches/:id/release", s.releaseMatch)
	authed.GET("/matches/:id/proofs", s.listProofs)
	authed.POST("/matches/:id/proofs", s.submitProof)
	authed.GET("/matches/:id/messages", s.matchThread)
	authed.POST("/matches/:id/messages", s.sendMessage)

	authed.POST("/proofs/:id/review", s.reviewProof)

	authed.GET("/notifications", s.listNotifications)
	authed.POST("/notifications/mark-read", s.markNotificationsRead)

	authed.POST("/uploads", s.uploadFile)

	authed.POST("/sweep", s.runSweep)
	authed.GET("/sweep/preview", s.previewSweep)

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

// requestLogger logs one line per request with latency and status.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
