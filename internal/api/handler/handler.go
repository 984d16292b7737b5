package handler

import (
	"qalatransit/backend/internal/complaint"
	"qalatransit/backend/internal/feed"
	"qalatransit/backend/internal/relay"
	"qalatransit/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler wires the HTTP surface to the complaint service, relay and feed hub.
type Handler struct {
	Complaints *complaint.Service
	Storage    storage.Storage
	Relay      *relay.Client
	Hub        *feed.Hub
	JWTSecret  []byte
	Logger     *zap.Logger
}

func NewHandler(svc *complaint.Service, s storage.Storage, r *relay.Client, hub *feed.Hub, jwtSecret string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Complaints: svc,
		Storage:    s,
		Relay:      r,
		Hub:        hub,
		JWTSecret:  []byte(jwtSecret),
		Logger:     logger,
	}
}

// RegisterRoutes attaches every endpoint to the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	authRequired := h.AuthMiddleware()

	complaints := r.Group("/complaints")
	{
		complaints.GET("", h.ListComplaints)
		complaints.GET("/summary", h.Summary)
		complaints.GET("/mine", authRequired, h.MyComplaints)
		complaints.POST("/submit", authRequired, h.Submit)
		complaints.POST("/submit-photo", authRequired, h.SubmitPhoto)
		complaints.POST("/bulk-text", h.BulkImportText)
		complaints.PATCH("/:id/status", h.UpdateStatus)
		complaints.POST("/chat", h.Chat)
		complaints.POST("/chat-voice", h.ChatVoice)
		complaints.POST("/chat-photo", h.ChatPhoto)
		complaints.POST("/admin-chat", h.AdminChat)
		complaints.GET("/health", h.Health)
		complaints.GET("/feed", h.ServeFeed)
	}

	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.GET("/me", authRequired, h.Me)
		auth.POST("/logout", h.Logout)
	}
}
