package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"qalatransit/backend/internal/relay"
	"qalatransit/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondRelayError maps relay failure modes onto HTTP statuses:
// not configured → 503, transport failure → 502.
func (h *Handler) respondRelayError(c *gin.Context, err error) {
	if errors.Is(err, relay.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI relay is not configured"})
		return
	}
	var relayErr *relay.Error
	if errors.As(err, &relayErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": relayErr.Error()})
		return
	}
	h.Logger.Error("unexpected relay error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (h *Handler) ListComplaints(c *gin.Context) {
	filter := storage.ComplaintFilter{
		Route:    c.Query("route"),
		Priority: c.Query("priority"),
		Actor:    c.Query("actor"),
		Place:    c.Query("place"),
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	complaints, err := h.Complaints.List(filter, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list complaints"})
		return
	}
	c.JSON(http.StatusOK, complaints)
}

func (h *Handler) Summary(c *gin.Context) {
	sum, err := h.Complaints.Summary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build summary"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) MyComplaints(c *gin.Context) {
	username := c.GetString("username")
	complaints, err := h.Complaints.Mine(username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list complaints"})
		return
	}
	c.JSON(http.StatusOK, complaints)
}

type submitRequest struct {
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	username := c.GetString("username")

	_, raw, err := h.Complaints.Submit(c.Request.Context(), req.Message, "web", username, req.Lat, req.Lng)
	if errors.Is(err, relay.ErrNotConfigured) {
		// The provisional complaint is saved even without a relay.
		c.JSON(http.StatusOK, gin.H{"status": "saved"})
		return
	}
	if err != nil {
		h.respondRelayError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (h *Handler) SubmitPhoto(c *gin.Context) {
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read photo"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read photo"})
		return
	}

	var lat, lng *float64
	if v, err := strconv.ParseFloat(c.PostForm("lat"), 64); err == nil {
		lat = &v
	}
	if v, err := strconv.ParseFloat(c.PostForm("lng"), 64); err == nil {
		lng = &v
	}
	username := c.GetString("username")

	_, raw, err := h.Complaints.SubmitPhoto(c.Request.Context(),
		fileHeader.Filename, data, c.PostForm("caption"), username, lat, lng)
	if errors.Is(err, relay.ErrNotConfigured) {
		c.JSON(http.StatusOK, gin.H{"status": "saved"})
		return
	}
	if err != nil {
		h.respondRelayError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// BulkImportText ingests a plain-text dump, one complaint per line.
func (h *Handler) BulkImportText(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	c.JSON(http.StatusOK, h.Complaints.BulkImport(string(body)))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updated, err := h.Complaints.UpdateStatus(c.Param("id"), req.Status)
	if errors.Is(err, storage.ErrInvalidStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must not be blank"})
		return
	}
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "complaint not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Chat is the stateless text pass-through: the webhook response goes back
// to the caller untouched, nothing is persisted.
func (h *Handler) Chat(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	raw, err := h.Relay.Chat(c.Request.Context(), payload)
	if err != nil {
		h.respondRelayError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (h *Handler) ChatVoice(c *gin.Context) {
	h.chatMedia(c, "voice", h.Relay.ChatVoice)
}

func (h *Handler) ChatPhoto(c *gin.Context) {
	h.chatMedia(c, "photo", h.Relay.ChatPhoto)
}

// chatMedia forwards a multipart media part to the relay without persisting
// anything.
func (h *Handler) chatMedia(c *gin.Context, part string, send func(ctx context.Context, fileName string, data []byte, fields map[string]string) ([]byte, error)) {
	fileHeader, err := c.FormFile(part)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": part + " file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read " + part})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read " + part})
		return
	}

	fields := map[string]string{}
	if caption := c.PostForm("caption"); caption != "" {
		fields["caption"] = caption
	}
	raw, err := send(c.Request.Context(), fileHeader.Filename, data, fields)
	if err != nil {
		h.respondRelayError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

type adminChatRequest struct {
	Message     string `json:"message"`
	ComplaintID string `json:"complaintId"`
}

// AdminChat relays an operator question with stored complaint data injected
// as context: one complaint's full field set when an id is given, otherwise
// a summary plus the recent complaints.
func (h *Handler) AdminChat(c *gin.Context) {
	var req adminChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	contextData, err := h.Complaints.BuildAdminContext(req.ComplaintID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "complaint not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build context"})
		return
	}

	raw, err := h.Relay.AdminChat(c.Request.Context(), map[string]any{
		"message": req.Message,
		"context": contextData,
	})
	if err != nil {
		h.respondRelayError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (h *Handler) Health(c *gin.Context) {
	count, err := h.Complaints.Count()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK", "complaintsCount": count})
}
