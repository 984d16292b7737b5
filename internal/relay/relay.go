// Package relay forwards complaint submissions to the external AI extraction
// webhook and maps its JSON response back onto stored complaints. The webhook
// is an opaque collaborator: this client only packages payloads, enforces a
// bounded timeout and applies whatever recognized fields come back.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"qalatransit/backend/internal/config"
	"qalatransit/backend/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when the endpoint for the requested channel
// has no URL configured. Callers map it to 503, distinct from transport
// failures.
var ErrNotConfigured = errors.New("relay endpoint is not configured")

// Error wraps a transport-level relay failure (unreachable endpoint,
// timeout, non-2xx status). Callers map it to 502.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("relay call to %s failed: %v", e.URL, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Extraction is the recognized subset of the webhook response. Every field
// is independently optional; absent keys must never null out existing
// complaint fields.
type Extraction struct {
	Route      *string  `json:"route"`
	Object     *string  `json:"object"`
	Time       *string  `json:"time"`
	Place      *string  `json:"place"`
	Actor      *string  `json:"actor"`
	Aspects    []string `json:"aspects"`
	Aspect     []string `json:"aspect"`
	Priority   *string  `json:"priority"`
	Confidence *float64 `json:"confidence"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	// Error is set by the webhook itself when extraction failed upstream.
	Error *string `json:"error"`
}

// Client talks to the extraction webhook endpoints.
type Client struct {
	http   *resty.Client
	cfg    config.RelayConfig
	Logger *zap.Logger
}

func NewClient(cfg config.RelayConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		http:   resty.New().SetTimeout(timeout),
		cfg:    cfg,
		Logger: logger,
	}
}

// TextConfigured reports whether the text extraction endpoint is set.
func (c *Client) TextConfigured() bool { return c.cfg.TextURL != "" }

// postJSON sends a JSON payload and returns the raw response body.
func (c *Client) postJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	if url == "" {
		return nil, ErrNotConfigured
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	if resp.IsError() {
		return nil, &Error{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status())}
	}
	return resp.Body(), nil
}

// postMultipart sends a binary media part plus form fields.
func (c *Client) postMultipart(ctx context.Context, url, partName, fileName string, data []byte, fields map[string]string) ([]byte, error) {
	if url == "" {
		return nil, ErrNotConfigured
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader(partName, fileName, bytes.NewReader(data)).
		SetFormData(fields).
		Post(url)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	if resp.IsError() {
		return nil, &Error{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status())}
	}
	return resp.Body(), nil
}

// ProcessText forwards a complaint text for extraction and returns the raw
// webhook response.
func (c *Client) ProcessText(ctx context.Context, text, source, username string, lat, lng *float64) ([]byte, error) {
	payload := map[string]any{
		"text":     text,
		"source":   source,
		"username": username,
	}
	if lat != nil {
		payload["latitude"] = *lat
	}
	if lng != nil {
		payload["longitude"] = *lng
	}
	c.Logger.Info("forwarding complaint to webhook",
		zap.String("source", source), zap.String("username", username))
	return c.postJSON(ctx, c.cfg.TextURL, payload)
}

// Chat is the stateless pass-through for free chat messages.
func (c *Client) Chat(ctx context.Context, payload map[string]any) ([]byte, error) {
	return c.postJSON(ctx, c.cfg.TextURL, payload)
}

// ChatVoice forwards a voice recording as multipart.
func (c *Client) ChatVoice(ctx context.Context, fileName string, data []byte, fields map[string]string) ([]byte, error) {
	return c.postMultipart(ctx, c.cfg.VoiceURL, "voice", fileName, data, fields)
}

// ChatPhoto forwards an image as multipart.
func (c *Client) ChatPhoto(ctx context.Context, fileName string, data []byte, fields map[string]string) ([]byte, error) {
	return c.postMultipart(ctx, c.cfg.PhotoURL, "photo", fileName, data, fields)
}

// AdminChat forwards an operator question, with complaint context already
// injected by the caller, to the admin endpoint.
func (c *Client) AdminChat(ctx context.Context, payload map[string]any) ([]byte, error) {
	return c.postJSON(ctx, c.cfg.AdminURL, payload)
}

// ApplyExtraction decodes the webhook response and applies the recognized
// fields onto the complaint. A malformed body is tolerated: it is logged and
// no fields are applied. Returns whether anything was decoded.
func (c *Client) ApplyExtraction(cm *models.Complaint, raw []byte) bool {
	var ext Extraction
	if err := json.Unmarshal(raw, &ext); err != nil {
		c.Logger.Warn("webhook response is not valid JSON, keeping complaint as-is",
			zap.String("id", cm.ID), zap.Error(err))
		return false
	}

	if ext.Route != nil {
		cm.Route = ext.Route
	}
	if ext.Object != nil {
		cm.Object = ext.Object
	}
	if ext.Place != nil {
		cm.Place = ext.Place
	}
	if ext.Actor != nil {
		cm.Actor = ext.Actor
	}
	if ext.Priority != nil {
		cm.Priority = ext.Priority
	}
	if ext.Confidence != nil {
		cm.Confidence = ext.Confidence
	}
	if ext.Latitude != nil {
		cm.Latitude = ext.Latitude
	}
	if ext.Longitude != nil {
		cm.Longitude = ext.Longitude
	}
	aspects := ext.Aspects
	if aspects == nil {
		aspects = ext.Aspect
	}
	if aspects != nil {
		cm.Aspect = pq.StringArray(aspects)
	}
	if ext.Time != nil {
		// ISO-8601; an unparseable value is silently skipped.
		if t, err := time.Parse(time.RFC3339, *ext.Time); err == nil {
			cm.Time = &t
		}
	}
	return true
}
