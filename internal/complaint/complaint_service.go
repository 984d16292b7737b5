// Package complaint provides the core intake logic shared by the HTTP API
// and the Telegram bot: persisting submissions, relaying them to the
// extraction webhook and applying the returned classification.
package complaint

import (
	"context"
	"errors"

	"qalatransit/backend/internal/importer"
	"qalatransit/backend/internal/models"
	"qalatransit/backend/internal/relay"
	"qalatransit/backend/internal/storage"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Service handles the business logic for complaints.
type Service struct {
	Storage  storage.Storage
	Relay    *relay.Client
	Importer *importer.Importer
	Logger   *zap.Logger
}

// NewService creates a new complaint service.
func NewService(s storage.Storage, r *relay.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Storage:  s,
		Relay:    r,
		Importer: importer.New(s, logger),
		Logger:   logger,
	}
}

// Submit stores a provisional complaint, relays the text for extraction and
// enriches the stored record with whatever fields come back. The provisional
// record survives relay failures; callers receive the raw webhook body, or
// relay.ErrNotConfigured when no endpoint is set.
func (s *Service) Submit(ctx context.Context, text, source, username string, lat, lng *float64) (*models.Complaint, []byte, error) {
	c := &models.Complaint{
		RawText:   &text,
		CreatedBy: username,
		Status:    models.StatusNew,
		Latitude:  lat,
		Longitude: lng,
	}
	if err := s.Storage.SaveComplaint(c); err != nil {
		return nil, nil, err
	}

	if s.Relay == nil || !s.Relay.TextConfigured() {
		s.publish(c)
		return c, nil, relay.ErrNotConfigured
	}

	raw, err := s.Relay.ProcessText(ctx, text, source, username, lat, lng)
	if err != nil {
		// No partial enrichment on failure; the NEW record stays as saved.
		return c, nil, err
	}

	if s.Relay.ApplyExtraction(c, raw) {
		if err := s.Storage.SaveComplaint(c); err != nil {
			s.Logger.Error("failed to save enriched complaint",
				zap.String("id", c.ID), zap.Error(err))
		}
	}
	s.publish(c)
	return c, raw, nil
}

// SubmitPhoto follows the same pattern for image evidence: the photo file
// name is recorded as evidence and the caption, if any, as the raw text.
func (s *Service) SubmitPhoto(ctx context.Context, fileName string, data []byte, caption, username string, lat, lng *float64) (*models.Complaint, []byte, error) {
	c := &models.Complaint{
		CreatedBy: username,
		Status:    models.StatusNew,
		Evidence:  pq.StringArray{fileName},
		Latitude:  lat,
		Longitude: lng,
	}
	if caption != "" {
		c.RawText = &caption
	}
	if err := s.Storage.SaveComplaint(c); err != nil {
		return nil, nil, err
	}

	fields := map[string]string{"username": username}
	if caption != "" {
		fields["caption"] = caption
	}
	raw, err := s.Relay.ChatPhoto(ctx, fileName, data, fields)
	if errors.Is(err, relay.ErrNotConfigured) {
		s.publish(c)
		return c, nil, err
	}
	if err != nil {
		return c, nil, err
	}

	if s.Relay.ApplyExtraction(c, raw) {
		if err := s.Storage.SaveComplaint(c); err != nil {
			s.Logger.Error("failed to save enriched complaint",
				zap.String("id", c.ID), zap.Error(err))
		}
	}
	s.publish(c)
	return c, raw, nil
}

func (s *Service) publish(c *models.Complaint) {
	if err := s.Storage.PublishComplaint(c); err != nil {
		s.Logger.Warn("failed to publish complaint to feed",
			zap.String("id", c.ID), zap.Error(err))
	}
}

// BulkImport runs the delimited-text backfill path.
func (s *Service) BulkImport(body string) importer.Result {
	return s.Importer.ImportText(body)
}

func (s *Service) List(filter storage.ComplaintFilter, limit int) ([]models.Complaint, error) {
	return s.Storage.ListComplaints(filter, limit)
}

func (s *Service) Summary() (*storage.ComplaintSummary, error) {
	return s.Storage.Summary()
}

func (s *Service) Count() (int64, error) {
	return s.Storage.CountComplaints()
}

func (s *Service) Mine(username string) ([]models.Complaint, error) {
	return s.Storage.FindByCreatedBy(username)
}

func (s *Service) Get(id string) (*models.Complaint, error) {
	return s.Storage.GetComplaintByID(id)
}

func (s *Service) UpdateStatus(id, status string) (*models.Complaint, error) {
	return s.Storage.UpdateComplaintStatus(id, status)
}

// BuildAdminContext assembles the context payload for the admin chat relay:
// either one complaint's full field set, or a general summary plus the most
// recent complaints.
func (s *Service) BuildAdminContext(complaintID string) (map[string]any, error) {
	if complaintID != "" {
		c, err := s.Storage.GetComplaintByID(complaintID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"complaint": c}, nil
	}

	sum, err := s.Storage.Summary()
	if err != nil {
		return nil, err
	}
	all, err := s.Storage.ListComplaints(storage.ComplaintFilter{}, 0)
	if err != nil {
		return nil, err
	}
	recent := all
	if len(all) > 10 {
		recent = all[len(all)-10:]
	}
	return map[string]any{
		"summary": sum,
		"recent":  recent,
	}, nil
}
