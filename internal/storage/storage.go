package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"qalatransit/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FeedChannel is the Redis Pub/Sub channel new complaints are announced on.
const FeedChannel = "complaints:feed"

// PlaceholderNone is substituted for missing grouping keys in Summary.
const PlaceholderNone = "(none)"

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidStatus = errors.New("status must not be blank")
	ErrDuplicate     = errors.New("already exists")
)

// ComplaintFilter holds optional list filters. Empty fields are always
// satisfied; set fields require a case-insensitive exact match.
type ComplaintFilter struct {
	Route    string
	Priority string
	Actor    string
	Place    string
}

// ComplaintSummary is the aggregation returned by Summary.
type ComplaintSummary struct {
	Total         int64            `json:"total"`
	ByPriority    map[string]int64 `json:"byPriority"`
	ByRoute       map[string]int64 `json:"byRoute"`
	AvgConfidence float64          `json:"avgConfidence"`
}

type Storage interface {
	ListComplaints(filter ComplaintFilter, limit int) ([]models.Complaint, error)
	Summary() (*ComplaintSummary, error)
	GetComplaintByID(id string) (*models.Complaint, error)
	SaveComplaint(c *models.Complaint) error
	CountComplaints() (int64, error)
	FindByCreatedBy(username string) ([]models.Complaint, error)
	UpdateComplaintStatus(id, status string) (*models.Complaint, error)
	PublishComplaint(c *models.Complaint) error

	CreateUser(user *models.User) error
	GetUserByUsername(username string) (*models.User, error)
	UsernameExists(username string) (bool, error)
	EmailExists(email string) (bool, error)
}

// Service is the PostgreSQL + Redis backed Storage implementation.
type Service struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Ctx    context.Context
	Logger *zap.Logger
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		DB:     db,
		Redis:  rdb,
		Ctx:    context.Background(),
		Logger: logger,
	}
}

// matchesFilter applies one filter field against a possibly-nil value.
// A nil value never matches a set filter.
func matchesField(want string, have *string) bool {
	if want == "" {
		return true
	}
	return have != nil && strings.EqualFold(*have, want)
}

// Matches reports whether the complaint satisfies every set filter field.
func (f ComplaintFilter) Matches(c *models.Complaint) bool {
	return matchesField(f.Route, c.Route) &&
		matchesField(f.Priority, c.Priority) &&
		matchesField(f.Actor, c.Actor) &&
		matchesField(f.Place, c.Place)
}

// filterComplaints walks complaints in retrieval order and collects matches,
// stopping once limit (>0) matches have been found. Shared with the
// in-memory store so both backends filter identically.
func filterComplaints(all []models.Complaint, filter ComplaintFilter, limit int) []models.Complaint {
	filtered := make([]models.Complaint, 0)
	for i := range all {
		if !filter.Matches(&all[i]) {
			continue
		}
		filtered = append(filtered, all[i])
		if limit > 0 && len(filtered) >= limit {
			break
		}
	}
	return filtered
}

// summarize groups complaints by priority and route. Missing keys collapse
// into the "(none)" bucket. The average divides the sum of known confidence
// values by the total complaint count: complaints without a score still sit
// in the denominator, reproducing the behaviour of the reference system.
func summarize(all []models.Complaint) *ComplaintSummary {
	s := &ComplaintSummary{
		Total:      int64(len(all)),
		ByPriority: make(map[string]int64),
		ByRoute:    make(map[string]int64),
	}
	var sum float64
	for i := range all {
		c := &all[i]
		pr := PlaceholderNone
		if c.Priority != nil {
			pr = *c.Priority
		}
		s.ByPriority[pr]++
		route := PlaceholderNone
		if c.Route != nil {
			route = *c.Route
		}
		s.ByRoute[route]++
		if c.Confidence != nil {
			sum += *c.Confidence
		}
	}
	if s.Total > 0 {
		s.AvgConfidence = sum / float64(s.Total)
	}
	return s
}

func (s *Service) loadAll() ([]models.Complaint, error) {
	var all []models.Complaint
	if err := s.DB.Find(&all).Error; err != nil {
		s.Logger.Error("failed to load complaints", zap.Error(err))
		return nil, err
	}
	return all, nil
}

func (s *Service) ListComplaints(filter ComplaintFilter, limit int) ([]models.Complaint, error) {
	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	return filterComplaints(all, filter, limit), nil
}

func (s *Service) Summary() (*ComplaintSummary, error) {
	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	return summarize(all), nil
}

func (s *Service) GetComplaintByID(id string) (*models.Complaint, error) {
	var c models.Complaint
	err := s.DB.Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveComplaint persists a complaint (create or update). GORM hooks keep the
// array columns non-null; CreatedAt is set only on first persistence and
// UpdatedAt refreshed on every save.
func (s *Service) SaveComplaint(c *models.Complaint) error {
	if err := s.DB.Save(c).Error; err != nil {
		s.Logger.Error("failed to save complaint", zap.String("id", c.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) CountComplaints() (int64, error) {
	var n int64
	err := s.DB.Model(&models.Complaint{}).Count(&n).Error
	return n, err
}

func (s *Service) FindByCreatedBy(username string) ([]models.Complaint, error) {
	var out []models.Complaint
	err := s.DB.Where("created_by = ?", username).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) UpdateComplaintStatus(id, status string) (*models.Complaint, error) {
	if strings.TrimSpace(status) == "" {
		return nil, ErrInvalidStatus
	}
	c, err := s.GetComplaintByID(id)
	if err != nil {
		return nil, err
	}
	c.Status = status
	if err := s.SaveComplaint(c); err != nil {
		return nil, err
	}
	return c, nil
}

// PublishComplaint announces a newly stored complaint on the feed channel.
// Without Redis the feed is simply silent.
func (s *Service) PublishComplaint(c *models.Complaint) error {
	if s.Redis == nil {
		return nil
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, FeedChannel, payload).Err()
}

// SubscribeFeed subscribes to the complaint feed channel.
func (s *Service) SubscribeFeed() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, FeedChannel)
}

func (s *Service) CreateUser(user *models.User) error {
	return s.DB.Create(user).Error
}

func (s *Service) GetUserByUsername(username string) (*models.User, error) {
	var u models.User
	err := s.DB.Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) UsernameExists(username string) (bool, error) {
	var n int64
	err := s.DB.Model(&models.User{}).Where("username = ?", username).Count(&n).Error
	return n > 0, err
}

func (s *Service) EmailExists(email string) (bool, error) {
	var n int64
	err := s.DB.Model(&models.User{}).Where("email = ?", email).Count(&n).Error
	return n > 0, err
}
