package storage

import (
	"strings"
	"sync"
	"time"

	"qalatransit/backend/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MemoryStorage is an in-memory Storage used for tests and for running the
// service without PostgreSQL. It mirrors the GORM hook semantics (UUID
// generation, non-null arrays, timestamp maintenance) so both backends
// behave the same.
type MemoryStorage struct {
	mu         sync.RWMutex
	complaints []models.Complaint
	byID       map[string]int
	users      map[string]models.User
	nextUserID uint

	// Published records complaints announced on the feed, in place of Redis.
	Published []models.Complaint
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID:       make(map[string]int),
		users:      make(map[string]models.User),
		nextUserID: 1,
	}
}

func (m *MemoryStorage) ListComplaints(filter ComplaintFilter, limit int) ([]models.Complaint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterComplaints(m.complaints, filter, limit), nil
}

func (m *MemoryStorage) Summary() (*ComplaintSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return summarize(m.complaints), nil
}

func (m *MemoryStorage) GetComplaintByID(id string) (*models.Complaint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := m.complaints[idx]
	return &c, nil
}

func (m *MemoryStorage) SaveComplaint(c *models.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = models.StatusNew
	}
	if c.Aspect == nil {
		c.Aspect = pq.StringArray{}
	}
	if c.Evidence == nil {
		c.Evidence = pq.StringArray{}
	}

	if idx, ok := m.byID[c.ID]; ok {
		c.CreatedAt = m.complaints[idx].CreatedAt
		c.UpdatedAt = now
		m.complaints[idx] = *c
		return nil
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	m.byID[c.ID] = len(m.complaints)
	m.complaints = append(m.complaints, *c)
	return nil
}

func (m *MemoryStorage) CountComplaints() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.complaints)), nil
}

func (m *MemoryStorage) FindByCreatedBy(username string) ([]models.Complaint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Complaint, 0)
	for i := range m.complaints {
		if m.complaints[i].CreatedBy == username {
			out = append(out, m.complaints[i])
		}
	}
	// createdAt descending, as the SQL backend orders it
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (m *MemoryStorage) UpdateComplaintStatus(id, status string) (*models.Complaint, error) {
	if strings.TrimSpace(status) == "" {
		return nil, ErrInvalidStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	m.complaints[idx].Status = status
	m.complaints[idx].UpdatedAt = time.Now()
	c := m.complaints[idx]
	return &c, nil
}

func (m *MemoryStorage) PublishComplaint(c *models.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, *c)
	return nil
}

func (m *MemoryStorage) CreateUser(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return ErrDuplicate
	}
	if len(user.Roles) == 0 {
		user.Roles = pq.StringArray{models.RoleUser}
	}
	user.ID = m.nextUserID
	m.nextUserID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.users[user.Username] = *user
	return nil
}

func (m *MemoryStorage) GetUserByUsername(username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStorage) UsernameExists(username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[username]
	return ok, nil
}

func (m *MemoryStorage) EmailExists(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}
