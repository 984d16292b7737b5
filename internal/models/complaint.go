package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // required for pq.StringArray
	"gorm.io/gorm"
)

// Complaint statuses. A complaint is never deleted; its status only advances.
const (
	StatusNew        = "NEW"
	StatusInProgress = "IN_PROGRESS"
	StatusResolved   = "RESOLVED"
	StatusRejected   = "REJECTED"
)

// Complaint represents a single reported transit-service issue.
// Classification fields (Route, Object, Place, Actor, Priority, Aspect,
// Confidence) stay nil until the extraction webhook fills them in, or are
// populated in one shot by the bulk importer.
type Complaint struct {
	ID         string         `gorm:"primaryKey;type:uuid" json:"id"`
	RawText    *string        `gorm:"type:text" json:"rawText"`
	Route      *string        `gorm:"type:text;index" json:"route"`
	Object     *string        `gorm:"type:text" json:"object"`
	Time       *time.Time     `json:"time"`
	Place      *string        `gorm:"type:text;index" json:"place"`
	Actor      *string        `gorm:"type:text;index" json:"actor"`
	Aspect     pq.StringArray `gorm:"type:text[]" json:"aspect"`
	Priority   *string        `gorm:"type:text;index" json:"priority"`
	Evidence   pq.StringArray `gorm:"type:text[]" json:"evidence"`
	Confidence *float64       `json:"confidence"`
	Status     string         `gorm:"type:text;default:NEW" json:"status"`
	CreatedBy  string         `gorm:"type:text;index" json:"createdBy"`
	Latitude   *float64       `json:"latitude"`
	Longitude  *float64       `json:"longitude"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// BeforeCreate is a GORM hook that assigns a UUID and the NEW status
// when they are not already set (bulk import lines carry their own).
func (c *Complaint) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = StatusNew
	}
	return
}

// BeforeSave keeps the array columns non-null: an unclassified complaint
// has empty aspect/evidence lists, never NULL.
func (c *Complaint) BeforeSave(tx *gorm.DB) (err error) {
	if c.Aspect == nil {
		c.Aspect = pq.StringArray{}
	}
	if c.Evidence == nil {
		c.Evidence = pq.StringArray{}
	}
	return
}
