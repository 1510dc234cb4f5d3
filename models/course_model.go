package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Course carries the catalog entry plus its rating aggregate. Rating is the
// arithmetic mean of the personal ratings on active enrollments; it is 0
// whenever RatingCount is 0. AggVersion guards every write that touches the
// aggregate or the enrolled counter (see services.aggregate_service).
type Course struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Title          string    `gorm:"size:255;not null;unique" json:"title"`
	CourseCode     string    `gorm:"size:20;not null;unique" json:"course_code"`
	Description    string    `gorm:"type:text;not null" json:"description"`
	Instructor     string    `gorm:"size:255;not null" json:"instructor"`
	Credits        int       `gorm:"not null" json:"credits"`
	Price          float64   `gorm:"type:numeric(10,2);default:0.00" json:"price"`
	CourseLanguage string    `gorm:"size:50;default:'English'" json:"course_language"`
	ThumbnailURL   *string   `gorm:"size:255" json:"thumbnail_url"`

	Rating      float64 `gorm:"default:0" json:"rating"`
	RatingCount int     `gorm:"default:0" json:"rating_count"`

	MaxCapacity   int `gorm:"default:40" json:"max_capacity"`
	EnrolledCount int `gorm:"default:0" json:"enrolled_count"`

	AggVersion int64 `gorm:"default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
