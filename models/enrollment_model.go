package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EnrollmentStatusEnrolled  = "enrolled"
	EnrollmentStatusDropped   = "dropped"
	EnrollmentStatusCompleted = "completed"
)

// Enrollment links a user to a course. Dropping tombstones the record
// (Status flips to dropped) instead of deleting it, so the unique
// (user, course) slot survives and the historical rating stays readable.
// Only enrolled/completed records count toward the course aggregate.
type Enrollment struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID   uuid.UUID `gorm:"not null;uniqueIndex:idx_user_course" json:"user_id"`
	CourseID uuid.UUID `gorm:"not null;uniqueIndex:idx_user_course" json:"course_id"`

	Status   string `gorm:"size:20;not null;default:'enrolled'" json:"status"`
	Progress int    `gorm:"default:0" json:"progress"`

	PersonalRating *int    `json:"personal_rating"`
	Review         *string `gorm:"type:text" json:"review"`

	NudgedAt *time.Time `json:"-"`

	User   User   `gorm:"foreignkey:UserID" json:"-"`
	Course Course `gorm:"foreignkey:CourseID" json:"course,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Active reports whether the enrollment counts toward capacity and the
// rating aggregate.
func (e *Enrollment) Active() bool {
	return e.Status == EnrollmentStatusEnrolled || e.Status == EnrollmentStatusCompleted
}
