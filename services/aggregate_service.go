package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/mkemboi590/course_catalog/database"
	"github.com/mkemboi590/course_catalog/models"
	"gorm.io/gorm"
)

var (
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrNotEnrolled         = errors.New("not enrolled in this course")
	ErrAlreadyEnrolled     = errors.New("already enrolled in this course")
	ErrAlreadyRated        = errors.New("course has already been rated")
	ErrCourseNotFound      = errors.New("course not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrCourseFull          = errors.New("course has reached maximum capacity")
	ErrAggregationConflict = errors.New("course update conflicted with another request")
)

// maxAggregateRetries bounds how often a unit is replayed after losing the
// version race before ErrAggregationConflict is surfaced to the caller.
const maxAggregateRetries = 3

var errStaleVersion = errors.New("stale course version")

type CourseAggregate struct {
	Rating      float64 `json:"rating"`
	RatingCount int     `json:"rating_count"`
}

// runAggregateUnit executes unit inside a transaction together with a
// version-guarded write-back of the course row. The enrollment mutation and
// the aggregate update commit or roll back as one piece; concurrent units on
// the same course serialize through the AggVersion compare-and-swap, so no
// interleaving can lose an update. Units on different courses never contend.
func runAggregateUnit(courseID uuid.UUID, unit func(tx *gorm.DB, course *models.Course) error) error {
	for attempt := 0; attempt < maxAggregateRetries; attempt++ {
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var course models.Course
			if err := tx.First(&course, "id = ?", courseID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrCourseNotFound
				}
				return err
			}

			readVersion := course.AggVersion
			if err := unit(tx, &course); err != nil {
				return err
			}

			res := tx.Model(&models.Course{}).
				Where("id = ? AND agg_version = ?", course.ID, readVersion).
				Updates(map[string]interface{}{
					"rating":         course.Rating,
					"rating_count":   course.RatingCount,
					"enrolled_count": course.EnrolledCount,
					"agg_version":    readVersion + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errStaleVersion
			}
			return nil
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, errStaleVersion) {
			continue
		}
		return err
	}
	return ErrAggregationConflict
}

// EnrollInCourse creates an active enrollment with no rating, or reactivates
// a tombstoned one with its rating, review, and progress reset. The rating
// aggregate is never touched by enrolling.
func EnrollInCourse(userID, courseID uuid.UUID) (*models.Enrollment, error) {
	var enrollment models.Enrollment

	err := runAggregateUnit(courseID, func(tx *gorm.DB, course *models.Course) error {
		var existing models.Enrollment
		err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).First(&existing).Error
		switch {
		case err == nil:
			if existing.Active() {
				return ErrAlreadyEnrolled
			}
			if course.EnrolledCount >= course.MaxCapacity {
				return ErrCourseFull
			}
			existing.Status = models.EnrollmentStatusEnrolled
			existing.Progress = 0
			existing.PersonalRating = nil
			existing.Review = nil
			existing.NudgedAt = nil
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			enrollment = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			if course.EnrolledCount >= course.MaxCapacity {
				return ErrCourseFull
			}
			enrollment = models.Enrollment{
				UserID:   userID,
				CourseID: courseID,
				Status:   models.EnrollmentStatusEnrolled,
			}
			if err := tx.Create(&enrollment).Error; err != nil {
				// A racing enroll can land on the unique (user, course) slot
				// between our read and write.
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrAlreadyEnrolled
				}
				return err
			}
		default:
			return err
		}

		course.EnrolledCount++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// DropCourse tombstones the enrollment and, if the user had rated, removes
// that rating from the course aggregate. Dropping an already dropped (or
// never created) enrollment fails with ErrNotEnrolled so nothing is ever
// decremented twice.
func DropCourse(userID, courseID uuid.UUID) (CourseAggregate, error) {
	var agg CourseAggregate

	err := runAggregateUnit(courseID, func(tx *gorm.DB, course *models.Course) error {
		var enrollment models.Enrollment
		if err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).First(&enrollment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotEnrolled
			}
			return err
		}
		if !enrollment.Active() {
			return ErrNotEnrolled
		}

		enrollment.Status = models.EnrollmentStatusDropped
		if err := tx.Save(&enrollment).Error; err != nil {
			return err
		}

		if course.EnrolledCount > 0 {
			course.EnrolledCount--
		}
		if enrollment.PersonalRating != nil {
			removeRating(course, *enrollment.PersonalRating)
		}

		agg = CourseAggregate{Rating: course.Rating, RatingCount: course.RatingCount}
		return nil
	})
	if err != nil {
		return CourseAggregate{}, err
	}
	return agg, nil
}

// SubmitRating records the caller's rating on their active enrollment and
// folds it into the course aggregate in the same unit. A prior rating is
// replaced in place when allowUpdate is set, otherwise the call fails with
// ErrAlreadyRated. Two submissions are two distinct rating events; only the
// allowUpdate policy decides whether the second one is accepted.
func SubmitRating(userID, courseID uuid.UUID, value int, review *string, allowUpdate bool) (CourseAggregate, *models.Enrollment, error) {
	if value < 1 || value > 5 {
		return CourseAggregate{}, nil, ErrInvalidRating
	}

	var (
		agg        CourseAggregate
		enrollment models.Enrollment
	)

	err := runAggregateUnit(courseID, func(tx *gorm.DB, course *models.Course) error {
		if err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).First(&enrollment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotEnrolled
			}
			return err
		}
		if !enrollment.Active() {
			return ErrNotEnrolled
		}

		previous := enrollment.PersonalRating
		if previous != nil && !allowUpdate {
			return ErrAlreadyRated
		}

		rating := value
		enrollment.PersonalRating = &rating
		if review != nil {
			enrollment.Review = review
		}
		if err := tx.Save(&enrollment).Error; err != nil {
			return err
		}

		if previous == nil {
			applyRating(course, value)
		} else {
			replaceRating(course, *previous, value)
		}

		agg = CourseAggregate{Rating: course.Rating, RatingCount: course.RatingCount}
		return nil
	})
	if err != nil {
		return CourseAggregate{}, nil, err
	}
	return agg, &enrollment, nil
}

// MyRating reports the caller's stored rating for a course. Tombstoned
// enrollments keep their historical rating until the slot is reused, so a
// dropped course still answers "was this ever rated by me".
func MyRating(userID, courseID uuid.UUID) (bool, *int, *string, error) {
	var enrollment models.Enrollment
	err := database.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, nil, nil
		}
		return false, nil, nil, err
	}
	if enrollment.PersonalRating == nil {
		return false, nil, nil, nil
	}
	return true, enrollment.PersonalRating, enrollment.Review, nil
}

// The aggregate moves by the incremental formulas only. Recomputing from a
// full scan happens solely in the reconciliation job; the request path is
// O(1) per update regardless of how many ratings a course has.

func applyRating(course *models.Course, value int) {
	total := course.Rating*float64(course.RatingCount) + float64(value)
	course.RatingCount++
	course.Rating = total / float64(course.RatingCount)
}

func replaceRating(course *models.Course, oldValue, newValue int) {
	if course.RatingCount == 0 {
		applyRating(course, newValue)
		return
	}
	total := course.Rating*float64(course.RatingCount) - float64(oldValue) + float64(newValue)
	course.Rating = total / float64(course.RatingCount)
}

func removeRating(course *models.Course, value int) {
	if course.RatingCount <= 1 {
		course.Rating = 0
		course.RatingCount = 0
		return
	}
	total := course.Rating*float64(course.RatingCount) - float64(value)
	course.RatingCount--
	course.Rating = total / float64(course.RatingCount)
}
