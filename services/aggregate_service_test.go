package services

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mkemboi590/course_catalog/database"
	"github.com/mkemboi590/course_catalog/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const ratingTolerance = 1e-6

func setupTestDB(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Course{}, &models.Enrollment{}, &models.Certificate{}); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	database.DB = db
}

func createTestUser(t *testing.T, name string) models.User {
	t.Helper()
	user := models.User{
		FullName: name,
		Email:    fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Password: "not-a-real-hash",
	}
	if err := database.DB.Create(&user).Error; err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func createTestCourse(t *testing.T, capacity int) models.Course {
	t.Helper()
	course := models.Course{
		Title:       "Course " + uuid.NewString(),
		CourseCode:  "CS " + uuid.NewString()[:8],
		Description: "A test course",
		Instructor:  "Prof. Example",
		Credits:     3,
		MaxCapacity: capacity,
	}
	if err := database.DB.Create(&course).Error; err != nil {
		t.Fatalf("create test course: %v", err)
	}
	return course
}

func reloadCourse(t *testing.T, id uuid.UUID) models.Course {
	t.Helper()
	var course models.Course
	if err := database.DB.First(&course, "id = ?", id).Error; err != nil {
		t.Fatalf("reload course: %v", err)
	}
	return course
}

func mustEnroll(t *testing.T, userID, courseID uuid.UUID) {
	t.Helper()
	if _, err := EnrollInCourse(userID, courseID); err != nil {
		t.Fatalf("enroll: %v", err)
	}
}

func mustRate(t *testing.T, userID, courseID uuid.UUID, value int) CourseAggregate {
	t.Helper()
	agg, _, err := SubmitRating(userID, courseID, value, nil, true)
	if err != nil {
		t.Fatalf("submit rating %d: %v", value, err)
	}
	return agg
}

func assertAggregate(t *testing.T, courseID uuid.UUID, wantRating float64, wantCount int) {
	t.Helper()
	course := reloadCourse(t, courseID)
	if course.RatingCount != wantCount {
		t.Fatalf("rating count = %d, want %d", course.RatingCount, wantCount)
	}
	if math.Abs(course.Rating-wantRating) > ratingTolerance {
		t.Fatalf("rating = %v, want %v (tolerance %v)", course.Rating, wantRating, ratingTolerance)
	}
}

func TestSubmitRatingSequenceMatchesArithmeticMean(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)

	values := []int{3, 4, 5, 1, 5, 2}
	sum := 0
	for i, v := range values {
		user := createTestUser(t, fmt.Sprintf("student%d", i))
		mustEnroll(t, user.ID, course.ID)
		mustRate(t, user.ID, course.ID, v)
		sum += v
	}

	assertAggregate(t, course.ID, float64(sum)/float64(len(values)), len(values))
}

func TestSubmitRatingIncrementalFormula(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)

	// Three ratings averaging 4.0 (sum 12), then a 5 lands: 17/4 = 4.25.
	for i, v := range []int{3, 4, 5} {
		user := createTestUser(t, fmt.Sprintf("base%d", i))
		mustEnroll(t, user.ID, course.ID)
		mustRate(t, user.ID, course.ID, v)
	}
	assertAggregate(t, course.ID, 4.0, 3)

	rater := createTestUser(t, "fourth")
	mustEnroll(t, rater.ID, course.ID)
	agg := mustRate(t, rater.ID, course.ID, 5)

	if agg.RatingCount != 4 {
		t.Fatalf("returned count = %d, want 4", agg.RatingCount)
	}
	if math.Abs(agg.Rating-4.25) > ratingTolerance {
		t.Fatalf("returned rating = %v, want 4.25", agg.Rating)
	}
	assertAggregate(t, course.ID, 4.25, 4)
}

func TestDropWithoutRatingLeavesAggregateUntouched(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)

	rater := createTestUser(t, "rater")
	mustEnroll(t, rater.ID, course.ID)
	mustRate(t, rater.ID, course.ID, 4)

	quitter := createTestUser(t, "quitter")
	mustEnroll(t, quitter.ID, course.ID)
	agg, err := DropCourse(quitter.ID, course.ID)
	if err != nil {
		t.Fatalf("drop: %v", err)
	}

	if agg.RatingCount != 1 || math.Abs(agg.Rating-4.0) > ratingTolerance {
		t.Fatalf("aggregate after unrated drop = %+v, want {4 1}", agg)
	}
	assertAggregate(t, course.ID, 4.0, 1)
}

func TestDropOnlyRatingResetsAggregateExactly(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)

	user := createTestUser(t, "solo")
	mustEnroll(t, user.ID, course.ID)
	mustRate(t, user.ID, course.ID, 3)

	agg, err := DropCourse(user.ID, course.ID)
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if agg.Rating != 0 || agg.RatingCount != 0 {
		t.Fatalf("aggregate after dropping only rating = %+v, want exactly {0 0}", agg)
	}

	course = reloadCourse(t, course.ID)
	if course.Rating != 0 || course.RatingCount != 0 {
		t.Fatalf("stored aggregate = {%v %d}, want exactly {0 0}", course.Rating, course.RatingCount)
	}
}

func TestDropRemovesRatingFromAggregate(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)

	// Sum 17 over 4 ratings (mean 4.25); removing the 2 leaves 15/3 = 5.0.
	var dropper models.User
	for i, v := range []int{5, 5, 5, 2} {
		user := createTestUser(t, fmt.Sprintf("student%d", i))
		mustEnroll(t, user.ID, course.ID)
		mustRate(t, user.ID, course.ID, v)
		if v == 2 {
			dropper = user
		}
	}
	assertAggregate(t, course.ID, 4.25, 4)

	agg, err := DropCourse(dropper.ID, course.ID)
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if agg.RatingCount != 3 || math.Abs(agg.Rating-5.0) > ratingTolerance {
		t.Fatalf("aggregate after drop = %+v, want {5 3}", agg)
	}
	assertAggregate(t, course.ID, 5.0, 3)
}

func TestSubmitRatingRejectsOutOfRangeValues(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)
	user := createTestUser(t, "student")
	mustEnroll(t, user.ID, course.ID)

	for _, v := range []int{0, 6, -1, 100} {
		if _, _, err := SubmitRating(user.ID, course.ID, v, nil, true); !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("SubmitRating(%d) error = %v, want ErrInvalidRating", v, err)
		}
	}

	// Out-of-range beats every other precondition, enrolled or not.
	stranger := createTestUser(t, "stranger")
	if _, _, err := SubmitRating(stranger.ID, course.ID, 0, nil, true); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("SubmitRating(0) without enrollment error = %v, want ErrInvalidRating", err)
	}

	assertAggregate(t, course.ID, 0, 0)
}

func TestSubmitRatingRequiresActiveEnrollment(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)

	stranger := createTestUser(t, "stranger")
	if _, _, err := SubmitRating(stranger.ID, course.ID, 4, nil, true); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("error = %v, want ErrNotEnrolled", err)
	}

	// A tombstoned enrollment with rating history is still not enrolled.
	dropped := createTestUser(t, "dropped")
	mustEnroll(t, dropped.ID, course.ID)
	mustRate(t, dropped.ID, course.ID, 5)
	if _, err := DropCourse(dropped.ID, course.ID); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, _, err := SubmitRating(dropped.ID, course.ID, 4, nil, true); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("error after drop = %v, want ErrNotEnrolled", err)
	}
}

func TestDropTwiceFailsNotEnrolled(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)
	user := createTestUser(t, "student")
	mustEnroll(t, user.ID, course.ID)
	mustRate(t, user.ID, course.ID, 4)

	if _, err := DropCourse(user.ID, course.ID); err != nil {
		t.Fatalf("first drop: %v", err)
	}
	if _, err := DropCourse(user.ID, course.ID); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("second drop error = %v, want ErrNotEnrolled", err)
	}

	// No double decrement of either counter.
	course = reloadCourse(t, course.ID)
	if course.RatingCount != 0 || course.Rating != 0 || course.EnrolledCount != 0 {
		t.Fatalf("aggregate after double drop = {%v %d enrolled=%d}, want {0 0 0}",
			course.Rating, course.RatingCount, course.EnrolledCount)
	}
}

func TestRatingUpdateReplacesValueInPlace(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)

	other := createTestUser(t, "other")
	mustEnroll(t, other.ID, course.ID)
	mustRate(t, other.ID, course.ID, 3)

	user := createTestUser(t, "changer")
	mustEnroll(t, user.ID, course.ID)
	mustRate(t, user.ID, course.ID, 2)
	assertAggregate(t, course.ID, 2.5, 2)

	agg, enrollment, err := SubmitRating(user.ID, course.ID, 5, nil, true)
	if err != nil {
		t.Fatalf("update rating: %v", err)
	}
	if enrollment.PersonalRating == nil || *enrollment.PersonalRating != 5 {
		t.Fatalf("personal rating = %v, want 5", enrollment.PersonalRating)
	}
	if agg.RatingCount != 2 || math.Abs(agg.Rating-4.0) > ratingTolerance {
		t.Fatalf("aggregate after update = %+v, want {4 2}", agg)
	}
	assertAggregate(t, course.ID, 4.0, 2)
}

func TestRateOncePolicyRejectsSecondRating(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)
	user := createTestUser(t, "student")
	mustEnroll(t, user.ID, course.ID)
	mustRate(t, user.ID, course.ID, 4)

	if _, _, err := SubmitRating(user.ID, course.ID, 5, nil, false); !errors.Is(err, ErrAlreadyRated) {
		t.Fatalf("error = %v, want ErrAlreadyRated", err)
	}
	assertAggregate(t, course.ID, 4.0, 1)
}

func TestReEnrollAfterDropStartsFresh(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)
	user := createTestUser(t, "returning")

	mustEnroll(t, user.ID, course.ID)
	mustRate(t, user.ID, course.ID, 5)
	if _, err := DropCourse(user.ID, course.ID); err != nil {
		t.Fatalf("drop: %v", err)
	}

	// The tombstone keeps the history until the slot is reused.
	rated, rating, _, err := MyRating(user.ID, course.ID)
	if err != nil {
		t.Fatalf("my rating: %v", err)
	}
	if !rated || rating == nil || *rating != 5 {
		t.Fatalf("rating history after drop = (%v, %v), want (true, 5)", rated, rating)
	}

	enrollment, err := EnrollInCourse(user.ID, course.ID)
	if err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
	if enrollment.PersonalRating != nil || enrollment.Progress != 0 || enrollment.Status != models.EnrollmentStatusEnrolled {
		t.Fatalf("reactivated enrollment = %+v, want fresh enrolled record", enrollment)
	}

	rated, _, _, err = MyRating(user.ID, course.ID)
	if err != nil {
		t.Fatalf("my rating after re-enroll: %v", err)
	}
	if rated {
		t.Fatal("rating survived re-enrollment, want fresh unrated state")
	}
	assertAggregate(t, course.ID, 0, 0)
}

func TestEnrollPreconditions(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 1)
	user := createTestUser(t, "first")

	if _, err := EnrollInCourse(user.ID, uuid.New()); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("enroll in missing course error = %v, want ErrCourseNotFound", err)
	}

	mustEnroll(t, user.ID, course.ID)
	if _, err := EnrollInCourse(user.ID, course.ID); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("double enroll error = %v, want ErrAlreadyEnrolled", err)
	}

	second := createTestUser(t, "second")
	if _, err := EnrollInCourse(second.ID, course.ID); !errors.Is(err, ErrCourseFull) {
		t.Fatalf("enroll past capacity error = %v, want ErrCourseFull", err)
	}

	// Enrolling never moves the rating aggregate.
	assertAggregate(t, course.ID, 0, 0)
}

func TestConcurrentRatingsNeverLoseUpdates(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)

	const raters = 8
	users := make([]models.User, raters)
	for i := range users {
		users[i] = createTestUser(t, fmt.Sprintf("concurrent%d", i))
		mustEnroll(t, users[i].ID, course.ID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []int
	)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value := i%5 + 1
			if _, _, err := SubmitRating(users[i].ID, course.ID, value, nil, true); err == nil {
				mu.Lock()
				succeeded = append(succeeded, value)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if len(succeeded) == 0 {
		t.Fatal("no concurrent rating succeeded")
	}

	sum := 0
	for _, v := range succeeded {
		sum += v
	}
	assertAggregate(t, course.ID, float64(sum)/float64(len(succeeded)), len(succeeded))
}

func TestMyRatingUnknownCourse(t *testing.T) {
	setupTestDB(t)
	user := createTestUser(t, "nobody")

	rated, rating, review, err := MyRating(user.ID, uuid.New())
	if err != nil {
		t.Fatalf("my rating: %v", err)
	}
	if rated || rating != nil || review != nil {
		t.Fatalf("my rating for unknown course = (%v, %v, %v), want empty", rated, rating, review)
	}
}

func TestRepeatedAddRemoveCyclesDoNotDrift(t *testing.T) {
	setupTestDB(t)
	course := createTestCourse(t, 40)

	anchor := createTestUser(t, "anchor")
	mustEnroll(t, anchor.ID, course.ID)
	mustRate(t, anchor.ID, course.ID, 3)

	churner := createTestUser(t, "churner")
	for i := 0; i < 50; i++ {
		mustEnroll(t, churner.ID, course.ID)
		mustRate(t, churner.ID, course.ID, 5)
		if _, err := DropCourse(churner.ID, course.ID); err != nil {
			t.Fatalf("drop cycle %d: %v", i, err)
		}
	}

	assertAggregate(t, course.ID, 3.0, 1)
}
