package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/events"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/progress"
	"github.com/kassslll/philosofium/backend/utils"
)

type VideoProgressInput struct {
	Position   float64 `json:"position" validate:"gte=0"`
	Percentage float64 `json:"percentage"`
}

// VideoProgressResult carries the saved position. AutoCompleted is set when this
// report crossed the auto-complete threshold.
type VideoProgressResult struct {
	Progress      *models.VideoProgress   `json:"progress"`
	AutoCompleted bool                    `json:"auto_completed"`
	Summary       *models.ProgressSummary `json:"summary,omitempty"`
}

type ProgressService struct {
	db        *gorm.DB
	log       *utils.Logger
	repos     Repos
	policy    progress.Policy
	threshold progress.Threshold
	events    events.Publisher
	now       func() time.Time
}

func NewProgressService(db *gorm.DB, baseLog *utils.Logger, r Repos, opts Options, pub events.Publisher) *ProgressService {
	return &ProgressService{
		db:        db,
		log:       baseLog.With("service", "ProgressService"),
		repos:     r,
		policy:    opts.Completion,
		threshold: opts.Threshold,
		events:    pub,
		now:       time.Now,
	}
}

// Enroll is idempotent: enrolling twice returns the existing enrollment.
func (s *ProgressService) Enroll(ctx context.Context, studentID, courseID uint) (*models.Enrollment, error) {
	course, err := s.repos.Courses.GetByID(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished {
		return nil, apperr.New(apperr.CodeCourseNotPublished, "course is not published")
	}
	enrollment, created, err := s.repos.Enrollments.FindOrCreate(ctx, nil, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("student enrolled", "student_id", studentID, "course_id", courseID, "enrollment_id", enrollment.ID)
	}
	return enrollment, nil
}

// MarkLessonComplete records the lesson and recomputes the enrollment's progress in
// one transaction. Completing a lesson twice changes nothing.
func (s *ProgressService) MarkLessonComplete(ctx context.Context, studentID, enrollmentID, lessonID uint) (*models.ProgressSummary, error) {
	var (
		summary *models.ProgressSummary
		evs     []events.Event
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		enrollment, err := s.lockEnrollment(ctx, tx, studentID, enrollmentID)
		if err != nil {
			return err
		}
		if err := s.checkLesson(ctx, tx, enrollment, lessonID); err != nil {
			return err
		}
		summary, evs, err = s.completeLesson(ctx, tx, enrollment, lessonID)
		return err
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, s.log, evs...)
	return summary, nil
}

// UpdateVideoProgress stores the playback position. It only affects completion
// when an auto-complete threshold is configured and reached.
func (s *ProgressService) UpdateVideoProgress(ctx context.Context, studentID, enrollmentID, lessonID uint, in VideoProgressInput) (*VideoProgressResult, error) {
	if in.Position < 0 {
		return nil, apperr.Invalid("position must not be negative")
	}
	watched := progress.ClampWatched(in.Percentage)

	var (
		result = &VideoProgressResult{}
		evs    []events.Event
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		enrollment, err := s.lockEnrollment(ctx, tx, studentID, enrollmentID)
		if err != nil {
			return err
		}
		if err := s.checkLesson(ctx, tx, enrollment, lessonID); err != nil {
			return err
		}
		lesson, err := s.repos.Lessons.GetByID(ctx, tx, lessonID)
		if err != nil {
			return err
		}
		if lesson.Kind != models.LessonKindVideo {
			return apperr.New(apperr.CodeLessonVariantMismatch, "video progress can only be reported for video lessons")
		}

		result.Progress, err = s.repos.VideoProgress.Upsert(ctx, tx, &models.VideoProgress{
			EnrollmentID:      enrollment.ID,
			LessonID:          lessonID,
			PositionSeconds:   in.Position,
			WatchedPercentage: watched,
		})
		if err != nil {
			return err
		}

		if !s.threshold.Reached(watched) {
			return nil
		}
		result.Summary, evs, err = s.completeLesson(ctx, tx, enrollment, lessonID)
		if err != nil {
			return err
		}
		for _, ev := range evs {
			if ev.Type == events.LessonCompleted {
				result.AutoCompleted = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, s.log, evs...)
	return result, nil
}

// Summary reads the stored percentage together with live lesson counts.
func (s *ProgressService) Summary(ctx context.Context, studentID, enrollmentID uint) (*models.ProgressSummary, error) {
	enrollment, err := s.ownedEnrollment(ctx, nil, studentID, enrollmentID)
	if err != nil {
		return nil, err
	}
	completed, err := s.repos.Completions.CountLive(ctx, nil, enrollment.ID, enrollment.CourseID)
	if err != nil {
		return nil, err
	}
	total, err := s.repos.Courses.CountLessons(ctx, nil, enrollment.CourseID)
	if err != nil {
		return nil, err
	}
	return summaryOf(enrollment, completed, total), nil
}

// Overview lists every enrollment of a student with aggregate counts.
func (s *ProgressService) Overview(ctx context.Context, studentID uint) (*models.ProgressOverview, error) {
	enrollments, err := s.repos.Enrollments.ListByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, err
	}
	out := &models.ProgressOverview{Enrollments: make([]models.EnrollmentOverview, 0, len(enrollments))}
	sum := 0
	for _, e := range enrollments {
		item := models.EnrollmentOverview{
			EnrollmentID: e.ID,
			CourseID:     e.CourseID,
			Percentage:   e.ProgressPercentage,
			Completed:    e.Completed,
			CompletedAt:  e.CompletedAt,
			EnrolledAt:   e.CreatedAt,
		}
		if e.Course != nil {
			item.CourseTitle = e.Course.Title
		}
		out.Enrollments = append(out.Enrollments, item)
		sum += e.ProgressPercentage
		if e.Completed {
			out.CompletedCourses++
		} else {
			out.InProgressCourses++
		}
	}
	out.TotalEnrollments = len(enrollments)
	if out.TotalEnrollments > 0 {
		out.AverageProgress = float64(sum) / float64(out.TotalEnrollments)
	}
	return out, nil
}

func (s *ProgressService) completeLesson(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment, lessonID uint) (*models.ProgressSummary, []events.Event, error) {
	inserted, err := s.repos.Completions.Insert(ctx, tx, enrollment.ID, lessonID)
	if err != nil {
		return nil, nil, err
	}
	completed, err := s.repos.Completions.CountLive(ctx, tx, enrollment.ID, enrollment.CourseID)
	if err != nil {
		return nil, nil, err
	}
	total, err := s.repos.Courses.CountLessons(ctx, tx, enrollment.CourseID)
	if err != nil {
		return nil, nil, err
	}

	wasCompleted := enrollment.Completed
	if err := s.advance(ctx, tx, enrollment, completed, total, s.policy); err != nil {
		return nil, nil, err
	}

	var evs []events.Event
	now := s.now().UTC()
	if inserted {
		evs = append(evs, events.Event{
			Type:         events.LessonCompleted,
			CourseID:     enrollment.CourseID,
			EnrollmentID: enrollment.ID,
			LessonID:     lessonID,
			Percentage:   enrollment.ProgressPercentage,
			At:           now,
		})
	}
	if !wasCompleted && enrollment.Completed {
		s.log.Info("course completed", "enrollment_id", enrollment.ID, "course_id", enrollment.CourseID)
		evs = append(evs, events.Event{
			Type:         events.CourseCompleted,
			CourseID:     enrollment.CourseID,
			EnrollmentID: enrollment.ID,
			Percentage:   100,
			At:           now,
		})
	}
	return summaryOf(enrollment, completed, total), evs, nil
}

// advance folds fresh counts into the enrollment and saves it when anything moved.
func (s *ProgressService) advance(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment, completed, total int64, policy progress.Policy) error {
	prev := progress.State{
		Percentage:  enrollment.ProgressPercentage,
		Completed:   enrollment.Completed,
		CompletedAt: enrollment.CompletedAt,
	}
	next := progress.Advance(prev, completed, total, policy, s.now())
	if next.Percentage == prev.Percentage && next.Completed == prev.Completed {
		return nil
	}
	enrollment.ProgressPercentage = next.Percentage
	enrollment.Completed = next.Completed
	enrollment.CompletedAt = next.CompletedAt
	return s.repos.Enrollments.SaveProgress(ctx, tx, enrollment)
}

// recountCourse folds a changed lesson count into every enrollment of a course.
// Under sticky a stored percentage only moves up; under recount it follows the
// new totals both ways.
func (s *ProgressService) recountCourse(ctx context.Context, tx *gorm.DB, courseID uint) ([]events.Event, error) {
	total, err := s.repos.Courses.CountLessons(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.repos.Enrollments.ListByCourse(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	var evs []events.Event
	for i := range enrollments {
		e := &enrollments[i]
		completed, err := s.repos.Completions.CountLive(ctx, tx, e.ID, courseID)
		if err != nil {
			return nil, err
		}
		wasCompleted := e.Completed
		if err := s.advance(ctx, tx, e, completed, total, s.policy); err != nil {
			return nil, err
		}
		if !wasCompleted && e.Completed {
			evs = append(evs, events.Event{
				Type:         events.CourseCompleted,
				CourseID:     courseID,
				EnrollmentID: e.ID,
				Percentage:   100,
				At:           s.now().UTC(),
			})
		}
	}
	s.log.Debug("recounted enrollments", "course_id", courseID, "enrollments", len(enrollments), "lessons", total, "policy", s.policy)
	return evs, nil
}

// lockEnrollment checks ownership, then touches and re-reads the row so the rest of
// the transaction sees the latest progress.
func (s *ProgressService) lockEnrollment(ctx context.Context, tx *gorm.DB, studentID, enrollmentID uint) (*models.Enrollment, error) {
	if _, err := s.ownedEnrollment(ctx, tx, studentID, enrollmentID); err != nil {
		return nil, err
	}
	if err := s.repos.Enrollments.Touch(ctx, tx, enrollmentID); err != nil {
		return nil, err
	}
	return s.repos.Enrollments.GetByID(ctx, tx, enrollmentID)
}

// ownedEnrollment hides other students' enrollments behind NotFound.
func (s *ProgressService) ownedEnrollment(ctx context.Context, tx *gorm.DB, studentID, enrollmentID uint) (*models.Enrollment, error) {
	enrollment, err := s.repos.Enrollments.GetByID(ctx, tx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.StudentID != studentID {
		return nil, apperr.NotFound("enrollment")
	}
	return enrollment, nil
}

func (s *ProgressService) checkLesson(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment, lessonID uint) error {
	courseID, err := s.repos.Lessons.CourseIDOf(ctx, tx, lessonID)
	if err != nil {
		return err
	}
	if courseID != enrollment.CourseID {
		return apperr.NotFound("lesson")
	}
	return nil
}

func summaryOf(e *models.Enrollment, completed, total int64) *models.ProgressSummary {
	return &models.ProgressSummary{
		EnrollmentID:     e.ID,
		CourseID:         e.CourseID,
		CompletedLessons: completed,
		TotalLessons:     total,
		Percentage:       e.ProgressPercentage,
		Completed:        e.Completed,
		CompletedAt:      e.CompletedAt,
	}
}
