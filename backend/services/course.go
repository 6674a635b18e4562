package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/events"
	"github.com/kassslll/philosofium/backend/lifecycle"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/repos"
	"github.com/kassslll/philosofium/backend/utils"
)

type CourseInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description"`
	Category    string  `json:"category" validate:"max=100"`
	Difficulty  string  `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Price       float64 `json:"price" validate:"gte=0"`
	IsPaid      bool    `json:"is_paid"`
}

type ModuleInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Position    *int   `json:"position" validate:"omitempty,gte=0"`
}

// LessonInput carries the content of either variant; Kind decides which fields
// must be present.
type LessonInput struct {
	Title           string            `json:"title" validate:"required,max=200"`
	Kind            models.LessonKind `json:"kind" validate:"required,oneof=video blog"`
	DurationMinutes int               `json:"duration_minutes" validate:"gte=0"`
	Position        *int              `json:"position" validate:"omitempty,gte=0"`
	VideoURL        string            `json:"video_url" validate:"omitempty,url"`
	Provider        string            `json:"provider"`
	Body            string            `json:"body"`
}

func (in LessonInput) apply(l *models.Lesson) error {
	l.Title = strings.TrimSpace(in.Title)
	l.Kind = in.Kind
	l.DurationMinutes = in.DurationMinutes
	l.Video, l.Blog = nil, nil
	if in.VideoURL != "" {
		l.Video = &models.VideoLesson{VideoURL: in.VideoURL, Provider: in.Provider}
	}
	if in.Body != "" {
		l.Blog = &models.BlogLesson{Body: in.Body}
	}
	if err := l.ValidateVariant(); err != nil {
		return apperr.Wrap(apperr.CodeLessonVariantMismatch, err.Error(), err)
	}
	return nil
}

type CourseAnalytics struct {
	CourseID        uint            `json:"course_id"`
	Title           string          `json:"title"`
	Status          lifecycle.State `json:"status"`
	TotalLessons    int64           `json:"total_lessons"`
	Enrollments     int64           `json:"enrollments"`
	Completed       int64           `json:"completed"`
	AverageProgress float64         `json:"average_progress"`
	CompletionRate  float64         `json:"completion_rate"`
}

// CourseService covers teacher authoring and the teacher side of the review workflow.
type CourseService struct {
	db       *gorm.DB
	log      *utils.Logger
	repos    Repos
	wf       *workflow
	progress *ProgressService
	events   events.Publisher
	now      func() time.Time
}

func NewCourseService(db *gorm.DB, baseLog *utils.Logger, r Repos, opts Options, progressSvc *ProgressService, pub events.Publisher) *CourseService {
	log := baseLog.With("service", "CourseService")
	return &CourseService{
		db:       db,
		log:      log,
		repos:    r,
		wf:       &workflow{repos: r, machine: lifecycle.NewMachine(opts.EditLock), log: log, now: time.Now},
		progress: progressSvc,
		events:   pub,
		now:      time.Now,
	}
}

func (s *CourseService) CreateCourse(ctx context.Context, teacherID uint, in CourseInput) (*models.Course, error) {
	course := &models.Course{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    in.Category,
		Difficulty:  in.Difficulty,
		Price:       in.Price,
		IsPaid:      in.IsPaid,
		TeacherID:   teacherID,
	}
	if err := s.repos.Courses.Create(ctx, nil, course); err != nil {
		return nil, err
	}
	s.log.Info("course created", "course_id", course.ID, "teacher_id", teacherID)
	return course, nil
}

// UpdateCourse edits catalog details only; it does not touch the lifecycle.
func (s *CourseService) UpdateCourse(ctx context.Context, teacherID, courseID uint, in CourseInput) (*models.Course, error) {
	if _, err := s.ownedCourse(ctx, nil, teacherID, courseID); err != nil {
		return nil, err
	}
	err := s.repos.Courses.UpdateDetails(ctx, nil, courseID, map[string]interface{}{
		"title":       strings.TrimSpace(in.Title),
		"description": in.Description,
		"category":    in.Category,
		"difficulty":  in.Difficulty,
		"price":       in.Price,
		"is_paid":     in.IsPaid,
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Courses.GetByID(ctx, nil, courseID)
}

func (s *CourseService) TeacherCourses(ctx context.Context, teacherID uint) ([]models.Course, error) {
	return s.repos.Courses.ListByTeacher(ctx, nil, teacherID)
}

// TeacherCourse returns an owned course with its full content.
func (s *CourseService) TeacherCourse(ctx context.Context, teacherID, courseID uint) (*models.Course, error) {
	if _, err := s.ownedCourse(ctx, nil, teacherID, courseID); err != nil {
		return nil, err
	}
	return s.repos.Courses.GetWithContent(ctx, nil, courseID)
}

func (s *CourseService) AddModule(ctx context.Context, teacherID, courseID uint, in ModuleInput) (*models.Module, error) {
	module := &models.Module{CourseID: courseID, Title: strings.TrimSpace(in.Title), Description: in.Description}
	err := s.editContent(ctx, teacherID, courseID, false, func(tx *gorm.DB) error {
		if in.Position != nil {
			module.Position = *in.Position
		} else {
			pos, err := s.repos.Modules.NextPosition(ctx, tx, courseID)
			if err != nil {
				return err
			}
			module.Position = pos
		}
		return s.repos.Modules.Create(ctx, tx, module)
	})
	if err != nil {
		return nil, err
	}
	return module, nil
}

func (s *CourseService) UpdateModule(ctx context.Context, teacherID, moduleID uint, in ModuleInput) (*models.Module, error) {
	module, err := s.repos.Modules.GetByID(ctx, nil, moduleID)
	if err != nil {
		return nil, err
	}
	err = s.editContent(ctx, teacherID, module.CourseID, false, func(tx *gorm.DB) error {
		fields := map[string]interface{}{
			"title":       strings.TrimSpace(in.Title),
			"description": in.Description,
		}
		if in.Position != nil {
			fields["position"] = *in.Position
		}
		return s.repos.Modules.Update(ctx, tx, moduleID, fields)
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Modules.GetByID(ctx, nil, moduleID)
}

func (s *CourseService) DeleteModule(ctx context.Context, teacherID, moduleID uint) error {
	module, err := s.repos.Modules.GetByID(ctx, nil, moduleID)
	if err != nil {
		return err
	}
	return s.editContent(ctx, teacherID, module.CourseID, true, func(tx *gorm.DB) error {
		return s.repos.Modules.Delete(ctx, tx, moduleID)
	})
}

func (s *CourseService) AddLesson(ctx context.Context, teacherID, moduleID uint, in LessonInput) (*models.Lesson, error) {
	module, err := s.repos.Modules.GetByID(ctx, nil, moduleID)
	if err != nil {
		return nil, err
	}
	lesson := &models.Lesson{ModuleID: moduleID}
	if err := in.apply(lesson); err != nil {
		return nil, err
	}
	err = s.editContent(ctx, teacherID, module.CourseID, true, func(tx *gorm.DB) error {
		if in.Position != nil {
			lesson.Position = *in.Position
		} else {
			pos, err := s.repos.Lessons.NextPosition(ctx, tx, moduleID)
			if err != nil {
				return err
			}
			lesson.Position = pos
		}
		return s.repos.Lessons.Create(ctx, tx, lesson)
	})
	if err != nil {
		return nil, err
	}
	return lesson, nil
}

// UpdateLesson replaces the lesson, including its content variant.
func (s *CourseService) UpdateLesson(ctx context.Context, teacherID, lessonID uint, in LessonInput) (*models.Lesson, error) {
	lesson, err := s.repos.Lessons.GetByID(ctx, nil, lessonID)
	if err != nil {
		return nil, err
	}
	courseID, err := s.repos.Lessons.CourseIDOf(ctx, nil, lessonID)
	if err != nil {
		return nil, err
	}
	if err := in.apply(lesson); err != nil {
		return nil, err
	}
	if in.Position != nil {
		lesson.Position = *in.Position
	}
	err = s.editContent(ctx, teacherID, courseID, false, func(tx *gorm.DB) error {
		return s.repos.Lessons.Update(ctx, tx, lesson)
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Lessons.GetByID(ctx, nil, lessonID)
}

func (s *CourseService) DeleteLesson(ctx context.Context, teacherID, lessonID uint) error {
	courseID, err := s.repos.Lessons.CourseIDOf(ctx, nil, lessonID)
	if err != nil {
		return err
	}
	return s.editContent(ctx, teacherID, courseID, true, func(tx *gorm.DB) error {
		return s.repos.Lessons.Delete(ctx, tx, lessonID)
	})
}

// editContent wraps a module or lesson change. The lifecycle check runs first so
// an edit refused by the review lock never reaches the database, and a published
// or approved course is sent back to review in the same transaction as the edit.
func (s *CourseService) editContent(ctx context.Context, teacherID, courseID uint, lessonCountChanged bool, edit func(tx *gorm.DB) error) error {
	var (
		course *models.Course
		res    lifecycle.Result
		evs    []events.Event
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repos.Courses.Touch(ctx, tx, courseID); err != nil {
			return err
		}
		var err error
		course, err = s.ownedCourse(ctx, tx, teacherID, courseID)
		if err != nil {
			return err
		}
		res, err = s.wf.apply(ctx, tx, course, lifecycle.Input{Event: lifecycle.EventContentEdit}, teacherID, nil)
		if err != nil {
			return err
		}
		if err := edit(tx); err != nil {
			return err
		}
		if lessonCountChanged {
			evs, err = s.progress.recountCourse(ctx, tx, courseID)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	if res.Changed {
		publish(ctx, s.events, s.log, transitionEvent(course, res, s.now()))
	}
	publish(ctx, s.events, s.log, evs...)
	return nil
}

func (s *CourseService) Submit(ctx context.Context, teacherID, courseID uint) (CourseStatus, error) {
	return s.transition(ctx, teacherID, courseID, lifecycle.EventSubmit)
}

func (s *CourseService) Publish(ctx context.Context, teacherID, courseID uint) (CourseStatus, error) {
	return s.transition(ctx, teacherID, courseID, lifecycle.EventPublish)
}

func (s *CourseService) Unpublish(ctx context.Context, teacherID, courseID uint) (CourseStatus, error) {
	return s.transition(ctx, teacherID, courseID, lifecycle.EventUnpublish)
}

func (s *CourseService) transition(ctx context.Context, teacherID, courseID uint, event lifecycle.Event) (CourseStatus, error) {
	var (
		course *models.Course
		res    lifecycle.Result
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repos.Courses.Touch(ctx, tx, courseID); err != nil {
			return err
		}
		var err error
		course, err = s.ownedCourse(ctx, tx, teacherID, courseID)
		if err != nil {
			return err
		}
		res, err = s.wf.apply(ctx, tx, course, lifecycle.Input{Event: event}, teacherID, nil)
		return err
	})
	if err != nil {
		return CourseStatus{}, err
	}
	if res.Changed {
		publish(ctx, s.events, s.log, transitionEvent(course, res, s.now()))
	}
	return statusOf(course, res.Changed), nil
}

// Status reports the lifecycle state of an owned course.
func (s *CourseService) Status(ctx context.Context, teacherID, courseID uint) (CourseStatus, error) {
	course, err := s.ownedCourse(ctx, nil, teacherID, courseID)
	if err != nil {
		return CourseStatus{}, err
	}
	return statusOf(course, false), nil
}

// Reviews is the review history of an owned course, newest first.
func (s *CourseService) Reviews(ctx context.Context, teacherID, courseID uint) ([]models.CourseReview, error) {
	if _, err := s.ownedCourse(ctx, nil, teacherID, courseID); err != nil {
		return nil, err
	}
	return s.repos.Reviews.ListByCourse(ctx, nil, courseID)
}

func (s *CourseService) Catalog(ctx context.Context, filter repos.CatalogFilter) ([]models.Course, error) {
	return s.repos.Courses.ListPublished(ctx, nil, filter)
}

// CourseDetail shows a published course to anyone, and an unpublished one only to
// its teacher or to students already enrolled.
func (s *CourseService) CourseDetail(ctx context.Context, viewerID, courseID uint) (*models.Course, error) {
	course, err := s.repos.Courses.GetWithContent(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	if course.IsPublished || course.TeacherID == viewerID {
		return course, nil
	}
	enrollment, err := s.repos.Enrollments.Find(ctx, nil, viewerID, courseID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, apperr.NotFound("course")
	}
	return course, nil
}

func (s *CourseService) Analytics(ctx context.Context, teacherID, courseID uint) (*CourseAnalytics, error) {
	course, err := s.ownedCourse(ctx, nil, teacherID, courseID)
	if err != nil {
		return nil, err
	}
	total, err := s.repos.Courses.CountLessons(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	stats, err := s.repos.Enrollments.Stats(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	out := &CourseAnalytics{
		CourseID:        course.ID,
		Title:           course.Title,
		Status:          lifecycle.StateOf(flagsOf(course)),
		TotalLessons:    total,
		Enrollments:     stats.Enrollments,
		Completed:       stats.Completed,
		AverageProgress: stats.AverageProgress,
	}
	if stats.Enrollments > 0 {
		out.CompletionRate = float64(stats.Completed) * 100 / float64(stats.Enrollments)
	}
	return out, nil
}

func (s *CourseService) ownedCourse(ctx context.Context, tx *gorm.DB, teacherID, courseID uint) (*models.Course, error) {
	course, err := s.repos.Courses.GetByID(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	if course.TeacherID != teacherID {
		return nil, apperr.NotFound("course")
	}
	return course, nil
}
