// Package services runs the course workflow and progress tracking inside database
// transactions, publishing events once those commit.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/config"
	"github.com/kassslll/philosofium/backend/events"
	"github.com/kassslll/philosofium/backend/lifecycle"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/progress"
	"github.com/kassslll/philosofium/backend/repos"
	"github.com/kassslll/philosofium/backend/utils"
)

type Repos struct {
	Users         repos.UserRepo
	Courses       repos.CourseRepo
	Modules       repos.ModuleRepo
	Lessons       repos.LessonRepo
	Reviews       repos.ReviewRepo
	Enrollments   repos.EnrollmentRepo
	Completions   repos.CompletionRepo
	VideoProgress repos.VideoProgressRepo
}

func NewRepos(db *gorm.DB, log *utils.Logger) Repos {
	return Repos{
		Users:         repos.NewUserRepo(db, log),
		Courses:       repos.NewCourseRepo(db, log),
		Modules:       repos.NewModuleRepo(db, log),
		Lessons:       repos.NewLessonRepo(db, log),
		Reviews:       repos.NewReviewRepo(db, log),
		Enrollments:   repos.NewEnrollmentRepo(db, log),
		Completions:   repos.NewCompletionRepo(db, log),
		VideoProgress: repos.NewVideoProgressRepo(db, log),
	}
}

// Options are the configurable workflow policies.
type Options struct {
	Completion progress.Policy
	Threshold  progress.Threshold
	EditLock   lifecycle.EditLock
}

func OptionsFromConfig(cfg *config.Config) (Options, error) {
	completion, err := cfg.Policy.Completion()
	if err != nil {
		return Options{}, err
	}
	threshold, err := cfg.Policy.Threshold()
	if err != nil {
		return Options{}, err
	}
	lock, err := cfg.Policy.EditLock()
	if err != nil {
		return Options{}, err
	}
	return Options{Completion: completion, Threshold: threshold, EditLock: lock}, nil
}

// Services is everything the HTTP layer talks to.
type Services struct {
	Accounts     *AccountService
	Courses      *CourseService
	Reviews      *ReviewService
	Progress     *ProgressService
	Certificates *CertificateService
}

func New(db *gorm.DB, cfg *config.Config, log *utils.Logger, pub events.Publisher) (*Services, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	r := NewRepos(db, log)
	progressSvc := NewProgressService(db, log, r, opts, pub)
	return &Services{
		Accounts:     NewAccountService(db, log, r, cfg),
		Courses:      NewCourseService(db, log, r, opts, progressSvc, pub),
		Reviews:      NewReviewService(db, log, r, opts, pub),
		Progress:     progressSvc,
		Certificates: NewCertificateService(db, log, r),
	}, nil
}

// CourseStatus is the lifecycle view of a course returned by workflow endpoints.
type CourseStatus struct {
	CourseID             uint            `json:"course_id"`
	Status               lifecycle.State `json:"status"`
	IsPublished          bool            `json:"is_published"`
	IsSubmittedForReview bool            `json:"is_submitted_for_review"`
	AdminApproved        bool            `json:"admin_approved"`
	ReviewFeedback       string          `json:"review_feedback,omitempty"`
	PublishedAt          *time.Time      `json:"published_at,omitempty"`
	// Changed is false when the course was already in the requested state.
	Changed bool `json:"changed"`
}

func flagsOf(c *models.Course) lifecycle.Flags {
	return lifecycle.Flags{
		IsPublished:          c.IsPublished,
		IsSubmittedForReview: c.IsSubmittedForReview,
		AdminApproved:        c.AdminApproved,
	}
}

func statusOf(c *models.Course, changed bool) CourseStatus {
	return CourseStatus{
		CourseID:             c.ID,
		Status:               lifecycle.StateOf(flagsOf(c)),
		IsPublished:          c.IsPublished,
		IsSubmittedForReview: c.IsSubmittedForReview,
		AdminApproved:        c.AdminApproved,
		ReviewFeedback:       c.ReviewFeedback,
		PublishedAt:          c.PublishedAt,
		Changed:              changed,
	}
}

// workflow executes state machine results against the database.
type workflow struct {
	repos   Repos
	machine lifecycle.Machine
	log     *utils.Logger
	now     func() time.Time
}

// apply runs one lifecycle event for course inside tx and writes the resulting
// flags and side effects. review, when set, is the review an admin decision closes.
func (w *workflow) apply(ctx context.Context, tx *gorm.DB, course *models.Course, in lifecycle.Input, actorID uint, review *models.CourseReview) (lifecycle.Result, error) {
	shape, err := w.repos.Courses.ContentShape(ctx, tx, course.ID)
	if err != nil {
		return lifecycle.Result{}, err
	}
	teacher, err := w.repos.Users.GetByID(ctx, tx, course.TeacherID)
	if err != nil {
		return lifecycle.Result{}, err
	}

	res, err := w.machine.Apply(lifecycle.Snapshot{
		Flags:           flagsOf(course),
		Modules:         shape,
		TeacherVerified: teacher.IsVerifiedTeacher(),
	}, in)
	if err != nil {
		return lifecycle.Result{}, err
	}
	if !res.Changed {
		return res, nil
	}

	now := w.now().UTC()
	course.IsPublished = res.Flags.IsPublished
	course.IsSubmittedForReview = res.Flags.IsSubmittedForReview
	course.AdminApproved = res.Flags.AdminApproved

	for _, eff := range res.Effects {
		switch eff {
		case lifecycle.EffectOpenReview:
			if _, err := w.repos.Reviews.Open(ctx, tx, course.ID, actorID); err != nil {
				return lifecycle.Result{}, err
			}
		case lifecycle.EffectApproveReview, lifecycle.EffectRejectReview:
			status, feedback := models.ReviewApproved, ""
			if eff == lifecycle.EffectRejectReview {
				status, feedback = models.ReviewRejected, res.Feedback
			}
			if err := w.closeReview(ctx, tx, course.ID, review, status, feedback, actorID, now); err != nil {
				return lifecycle.Result{}, err
			}
			course.ReviewFeedback = feedback
			course.ReviewedAt = &now
		case lifecycle.EffectClearFeedback:
			course.ReviewFeedback = ""
		case lifecycle.EffectStampPublished:
			course.PublishedAt = &now
		}
	}

	if err := w.repos.Courses.SaveLifecycle(ctx, tx, course); err != nil {
		return lifecycle.Result{}, err
	}
	w.log.Info("course transitioned",
		"course_id", course.ID,
		"event", in.Event,
		"from", res.From,
		"to", res.To,
		"actor_id", actorID,
	)
	return res, nil
}

func (w *workflow) closeReview(ctx context.Context, tx *gorm.DB, courseID uint, review *models.CourseReview, status models.ReviewStatus, feedback string, actorID uint, at time.Time) error {
	if review == nil {
		pending, err := w.repos.Reviews.Pending(ctx, tx, courseID)
		if err != nil {
			return err
		}
		if pending == nil {
			w.log.Warn("no pending review to close", "course_id", courseID)
			return nil
		}
		review = pending
	}
	return w.repos.Reviews.Close(ctx, tx, review, status, feedback, actorID, at)
}

func transitionEvent(course *models.Course, res lifecycle.Result, at time.Time) events.Event {
	return events.Event{
		Type:     events.CourseTransitioned,
		CourseID: course.ID,
		From:     string(res.From),
		To:       string(res.To),
		At:       at.UTC(),
	}
}

// publish delivers events after commit; failures are logged only.
func publish(ctx context.Context, pub events.Publisher, log *utils.Logger, evs ...events.Event) {
	if pub == nil {
		return
	}
	for _, ev := range evs {
		if err := pub.Publish(ctx, ev); err != nil {
			log.Warn("publish event failed", "type", ev.Type, "course_id", ev.CourseID, "error", err)
		}
	}
}
