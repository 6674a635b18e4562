package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/events"
	"github.com/kassslll/philosofium/backend/lifecycle"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/utils"
)

type ReviewInput struct {
	Action   string `json:"action" validate:"required,oneof=approve reject"`
	Feedback string `json:"feedback" validate:"max=5000"`
}

type VerificationInput struct {
	Status models.VerificationStatus `json:"status" validate:"required,oneof=pending approved rejected"`
}

// ReviewService is the admin side of the workflow.
type ReviewService struct {
	db     *gorm.DB
	log    *utils.Logger
	repos  Repos
	wf     *workflow
	events events.Publisher
	now    func() time.Time
}

func NewReviewService(db *gorm.DB, baseLog *utils.Logger, r Repos, opts Options, pub events.Publisher) *ReviewService {
	log := baseLog.With("service", "ReviewService")
	return &ReviewService{
		db:     db,
		log:    log,
		repos:  r,
		wf:     &workflow{repos: r, machine: lifecycle.NewMachine(opts.EditLock), log: log, now: time.Now},
		events: pub,
		now:    time.Now,
	}
}

func (s *ReviewService) ListReviews(ctx context.Context, status models.ReviewStatus) ([]models.CourseReview, error) {
	switch status {
	case "", models.ReviewPending, models.ReviewApproved, models.ReviewRejected:
	default:
		return nil, apperr.Invalid("unknown review status " + string(status))
	}
	return s.repos.Reviews.ListByStatus(ctx, nil, status)
}

// Review approves or rejects a pending review. Rejecting requires feedback, which
// is stored on both the review and the course.
func (s *ReviewService) Review(ctx context.Context, adminID, reviewID uint, in ReviewInput) (CourseStatus, error) {
	event := lifecycle.EventApprove
	if in.Action == "reject" {
		event = lifecycle.EventReject
	}

	var (
		course *models.Course
		res    lifecycle.Result
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		review, err := s.repos.Reviews.GetByID(ctx, tx, reviewID)
		if err != nil {
			return err
		}
		if err := s.repos.Courses.Touch(ctx, tx, review.CourseID); err != nil {
			return err
		}
		// Re-read after the touch; a concurrent decision may have closed it.
		review, err = s.repos.Reviews.GetByID(ctx, tx, reviewID)
		if err != nil {
			return err
		}
		if review.Status != models.ReviewPending {
			return apperr.WithMetadata(apperr.CodeReviewAlreadyProcessed, "review has already been processed",
				map[string]string{"status": string(review.Status)})
		}
		course, err = s.repos.Courses.GetByID(ctx, tx, review.CourseID)
		if err != nil {
			return err
		}
		res, err = s.wf.apply(ctx, tx, course, lifecycle.Input{Event: event, Feedback: in.Feedback}, adminID, review)
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

// SetTeacherVerification records the admin verdict on a teacher account.
func (s *ReviewService) SetTeacherVerification(ctx context.Context, adminID, teacherID uint, in VerificationInput) (*models.User, error) {
	user, err := s.repos.Users.GetByID(ctx, nil, teacherID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleTeacher {
		return nil, apperr.WithMetadata(apperr.CodeInvalidInput, "only teacher accounts carry a verification status",
			map[string]string{"role": string(user.Role)})
	}
	if err := s.repos.Users.SetVerification(ctx, nil, teacherID, in.Status); err != nil {
		return nil, err
	}
	s.log.Info("teacher verification changed", "teacher_id", teacherID, "status", in.Status, "admin_id", adminID)
	return s.repos.Users.GetByID(ctx, nil, teacherID)
}
