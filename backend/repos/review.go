package repos

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/utils"
)

type ReviewRepo interface {
	Open(ctx context.Context, tx *gorm.DB, courseID, submittedBy uint) (*models.CourseReview, error)
	Pending(ctx context.Context, tx *gorm.DB, courseID uint) (*models.CourseReview, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.CourseReview, error)
	Close(ctx context.Context, tx *gorm.DB, review *models.CourseReview, status models.ReviewStatus, feedback string, reviewerID uint, at time.Time) error
	ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint) ([]models.CourseReview, error)
	ListByStatus(ctx context.Context, tx *gorm.DB, status models.ReviewStatus) ([]models.CourseReview, error)
}

type reviewRepo struct {
	db  *gorm.DB
	log *utils.Logger
}

func NewReviewRepo(db *gorm.DB, baseLog *utils.Logger) ReviewRepo {
	return &reviewRepo{db: db, log: baseLog.With("repo", "ReviewRepo")}
}

func (r *reviewRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Open queues a pending review for the course, reusing one that is already open.
func (r *reviewRepo) Open(ctx context.Context, tx *gorm.DB, courseID, submittedBy uint) (*models.CourseReview, error) {
	existing, err := r.Pending(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	review := &models.CourseReview{
		CourseID:    courseID,
		SubmittedBy: submittedBy,
		Status:      models.ReviewPending,
	}
	if err := r.conn(tx).WithContext(ctx).Omit("Course").Create(review).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "open course review")
	}
	return review, nil
}

// Pending returns the open review of a course, or nil when there is none.
func (r *reviewRepo) Pending(ctx context.Context, tx *gorm.DB, courseID uint) (*models.CourseReview, error) {
	var review models.CourseReview
	err := r.conn(tx).WithContext(ctx).
		Where("course_id = ? AND status = ?", courseID, models.ReviewPending).
		Order("id DESC").
		First(&review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load pending review")
	}
	return &review, nil
}

func (r *reviewRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.CourseReview, error) {
	var review models.CourseReview
	if err := r.conn(tx).WithContext(ctx).First(&review, id).Error; err != nil {
		return nil, notFound(err, "review")
	}
	return &review, nil
}

func (r *reviewRepo) Close(ctx context.Context, tx *gorm.DB, review *models.CourseReview, status models.ReviewStatus, feedback string, reviewerID uint, at time.Time) error {
	res := r.conn(tx).WithContext(ctx).Model(&models.CourseReview{}).
		Where("id = ? AND status = ?", review.ID, models.ReviewPending).
		Updates(map[string]interface{}{
			"status":      status,
			"feedback":    feedback,
			"reviewer_id": reviewerID,
			"reviewed_at": at,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(res.Error, "close course review")
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.CodeReviewAlreadyProcessed, "review has already been processed")
	}
	review.Status = status
	review.Feedback = feedback
	review.ReviewerID = &reviewerID
	review.ReviewedAt = &at
	return nil
}

func (r *reviewRepo) ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint) ([]models.CourseReview, error) {
	var reviews []models.CourseReview
	if err := r.conn(tx).WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id DESC").
		Find(&reviews).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list course reviews")
	}
	return reviews, nil
}

// ListByStatus is the admin queue; an empty status lists everything.
func (r *reviewRepo) ListByStatus(ctx context.Context, tx *gorm.DB, status models.ReviewStatus) ([]models.CourseReview, error) {
	query := r.conn(tx).WithContext(ctx).Preload("Course")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var reviews []models.CourseReview
	if err := query.Order("created_at ASC, id ASC").Find(&reviews).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list reviews")
	}
	return reviews, nil
}
