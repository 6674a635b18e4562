package repos

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/utils"
)

// CourseStats aggregates the enrollments of one course.
type CourseStats struct {
	Enrollments     int64   `json:"enrollments"`
	Completed       int64   `json:"completed"`
	AverageProgress float64 `json:"average_progress"`
}

type EnrollmentRepo interface {
	FindOrCreate(ctx context.Context, tx *gorm.DB, studentID, courseID uint) (*models.Enrollment, bool, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Enrollment, error)
	Find(ctx context.Context, tx *gorm.DB, studentID, courseID uint) (*models.Enrollment, error)
	SaveProgress(ctx context.Context, tx *gorm.DB, e *models.Enrollment) error
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID uint) ([]models.Enrollment, error)
	ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint) ([]models.Enrollment, error)
	Stats(ctx context.Context, tx *gorm.DB, courseID uint) (CourseStats, error)
	Touch(ctx context.Context, tx *gorm.DB, id uint) error
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *utils.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *utils.Logger) EnrollmentRepo {
	return &enrollmentRepo{db: db, log: baseLog.With("repo", "EnrollmentRepo")}
}

func (r *enrollmentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// FindOrCreate returns the student's enrollment in the course, creating it when
// missing. The bool reports whether a row was created.
func (r *enrollmentRepo) FindOrCreate(ctx context.Context, tx *gorm.DB, studentID, courseID uint) (*models.Enrollment, bool, error) {
	conn := r.conn(tx).WithContext(ctx)
	enrollment := models.Enrollment{StudentID: studentID, CourseID: courseID}
	res := conn.Omit("Course").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&enrollment)
	if res.Error != nil {
		return nil, false, pkgerrors.Wrap(res.Error, "create enrollment")
	}
	created := res.RowsAffected > 0

	var stored models.Enrollment
	if err := conn.Where("student_id = ? AND course_id = ?", studentID, courseID).First(&stored).Error; err != nil {
		return nil, false, notFound(err, "enrollment")
	}
	return &stored, created, nil
}

func (r *enrollmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := r.conn(tx).WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err, "enrollment")
	}
	return &e, nil
}

// Find returns nil when the student is not enrolled in the course.
func (r *enrollmentRepo) Find(ctx context.Context, tx *gorm.DB, studentID, courseID uint) (*models.Enrollment, error) {
	var e models.Enrollment
	err := r.conn(tx).WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "find enrollment")
	}
	return &e, nil
}

func (r *enrollmentRepo) SaveProgress(ctx context.Context, tx *gorm.DB, e *models.Enrollment) error {
	err := r.conn(tx).WithContext(ctx).Model(&models.Enrollment{}).Where("id = ?", e.ID).Updates(map[string]interface{}{
		"progress_percentage": e.ProgressPercentage,
		"completed":           e.Completed,
		"completed_at":        e.CompletedAt,
	}).Error
	if err != nil {
		return pkgerrors.Wrapf(err, "save progress of enrollment %d", e.ID)
	}
	return nil
}

func (r *enrollmentRepo) ListByStudent(ctx context.Context, tx *gorm.DB, studentID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.conn(tx).WithContext(ctx).
		Preload("Course").
		Where("student_id = ?", studentID).
		Order("created_at DESC, id DESC").
		Find(&enrollments).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list student enrollments")
	}
	return enrollments, nil
}

func (r *enrollmentRepo) ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.conn(tx).WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Find(&enrollments).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list course enrollments")
	}
	return enrollments, nil
}

func (r *enrollmentRepo) Stats(ctx context.Context, tx *gorm.DB, courseID uint) (CourseStats, error) {
	var stats CourseStats
	err := r.conn(tx).WithContext(ctx).Model(&models.Enrollment{}).
		Select("COUNT(*) AS enrollments, "+
			"COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0) AS completed, "+
			"COALESCE(AVG(progress_percentage), 0) AS average_progress").
		Where("course_id = ?", courseID).
		Scan(&stats).Error
	if err != nil {
		return CourseStats{}, pkgerrors.Wrap(err, "course enrollment stats")
	}
	return stats, nil
}

// Touch bumps updated_at first thing in a transaction so concurrent progress
// writes on one enrollment serialize.
func (r *enrollmentRepo) Touch(ctx context.Context, tx *gorm.DB, id uint) error {
	res := r.conn(tx).WithContext(ctx).Model(&models.Enrollment{}).Where("id = ?", id).Update("updated_at", time.Now())
	if res.Error != nil {
		return pkgerrors.Wrap(res.Error, "touch enrollment")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("enrollment")
	}
	return nil
}
