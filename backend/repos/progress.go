package repos

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/utils"
)

type CompletionRepo interface {
	Insert(ctx context.Context, tx *gorm.DB, enrollmentID, lessonID uint) (bool, error)
	CountLive(ctx context.Context, tx *gorm.DB, enrollmentID, courseID uint) (int64, error)
	LessonIDs(ctx context.Context, tx *gorm.DB, enrollmentID uint) ([]uint, error)
}

type completionRepo struct {
	db  *gorm.DB
	log *utils.Logger
}

func NewCompletionRepo(db *gorm.DB, baseLog *utils.Logger) CompletionRepo {
	return &completionRepo{db: db, log: baseLog.With("repo", "CompletionRepo")}
}

func (r *completionRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Insert records a completed lesson once. It reports false when the pair was
// already recorded.
func (r *completionRepo) Insert(ctx context.Context, tx *gorm.DB, enrollmentID, lessonID uint) (bool, error) {
	row := models.CompletedLesson{EnrollmentID: enrollmentID, LessonID: lessonID}
	res := r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, pkgerrors.Wrap(res.Error, "insert completed lesson")
	}
	return res.RowsAffected > 0, nil
}

// CountLive counts completions whose lesson and module still exist in the course.
func (r *completionRepo) CountLive(ctx context.Context, tx *gorm.DB, enrollmentID, courseID uint) (int64, error) {
	var n int64
	err := r.conn(tx).WithContext(ctx).Model(&models.CompletedLesson{}).
		Joins("JOIN lessons ON lessons.id = completed_lessons.lesson_id AND lessons.deleted_at IS NULL").
		Joins("JOIN modules ON modules.id = lessons.module_id AND modules.deleted_at IS NULL").
		Where("completed_lessons.enrollment_id = ? AND modules.course_id = ?", enrollmentID, courseID).
		Count(&n).Error
	if err != nil {
		return 0, pkgerrors.Wrap(err, "count completed lessons")
	}
	return n, nil
}

func (r *completionRepo) LessonIDs(ctx context.Context, tx *gorm.DB, enrollmentID uint) ([]uint, error) {
	var ids []uint
	if err := r.conn(tx).WithContext(ctx).Model(&models.CompletedLesson{}).
		Where("enrollment_id = ?", enrollmentID).
		Order("lesson_id ASC").
		Pluck("lesson_id", &ids).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list completed lessons")
	}
	return ids, nil
}

type VideoProgressRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, row *models.VideoProgress) (*models.VideoProgress, error)
	Get(ctx context.Context, tx *gorm.DB, enrollmentID, lessonID uint) (*models.VideoProgress, error)
}

type videoProgressRepo struct {
	db  *gorm.DB
	log *utils.Logger
}

func NewVideoProgressRepo(db *gorm.DB, baseLog *utils.Logger) VideoProgressRepo {
	return &videoProgressRepo{db: db, log: baseLog.With("repo", "VideoProgressRepo")}
}

func (r *videoProgressRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Upsert stores the latest position for (enrollment, lesson) and returns the row.
func (r *videoProgressRepo) Upsert(ctx context.Context, tx *gorm.DB, row *models.VideoProgress) (*models.VideoProgress, error) {
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "enrollment_id"}, {Name: "lesson_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"position_seconds", "watched_percentage", "updated_at"}),
		}).
		Create(row).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "upsert video progress")
	}
	return r.Get(ctx, tx, row.EnrollmentID, row.LessonID)
}

// Get returns nil when no position was ever reported.
func (r *videoProgressRepo) Get(ctx context.Context, tx *gorm.DB, enrollmentID, lessonID uint) (*models.VideoProgress, error) {
	var row models.VideoProgress
	err := r.conn(tx).WithContext(ctx).
		Where("enrollment_id = ? AND lesson_id = ?", enrollmentID, lessonID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load video progress")
	}
	return &row, nil
}
