package repos

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/lifecycle"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/utils"
)

// CatalogFilter narrows the published catalog.
type CatalogFilter struct {
	Category   string
	Difficulty string
	Query      string
}

type CourseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, course *models.Course) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error)
	GetWithContent(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error)
	UpdateDetails(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	SaveLifecycle(ctx context.Context, tx *gorm.DB, course *models.Course) error
	ListByTeacher(ctx context.Context, tx *gorm.DB, teacherID uint) ([]models.Course, error)
	ListPublished(ctx context.Context, tx *gorm.DB, filter CatalogFilter) ([]models.Course, error)
	ContentShape(ctx context.Context, tx *gorm.DB, courseID uint) ([]lifecycle.ModuleShape, error)
	CountLessons(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error)
	Touch(ctx context.Context, tx *gorm.DB, id uint) error
}

type courseRepo struct {
	db  *gorm.DB
	log *utils.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *utils.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *courseRepo) Create(ctx context.Context, tx *gorm.DB, course *models.Course) error {
	if err := r.conn(tx).WithContext(ctx).Omit("Modules", "Teacher").Create(course).Error; err != nil {
		return pkgerrors.Wrap(err, "create course")
	}
	return nil
}

func (r *courseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	var course models.Course
	if err := r.conn(tx).WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, notFound(err, "course")
	}
	return &course, nil
}

// GetWithContent loads the teacher and the ordered module/lesson tree.
func (r *courseRepo) GetWithContent(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	var course models.Course
	err := r.conn(tx).WithContext(ctx).
		Preload("Teacher", publicTeacher).
		Preload("Modules", orderByPosition).
		Preload("Modules.Lessons", orderByPosition).
		Preload("Modules.Lessons.Video").
		Preload("Modules.Lessons.Blog").
		First(&course, id).Error
	if err != nil {
		return nil, notFound(err, "course")
	}
	return &course, nil
}

func (r *courseRepo) UpdateDetails(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.conn(tx).WithContext(ctx).Model(&models.Course{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return pkgerrors.Wrap(res.Error, "update course")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("course")
	}
	return nil
}

// SaveLifecycle writes the three flags and the review columns. A map is used so
// false values are written.
func (r *courseRepo) SaveLifecycle(ctx context.Context, tx *gorm.DB, course *models.Course) error {
	err := r.conn(tx).WithContext(ctx).Model(&models.Course{}).Where("id = ?", course.ID).Updates(map[string]interface{}{
		"is_published":            course.IsPublished,
		"is_submitted_for_review": course.IsSubmittedForReview,
		"admin_approved":          course.AdminApproved,
		"review_feedback":         course.ReviewFeedback,
		"reviewed_at":             course.ReviewedAt,
		"published_at":            course.PublishedAt,
	}).Error
	if err != nil {
		return pkgerrors.Wrapf(err, "save lifecycle of course %d", course.ID)
	}
	return nil
}

func (r *courseRepo) ListByTeacher(ctx context.Context, tx *gorm.DB, teacherID uint) ([]models.Course, error) {
	var courses []models.Course
	if err := r.conn(tx).WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("updated_at DESC").
		Find(&courses).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list teacher courses")
	}
	return courses, nil
}

func (r *courseRepo) ListPublished(ctx context.Context, tx *gorm.DB, filter CatalogFilter) ([]models.Course, error) {
	query := r.conn(tx).WithContext(ctx).Model(&models.Course{}).
		Preload("Teacher", publicTeacher).
		Where("is_published = ?", true)

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Difficulty != "" {
		query = query.Where("difficulty = ?", filter.Difficulty)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var courses []models.Course
	if err := query.Order("published_at DESC, id DESC").Find(&courses).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list published courses")
	}
	return courses, nil
}

// ContentShape returns every live module with its live lesson count, in order.
func (r *courseRepo) ContentShape(ctx context.Context, tx *gorm.DB, courseID uint) ([]lifecycle.ModuleShape, error) {
	var rows []struct {
		Title       string
		LessonCount int
	}
	err := r.conn(tx).WithContext(ctx).Model(&models.Module{}).
		Select("modules.title AS title, COUNT(lessons.id) AS lesson_count").
		Joins("LEFT JOIN lessons ON lessons.module_id = modules.id AND lessons.deleted_at IS NULL").
		Where("modules.course_id = ?", courseID).
		Group("modules.id, modules.title, modules.position").
		Order("modules.position ASC, modules.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load course content shape")
	}
	shape := make([]lifecycle.ModuleShape, 0, len(rows))
	for _, row := range rows {
		shape = append(shape, lifecycle.ModuleShape{Title: row.Title, LessonCount: row.LessonCount})
	}
	return shape, nil
}

// CountLessons counts live lessons in live modules of the course.
func (r *courseRepo) CountLessons(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error) {
	var total int64
	err := r.conn(tx).WithContext(ctx).Model(&models.Lesson{}).
		Joins("JOIN modules ON modules.id = lessons.module_id AND modules.deleted_at IS NULL").
		Where("modules.course_id = ?", courseID).
		Count(&total).Error
	if err != nil {
		return 0, pkgerrors.Wrap(err, "count course lessons")
	}
	return total, nil
}

// Touch bumps updated_at. Called first inside a transaction so that concurrent
// writers of the same course queue behind the row lock.
func (r *courseRepo) Touch(ctx context.Context, tx *gorm.DB, id uint) error {
	res := r.conn(tx).WithContext(ctx).Model(&models.Course{}).Where("id = ?", id).Update("updated_at", time.Now())
	if res.Error != nil {
		return pkgerrors.Wrap(res.Error, "touch course")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("course")
	}
	return nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

// publicTeacher limits a preloaded owner to what students may see.
func publicTeacher(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "full_name", "role")
}

// notFound converts gorm's missing-record error into a domain error.
func notFound(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource)
	}
	return pkgerrors.Wrapf(err, "load %s", resource)
}
