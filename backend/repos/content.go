package repos

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/utils"
)

type ModuleRepo interface {
	Create(ctx context.Context, tx *gorm.DB, module *models.Module) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Module, error)
	Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	NextPosition(ctx context.Context, tx *gorm.DB, courseID uint) (int, error)
}

type moduleRepo struct {
	db  *gorm.DB
	log *utils.Logger
}

func NewModuleRepo(db *gorm.DB, baseLog *utils.Logger) ModuleRepo {
	return &moduleRepo{db: db, log: baseLog.With("repo", "ModuleRepo")}
}

func (r *moduleRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *moduleRepo) Create(ctx context.Context, tx *gorm.DB, module *models.Module) error {
	if err := r.conn(tx).WithContext(ctx).Omit("Lessons").Create(module).Error; err != nil {
		return pkgerrors.Wrap(err, "create module")
	}
	return nil
}

func (r *moduleRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Module, error) {
	var module models.Module
	if err := r.conn(tx).WithContext(ctx).First(&module, id).Error; err != nil {
		return nil, notFound(err, "module")
	}
	return &module, nil
}

func (r *moduleRepo) Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.conn(tx).WithContext(ctx).Model(&models.Module{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return pkgerrors.Wrap(res.Error, "update module")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("module")
	}
	return nil
}

// Delete soft-deletes the module together with its lessons.
func (r *moduleRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	conn := r.conn(tx).WithContext(ctx)
	if err := conn.Where("module_id = ?", id).Delete(&models.Lesson{}).Error; err != nil {
		return pkgerrors.Wrap(err, "delete module lessons")
	}
	res := conn.Delete(&models.Module{}, id)
	if res.Error != nil {
		return pkgerrors.Wrap(res.Error, "delete module")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("module")
	}
	return nil
}

func (r *moduleRepo) NextPosition(ctx context.Context, tx *gorm.DB, courseID uint) (int, error) {
	top := -1
	if err := r.conn(tx).WithContext(ctx).Model(&models.Module{}).
		Where("course_id = ?", courseID).
		Select("COALESCE(MAX(position), -1)").
		Scan(&top).Error; err != nil {
		return 0, pkgerrors.Wrap(err, "module position")
	}
	return top + 1, nil
}

type LessonRepo interface {
	Create(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Lesson, error)
	Update(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	NextPosition(ctx context.Context, tx *gorm.DB, moduleID uint) (int, error)
	CourseIDOf(ctx context.Context, tx *gorm.DB, lessonID uint) (uint, error)
}

type lessonRepo struct {
	db  *gorm.DB
	log *utils.Logger
}

func NewLessonRepo(db *gorm.DB, baseLog *utils.Logger) LessonRepo {
	return &lessonRepo{db: db, log: baseLog.With("repo", "LessonRepo")}
}

func (r *lessonRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Create inserts the lesson and whichever content variant it carries.
func (r *lessonRepo) Create(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error {
	if err := r.conn(tx).WithContext(ctx).Omit("Module").Create(lesson).Error; err != nil {
		return pkgerrors.Wrap(err, "create lesson")
	}
	return nil
}

func (r *lessonRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := r.conn(tx).WithContext(ctx).
		Preload("Module").
		Preload("Video").
		Preload("Blog").
		First(&lesson, id).Error; err != nil {
		return nil, notFound(err, "lesson")
	}
	return &lesson, nil
}

// Update rewrites the lesson columns and replaces its content variant, so a
// lesson can switch between video and blog.
func (r *lessonRepo) Update(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error {
	conn := r.conn(tx).WithContext(ctx)
	res := conn.Model(&models.Lesson{}).Where("id = ?", lesson.ID).Updates(map[string]interface{}{
		"title":            lesson.Title,
		"kind":             lesson.Kind,
		"duration_minutes": lesson.DurationMinutes,
		"position":         lesson.Position,
	})
	if res.Error != nil {
		return pkgerrors.Wrap(res.Error, "update lesson")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("lesson")
	}

	if err := conn.Where("lesson_id = ?", lesson.ID).Delete(&models.VideoLesson{}).Error; err != nil {
		return pkgerrors.Wrap(err, "clear video content")
	}
	if err := conn.Where("lesson_id = ?", lesson.ID).Delete(&models.BlogLesson{}).Error; err != nil {
		return pkgerrors.Wrap(err, "clear blog content")
	}
	if lesson.Video != nil {
		lesson.Video.ID = 0
		lesson.Video.LessonID = lesson.ID
		if err := conn.Create(lesson.Video).Error; err != nil {
			return pkgerrors.Wrap(err, "store video content")
		}
	}
	if lesson.Blog != nil {
		lesson.Blog.ID = 0
		lesson.Blog.LessonID = lesson.ID
		if err := conn.Create(lesson.Blog).Error; err != nil {
			return pkgerrors.Wrap(err, "store blog content")
		}
	}
	return nil
}

func (r *lessonRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	res := r.conn(tx).WithContext(ctx).Delete(&models.Lesson{}, id)
	if res.Error != nil {
		return pkgerrors.Wrap(res.Error, "delete lesson")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("lesson")
	}
	return nil
}

func (r *lessonRepo) NextPosition(ctx context.Context, tx *gorm.DB, moduleID uint) (int, error) {
	top := -1
	if err := r.conn(tx).WithContext(ctx).Model(&models.Lesson{}).
		Where("module_id = ?", moduleID).
		Select("COALESCE(MAX(position), -1)").
		Scan(&top).Error; err != nil {
		return 0, pkgerrors.Wrap(err, "lesson position")
	}
	return top + 1, nil
}

// CourseIDOf resolves the course a live lesson belongs to through its live module.
func (r *lessonRepo) CourseIDOf(ctx context.Context, tx *gorm.DB, lessonID uint) (uint, error) {
	var ids []uint
	err := r.conn(tx).WithContext(ctx).Model(&models.Lesson{}).
		Joins("JOIN modules ON modules.id = lessons.module_id AND modules.deleted_at IS NULL").
		Where("lessons.id = ?", lessonID).
		Pluck("modules.course_id", &ids).Error
	if err != nil {
		return 0, pkgerrors.Wrap(err, "resolve lesson course")
	}
	if len(ids) == 0 {
		return 0, apperr.NotFound("lesson")
	}
	return ids[0], nil
}
