package repos

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/utils"
)

type UserRepo interface {
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error)
	GetByLogin(ctx context.Context, tx *gorm.DB, login string) (*models.User, error)
	Exists(ctx context.Context, tx *gorm.DB, username, email string) (bool, error)
	UpdateProfile(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	SetVerification(ctx context.Context, tx *gorm.DB, id uint, status models.VerificationStatus) error
}

type userRepo struct {
	db  *gorm.DB
	log *utils.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *utils.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *userRepo) Create(ctx context.Context, tx *gorm.DB, user *models.User) error {
	if err := r.conn(tx).WithContext(ctx).Create(user).Error; err != nil {
		return pkgerrors.Wrap(err, "create user")
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := r.conn(tx).WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

// GetByLogin matches either the username or the email.
func (r *userRepo) GetByLogin(ctx context.Context, tx *gorm.DB, login string) (*models.User, error) {
	var user models.User
	if err := r.conn(tx).WithContext(ctx).
		Where("username = ? OR email = ?", login, login).
		First(&user).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *userRepo) Exists(ctx context.Context, tx *gorm.DB, username, email string) (bool, error) {
	var n int64
	if err := r.conn(tx).WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&n).Error; err != nil {
		return false, pkgerrors.Wrap(err, "check user exists")
	}
	return n > 0, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.conn(tx).WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return pkgerrors.Wrap(res.Error, "update profile")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (r *userRepo) SetVerification(ctx context.Context, tx *gorm.DB, id uint, status models.VerificationStatus) error {
	res := r.conn(tx).WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND role = ?", id, models.RoleTeacher).
		Update("teacher_verification", status)
	if res.Error != nil {
		return pkgerrors.Wrap(res.Error, "set teacher verification")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("teacher")
	}
	return nil
}
