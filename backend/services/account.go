package services

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/config"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/utils"
)

type RegisterInput struct {
	Username   string      `json:"username" validate:"required,min=3,max=32"`
	Email      string      `json:"email" validate:"required,email"`
	Password   string      `json:"password" validate:"required,min=8"`
	Role       models.Role `json:"role" validate:"omitempty,oneof=student teacher"`
	FullName   string      `json:"full_name" validate:"max=120"`
	University string      `json:"university" validate:"max=120"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ProfileInput struct {
	Username    string `json:"username" validate:"omitempty,min=3,max=32"`
	Email       string `json:"email" validate:"omitempty,email"`
	FullName    string `json:"full_name" validate:"max=120"`
	University  string `json:"university" validate:"max=120"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password" validate:"omitempty,min=8"`
}

// Session is a signed-in user and their bearer token.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AccountService struct {
	db    *gorm.DB
	log   *utils.Logger
	repos Repos
	cfg   *config.Config
}

func NewAccountService(db *gorm.DB, baseLog *utils.Logger, r Repos, cfg *config.Config) *AccountService {
	return &AccountService{db: db, log: baseLog.With("service", "AccountService"), repos: r, cfg: cfg}
}

// Register creates a student or teacher account. Teachers start with a pending
// verification an admin has to approve before they can publish.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	exists, err := s.repos.Users.Exists(ctx, nil, in.Username, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.New(apperr.CodeConflict, "username or email already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:            strings.TrimSpace(in.Username),
		Email:               strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash:        string(hash),
		Role:                models.RoleStudent,
		TeacherVerification: models.VerificationNone,
		FullName:            in.FullName,
		University:          in.University,
	}
	if in.Role == models.RoleTeacher {
		user.Role = models.RoleTeacher
		user.TeacherVerification = models.VerificationPending
	}
	if err := s.repos.Users.Create(ctx, nil, user); err != nil {
		return nil, err
	}
	s.log.Info("user registered", "user_id", user.ID, "role", user.Role)
	return s.session(user)
}

func (s *AccountService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	user, err := s.repos.Users.GetByLogin(ctx, nil, in.Username)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.New(apperr.CodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid credentials")
	}
	return s.session(user)
}

func (s *AccountService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	return s.repos.Users.GetByID(ctx, nil, userID)
}

// UpdateProfile changes the given fields; a new password needs the old one.
func (s *AccountService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*models.User, error) {
	user, err := s.repos.Users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"full_name":  in.FullName,
		"university": in.University,
	}
	if in.Username != "" && in.Username != user.Username {
		fields["username"] = strings.TrimSpace(in.Username)
	}
	if in.Email != "" && in.Email != user.Email {
		fields["email"] = strings.ToLower(strings.TrimSpace(in.Email))
	}
	if in.NewPassword != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.OldPassword)); err != nil {
			return nil, apperr.WithMetadata(apperr.CodeInvalidInput, "old password is incorrect",
				map[string]string{"old_password": "does not match"})
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = string(hash)
	}

	if err := s.repos.Users.UpdateProfile(ctx, nil, userID, fields); err != nil {
		return nil, err
	}
	return s.repos.Users.GetByID(ctx, nil, userID)
}

func (s *AccountService) session(user *models.User) (*Session, error) {
	token, err := utils.GenerateJWTToken(*user, s.cfg)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}
