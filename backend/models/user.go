package models

import "gorm.io/gorm"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// VerificationStatus is the admin verdict on a teacher account.
type VerificationStatus string

const (
	VerificationNone     VerificationStatus = "none"
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

type User struct {
	gorm.Model
	Username            string             `gorm:"unique;not null" json:"username"`
	Email               string             `gorm:"unique;not null" json:"email,omitempty"`
	PasswordHash        string             `gorm:"not null" json:"-"`
	Role                Role               `gorm:"default:student" json:"role"`
	TeacherVerification VerificationStatus `gorm:"default:none" json:"teacher_verification,omitempty"`
	FullName            string             `json:"full_name"`
	University          string             `json:"university,omitempty"`
}

// IsVerifiedTeacher reports whether the user may publish courses.
func (u User) IsVerifiedTeacher() bool {
	return u.Role == RoleTeacher && u.TeacherVerification == VerificationApproved
}

// DisplayName prefers the full name over the username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
