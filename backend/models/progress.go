package models

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment links one student to one course. ProgressPercentage is derived from
// CompletedLesson rows and is never the source of truth.
type Enrollment struct {
	gorm.Model
	StudentID          uint       `gorm:"not null;uniqueIndex:idx_enrollment_student_course" json:"student_id"`
	CourseID           uint       `gorm:"not null;uniqueIndex:idx_enrollment_student_course" json:"course_id"`
	Course             *Course    `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	ProgressPercentage int        `gorm:"not null;default:0;check:progress_percentage >= 0 AND progress_percentage <= 100" json:"progress_percentage"`
	Completed          bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// CompletedLesson is immutable: no update path and no soft delete.
type CompletedLesson struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	EnrollmentID uint      `gorm:"not null;uniqueIndex:idx_completed_enrollment_lesson" json:"enrollment_id"`
	LessonID     uint      `gorm:"not null;uniqueIndex:idx_completed_enrollment_lesson" json:"lesson_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type VideoProgress struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	EnrollmentID      uint      `gorm:"not null;uniqueIndex:idx_video_enrollment_lesson" json:"enrollment_id"`
	LessonID          uint      `gorm:"not null;uniqueIndex:idx_video_enrollment_lesson" json:"lesson_id"`
	PositionSeconds   float64   `gorm:"not null;default:0" json:"position_seconds"`
	WatchedPercentage float64   `gorm:"not null;default:0" json:"watched_percentage"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProgressSummary is what the completion endpoints return.
type ProgressSummary struct {
	EnrollmentID     uint       `json:"enrollmentId"`
	CourseID         uint       `json:"courseId"`
	CompletedLessons int64      `json:"completedLessons"`
	TotalLessons     int64      `json:"totalLessons"`
	Percentage       int        `json:"percentage"`
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

type EnrollmentOverview struct {
	EnrollmentID uint       `json:"enrollment_id"`
	CourseID     uint       `json:"course_id"`
	CourseTitle  string     `json:"course_title"`
	Percentage   int        `json:"percentage"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	EnrolledAt   time.Time  `json:"enrolled_at"`
}

type ProgressOverview struct {
	TotalEnrollments  int                  `json:"total_enrollments"`
	CompletedCourses  int                  `json:"completed_courses"`
	InProgressCourses int                  `json:"in_progress_courses"`
	AverageProgress   float64              `json:"average_progress"`
	Enrollments       []EnrollmentOverview `json:"enrollments"`
}
