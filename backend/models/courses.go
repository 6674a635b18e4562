package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type Course struct {
	gorm.Model
	Title       string  `gorm:"not null" json:"title"`
	Description string  `json:"description"`
	Category    string  `gorm:"index" json:"category"`
	Difficulty  string  `json:"difficulty"` // beginner, intermediate, advanced
	Price       float64 `gorm:"default:0" json:"price"`
	IsPaid      bool    `gorm:"default:false" json:"is_paid"`
	TeacherID   uint    `gorm:"index;not null" json:"teacher_id"`
	Teacher     *User   `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"`

	// Lifecycle flags; the review state is derived from these three.
	IsPublished          bool `gorm:"default:false;index" json:"is_published"`
	IsSubmittedForReview bool `gorm:"default:false" json:"is_submitted_for_review"`
	AdminApproved        bool `gorm:"default:false" json:"admin_approved"`

	ReviewFeedback string     `json:"review_feedback,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`

	Modules []Module `gorm:"constraint:OnDelete:CASCADE" json:"modules,omitempty"`
}

type Module struct {
	gorm.Model
	CourseID    uint     `gorm:"index;not null" json:"course_id"`
	Title       string   `gorm:"not null" json:"title"`
	Description string   `json:"description"`
	Position    int      `gorm:"not null;default:0" json:"position"`
	Lessons     []Lesson `gorm:"constraint:OnDelete:CASCADE" json:"lessons,omitempty"`
}

type LessonKind string

const (
	LessonKindVideo LessonKind = "video"
	LessonKindBlog  LessonKind = "blog"
)

// Lesson is a tagged variant: Kind selects which of Video or Blog is set.
type Lesson struct {
	gorm.Model
	ModuleID        uint         `gorm:"index;not null" json:"module_id"`
	Module          *Module      `gorm:"foreignKey:ModuleID" json:"-"`
	Title           string       `gorm:"not null" json:"title"`
	Kind            LessonKind   `gorm:"not null" json:"kind"`
	DurationMinutes int          `gorm:"default:0" json:"duration_minutes"`
	Position        int          `gorm:"not null;default:0" json:"position"`
	Video           *VideoLesson `gorm:"foreignKey:LessonID;constraint:OnDelete:CASCADE" json:"video,omitempty"`
	Blog            *BlogLesson  `gorm:"foreignKey:LessonID;constraint:OnDelete:CASCADE" json:"blog,omitempty"`
}

type VideoLesson struct {
	ID       uint   `gorm:"primarykey" json:"-"`
	LessonID uint   `gorm:"uniqueIndex;not null" json:"-"`
	VideoURL string `gorm:"not null" json:"video_url"`
	Provider string `json:"provider,omitempty"`
}

type BlogLesson struct {
	ID       uint   `gorm:"primarykey" json:"-"`
	LessonID uint   `gorm:"uniqueIndex;not null" json:"-"`
	Body     string `gorm:"type:text;not null" json:"body"`
}

// ValidateVariant checks that exactly the content matching Kind is attached.
func (l *Lesson) ValidateVariant() error {
	switch l.Kind {
	case LessonKindVideo:
		if l.Blog != nil {
			return fmt.Errorf("video lesson cannot carry blog content")
		}
		if l.Video == nil || strings.TrimSpace(l.Video.VideoURL) == "" {
			return fmt.Errorf("video lesson requires a video url")
		}
	case LessonKindBlog:
		if l.Video != nil {
			return fmt.Errorf("blog lesson cannot carry video content")
		}
		if l.Blog == nil || strings.TrimSpace(l.Blog.Body) == "" {
			return fmt.Errorf("blog lesson requires a body")
		}
	default:
		return fmt.Errorf("unknown lesson kind %q", l.Kind)
	}
	return nil
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// CourseReview is one submission of a course to the admin queue.
type CourseReview struct {
	gorm.Model
	CourseID    uint         `gorm:"index;not null" json:"course_id"`
	Course      *Course      `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	SubmittedBy uint         `gorm:"not null" json:"submitted_by"`
	Status      ReviewStatus `gorm:"index;not null;default:pending" json:"status"`
	Feedback    string       `json:"feedback,omitempty"`
	ReviewerID  *uint        `json:"reviewer_id,omitempty"`
	ReviewedAt  *time.Time   `json:"reviewed_at,omitempty"`
}
