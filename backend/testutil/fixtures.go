package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/models"
)

// Password is the plain-text password of every fixture user.
const Password = "password123"

func CreateUser(t *testing.T, db *gorm.DB, role models.Role, verification models.VerificationStatus) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)

	name := fmt.Sprintf("%s-%s", role, uuid.NewString()[:8])
	user := models.User{
		Username:            name,
		Email:               name + "@example.com",
		PasswordHash:        string(hash),
		Role:                role,
		TeacherVerification: verification,
		FullName:            "Test " + string(role),
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func Teacher(t *testing.T, db *gorm.DB) models.User {
	return CreateUser(t, db, models.RoleTeacher, models.VerificationApproved)
}

func UnverifiedTeacher(t *testing.T, db *gorm.DB) models.User {
	return CreateUser(t, db, models.RoleTeacher, models.VerificationPending)
}

func Student(t *testing.T, db *gorm.DB) models.User {
	return CreateUser(t, db, models.RoleStudent, models.VerificationNone)
}

func Admin(t *testing.T, db *gorm.DB) models.User {
	return CreateUser(t, db, models.RoleAdmin, models.VerificationNone)
}

// Course creates a draft course with the given number of modules, each holding
// lessonsPerModule lessons. Lessons alternate between video and blog.
func Course(t *testing.T, db *gorm.DB, teacherID uint, modules, lessonsPerModule int) models.Course {
	t.Helper()
	course := models.Course{
		Title:       "Course " + uuid.NewString()[:8],
		Description: "fixture",
		Category:    "philosophy",
		Difficulty:  "beginner",
		TeacherID:   teacherID,
	}
	require.NoError(t, db.Create(&course).Error)

	n := 0
	for m := 0; m < modules; m++ {
		module := models.Module{CourseID: course.ID, Title: fmt.Sprintf("Module %d", m+1), Position: m}
		require.NoError(t, db.Create(&module).Error)
		for l := 0; l < lessonsPerModule; l++ {
			n++
			lesson := models.Lesson{
				ModuleID: module.ID,
				Title:    fmt.Sprintf("Lesson %d", n),
				Position: l,
			}
			if n%2 == 1 {
				lesson.Kind = models.LessonKindVideo
				lesson.Video = &models.VideoLesson{VideoURL: fmt.Sprintf("https://video.example.com/%d.mp4", n)}
			} else {
				lesson.Kind = models.LessonKindBlog
				lesson.Blog = &models.BlogLesson{Body: fmt.Sprintf("Reading %d", n)}
			}
			require.NoError(t, db.Create(&lesson).Error)
		}
	}
	return Reload(t, db, course.ID)
}

// PublishedCourse is Course moved straight to the published state.
func PublishedCourse(t *testing.T, db *gorm.DB, teacherID uint, modules, lessonsPerModule int) models.Course {
	t.Helper()
	course := Course(t, db, teacherID, modules, lessonsPerModule)
	require.NoError(t, db.Model(&models.Course{}).Where("id = ?", course.ID).Updates(map[string]interface{}{
		"is_published":            true,
		"admin_approved":          true,
		"is_submitted_for_review": false,
	}).Error)
	return Reload(t, db, course.ID)
}

// Reload fetches a course with its ordered content.
func Reload(t *testing.T, db *gorm.DB, courseID uint) models.Course {
	t.Helper()
	var course models.Course
	require.NoError(t, db.
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Modules.Lessons.Video").
		Preload("Modules.Lessons.Blog").
		First(&course, courseID).Error)
	return course
}

// LessonIDs lists a course's lesson ids in module then lesson order.
func LessonIDs(c models.Course) []uint {
	var ids []uint
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			ids = append(ids, l.ID)
		}
	}
	return ids
}
