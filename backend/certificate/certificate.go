// Package certificate decides certificate eligibility and renders certificates.
// Nothing here writes to the database.
package certificate

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/models"
)

// namespace seeds the UUIDv5 certificate numbers.
var namespace = uuid.MustParse("6f1c2a8e-2f4b-5d0e-9a55-1c7e3b4d9f20")

type Certificate struct {
	Number       string    `json:"number"`
	EnrollmentID uint      `json:"enrollment_id"`
	CourseID     uint      `json:"course_id"`
	CourseTitle  string    `json:"course_title"`
	StudentName  string    `json:"student_name"`
	TeacherName  string    `json:"teacher_name"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Check gates on the stored percentage, which is authoritative over the
// completed flag.
func Check(e models.Enrollment) error {
	if e.ProgressPercentage == 100 {
		return nil
	}
	return apperr.WithMetadata(
		apperr.CodeCertificateNotEligible,
		fmt.Sprintf("course is %d%% complete, %d%% remaining", e.ProgressPercentage, 100-e.ProgressPercentage),
		map[string]string{
			"percentage": strconv.Itoa(e.ProgressPercentage),
			"remaining":  strconv.Itoa(100 - e.ProgressPercentage),
		},
	)
}

// Build assembles the certificate for an eligible enrollment.
func Build(e models.Enrollment, student models.User, course models.Course, teacher models.User) (Certificate, error) {
	if err := Check(e); err != nil {
		return Certificate{}, err
	}
	completedAt := e.UpdatedAt
	if e.CompletedAt != nil {
		completedAt = *e.CompletedAt
	}
	return Certificate{
		Number:       Number(e.ID, course.ID),
		EnrollmentID: e.ID,
		CourseID:     course.ID,
		CourseTitle:  course.Title,
		StudentName:  student.DisplayName(),
		TeacherName:  teacher.DisplayName(),
		CompletedAt:  completedAt.UTC(),
	}, nil
}

// Number is stable for an enrollment so re-rendering yields the same certificate.
func Number(enrollmentID, courseID uint) string {
	return uuid.NewSHA1(namespace, []byte(fmt.Sprintf("%d:%d", enrollmentID, courseID))).String()
}
