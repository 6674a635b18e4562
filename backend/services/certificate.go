package services

import (
	"context"
	"io"

	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/certificate"
	"github.com/kassslll/philosofium/backend/utils"
)

// CertificateService only reads; asking for a certificate never changes progress.
type CertificateService struct {
	db    *gorm.DB
	log   *utils.Logger
	repos Repos
}

func NewCertificateService(db *gorm.DB, baseLog *utils.Logger, r Repos) *CertificateService {
	return &CertificateService{db: db, log: baseLog.With("service", "CertificateService"), repos: r}
}

func (s *CertificateService) Get(ctx context.Context, studentID, enrollmentID uint) (*certificate.Certificate, error) {
	enrollment, err := s.repos.Enrollments.GetByID(ctx, nil, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.StudentID != studentID {
		return nil, apperr.NotFound("enrollment")
	}
	if err := certificate.Check(*enrollment); err != nil {
		return nil, err
	}

	student, err := s.repos.Users.GetByID(ctx, nil, enrollment.StudentID)
	if err != nil {
		return nil, err
	}
	course, err := s.repos.Courses.GetByID(ctx, nil, enrollment.CourseID)
	if err != nil {
		return nil, err
	}
	teacher, err := s.repos.Users.GetByID(ctx, nil, course.TeacherID)
	if err != nil {
		return nil, err
	}

	cert, err := certificate.Build(*enrollment, *student, *course, *teacher)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// WritePDF renders the certificate of an eligible enrollment to w.
func (s *CertificateService) WritePDF(ctx context.Context, studentID, enrollmentID uint, w io.Writer) (*certificate.Certificate, error) {
	cert, err := s.Get(ctx, studentID, enrollmentID)
	if err != nil {
		return nil, err
	}
	if err := certificate.RenderPDF(*cert, w); err != nil {
		s.log.Error("render certificate failed", "enrollment_id", enrollmentID, "error", err)
		return nil, err
	}
	return cert, nil
}
