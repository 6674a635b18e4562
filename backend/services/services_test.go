package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/config"
	"github.com/kassslll/philosofium/backend/events"
	"github.com/kassslll/philosofium/backend/lifecycle"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/repos"
	"github.com/kassslll/philosofium/backend/testutil"
	"github.com/kassslll/philosofium/backend/utils"
)

type testEnv struct {
	db  *gorm.DB
	svc *Services
	rec *events.Recorder
	ctx context.Context
}

func newEnv(t *testing.T, policy config.Policy) *testEnv {
	t.Helper()
	if policy.CompletionPolicy == "" {
		policy.CompletionPolicy = "sticky"
	}
	if policy.ReviewEditLock == "" {
		policy.ReviewEditLock = "enforce"
	}
	db := testutil.NewDB(t)
	rec := &events.Recorder{}
	cfg := &config.Config{JWTSecret: "test-secret", Policy: policy}
	svc, err := New(db, cfg, utils.NewNopLogger(), rec)
	require.NoError(t, err)
	return &testEnv{db: db, svc: svc, rec: rec, ctx: context.Background()}
}

func (e *testEnv) course(t *testing.T, id uint) models.Course {
	t.Helper()
	var c models.Course
	require.NoError(t, e.db.First(&c, id).Error)
	return c
}

func (e *testEnv) pendingReview(t *testing.T, courseID uint) models.CourseReview {
	t.Helper()
	reviews, err := e.svc.Reviews.ListReviews(e.ctx, models.ReviewPending)
	require.NoError(t, err)
	for _, r := range reviews {
		if r.CourseID == courseID {
			return r
		}
	}
	t.Fatalf("no pending review for course %d", courseID)
	return models.CourseReview{}
}

// approve walks a draft course through submit and admin approval.
func (e *testEnv) approve(t *testing.T, teacherID, adminID, courseID uint) {
	t.Helper()
	_, err := e.svc.Courses.Submit(e.ctx, teacherID, courseID)
	require.NoError(t, err)
	review := e.pendingReview(t, courseID)
	_, err = e.svc.Reviews.Review(e.ctx, adminID, review.ID, ReviewInput{Action: "approve"})
	require.NoError(t, err)
}

func TestFourLessonCourseReachesCertificate(t *testing.T) {
	env := newEnv(t, config.Policy{})
	teacher := testutil.Teacher(t, env.db)
	student := testutil.Student(t, env.db)
	course := testutil.PublishedCourse(t, env.db, teacher.ID, 2, 2)
	lessons := testutil.LessonIDs(course)
	require.Len(t, lessons, 4)

	enrollment, err := env.svc.Progress.Enroll(env.ctx, student.ID, course.ID)
	require.NoError(t, err)

	summary, err := env.svc.Progress.MarkLessonComplete(env.ctx, student.ID, enrollment.ID, lessons[0])
	require.NoError(t, err)
	assert.Equal(t, 25, summary.Percentage)
	assert.Equal(t, int64(1), summary.CompletedLessons)
	assert.Equal(t, int64(4), summary.TotalLessons)

	summary, err = env.svc.Progress.MarkLessonComplete(env.ctx, student.ID, enrollment.ID, lessons[0])
	require.NoError(t, err)
	assert.Equal(t, 25, summary.Percentage)
	assert.Equal(t, int64(1), summary.CompletedLessons)

	_, err = env.svc.Certificates.Get(env.ctx, student.ID, enrollment.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeCertificateNotEligible))

	for _, id := range lessons[1:] {
		summary, err = env.svc.Progress.MarkLessonComplete(env.ctx, student.ID, enrollment.ID, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 100, summary.Percentage)
	assert.True(t, summary.Completed)
	require.NotNil(t, summary.CompletedAt)

	cert, err := env.svc.Certificates.Get(env.ctx, student.ID, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, course.Title, cert.CourseTitle)
	assert.Equal(t, student.DisplayName(), cert.StudentName)
	assert.Equal(t, teacher.DisplayName(), cert.TeacherName)
	assert.NotEmpty(t, cert.Number)

	var pdf bytes.Buffer
	_, err = env.svc.Certificates.WritePDF(env.ctx, student.ID, enrollment.ID, &pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Bytes(), []byte("%PDF-")))

	assert.Len(t, env.rec.OfType(events.LessonCompleted), 4)
	assert.Len(t, env.rec.OfType(events.CourseCompleted), 1)
}

func TestPublishThenEditReturnsCourseToReview(t *testing.T) {
	env := newEnv(t, config.Policy{})
	teacher := testutil.Teacher(t, env.db)
	admin := testutil.Admin(t, env.db)
	course := testutil.Course(t, env.db, teacher.ID, 2, 2)

	env.approve(t, teacher.ID, admin.ID, course.ID)
	status, err := env.svc.Courses.Publish(env.ctx, teacher.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatePublished, status.Status)
	assert.True(t, status.IsPublished)
	assert.NotNil(t, status.PublishedAt)

	lessonTwo := testutil.LessonIDs(course)[1]
	_, err = env.svc.Courses.UpdateLesson(env.ctx, teacher.ID, lessonTwo, LessonInput{
		Title: "Lesson 2 revised",
		Kind:  models.LessonKindBlog,
		Body:  "A longer reading",
	})
	require.NoError(t, err)

	stored := env.course(t, course.ID)
	assert.False(t, stored.IsPublished)
	assert.True(t, stored.IsSubmittedForReview)
	assert.False(t, stored.AdminApproved)

	// The edit queued a fresh review.
	review := env.pendingReview(t, course.ID)
	assert.Equal(t, teacher.ID, review.SubmittedBy)

	transitions := env.rec.OfType(events.CourseTransitioned)
	require.NotEmpty(t, transitions)
	last := transitions[len(transitions)-1]
	assert.Equal(t, "published", last.From)
	assert.Equal(t, "submitted", last.To)
}

func TestRejectStoresFeedbackForTeacher(t *testing.T) {
	env := newEnv(t, config.Policy{})
	teacher := testutil.Teacher(t, env.db)
	admin := testutil.Admin(t, env.db)
	course := testutil.Course(t, env.db, teacher.ID, 1, 1)

	_, err := env.svc.Courses.Submit(env.ctx, teacher.ID, course.ID)
	require.NoError(t, err)
	review := env.pendingReview(t, course.ID)

	_, err = env.svc.Reviews.Review(env.ctx, admin.ID, review.ID, ReviewInput{Action: "reject", Feedback: "   "})
	assert.True(t, apperr.HasCode(err, apperr.CodeFeedbackRequired))

	status, err := env.svc.Reviews.Review(env.ctx, admin.ID, review.ID, ReviewInput{Action: "reject", Feedback: "needs more detail"})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateDraft, status.Status)
	assert.Equal(t, "needs more detail", status.ReviewFeedback)

	history, err := env.svc.Courses.Reviews(env.ctx, teacher.ID, course.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ReviewRejected, history[0].Status)
	assert.Equal(t, "needs more detail", history[0].Feedback)
	require.NotNil(t, history[0].ReviewerID)
	assert.Equal(t, admin.ID, *history[0].ReviewerID)

	_, err = env.svc.Reviews.Review(env.ctx, admin.ID, review.ID, ReviewInput{Action: "approve"})
	assert.True(t, apperr.HasCode(err, apperr.CodeReviewAlreadyProcessed))

	// Resubmitting clears the old feedback and opens a new review.
	status, err = env.svc.Courses.Submit(env.ctx, teacher.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateSubmitted, status.Status)
	assert.Empty(t, env.course(t, course.ID).ReviewFeedback)
	assert.NotEqual(t, review.ID, env.pendingReview(t, course.ID).ID)
}

func TestSubmitRequiresContent(t *testing.T) {
	env := newEnv(t, config.Policy{})
	teacher := testutil.Teacher(t, env.db)

	course, err := env.svc.Courses.CreateCourse(env.ctx, teacher.ID, CourseInput{Title: "Empty"})
	require.NoError(t, err)

	_, err = env.svc.Courses.Submit(env.ctx, teacher.ID, course.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeCourseNoModules))

	_, err = env.svc.Courses.AddModule(env.ctx, teacher.ID, course.ID, ModuleInput{Title: "Intro"})
	require.NoError(t, err)

	_, err = env.svc.Courses.Submit(env.ctx, teacher.ID, course.ID)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeModuleNoLessons))
	assert.Contains(t, err.Error(), "Intro")

	stored := env.course(t, course.ID)
	assert.False(t, stored.IsSubmittedForReview)
	reviews, err := env.svc.Courses.Reviews(env.ctx, teacher.ID, course.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestPublishRequiresVerifiedTeacher(t *testing.T) {
	env := newEnv(t, config.Policy{})
	teacher := testutil.UnverifiedTeacher(t, env.db)
	admin := testutil.Admin(t, env.db)
	course := testutil.Course(t, env.db, teacher.ID, 1, 2)
	env.approve(t, teacher.ID, admin.ID, course.ID)

	_, err := env.svc.Courses.Publish(env.ctx, teacher.ID, course.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeTeacherNotVerified))
	assert.False(t, env.course(t, course.ID).IsPublished)

	_, err = env.svc.Reviews.SetTeacherVerification(env.ctx, admin.ID, teacher.ID, VerificationInput{Status: models.VerificationApproved})
	require.NoError(t, err)

	status, err := env.svc.Courses.Publish(env.ctx, teacher.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, status.Changed)
	assert.True(t, status.IsPublished)

	status, err = env.svc.Courses.Publish(env.ctx, teacher.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, status.Changed)
	assert.True(t, status.IsPublished)

	status, err = env.svc.Courses.Unpublish(env.ctx, teacher.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateDraft, status.Status)
	assert.False(t, status.AdminApproved)

	_, err = env.svc.Courses.Unpublish(env.ctx, teacher.ID, course.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition))
}

func TestOnlyOwnerDrivesWorkflow(t *testing.T) {
	env := newEnv(t, config.Policy{})
	owner := testutil.Teacher(t, env.db)
	other := testutil.Teacher(t, env.db)
	course := testutil.Course(t, env.db, owner.ID, 1, 1)

	_, err := env.svc.Courses.Submit(env.ctx, other.ID, course.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	_, err = env.svc.Courses.AddModule(env.ctx, other.ID, course.ID, ModuleInput{Title: "Hijack"})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	_, err = env.svc.Courses.Analytics(env.ctx, other.ID, course.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	assert.False(t, env.course(t, course.ID).IsSubmittedForReview)
}

func TestEditLockWhileSubmitted(t *testing.T) {
	t.Run("enforce", func(t *testing.T) {
		env := newEnv(t, config.Policy{ReviewEditLock: "enforce"})
		teacher := testutil.Teacher(t, env.db)
		course := testutil.Course(t, env.db, teacher.ID, 1, 1)
		_, err := env.svc.Courses.Submit(env.ctx, teacher.ID, course.ID)
		require.NoError(t, err)

		_, err = env.svc.Courses.AddModule(env.ctx, teacher.ID, course.ID, ModuleInput{Title: "Late addition"})
		assert.True(t, apperr.HasCode(err, apperr.CodePendingReview))

		var modules int64
		require.NoError(t, env.db.Model(&models.Module{}).Where("course_id = ?", course.ID).Count(&modules).Error)
		assert.Equal(t, int64(1), modules)
	})

	t.Run("advisory", func(t *testing.T) {
		env := newEnv(t, config.Policy{ReviewEditLock: "advisory"})
		teacher := testutil.Teacher(t, env.db)
		course := testutil.Course(t, env.db, teacher.ID, 1, 1)
		_, err := env.svc.Courses.Submit(env.ctx, teacher.ID, course.ID)
		require.NoError(t, err)

		_, err = env.svc.Courses.AddModule(env.ctx, teacher.ID, course.ID, ModuleInput{Title: "Late addition"})
		require.NoError(t, err)
		assert.True(t, env.course(t, course.ID).IsSubmittedForReview)
	})
}

func TestDraftEditsStayDraft(t *testing.T) {
	env := newEnv(t, config.Policy{})
	teacher := testutil.Teacher(t, env.db)
	course := testutil.Course(t, env.db, teacher.ID, 1, 1)

	module, err := env.svc.Courses.AddModule(env.ctx, teacher.ID, course.ID, ModuleInput{Title: "Second"})
	require.NoError(t, err)
	assert.Equal(t, 1, module.Position)

	lesson, err := env.svc.Courses.AddLesson(env.ctx, teacher.ID, module.ID, LessonInput{
		Title:    "Watch",
		Kind:     models.LessonKindVideo,
		VideoURL: "https://video.example.com/watch.mp4",
	})
	require.NoError(t, err)
	require.NotNil(t, lesson.Video)

	_, err = env.svc.Courses.AddLesson(env.ctx, teacher.ID, module.ID, LessonInput{
		Title:    "Mixed",
		Kind:     models.LessonKindBlog,
		Body:     "text",
		VideoURL: "https://video.example.com/x.mp4",
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeLessonVariantMismatch))

	stored := env.course(t, course.ID)
	assert.False(t, stored.IsSubmittedForReview)
	assert.False(t, stored.IsPublished)
	reviews, err := env.svc.Courses.Reviews(env.ctx, teacher.ID, course.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestVideoProgressIsIndependentOfCompletion(t *testing.T) {
	env := newEnv(t, config.Policy{})
	teacher := testutil.Teacher(t, env.db)
	student := testutil.Student(t, env.db)
	course := testutil.PublishedCourse(t, env.db, teacher.ID, 1, 4)
	lessons := testutil.LessonIDs(course)
	enrollment, err := env.svc.Progress.Enroll(env.ctx, student.ID, course.ID)
	require.NoError(t, err)

	res, err := env.svc.Progress.UpdateVideoProgress(env.ctx, student.ID, enrollment.ID, lessons[0], VideoProgressInput{Position: 42.5, Percentage: 150})
	require.NoError(t, err)
	assert.False(t, res.AutoCompleted)
	assert.Equal(t, 42.5, res.Progress.PositionSeconds)
	assert.Equal(t, 100.0, res.Progress.WatchedPercentage)

	res, err = env.svc.Progress.UpdateVideoProgress(env.ctx, student.ID, enrollment.ID, lessons[0], VideoProgressInput{Position: 10, Percentage: 20})
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Progress.PositionSeconds)

	summary, err := env.svc.Progress.Summary(env.ctx, student.ID, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Percentage)
	assert.Equal(t, int64(0), summary.CompletedLessons)

	_, err = env.svc.Progress.UpdateVideoProgress(env.ctx, student.ID, enrollment.ID, lessons[1], VideoProgressInput{Position: 1})
	assert.True(t, apperr.HasCode(err, apperr.CodeLessonVariantMismatch))

	_, err = env.svc.Progress.UpdateVideoProgress(env.ctx, student.ID, enrollment.ID, lessons[0], VideoProgressInput{Position: -1})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput))
}

func TestVideoAutoCompleteThreshold(t *testing.T) {
	env := newEnv(t, config.Policy{VideoAutoCompleteThreshold: 90})
	teacher := testutil.Teacher(t, env.db)
	student := testutil.Student(t, env.db)
	course := testutil.PublishedCourse(t, env.db, teacher.ID, 1, 4)
	lessons := testutil.LessonIDs(course)
	enrollment, err := env.svc.Progress.Enroll(env.ctx, student.ID, course.ID)
	require.NoError(t, err)

	res, err := env.svc.Progress.UpdateVideoProgress(env.ctx, student.ID, enrollment.ID, lessons[0], VideoProgressInput{Position: 100, Percentage: 89.9})
	require.NoError(t, err)
	assert.False(t, res.AutoCompleted)
	assert.Nil(t, res.Summary)

	res, err = env.svc.Progress.UpdateVideoProgress(env.ctx, student.ID, enrollment.ID, lessons[0], VideoProgressInput{Position: 120, Percentage: 95})
	require.NoError(t, err)
	assert.True(t, res.AutoCompleted)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 25, res.Summary.Percentage)

	res, err = env.svc.Progress.UpdateVideoProgress(env.ctx, student.ID, enrollment.ID, lessons[0], VideoProgressInput{Position: 130, Percentage: 99})
	require.NoError(t, err)
	assert.False(t, res.AutoCompleted)
	assert.Equal(t, 25, res.Summary.Percentage)
}

func TestCompletionPolicies(t *testing.T) {
	setup := func(t *testing.T, policy string) (*testEnv, models.User, models.Course, *models.Enrollment) {
		env := newEnv(t, config.Policy{CompletionPolicy: policy})
		teacher := testutil.Teacher(t, env.db)
		student := testutil.Student(t, env.db)
		course := testutil.PublishedCourse(t, env.db, teacher.ID, 1, 2)
		enrollment, err := env.svc.Progress.Enroll(env.ctx, student.ID, course.ID)
		require.NoError(t, err)
		for _, id := range testutil.LessonIDs(course) {
			_, err := env.svc.Progress.MarkLessonComplete(env.ctx, student.ID, enrollment.ID, id)
			require.NoError(t, err)
		}
		return env, student, course, enrollment
	}
	addLesson := func(t *testing.T, env *testEnv, course models.Course) *models.Lesson {
		lesson, err := env.svc.Courses.AddLesson(env.ctx, course.TeacherID, course.Modules[0].ID, LessonInput{
			Title: "Appendix",
			Kind:  models.LessonKindBlog,
			Body:  "more",
		})
		require.NoError(t, err)
		return lesson
	}

	t.Run("sticky keeps completion", func(t *testing.T) {
		env, student, course, enrollment := setup(t, "sticky")
		addLesson(t, env, course)

		summary, err := env.svc.Progress.Summary(env.ctx, student.ID, enrollment.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, summary.Percentage)
		assert.True(t, summary.Completed)
		assert.Equal(t, int64(3), summary.TotalLessons)

		_, err = env.svc.Certificates.Get(env.ctx, student.ID, enrollment.ID)
		assert.NoError(t, err)
	})

	t.Run("recount lowers and restores", func(t *testing.T) {
		env, student, course, enrollment := setup(t, "recount")
		lesson := addLesson(t, env, course)

		summary, err := env.svc.Progress.Summary(env.ctx, student.ID, enrollment.ID)
		require.NoError(t, err)
		assert.Equal(t, 66, summary.Percentage)
		assert.False(t, summary.Completed)
		assert.Nil(t, summary.CompletedAt)

		_, err = env.svc.Certificates.Get(env.ctx, student.ID, enrollment.ID)
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.CodeCertificateNotEligible, e.Code)
		assert.Equal(t, "66", e.Metadata["percentage"])
		assert.Equal(t, "34", e.Metadata["remaining"])

		// The course went back to review with the first edit; allow the removal.
		require.NoError(t, env.db.Model(&models.Course{}).Where("id = ?", course.ID).
			Update("is_submitted_for_review", false).Error)
		require.NoError(t, env.svc.Courses.DeleteLesson(env.ctx, course.TeacherID, lesson.ID))

		summary, err = env.svc.Progress.Summary(env.ctx, student.ID, enrollment.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, summary.Percentage)
		assert.True(t, summary.Completed)
	})
}

func TestEnrollmentRules(t *testing.T) {
	env := newEnv(t, config.Policy{})
	teacher := testutil.Teacher(t, env.db)
	student := testutil.Student(t, env.db)
	intruder := testutil.Student(t, env.db)

	draft := testutil.Course(t, env.db, teacher.ID, 1, 1)
	_, err := env.svc.Progress.Enroll(env.ctx, student.ID, draft.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeCourseNotPublished))

	course := testutil.PublishedCourse(t, env.db, teacher.ID, 1, 2)
	first, err := env.svc.Progress.Enroll(env.ctx, student.ID, course.ID)
	require.NoError(t, err)
	second, err := env.svc.Progress.Enroll(env.ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = env.svc.Progress.MarkLessonComplete(env.ctx, intruder.ID, first.ID, testutil.LessonIDs(course)[0])
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	other := testutil.PublishedCourse(t, env.db, teacher.ID, 1, 1)
	_, err = env.svc.Progress.MarkLessonComplete(env.ctx, student.ID, first.ID, testutil.LessonIDs(other)[0])
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	overview, err := env.svc.Progress.Overview(env.ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, overview.TotalEnrollments)
	assert.Equal(t, 1, overview.InProgressCourses)
	assert.Equal(t, course.Title, overview.Enrollments[0].CourseTitle)
}

func TestCourseDetailVisibility(t *testing.T) {
	env := newEnv(t, config.Policy{})
	teacher := testutil.Teacher(t, env.db)
	student := testutil.Student(t, env.db)
	stranger := testutil.Student(t, env.db)
	course := testutil.PublishedCourse(t, env.db, teacher.ID, 1, 2)

	_, err := env.svc.Progress.Enroll(env.ctx, student.ID, course.ID)
	require.NoError(t, err)

	// A content edit takes the course off the catalog.
	_, err = env.svc.Courses.AddModule(env.ctx, teacher.ID, course.ID, ModuleInput{Title: "Extra"})
	require.NoError(t, err)

	catalog, err := env.svc.Courses.Catalog(env.ctx, repos.CatalogFilter{})
	require.NoError(t, err)
	assert.Empty(t, catalog)

	_, err = env.svc.Courses.CourseDetail(env.ctx, student.ID, course.ID)
	assert.NoError(t, err)
	_, err = env.svc.Courses.CourseDetail(env.ctx, teacher.ID, course.ID)
	assert.NoError(t, err)
	_, err = env.svc.Courses.CourseDetail(env.ctx, stranger.ID, course.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func TestCourseAnalytics(t *testing.T) {
	env := newEnv(t, config.Policy{})
	teacher := testutil.Teacher(t, env.db)
	course := testutil.PublishedCourse(t, env.db, teacher.ID, 1, 2)
	lessons := testutil.LessonIDs(course)

	done := testutil.Student(t, env.db)
	e, err := env.svc.Progress.Enroll(env.ctx, done.ID, course.ID)
	require.NoError(t, err)
	for _, id := range lessons {
		_, err := env.svc.Progress.MarkLessonComplete(env.ctx, done.ID, e.ID, id)
		require.NoError(t, err)
	}
	_, err = env.svc.Progress.Enroll(env.ctx, testutil.Student(t, env.db).ID, course.ID)
	require.NoError(t, err)

	stats, err := env.svc.Courses.Analytics(env.ctx, teacher.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalLessons)
	assert.Equal(t, int64(2), stats.Enrollments)
	assert.Equal(t, int64(1), stats.Completed)
	assert.InDelta(t, 50.0, stats.CompletionRate, 0.001)
	assert.InDelta(t, 50.0, stats.AverageProgress, 0.001)
	assert.Equal(t, lifecycle.StatePublished, stats.Status)
}

func TestAccounts(t *testing.T) {
	env := newEnv(t, config.Policy{})

	session, err := env.svc.Accounts.Register(env.ctx, RegisterInput{
		Username: "socrates",
		Email:    "Socrates@Athens.gr",
		Password: "hemlock123",
		Role:     models.RoleTeacher,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, models.RoleTeacher, session.User.Role)
	assert.Equal(t, models.VerificationPending, session.User.TeacherVerification)
	assert.Equal(t, "socrates@athens.gr", session.User.Email)

	_, err = env.svc.Accounts.Register(env.ctx, RegisterInput{Username: "socrates", Email: "x@y.z", Password: "hemlock123"})
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))

	_, err = env.svc.Accounts.Login(env.ctx, LoginInput{Username: "socrates", Password: "wrong-password"})
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))

	_, err = env.svc.Accounts.Login(env.ctx, LoginInput{Username: "nobody", Password: "hemlock123"})
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))

	session, err = env.svc.Accounts.Login(env.ctx, LoginInput{Username: "socrates@athens.gr", Password: "hemlock123"})
	require.NoError(t, err)

	_, err = env.svc.Accounts.UpdateProfile(env.ctx, session.User.ID, ProfileInput{NewPassword: "newpassword", OldPassword: "bad"})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput))

	user, err := env.svc.Accounts.UpdateProfile(env.ctx, session.User.ID, ProfileInput{FullName: "Socrates of Athens"})
	require.NoError(t, err)
	assert.Equal(t, "Socrates of Athens", user.DisplayName())
}

func TestLessonRemovalUnderStickyPolicyCompletesEnrollment(t *testing.T) {
	env := newEnv(t, config.Policy{CompletionPolicy: "sticky"})
	teacher := testutil.Teacher(t, env.db)
	student := testutil.Student(t, env.db)
	course := testutil.PublishedCourse(t, env.db, teacher.ID, 2, 2)
	lessons := testutil.LessonIDs(course)
	require.Len(t, lessons, 4)

	enrollment, err := env.svc.Progress.Enroll(env.ctx, student.ID, course.ID)
	require.NoError(t, err)
	for _, id := range lessons[:3] {
		_, err := env.svc.Progress.MarkLessonComplete(env.ctx, student.ID, enrollment.ID, id)
		require.NoError(t, err)
	}

	require.NoError(t, env.svc.Courses.DeleteLesson(env.ctx, teacher.ID, lessons[3]))

	summary, err := env.svc.Progress.Summary(env.ctx, student.ID, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.CompletedLessons)
	assert.Equal(t, int64(3), summary.TotalLessons)
	assert.Equal(t, 100, summary.Percentage)
	assert.True(t, summary.Completed)
	assert.NotNil(t, summary.CompletedAt)

	_, err = env.svc.Certificates.Get(env.ctx, student.ID, enrollment.ID)
	assert.NoError(t, err)
	assert.Len(t, env.rec.OfType(events.CourseCompleted), 1)

	// Adding content back never lowers a sticky percentage. The removal sent the
	// course to review; reopen it for editing first.
	require.NoError(t, env.db.Model(&models.Course{}).Where("id = ?", course.ID).
		Update("is_submitted_for_review", false).Error)
	_, err = env.svc.Courses.AddLesson(env.ctx, teacher.ID, course.Modules[0].ID, LessonInput{
		Title: "Epilogue",
		Kind:  models.LessonKindBlog,
		Body:  "one more thing",
	})
	require.NoError(t, err)
	summary, err = env.svc.Progress.Summary(env.ctx, student.ID, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, summary.Percentage)
	assert.True(t, summary.Completed)
}

func TestConcurrentCompletionCountsOnce(t *testing.T) {
	env := newEnv(t, config.Policy{})
	teacher := testutil.Teacher(t, env.db)
	student := testutil.Student(t, env.db)
	course := testutil.PublishedCourse(t, env.db, teacher.ID, 1, 2)
	lessonID := testutil.LessonIDs(course)[0]

	enrollment, err := env.svc.Progress.Enroll(env.ctx, student.ID, course.ID)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Progress.MarkLessonComplete(env.ctx, student.ID, enrollment.ID, lessonID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var rows int64
	require.NoError(t, env.db.Model(&models.CompletedLesson{}).
		Where("enrollment_id = ? AND lesson_id = ?", enrollment.ID, lessonID).
		Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	summary, err := env.svc.Progress.Summary(env.ctx, student.ID, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.CompletedLessons)
	assert.Equal(t, 50, summary.Percentage)
	assert.Len(t, env.rec.OfType(events.LessonCompleted), 1)
}

func TestFailedEditLeavesPublishedCourseUntouched(t *testing.T) {
	env := newEnv(t, config.Policy{})
	teacher := testutil.Teacher(t, env.db)
	course := testutil.PublishedCourse(t, env.db, teacher.ID, 1, 2)

	boom := errors.New("write failed")
	err := env.svc.Courses.editContent(env.ctx, teacher.ID, course.ID, true, func(tx *gorm.DB) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	after := env.course(t, course.ID)
	assert.True(t, after.IsPublished)
	assert.True(t, after.AdminApproved)
	assert.False(t, after.IsSubmittedForReview)

	pending, err := env.svc.Reviews.ListReviews(env.ctx, models.ReviewPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, env.rec.OfType(events.CourseTransitioned))
}

func TestVerificationOnlyAppliesToTeachers(t *testing.T) {
	env := newEnv(t, config.Policy{})
	admin := testutil.Admin(t, env.db)
	student := testutil.Student(t, env.db)

	_, err := env.svc.Reviews.SetTeacherVerification(env.ctx, admin.ID, student.ID, VerificationInput{Status: models.VerificationApproved})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput))

	_, err = env.svc.Reviews.SetTeacherVerification(env.ctx, admin.ID, admin.ID, VerificationInput{Status: models.VerificationApproved})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput))

	var stored models.User
	require.NoError(t, env.db.First(&stored, student.ID).Error)
	assert.Equal(t, models.VerificationNone, stored.TeacherVerification)
}
