package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/config"
	"github.com/kassslll/philosofium/backend/controllers"
	"github.com/kassslll/philosofium/backend/events"
	"github.com/kassslll/philosofium/backend/middleware"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/services"
	"github.com/kassslll/philosofium/backend/utils"
)

// NewApp builds the fiber app with the shared middleware stack and every route.
func NewApp(db *gorm.DB, cfg *config.Config, logger *utils.Logger, pub events.Publisher) (*fiber.App, error) {
	svc, err := services.New(db, cfg, logger, pub)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:      "philosofium",
		ErrorHandler: utils.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.LoggingMiddleware(logger))

	SetupRoutes(app, svc, cfg)
	return app, nil
}

func SetupRoutes(app *fiber.App, svc *services.Services, cfg *config.Config) {
	api := app.Group("/api")

	// Auth routes
	authController := controllers.NewAuthController(svc.Accounts)
	api.Post("/auth/register", authController.Register)
	api.Post("/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	adminMiddleware := middleware.AdminMiddleware()
	teacherOnly := middleware.RequireRole(models.RoleTeacher)
	studentOnly := middleware.RequireRole(models.RoleStudent)

	// User routes
	userController := controllers.NewUserController(svc.Accounts)
	api.Get("/user/profile", authMiddleware, userController.GetProfile)
	api.Put("/user/profile", authMiddleware, userController.UpdateProfile)

	// Teacher authoring routes
	coursesController := controllers.NewCoursesController(svc.Courses)
	analyticsController := controllers.NewAnalyticsController(svc.Courses)
	teacher := api.Group("/teacher", authMiddleware, teacherOnly)
	teacher.Get("/courses", coursesController.GetTeacherCourses)
	teacher.Post("/courses", coursesController.CreateCourse)
	teacher.Get("/courses/:id", coursesController.GetCourse)
	teacher.Put("/courses/:id", coursesController.UpdateCourse)
	teacher.Post("/courses/:id/modules", coursesController.AddModule)
	teacher.Post("/courses/:id/submit", coursesController.SubmitForReview)
	teacher.Get("/courses/:id/reviews", coursesController.GetReviews)
	teacher.Get("/courses/:id/analytics", analyticsController.GetCourseAnalytics)
	teacher.Put("/modules/:id", coursesController.UpdateModule)
	teacher.Delete("/modules/:id", coursesController.DeleteModule)
	teacher.Post("/modules/:id/lessons", coursesController.AddLesson)
	teacher.Put("/lessons/:id", coursesController.UpdateLesson)
	teacher.Delete("/lessons/:id", coursesController.DeleteLesson)

	// Catalog and publishing
	overviewController := controllers.NewOverviewController(svc.Courses)
	progressController := controllers.NewProgressController(svc.Progress)
	courses := api.Group("/courses", authMiddleware)
	courses.Get("/", overviewController.SearchCourses)
	courses.Get("/:id", overviewController.GetCourseDetails)
	courses.Post("/:id/publish", teacherOnly, coursesController.Publish)
	courses.Post("/:id/unpublish", teacherOnly, coursesController.Unpublish)
	courses.Post("/:id/enroll", studentOnly, progressController.Enroll)

	// Progress routes
	enrollments := api.Group("/enrollments", authMiddleware, studentOnly)
	enrollments.Get("/", progressController.GetProgressOverview)
	enrollments.Get("/:id/progress", progressController.GetProgress)
	enrollments.Post("/:id/lessons/:lessonId/complete", progressController.CompleteLesson)
	enrollments.Put("/:id/lessons/:lessonId/video-progress", progressController.UpdateVideoProgress)

	certificateController := controllers.NewCertificateController(svc.Certificates)
	certificates := api.Group("/certificates", authMiddleware, studentOnly)
	certificates.Get("/:enrollmentId", certificateController.GetCertificate)
	certificates.Get("/:enrollmentId/pdf", certificateController.DownloadPDF)

	// Admin routes
	reviewController := controllers.NewReviewController(svc.Reviews)
	admin := api.Group("/admin", authMiddleware, adminMiddleware)
	admin.Get("/course-reviews", reviewController.ListReviews)
	admin.Post("/course-reviews/:id/review", reviewController.ReviewCourse)
	admin.Post("/teachers/:id/verification", reviewController.SetTeacherVerification)
}
