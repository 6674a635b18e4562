package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kassslll/philosofium/backend/middleware"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/services"
	"github.com/kassslll/philosofium/backend/utils"
)

type ReviewController struct {
	Reviews *services.ReviewService
}

func NewReviewController(reviews *services.ReviewService) *ReviewController {
	return &ReviewController{Reviews: reviews}
}

// ListReviews godoc
// @Summary Course review queue
// @Tags admin
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Success 200 {object} utils.SuccessResponse
// @Security ApiKeyAuth
// @Router /admin/course-reviews [get]
func (rc *ReviewController) ListReviews(c *fiber.Ctx) error {
	reviews, err := rc.Reviews.ListReviews(c.UserContext(), models.ReviewStatus(c.Query("status")))
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, reviews)
}

// ReviewCourse godoc
// @Summary Approve or reject a submitted course
// @Description Rejection requires feedback, which the teacher can read from the course review history
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Review ID"
// @Param decision body services.ReviewInput true "Decision"
// @Success 200 {object} services.CourseStatus
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /admin/course-reviews/{id}/review [post]
func (rc *ReviewController) ReviewCourse(c *fiber.Ctx) error {
	adminID, _ := middleware.CurrentUser(c)
	reviewID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var input services.ReviewInput
	if err := utils.BindJSON(c, &input); err != nil {
		return err
	}
	status, err := rc.Reviews.Review(c.UserContext(), adminID, reviewID, input)
	if err != nil {
		return err
	}
	return c.JSON(status)
}

func (rc *ReviewController) SetTeacherVerification(c *fiber.Ctx) error {
	adminID, _ := middleware.CurrentUser(c)
	teacherID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var input services.VerificationInput
	if err := utils.BindJSON(c, &input); err != nil {
		return err
	}
	user, err := rc.Reviews.SetTeacherVerification(c.UserContext(), adminID, teacherID, input)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, user)
}
