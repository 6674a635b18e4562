package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kassslll/philosofium/backend/middleware"
	"github.com/kassslll/philosofium/backend/services"
	"github.com/kassslll/philosofium/backend/utils"
)

type ProgressController struct {
	Progress *services.ProgressService
}

func NewProgressController(progress *services.ProgressService) *ProgressController {
	return &ProgressController{Progress: progress}
}

func (pc *ProgressController) Enroll(c *fiber.Ctx) error {
	studentID, _ := middleware.CurrentUser(c)
	courseID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	enrollment, err := pc.Progress.Enroll(c.UserContext(), studentID, courseID)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, enrollment)
}

// GetProgressOverview godoc
// @Summary Get progress overview
// @Description Returns every enrollment of the student with aggregate counts
// @Tags progress
// @Produce json
// @Success 200 {object} utils.SuccessResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /enrollments [get]
func (pc *ProgressController) GetProgressOverview(c *fiber.Ctx) error {
	studentID, _ := middleware.CurrentUser(c)
	overview, err := pc.Progress.Overview(c.UserContext(), studentID)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, overview)
}

func (pc *ProgressController) GetProgress(c *fiber.Ctx) error {
	studentID, _ := middleware.CurrentUser(c)
	enrollmentID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	summary, err := pc.Progress.Summary(c.UserContext(), studentID, enrollmentID)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// CompleteLesson godoc
// @Summary Mark a lesson complete
// @Description Idempotent. Returns completed and total lesson counts and the new percentage.
// @Tags progress
// @Produce json
// @Param id path int true "Enrollment ID"
// @Param lessonId path int true "Lesson ID"
// @Success 200 {object} models.ProgressSummary
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /enrollments/{id}/lessons/{lessonId}/complete [post]
func (pc *ProgressController) CompleteLesson(c *fiber.Ctx) error {
	studentID, _ := middleware.CurrentUser(c)
	enrollmentID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	lessonID, err := paramID(c, "lessonId")
	if err != nil {
		return err
	}
	summary, err := pc.Progress.MarkLessonComplete(c.UserContext(), studentID, enrollmentID, lessonID)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func (pc *ProgressController) UpdateVideoProgress(c *fiber.Ctx) error {
	studentID, _ := middleware.CurrentUser(c)
	enrollmentID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	lessonID, err := paramID(c, "lessonId")
	if err != nil {
		return err
	}
	var input services.VideoProgressInput
	if err := utils.BindJSON(c, &input); err != nil {
		return err
	}
	result, err := pc.Progress.UpdateVideoProgress(c.UserContext(), studentID, enrollmentID, lessonID, input)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
