package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kassslll/philosofium/backend/middleware"
	"github.com/kassslll/philosofium/backend/services"
	"github.com/kassslll/philosofium/backend/utils"
)

type AnalyticsController struct {
	Courses *services.CourseService
}

func NewAnalyticsController(courses *services.CourseService) *AnalyticsController {
	return &AnalyticsController{Courses: courses}
}

// GetCourseAnalytics returns enrollment and completion figures for an owned course.
func (ac *AnalyticsController) GetCourseAnalytics(c *fiber.Ctx) error {
	teacherID, _ := middleware.CurrentUser(c)
	courseID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	stats, err := ac.Courses.Analytics(c.UserContext(), teacherID, courseID)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, stats)
}
