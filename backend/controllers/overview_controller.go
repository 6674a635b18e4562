package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kassslll/philosofium/backend/middleware"
	"github.com/kassslll/philosofium/backend/repos"
	"github.com/kassslll/philosofium/backend/services"
	"github.com/kassslll/philosofium/backend/utils"
)

// OverviewController is the student-facing catalog.
type OverviewController struct {
	Courses *services.CourseService
}

func NewOverviewController(courses *services.CourseService) *OverviewController {
	return &OverviewController{Courses: courses}
}

// SearchCourses godoc
// @Summary Published course catalog
// @Description Lists published courses, optionally filtered by category, difficulty and a text query
// @Tags courses
// @Produce json
// @Param category query string false "Category"
// @Param difficulty query string false "beginner, intermediate or advanced"
// @Param q query string false "Matches title or description"
// @Success 200 {object} utils.SuccessResponse
// @Security ApiKeyAuth
// @Router /courses [get]
func (oc *OverviewController) SearchCourses(c *fiber.Ctx) error {
	courses, err := oc.Courses.Catalog(c.UserContext(), repos.CatalogFilter{
		Category:   c.Query("category"),
		Difficulty: c.Query("difficulty"),
		Query:      c.Query("q"),
	})
	if err != nil {
		return err
	}

	result := make([]fiber.Map, 0, len(courses))
	for _, course := range courses {
		item := fiber.Map{
			"id":           course.ID,
			"title":        course.Title,
			"description":  course.Description,
			"category":     course.Category,
			"difficulty":   course.Difficulty,
			"price":        course.Price,
			"is_paid":      course.IsPaid,
			"published_at": course.PublishedAt,
		}
		if course.Teacher != nil {
			item["teacher"] = course.Teacher.DisplayName()
		}
		result = append(result, item)
	}
	return utils.Success(c, fiber.StatusOK, result, fiber.Map{"total": len(result)})
}

func (oc *OverviewController) GetCourseDetails(c *fiber.Ctx) error {
	viewerID, _ := middleware.CurrentUser(c)
	courseID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	course, err := oc.Courses.CourseDetail(c.UserContext(), viewerID, courseID)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, course)
}
