package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/kassslll/philosofium/backend/middleware"
	"github.com/kassslll/philosofium/backend/services"
	"github.com/kassslll/philosofium/backend/utils"
)

// CoursesController serves teacher authoring and the teacher side of review.
type CoursesController struct {
	Courses *services.CourseService
}

func NewCoursesController(courses *services.CourseService) *CoursesController {
	return &CoursesController{Courses: courses}
}

func (cc *CoursesController) GetTeacherCourses(c *fiber.Ctx) error {
	teacherID, _ := middleware.CurrentUser(c)
	courses, err := cc.Courses.TeacherCourses(c.UserContext(), teacherID)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, courses)
}

// CreateCourse godoc
// @Summary Create a course
// @Description Creates a draft course owned by the calling teacher
// @Tags teacher
// @Accept json
// @Produce json
// @Param course body services.CourseInput true "Course details"
// @Success 201 {object} utils.SuccessResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /teacher/courses [post]
func (cc *CoursesController) CreateCourse(c *fiber.Ctx) error {
	teacherID, _ := middleware.CurrentUser(c)
	var input services.CourseInput
	if err := utils.BindJSON(c, &input); err != nil {
		return err
	}
	course, err := cc.Courses.CreateCourse(c.UserContext(), teacherID, input)
	if err != nil {
		return err
	}
	return utils.Created(c, course)
}

func (cc *CoursesController) GetCourse(c *fiber.Ctx) error {
	teacherID, _ := middleware.CurrentUser(c)
	courseID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	course, err := cc.Courses.TeacherCourse(c.UserContext(), teacherID, courseID)
	if err != nil {
		return err
	}
	status, err := cc.Courses.Status(c.UserContext(), teacherID, courseID)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, course, status)
}

func (cc *CoursesController) UpdateCourse(c *fiber.Ctx) error {
	teacherID, _ := middleware.CurrentUser(c)
	courseID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var input services.CourseInput
	if err := utils.BindJSON(c, &input); err != nil {
		return err
	}
	course, err := cc.Courses.UpdateCourse(c.UserContext(), teacherID, courseID, input)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, course)
}

// AddModule godoc
// @Summary Add a module
// @Description Appends a module. On an approved or published course this sends it back to review.
// @Tags teacher
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param module body services.ModuleInput true "Module"
// @Success 201 {object} utils.SuccessResponse
// @Failure 409 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /teacher/courses/{id}/modules [post]
func (cc *CoursesController) AddModule(c *fiber.Ctx) error {
	teacherID, _ := middleware.CurrentUser(c)
	courseID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var input services.ModuleInput
	if err := utils.BindJSON(c, &input); err != nil {
		return err
	}
	module, err := cc.Courses.AddModule(c.UserContext(), teacherID, courseID, input)
	if err != nil {
		return err
	}
	return utils.Created(c, module)
}

func (cc *CoursesController) UpdateModule(c *fiber.Ctx) error {
	teacherID, _ := middleware.CurrentUser(c)
	moduleID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var input services.ModuleInput
	if err := utils.BindJSON(c, &input); err != nil {
		return err
	}
	module, err := cc.Courses.UpdateModule(c.UserContext(), teacherID, moduleID, input)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, module)
}

func (cc *CoursesController) DeleteModule(c *fiber.Ctx) error {
	teacherID, _ := middleware.CurrentUser(c)
	moduleID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := cc.Courses.DeleteModule(c.UserContext(), teacherID, moduleID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (cc *CoursesController) AddLesson(c *fiber.Ctx) error {
	teacherID, _ := middleware.CurrentUser(c)
	moduleID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var input services.LessonInput
	if err := utils.BindJSON(c, &input); err != nil {
		return err
	}
	lesson, err := cc.Courses.AddLesson(c.UserContext(), teacherID, moduleID, input)
	if err != nil {
		return err
	}
	return utils.Created(c, lesson)
}

// UpdateLesson godoc
// @Summary Replace a lesson
// @Description Replaces title, kind and content. Editing a published course unpublishes it and resubmits it for review.
// @Tags teacher
// @Accept json
// @Produce json
// @Param id path int true "Lesson ID"
// @Param lesson body services.LessonInput true "Lesson"
// @Success 200 {object} utils.SuccessResponse
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /teacher/lessons/{id} [put]
func (cc *CoursesController) UpdateLesson(c *fiber.Ctx) error {
	teacherID, _ := middleware.CurrentUser(c)
	lessonID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var input services.LessonInput
	if err := utils.BindJSON(c, &input); err != nil {
		return err
	}
	lesson, err := cc.Courses.UpdateLesson(c.UserContext(), teacherID, lessonID, input)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, lesson)
}

func (cc *CoursesController) DeleteLesson(c *fiber.Ctx) error {
	teacherID, _ := middleware.CurrentUser(c)
	lessonID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := cc.Courses.DeleteLesson(c.UserContext(), teacherID, lessonID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SubmitForReview godoc
// @Summary Submit a course for review
// @Description Requires at least one module and a lesson in every module
// @Tags teacher
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} services.CourseStatus
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /teacher/courses/{id}/submit [post]
func (cc *CoursesController) SubmitForReview(c *fiber.Ctx) error {
	return cc.transition(c, cc.Courses.Submit)
}

// Publish godoc
// @Summary Publish an approved course
// @Description Requires admin approval and a verified teacher. Publishing a published course is a no-op.
// @Tags courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} services.CourseStatus
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /courses/{id}/publish [post]
func (cc *CoursesController) Publish(c *fiber.Ctx) error {
	return cc.transition(c, cc.Courses.Publish)
}

func (cc *CoursesController) Unpublish(c *fiber.Ctx) error {
	return cc.transition(c, cc.Courses.Unpublish)
}

func (cc *CoursesController) GetReviews(c *fiber.Ctx) error {
	teacherID, _ := middleware.CurrentUser(c)
	courseID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	reviews, err := cc.Courses.Reviews(c.UserContext(), teacherID, courseID)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, reviews)
}

type transitionFunc = func(ctx context.Context, teacherID, courseID uint) (services.CourseStatus, error)

func (cc *CoursesController) transition(c *fiber.Ctx, fn transitionFunc) error {
	teacherID, _ := middleware.CurrentUser(c)
	courseID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	status, err := fn(c.UserContext(), teacherID, courseID)
	if err != nil {
		return err
	}
	return c.JSON(status)
}
