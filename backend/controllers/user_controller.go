package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kassslll/philosofium/backend/middleware"
	"github.com/kassslll/philosofium/backend/services"
	"github.com/kassslll/philosofium/backend/utils"
)

type UserController struct {
	Accounts *services.AccountService
}

func NewUserController(accounts *services.AccountService) *UserController {
	return &UserController{Accounts: accounts}
}

// GetProfile godoc
// @Summary Get user profile
// @Description Returns authenticated user's profile data
// @Tags users
// @Produce json
// @Success 200 {object} utils.SuccessResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /user/profile [get]
func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUser(c)
	user, err := uc.Accounts.Profile(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, user)
}

func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUser(c)
	var input services.ProfileInput
	if err := utils.BindJSON(c, &input); err != nil {
		return err
	}
	user, err := uc.Accounts.UpdateProfile(c.UserContext(), userID, input)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, user)
}
