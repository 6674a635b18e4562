package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kassslll/philosofium/backend/services"
	"github.com/kassslll/philosofium/backend/utils"
)

type AuthController struct {
	Accounts *services.AccountService
}

func NewAuthController(accounts *services.AccountService) *AuthController {
	return &AuthController{Accounts: accounts}
}

// Register godoc
// @Summary Register a new user
// @Description Creates a student or teacher account. Teachers start pending verification.
// @Tags auth
// @Accept json
// @Produce json
// @Param user body services.RegisterInput true "User registration data"
// @Success 201 {object} utils.SuccessResponse
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Router /auth/register [post]
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var input services.RegisterInput
	if err := utils.BindJSON(c, &input); err != nil {
		return err
	}

	session, err := ac.Accounts.Register(c.UserContext(), input)
	if err != nil {
		return err
	}
	return utils.Created(c, session)
}

// Login godoc
// @Summary User login
// @Description Authenticate by username or email and return a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.LoginInput true "Login credentials"
// @Success 200 {object} utils.SuccessResponse
// @Failure 401 {object} utils.ErrorResponse
// @Router /auth/login [post]
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input services.LoginInput
	if err := utils.BindJSON(c, &input); err != nil {
		return err
	}

	session, err := ac.Accounts.Login(c.UserContext(), input)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, session)
}
