package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/kassslll/philosofium/backend/apperr"
)

// paramID parses a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.WithMetadata(apperr.CodeInvalidInput, "Invalid "+name, map[string]string{name: c.Params(name)})
	}
	return uint(id), nil
}
