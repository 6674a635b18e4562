package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/config"
	"github.com/kassslll/philosofium/backend/models"
	"github.com/kassslll/philosofium/backend/utils"
)

const (
	localUserID = "user_id"
	localRole   = "role"
)

// AuthMiddleware проверяет токен и сохраняет пользователя в Locals
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.ExtractClaims(c, cfg)
		if err != nil {
			return utils.RespondError(c, apperr.Wrap(apperr.CodeUnauthorized, "Unauthorized", err))
		}
		c.Locals(localUserID, claims.UserID)
		c.Locals(localRole, claims.Role)
		return c.Next()
	}
}

// RequireRole пропускает только указанные роли; ставится после AuthMiddleware
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, role := CurrentUser(c)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return utils.RespondError(c, apperr.Forbidden("Forbidden - "+rolesText(roles)+" access required"))
	}
}

// AdminMiddleware пропускает только администраторов
func AdminMiddleware() fiber.Handler {
	return RequireRole(models.RoleAdmin)
}

// CurrentUser возвращает id и роль текущего пользователя
func CurrentUser(c *fiber.Ctx) (uint, models.Role) {
	id, _ := c.Locals(localUserID).(uint)
	role, _ := c.Locals(localRole).(models.Role)
	return id, role
}

func rolesText(roles []models.Role) string {
	out := ""
	for i, r := range roles {
		if i > 0 {
			out += "/"
		}
		out += string(r)
	}
	return out
}
