package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kassslll/philosofium/backend/utils"
)

// LoggingMiddleware возвращает middleware для логирования запросов
func LoggingMiddleware(logger *utils.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()
		if err != nil {
			// Ответ пишет обработчик ошибок приложения, чтобы статус был окончательным
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []interface{}{
			"request_id", c.Locals("requestid"),
			"ip", c.IP(),
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start).String(),
		}
		if userID, _ := CurrentUser(c); userID != 0 {
			fields = append(fields, "user_id", userID)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
		return nil
	}
}
