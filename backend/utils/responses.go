package utils

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kassslll/philosofium/backend/apperr"
)

// SuccessResponse структура для успешных ответов
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// ErrorResponse структура для ошибок
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Success создает успешный JSON ответ
func Success(c *fiber.Ctx, status int, data interface{}, meta ...interface{}) error {
	response := SuccessResponse{
		Success: true,
		Data:    data,
	}

	if len(meta) > 0 {
		response.Meta = meta[0]
	}

	return c.Status(status).JSON(response)
}

// Error создает JSON ответ с ошибкой; доменная ошибка добавляет свой код
func Error(c *fiber.Ctx, status int, err error, details ...interface{}) error {
	response := ErrorResponse{
		Success: false,
		Error:   http.StatusText(status),
		Message: err.Error(),
	}
	if e, ok := apperr.As(err); ok {
		response.Code = string(e.Code)
	}

	if len(details) > 0 {
		response.Details = details[0]
	}

	return c.Status(status).JSON(response)
}

// Created отправляет ответ 201 Created
func Created(c *fiber.Ctx, data interface{}) error {
	return Success(c, fiber.StatusCreated, data)
}

// RespondError выбирает статус по коду ошибки, метаданные уходят в details
func RespondError(c *fiber.Ctx, err error) error {
	if e, ok := apperr.As(err); ok {
		if len(e.Metadata) > 0 {
			return Error(c, e.Code.HTTPStatus(), e, e.Metadata)
		}
		return Error(c, e.Code.HTTPStatus(), e)
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return Error(c, fe.Code, fe)
	}

	return Error(c, fiber.StatusInternalServerError, errors.New("internal error"))
}

// ErrorHandler общий обработчик ошибок fiber
func ErrorHandler(log *Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if _, ok := apperr.As(err); !ok && !errors.As(err, &fe) {
			log.Error("unhandled request error",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
		}
		return RespondError(c, err)
	}
}
