package utils

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kassslll/philosofium/backend/apperr"
	"github.com/kassslll/philosofium/backend/config"
	"github.com/kassslll/philosofium/backend/models"
)

func TestJWTRoundTrip(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testsecret", JWTTTL: time.Hour}
	user := models.User{Model: gorm.Model{ID: 42}, Role: models.RoleTeacher}

	token, err := GenerateJWTToken(user, cfg)
	require.NoError(t, err)

	claims, err := ParseToken(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)

	_, err = ParseToken(token, &config.Config{JWTSecret: "other"})
	assert.Error(t, err)
}

func TestExtractClaimsAcceptsBearerPrefix(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testsecret"}
	token, err := GenerateJWTToken(models.User{Model: gorm.Model{ID: 5}, Role: models.RoleStudent}, cfg)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		claims, err := ExtractClaims(c, cfg)
		if err != nil {
			return err
		}
		return c.SendString(fmt.Sprint(claims.UserID))
	})

	for _, header := range []string{token, "Bearer " + token} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", header)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

type sampleInput struct {
	Title string `json:"title" validate:"required"`
	Kind  string `json:"kind" validate:"oneof=video blog"`
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	err := Validate(&sampleInput{Kind: "audio"})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInvalidInput, e.Code)
	assert.Contains(t, e.Metadata, "title")
	assert.Contains(t, e.Metadata, "kind")

	assert.NoError(t, Validate(&sampleInput{Title: "x", Kind: "blog"}))
}

func TestRespondErrorMapsDomainErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(NewNopLogger())})
	app.Get("/domain", func(c *fiber.Ctx) error {
		return apperr.WithMetadata(apperr.CodeCertificateNotEligible, "not yet", map[string]string{"percentage": "40"})
	})
	app.Get("/fiber", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})
	app.Get("/other", func(c *fiber.Ctx) error {
		return fmt.Errorf("db exploded: secret detail")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/domain", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "CERTIFICATE_NOT_ELIGIBLE", body.Code)
	assert.Equal(t, map[string]interface{}{"percentage": "40"}, body.Details)

	resp, err = app.Test(httptest.NewRequest("GET", "/fiber", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/other", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body = ErrorResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotContains(t, body.Message, "secret")
}

func TestRedactHidesSecrets(t *testing.T) {
	out := redact([]interface{}{"user_id", 1, "password", "hunter2", "Authorization", "Bearer x"})
	assert.Equal(t, []interface{}{"user_id", 1, "password", "[REDACTED]", "Authorization", "[REDACTED]"}, out)
}

func TestErrorEnvelopeCarriesDomainCode(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return Error(c, fiber.StatusNotFound, apperr.NotFound("course"))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "Not Found", body.Error)
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Nil(t, body.Details)
}
