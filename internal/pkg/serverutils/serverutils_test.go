package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-casedraft-be/pkg/backend"
	"ai-casedraft-be/pkg/session"
	"ai-casedraft-be/pkg/version"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type caseRequest struct {
	CaseReference string `json:"case_reference" validate:"required,cnj"`
}

func TestValidateRequest_CNJ(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"0001234-56.2024.8.12.0001", true},
		{"1234567-89.2023.4.05.9999", true},
		{"", false},
		{"0001234-56.2024.8.12.001", false},
		{"00012345620248120001", false},
		{"0001234-56.2024.81.2.0001", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := ValidateRequest(caseRequest{CaseReference: tt.value})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, "CaseReference")
		})
	}
}

func errorApp(extra ...ErrorStatus) *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware(extra...))
	return app
}

func TestErrorHandlerMiddleware(t *testing.T) {
	custom := errors.New("custom missing")
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"version not found", fmt.Errorf("v 3: %w", version.ErrVersionNotFound), http.StatusNotFound},
		{"custom mapping", fmt.Errorf("wrapped: %w", custom), http.StatusNotFound},
		{"edit in progress", session.ErrEditInProgress, http.StatusConflict},
		{"session exists", backend.ErrSessionExists, http.StatusConflict},
		{"validation", &ValidationError{Fields: map[string]string{"Message": "required"}}, http.StatusBadRequest},
		{"fiber error", fiber.NewError(fiber.StatusUnprocessableEntity, "bad body"), http.StatusUnprocessableEntity},
		{"transport", &backend.TransportError{Op: "stream", StatusCode: 500}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := errorApp(ErrorStatus{Err: custom, Status: http.StatusNotFound})
			app.Get("/", func(ctx *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body BaseResponse[any]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.status, body.Code)
		})
	}
}

func TestSuccessResponse(t *testing.T) {
	app := errorApp()
	app.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(SuccessResponse("ok", map[string]int{"n": 1}))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)

	var body BaseResponse[map[string]int]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Data["n"])
}

func TestJwtMiddleware(t *testing.T) {
	const secret = "s3cret"
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	newApp := func(secret string) *fiber.App {
		app := fiber.New()
		app.Use(JwtMiddleware(secret))
		app.Get("/", func(ctx *fiber.Ctx) error {
			uid, _ := ctx.Locals("user_id").(string)
			return ctx.SendString(uid)
		})
		return app
	}

	tests := []struct {
		name   string
		secret string
		header string
		query  string
		status int
	}{
		{"open when no secret", "", "", "", http.StatusOK},
		{"missing token", secret, "", "", http.StatusUnauthorized},
		{"bearer", secret, "Bearer " + signed, "", http.StatusOK},
		{"query token", secret, "", signed, http.StatusOK},
		{"wrong secret", "other", "Bearer " + signed, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := newApp(tt.secret).Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
