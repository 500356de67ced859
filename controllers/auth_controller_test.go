package controller_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	controller "mailwarm/controllers"
)

func TestRegisterLoginAndLogout(t *testing.T) {
	s := newTestServer(t)

	creds := map[string]string{"email": " Owner@Example.com ", "password": "correct horse"}
	var registered controller.AuthResponse
	require.Equal(t, fiber.StatusCreated, s.do(fiber.MethodPost, "/auth/register", "", creds, &registered))
	assert.Equal(t, "owner@example.com", registered.User.Email)
	assert.NotEmpty(t, registered.AccessToken)

	var errResp map[string]string
	assert.Equal(t, fiber.StatusConflict, s.do(fiber.MethodPost, "/auth/register", "", creds, &errResp))
	assert.Equal(t, controller.ErrEmailRegistered, errResp["error"])

	bad := map[string]string{"email": "owner@example.com", "password": "wrong password"}
	assert.Equal(t, fiber.StatusUnauthorized, s.do(fiber.MethodPost, "/auth/login", "", bad, nil))

	var session controller.AuthResponse
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPost, "/auth/login", "", creds, &session))

	var me map[string]interface{}
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodGet, "/auth/me", session.AccessToken, nil, &me))
	assert.Equal(t, "owner@example.com", me["email"])
	assert.NotContains(t, me, "password_hash")

	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPost, "/auth/logout", session.AccessToken, nil, nil))
	assert.Equal(t, fiber.StatusUnauthorized, s.do(fiber.MethodGet, "/auth/me", session.AccessToken, nil, nil))
	assert.Equal(t, fiber.StatusUnauthorized, s.do(fiber.MethodPost, "/auth/refresh", "",
		map[string]string{"refresh_token": session.RefreshToken}, nil))
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	var resp map[string]string
	status := s.do(fiber.MethodPost, "/auth/register", "", map[string]string{"email": "nope", "password": "short"}, &resp)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, resp["error"], "email must be a valid email")
	assert.Contains(t, resp["error"], "password must be at least 8")
}

func TestRefreshAndChangePassword(t *testing.T) {
	s := newTestServer(t)

	creds := map[string]string{"email": "owner@example.com", "password": "first password"}
	var session controller.AuthResponse
	require.Equal(t, fiber.StatusCreated, s.do(fiber.MethodPost, "/auth/register", "", creds, &session))

	var refreshed map[string]string
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPost, "/auth/refresh", "",
		map[string]string{"refresh_token": session.RefreshToken}, &refreshed))
	assert.NotEmpty(t, refreshed["access_token"])

	assert.Equal(t, fiber.StatusUnauthorized, s.do(fiber.MethodPost, "/auth/refresh", "",
		map[string]string{"refresh_token": session.AccessToken}, nil), "access tokens cannot refresh")

	change := map[string]string{"current_password": "wrong", "new_password": "second password"}
	assert.Equal(t, fiber.StatusUnauthorized, s.do(fiber.MethodPost, "/auth/change-password", session.AccessToken, change, nil))

	change["current_password"] = "first password"
	var changed controller.AuthResponse
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPost, "/auth/change-password", session.AccessToken, change, &changed))

	assert.Equal(t, fiber.StatusUnauthorized, s.do(fiber.MethodGet, "/auth/me", session.AccessToken, nil, nil))
	assert.Equal(t, fiber.StatusOK, s.do(fiber.MethodGet, "/auth/me", changed.AccessToken, nil, nil))

	creds["password"] = "second password"
	assert.Equal(t, fiber.StatusOK, s.do(fiber.MethodPost, "/auth/login", "", creds, nil))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, fiber.StatusNotFound, s.do(fiber.MethodGet, "/nowhere", "", nil, nil))
	assert.Equal(t, fiber.StatusOK, s.do(fiber.MethodGet, "/health", "", nil, nil))
}
