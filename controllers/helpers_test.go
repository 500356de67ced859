package controller_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"mailwarm/config"
	"mailwarm/models"
	"mailwarm/routes"
	"mailwarm/utils"
)

type testServer struct {
	t   *testing.T
	app *fiber.App
	db  *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	config.AppConfig.EncryptionKey = "controller-test-key"
	config.AppConfig.JWTSecret = "controller-test-secret"

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), config.GormConfig())
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	config.DB = db

	app := fiber.New()
	routes.SetupRoutes(app, db, routes.Options{TestRateLimit: 5, ActivityLimit: 10, DisableRequestLog: true})
	return &testServer{t: t, app: app, db: db}
}

// do sends a JSON request and decodes the JSON response into out when given.
func (s *testServer) do(method, path, token string, body interface{}, out interface{}) int {
	s.t.Helper()
	return doRequest(s.t, s.app, method, path, token, body, out)
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// login creates an owner directly and returns an access token for them.
func (s *testServer) login(email string) (models.User, string) {
	s.t.Helper()
	user := models.User{Email: email, PasswordHash: "x", IsActive: true, TokenVersion: 1}
	require.NoError(s.t, s.db.Create(&user).Error)
	access, _, err := utils.GenerateJWTToken(&user)
	require.NoError(s.t, err)
	return user, access
}

func accountBody(email string) map[string]interface{} {
	return map[string]interface{}{
		"email":         email,
		"smtp_host":     "smtp.example.com",
		"smtp_port":     587,
		"smtp_username": email,
		"smtp_password": "smtp-secret",
		"imap_host":     "imap.example.com",
		"imap_port":     993,
		"imap_username": email,
		"imap_password": "imap-secret",
	}
}

type accountEnvelope struct {
	Data models.EmailAccount `json:"data"`
}
