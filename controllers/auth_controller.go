package controller

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"mailwarm/models"
	"mailwarm/utils"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

type AuthController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewAuthController(db *gorm.DB, logger *logrus.Entry) *AuthController {
	return &AuthController{DB: db, Logger: logger}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// bindAuth parses and validates a request body, writing the 400 itself.
// A nil error with ok=false means the response has already been sent.
func bindAuth(c *fiber.Ctx, dst interface{}) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, errorJSON(c, fiber.StatusBadRequest, ErrInvalidRequestBody)
	}
	switch req := dst.(type) {
	case *RegisterRequest:
		req.Email = normalizeEmail(req.Email)
	case *LoginRequest:
		req.Email = normalizeEmail(req.Email)
	}
	if err := utils.ValidateStruct(dst); err != nil {
		return false, errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	return true, nil
}

// session issues a fresh token pair for user.
func (ac *AuthController) session(c *fiber.Ctx, status int, user *models.User) error {
	access, refresh, err := utils.GenerateJWTToken(user)
	if err != nil {
		ac.Logger.WithError(err).WithField("user_id", user.ID).Error("sign tokens")
		return errorJSON(c, fiber.StatusInternalServerError, ErrTokenGeneration)
	}
	return c.Status(status).JSON(AuthResponse{AccessToken: access, RefreshToken: refresh, User: user})
}

func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if ok, err := bindAuth(c, &req); !ok {
		return err
	}

	var taken int64
	if err := ac.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&taken).Error; err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, ErrInternal)
	}
	if taken > 0 {
		return errorJSON(c, fiber.StatusConflict, ErrEmailRegistered)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, ErrInternal)
	}
	user := models.User{Email: req.Email, PasswordHash: string(hash), IsActive: true, TokenVersion: 1}
	if err := ac.DB.Create(&user).Error; err != nil {
		utils.LogError("user_create", err, map[string]interface{}{"email": req.Email})
		return errorJSON(c, fiber.StatusInternalServerError, ErrInternal)
	}

	utils.LogEvent("user_registered", map[string]interface{}{"user_id": user.ID})
	return ac.session(c, fiber.StatusCreated, &user)
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, err := bindAuth(c, &req); !ok {
		return err
	}

	var user models.User
	if err := ac.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		// Compare anyway so unknown addresses take as long as wrong passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		return errorJSON(c, fiber.StatusUnauthorized, ErrInvalidCredentials)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return errorJSON(c, fiber.StatusUnauthorized, ErrInvalidCredentials)
	}
	if !user.IsActive {
		return errorJSON(c, fiber.StatusForbidden, ErrUserDisabled)
	}
	return ac.session(c, fiber.StatusOK, &user)
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("mailwarm-placeholder"), bcrypt.DefaultCost)

func (ac *AuthController) RefreshToken(c *fiber.Ctx) error {
	var req RefreshTokenRequest
	if ok, err := bindAuth(c, &req); !ok {
		return err
	}

	access, refresh, err := utils.RefreshTokens(ac.DB, req.RefreshToken)
	if err != nil {
		ac.Logger.WithError(err).Debug("refresh rejected")
		return errorJSON(c, fiber.StatusUnauthorized, ErrRefreshRejected)
	}
	return c.JSON(fiber.Map{"access_token": access, "refresh_token": refresh})
}

// Logout revokes every token issued to the user so far.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	if err := ac.DB.Model(user).UpdateColumn("token_version", gorm.Expr("token_version + 1")).Error; err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, ErrInternal)
	}
	return c.JSON(fiber.Map{"message": "logged out"})
}

// ChangePassword rotates the password hash and the token version in one write,
// then hands back a session for the new version.
func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	var req ChangePasswordRequest
	if ok, err := bindAuth(c, &req); !ok {
		return err
	}

	user := c.Locals("user").(*models.User)
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return errorJSON(c, fiber.StatusUnauthorized, ErrWrongPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, ErrInternal)
	}

	user.PasswordHash = string(hash)
	user.TokenVersion++
	if err := ac.DB.Model(user).Updates(map[string]interface{}{
		"password_hash": user.PasswordHash,
		"token_version": user.TokenVersion,
	}).Error; err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, ErrInternal)
	}
	return ac.session(c, fiber.StatusOK, user)
}

// Me returns the signed-in owner with their profile settings, if saved.
func (ac *AuthController) Me(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var settings models.UserSettings
	err := ac.DB.Where("user_id = ?", user.ID).First(&settings).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return errorJSON(c, fiber.StatusInternalServerError, ErrInternal)
	}
	if err == nil {
		user.Settings = &settings
	}
	return c.JSON(user)
}
