package controller

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"mailwarm/models"
	"mailwarm/utils"
)

type CreateEmailAccountRequest struct {
	Email        string `json:"email" validate:"required,mailbox"`
	SMTPHost     string `json:"smtp_host" validate:"required,hostname_rfc1123"`
	SMTPPort     int    `json:"smtp_port" validate:"required,min=1,max=65535"`
	SMTPUsername string `json:"smtp_username" validate:"required"`
	SMTPPassword string `json:"smtp_password" validate:"required"`
	IMAPHost     string `json:"imap_host" validate:"required,hostname_rfc1123"`
	IMAPPort     int    `json:"imap_port" validate:"required,min=1,max=65535"`
	IMAPUsername string `json:"imap_username" validate:"required"`
	IMAPPassword string `json:"imap_password" validate:"required"`
	UseSSL       *bool  `json:"use_ssl"`
	Active       *bool  `json:"active"`
}

// UpdateEmailAccountRequest changes only the fields present. Empty passwords
// keep the stored ones.
type UpdateEmailAccountRequest struct {
	SMTPHost     *string `json:"smtp_host" validate:"omitempty,hostname_rfc1123"`
	SMTPPort     *int    `json:"smtp_port" validate:"omitempty,min=1,max=65535"`
	SMTPUsername *string `json:"smtp_username"`
	SMTPPassword *string `json:"smtp_password"`
	IMAPHost     *string `json:"imap_host" validate:"omitempty,hostname_rfc1123"`
	IMAPPort     *int    `json:"imap_port" validate:"omitempty,min=1,max=65535"`
	IMAPUsername *string `json:"imap_username"`
	IMAPPassword *string `json:"imap_password"`
	UseSSL       *bool   `json:"use_ssl"`
	Active       *bool   `json:"active"`
}

type TestResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ConnectionChecker probes a mailbox's servers.
type ConnectionChecker interface {
	CheckSMTP(account *models.EmailAccount) error
	CheckIMAP(account *models.EmailAccount) error
	CheckDomain(email string) error
}

type liveChecker struct{}

func (liveChecker) CheckSMTP(a *models.EmailAccount) error { return utils.CheckSMTPLogin(a) }
func (liveChecker) CheckIMAP(a *models.EmailAccount) error { return utils.CheckIMAPLogin(a) }
func (liveChecker) CheckDomain(email string) error         { return utils.CheckMailboxDomain(email) }

type EmailAccountController struct {
	DB      *gorm.DB
	Logger  *logrus.Entry
	Checker ConnectionChecker
}

func NewEmailAccountController(db *gorm.DB, logger *logrus.Entry) *EmailAccountController {
	return &EmailAccountController{
		DB:      db,
		Logger:  logger,
		Checker: liveChecker{},
	}
}

// loadAccount fetches an account owned by the caller, writing the error
// response itself when it cannot.
func (ac *EmailAccountController) loadAccount(c *fiber.Ctx) (*models.EmailAccount, error) {
	user := c.Locals("user").(*models.User)

	id, err := utils.ParseUint(c.Params("id"))
	if err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidAccountID})
	}

	var account models.EmailAccount
	if err := ac.DB.Where("id = ? AND user_id = ?", id, user.ID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrAccountNotFound})
		}
		ac.Logger.WithError(err).Error("Database error fetching email account")
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrInternal})
	}
	return &account, nil
}

func (ac *EmailAccountController) saveError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrIncompleteCredentials):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrIncompleteAccount})
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": ErrAccountExists})
	}
	ac.Logger.WithError(err).Error("Failed to save email account")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrInternal})
}

func (ac *EmailAccountController) ListEmailAccounts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var accounts []models.EmailAccount
	if err := ac.DB.Where("user_id = ?", user.ID).Order("created_at DESC, id DESC").Find(&accounts).Error; err != nil {
		ac.Logger.WithError(err).Error("Failed to list email accounts")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrInternal})
	}
	for i := range accounts {
		accounts[i].Sanitize()
	}
	return c.JSON(fiber.Map{"data": accounts, "total": len(accounts)})
}

func (ac *EmailAccountController) CreateEmailAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateEmailAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidRequestBody})
	}
	req.Email = normalizeEmail(req.Email)
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var existing int64
	if err := ac.DB.Model(&models.EmailAccount{}).
		Where("user_id = ? AND email = ?", user.ID, req.Email).
		Count(&existing).Error; err != nil {
		return ac.saveError(c, err)
	}
	if existing > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": ErrAccountExists})
	}

	smtpPassword, err := utils.Encrypt(req.SMTPPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrEncryptionFailed})
	}
	imapPassword, err := utils.Encrypt(req.IMAPPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrEncryptionFailed})
	}

	account := models.EmailAccount{
		UserID:       user.ID,
		Email:        req.Email,
		SMTPHost:     strings.TrimSpace(req.SMTPHost),
		SMTPPort:     req.SMTPPort,
		SMTPUsername: req.SMTPUsername,
		SMTPPassword: smtpPassword,
		IMAPHost:     strings.TrimSpace(req.IMAPHost),
		IMAPPort:     req.IMAPPort,
		IMAPUsername: req.IMAPUsername,
		IMAPPassword: imapPassword,
		UseSSL:       true,
		Active:       true,
	}
	setIf(&account.UseSSL, req.UseSSL)
	setIf(&account.Active, req.Active)

	if err := ac.DB.Create(&account).Error; err != nil {
		return ac.saveError(c, err)
	}

	utils.LogEvent("email_account_created", map[string]interface{}{
		"user_id":    user.ID,
		"account_id": account.ID,
	})
	account.Sanitize()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": account})
}

func (ac *EmailAccountController) GetEmailAccount(c *fiber.Ctx) error {
	account, err := ac.loadAccount(c)
	if account == nil {
		return err
	}
	account.Sanitize()
	return c.JSON(fiber.Map{"data": account})
}

func (ac *EmailAccountController) UpdateEmailAccount(c *fiber.Ctx) error {
	account, err := ac.loadAccount(c)
	if account == nil {
		return err
	}

	var req UpdateEmailAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidRequestBody})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	setIf(&account.SMTPHost, req.SMTPHost)
	setIf(&account.SMTPPort, req.SMTPPort)
	setIf(&account.SMTPUsername, req.SMTPUsername)
	setIf(&account.IMAPHost, req.IMAPHost)
	setIf(&account.IMAPPort, req.IMAPPort)
	setIf(&account.IMAPUsername, req.IMAPUsername)
	setIf(&account.UseSSL, req.UseSSL)
	setIf(&account.Active, req.Active)

	for _, secret := range []struct {
		plain *string
		dst   *string
	}{
		{req.SMTPPassword, &account.SMTPPassword},
		{req.IMAPPassword, &account.IMAPPassword},
	} {
		if secret.plain == nil || *secret.plain == "" {
			continue
		}
		sealed, err := utils.Encrypt(*secret.plain)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrEncryptionFailed})
		}
		*secret.dst = sealed
	}

	if err := ac.DB.Save(account).Error; err != nil {
		return ac.saveError(c, err)
	}
	account.Sanitize()
	return c.JSON(fiber.Map{"data": account})
}

// DeleteEmailAccount removes the account and its activity history.
func (ac *EmailAccountController) DeleteEmailAccount(c *fiber.Ctx) error {
	account, err := ac.loadAccount(c)
	if account == nil {
		return err
	}

	err = ac.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email_account_id = ?", account.ID).Delete(&models.ActivityEvent{}).Error; err != nil {
			return err
		}
		return tx.Delete(account).Error
	})
	if err != nil {
		ac.Logger.WithError(err).WithField("account_id", account.ID).Error("Failed to delete email account")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrInternal})
	}

	utils.LogEvent("email_account_deleted", map[string]interface{}{
		"user_id":    account.UserID,
		"account_id": account.ID,
	})
	return c.JSON(fiber.Map{"message": "Email account deleted"})
}

// ToggleEmailAccount flips whether the account takes part in warmup.
func (ac *EmailAccountController) ToggleEmailAccount(c *fiber.Ctx) error {
	account, err := ac.loadAccount(c)
	if account == nil {
		return err
	}

	account.Active = !account.Active
	if err := ac.DB.Save(account).Error; err != nil {
		return ac.saveError(c, err)
	}
	account.Sanitize()
	return c.JSON(fiber.Map{"data": account})
}

// TestEmailAccount checks SMTP login, IMAP login, and the address's MX records.
func (ac *EmailAccountController) TestEmailAccount(c *fiber.Ctx) error {
	account, err := ac.loadAccount(c)
	if account == nil {
		return err
	}

	logContext := map[string]interface{}{
		"account_id": account.ID,
		"smtp_host":  account.SMTPHost,
		"imap_host":  account.IMAPHost,
	}

	results := map[string]TestResult{}
	var failures []string
	checks := []struct {
		name string
		run  func() error
	}{
		{"smtp", func() error { return ac.Checker.CheckSMTP(account) }},
		{"imap", func() error { return ac.Checker.CheckIMAP(account) }},
		{"domain", func() error { return ac.Checker.CheckDomain(account.Email) }},
	}
	for _, chk := range checks {
		name := chk.name
		if err := chk.run(); err != nil {
			results[name] = TestResult{Error: err.Error()}
			failures = append(failures, name+": "+err.Error())
			utils.LogError(name+"_test", err, logContext)
			continue
		}
		results[name] = TestResult{Success: true}
	}

	updates := map[string]interface{}{"last_error": nil, "last_error_at": nil}
	if len(failures) > 0 {
		updates["last_error"] = strings.Join(failures, "; ")
		updates["last_error_at"] = time.Now().UTC()
	}
	if err := ac.DB.Model(&models.EmailAccount{}).Where("id = ?", account.ID).UpdateColumns(updates).Error; err != nil {
		ac.Logger.WithError(err).WithField("account_id", account.ID).Warn("Failed to store test outcome")
	}

	if len(failures) == 0 {
		utils.LogEvent("email_account_test_success", logContext)
	}
	return c.JSON(fiber.Map{
		"message": "Email account test completed",
		"success": len(failures) == 0,
		"results": results,
	})
}
