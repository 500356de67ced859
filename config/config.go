package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"mailwarm/models"
)

var (
	DB          *gorm.DB
	RedisClient *redis.Client
	AppConfig   Config
	envLoaded   bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type SMTPConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	FromEmail string `json:"from_email"`
}

type WorkerConfig struct {
	WarmupTick    time.Duration `json:"warmup_tick"`
	WarmupBatch   int           `json:"warmup_batch"`
	ReceiveTick   time.Duration `json:"receive_tick"`
	WarmupEmail   string        `json:"warmup_email"`
	ReportsCron   string        `json:"reports_cron"`
	WeeklyCron    string        `json:"weekly_cron"`
	StartupDelay  time.Duration `json:"startup_delay"`
	LockTTL       time.Duration `json:"lock_ttl"`
	SendRetries   int           `json:"send_retries"`
	ActivityLimit int           `json:"activity_limit"`
	AlertInterval time.Duration `json:"alert_interval"`
}

type Config struct {
	Environment    string       `json:"environment"`
	ServerPort     string       `json:"server_port"`
	LogLevel       string       `json:"log_level"`
	SentryDSN      string       `json:"-"`
	CORSOrigins    []string     `json:"cors_origins"`
	EncryptionKey  string       `json:"-"`
	JWTSecret      string       `json:"-"`
	DBDriver       string       `json:"db_driver"`
	DBHost         string       `json:"db_host"`
	DBPort         string       `json:"db_port"`
	DBUser         string       `json:"db_user"`
	DBPassword     string       `json:"-"`
	DBName         string       `json:"db_name"`
	DBSSLMode      string       `json:"db_ssl_mode"`
	DBSQLitePath   string       `json:"db_sqlite_path"`
	DBMaxIdleConns int          `json:"db_max_idle_conns"`
	DBMaxOpenConns int          `json:"db_max_open_conns"`
	RateLimitTest  int          `json:"rate_limit_test_account"`
	MetricsEnabled bool         `json:"metrics_enabled"`
	Redis          RedisConfig  `json:"redis"`
	SMTP           SMTPConfig   `json:"smtp"`
	Worker         WorkerConfig `json:"worker"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		DBDriver:       getEnv("DB_DRIVER", "postgres"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "mailwarm"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBSQLitePath:   getEnv("DB_SQLITE_PATH", "mailwarm.db"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		RateLimitTest:  getEnvAsInt("RATE_LIMIT_TEST_ACCOUNT", 5),
		MetricsEnabled: getEnv("METRICS_ENABLED", "true") == "true",
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getEnvAsInt("SMTP_PORT", 587),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromEmail: getEnv("FROM_EMAIL", "no-reply@mailwarm.local"),
		},
		Worker: WorkerConfig{
			WarmupTick:    time.Duration(getEnvAsInt("WARMUP_TICK_SECONDS", 30)) * time.Second,
			WarmupBatch:   getEnvAsInt("WARMUP_BATCH_SIZE", 5),
			ReceiveTick:   time.Duration(getEnvAsInt("RECEIVE_TICK_SECONDS", 300)) * time.Second,
			WarmupEmail:   getEnv("WARMUP_EMAIL_RECIPIENT", ""),
			ReportsCron:   getEnv("DAILY_SUMMARY_CRON", "0 8 * * *"),
			WeeklyCron:    getEnv("WEEKLY_REPORT_CRON", "0 8 * * 1"),
			StartupDelay:  time.Duration(getEnvAsInt("WORKER_STARTUP_DELAY_SECONDS", 10)) * time.Second,
			LockTTL:       time.Duration(getEnvAsInt("WORKER_LOCK_TTL_SECONDS", 120)) * time.Second,
			SendRetries:   getEnvAsInt("WARMUP_SEND_RETRIES", 3),
			ActivityLimit: getEnvAsInt("DASHBOARD_ACTIVITY_LIMIT", 10),
			AlertInterval: time.Duration(getEnvAsInt("ALERT_INTERVAL_MINUTES", 60)) * time.Minute,
		},
	}

	if AppConfig.JWTSecret == "" {
		AppConfig.JWTSecret = AppConfig.EncryptionKey
	}

	// Validate required configurations
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if AppConfig.DBDriver != "postgres" && AppConfig.DBDriver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", AppConfig.DBDriver)
	}
	if AppConfig.DBDriver == "postgres" && AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.Environment == "production" && AppConfig.SMTP.Host == "" {
		return fmt.Errorf("SMTP_HOST is required in production for error notifications")
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	logrus.Info("Attempting to connect to database...")

	var dialector gorm.Dialector
	switch AppConfig.DBDriver {
	case "sqlite":
		logrus.Infof("Using sqlite database: %s", AppConfig.DBSQLitePath)
		dialector = sqlite.Open(AppConfig.DBSQLitePath)
	default:
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			AppConfig.DBHost,
			AppConfig.DBPort,
			AppConfig.DBUser,
			AppConfig.DBPassword,
			AppConfig.DBName,
			AppConfig.DBSSLMode,
		)
		logrus.Infof("Using connection string: %s", maskPassword(dsn))
		dialector = postgres.Open(dsn)
	}

	var err error
	DB, err = gorm.Open(dialector, GormConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logrus.Info("✅ Successfully connected to the database")
	logrus.Info("🔄 Starting database migration...")
	if err := Migrate(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	logrus.Info("✅ Database migration completed")
	return nil
}

// ConnectRedis opens the shared Redis client when REDIS_ENABLED is set. It
// returns nil without error when Redis is disabled.
func ConnectRedis() (*redis.Client, error) {
	if !AppConfig.Redis.Enabled {
		logrus.Info("Redis disabled, using in-process rate limits and locks")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     AppConfig.Redis.Address,
		Password: AppConfig.Redis.Password,
		DB:       AppConfig.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	RedisClient = client
	logrus.Infof("✅ Connected to Redis at %s", AppConfig.Redis.Address)
	return client, nil
}

// GormConfig enables driver error translation so unique-index violations
// surface as gorm.ErrDuplicatedKey.
func GormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.ErrorEmailSettings{},
		&models.WarmupTimingSettings{},
		&models.EmailAccount{},
		&models.ActivityEvent{},
	)
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		logrus.Warnf("⚠️ Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.Info("🔧 Loaded configuration:")
	logrus.Infof("Environment: %s", AppConfig.Environment)
	logrus.Infof("Server Port: %s", AppConfig.ServerPort)
	if AppConfig.DBDriver == "sqlite" {
		logrus.Infof("Database: sqlite %s", AppConfig.DBSQLitePath)
	} else {
		logrus.Infof("Database: %s@%s:%s/%s",
			AppConfig.DBUser,
			AppConfig.DBHost,
			AppConfig.DBPort,
			AppConfig.DBName)
	}
	logrus.Infof("Redis: enabled=%t address=%s", AppConfig.Redis.Enabled, AppConfig.Redis.Address)
	logrus.Infof("Notifier SMTP configured: %t", AppConfig.SMTP.Host != "")
	logrus.Infof("Warmup worker: tick=%s batch=%d", AppConfig.Worker.WarmupTick, AppConfig.Worker.WarmupBatch)
}
