package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config reads an env variable, falling back to defaultValue when unset.
func Config(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return defaultValue
}

// SetupEnvFile loads .env from the working directory or its parent. A
// missing file is not an error; the process env still applies.
func SetupEnvFile() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				fmt.Printf("Error loading %s: %v\n", path, err)
			}
			return
		}
	}
}

type PollerSettings struct {
	Interval             time.Duration
	Ceiling              time.Duration
	NavigateDelay        time.Duration
	CallTimeout          time.Duration
	WarnAfterErrors      int
	MaxConsecutiveErrors int
}

type Settings struct {
	AppName  string
	HTTPAddr string
	Env      string

	LogLevel string
	LogDir   string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisAddr string
	RedisPass string
	RedisDB   int

	MongoURI      string
	MongoDatabase string

	JWTSecret      string
	CallbackSecret string

	VerifyBaseURL      string
	VerifyToken        string
	VerifyTokenURL     string
	VerifyClientID     string
	VerifyClientSecret string

	Poller PollerSettings

	PendingExpiry          time.Duration
	InquiryAfter           time.Duration
	SessionTTL             time.Duration
	MaxSessions            int
	NotificationRetries    int
	NotificationRetryDelay time.Duration
}

// Load builds Settings from the environment.
func Load() (Settings, error) {
	var errs []string
	dur := func(key string, def time.Duration) time.Duration {
		raw := Config(key, "")
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return d
	}
	num := func(key string, def int) int {
		raw := Config(key, "")
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return n
	}

	s := Settings{
		AppName:  Config("APP_NAME", "payverify"),
		HTTPAddr: Config("HTTP_ADDR", ":3000"),
		Env:      Config("APP_ENV", "development"),

		LogLevel: Config("LOG_LEVEL", "info"),
		LogDir:   Config("LOG_DIR", "../logs"),

		DBHost:     Config("DB_HOST", "localhost"),
		DBUser:     Config("DB_USER", ""),
		DBPassword: Config("DB_PASSWORD", ""),
		DBName:     Config("DB_NAME", ""),
		DBPort:     Config("DB_PORT", "5432"),

		RedisAddr: Config("REDIS_ADDR", ""),
		RedisPass: Config("REDIS_PASS", ""),
		RedisDB:   num("REDIS_DB", 0),

		MongoURI:      Config("MONGODB_URI", ""),
		MongoDatabase: Config("MONGODB_DATABASE", "payverify"),

		JWTSecret:      Config("JWT_SECRET", ""),
		CallbackSecret: Config("CALLBACK_SECRET", ""),

		VerifyBaseURL:      Config("VERIFY_BASE_URL", "http://localhost:3000/api"),
		VerifyToken:        Config("VERIFY_TOKEN", ""),
		VerifyTokenURL:     Config("VERIFY_TOKEN_URL", ""),
		VerifyClientID:     Config("VERIFY_CLIENT_ID", ""),
		VerifyClientSecret: Config("VERIFY_CLIENT_SECRET", ""),

		Poller: PollerSettings{
			Interval:             dur("POLL_INTERVAL", 3*time.Second),
			Ceiling:              dur("POLL_CEILING", 120*time.Second),
			NavigateDelay:        dur("POLL_NAVIGATE_DELAY", 2*time.Second),
			CallTimeout:          dur("POLL_CALL_TIMEOUT", 2500*time.Millisecond),
			WarnAfterErrors:      num("POLL_WARN_AFTER_ERRORS", 3),
			MaxConsecutiveErrors: num("POLL_MAX_ERRORS", 0),
		},

		PendingExpiry:          dur("PENDING_EXPIRY", 10*time.Minute),
		InquiryAfter:           dur("INQUIRY_AFTER", 15*time.Second),
		SessionTTL:             dur("SESSION_TTL", 5*time.Minute),
		MaxSessions:            num("MAX_VERIFICATION_SESSIONS", 1000),
		NotificationRetries:    num("NOTIFICATION_RETRIES", 5),
		NotificationRetryDelay: dur("NOTIFICATION_RETRY_DELAY", 30*time.Second),
	}

	if len(errs) > 0 {
		return s, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return s, nil
}

// ValidateServer reports secrets the HTTP server cannot run without.
func (s Settings) ValidateServer() error {
	var missing []string
	if strings.TrimSpace(s.CallbackSecret) == "" {
		missing = append(missing, "CALLBACK_SECRET")
	}
	if strings.TrimSpace(s.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid configuration: %s must be set", strings.Join(missing, ", "))
	}
	return nil
}

// DSN is the postgres connection string.
func (s Settings) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		s.DBHost, s.DBUser, s.DBPassword, s.DBName, s.DBPort)
}
