package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server and the viewer read from the environment.
type Config struct {
	Env  string
	Port string

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	SessionTTL time.Duration

	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthUserInfoURL  string
	OAuthRedirectURL  string

	IDTokenSecret string
	IDTokenIssuer string

	FTPHost      string
	FTPPort      string
	FTPUser      string
	FTPPassword  string
	MediaBaseURL string

	DefaultStartDate    string
	ClockWorkerInterval time.Duration
	BatchSize           int
	PollInterval        time.Duration
}

// Load reads the dotenv files (.env when none are given) and the process
// environment into a Config. Variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		L().Info("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Env:                 getenv("APP_ENV", "development"),
		Port:                getenv("APP_PORT", "8080"),
		DBDriver:            getenv("DB_DRIVER", "mysql"),
		DBDSN:               os.Getenv("DB_DSN"),
		RedisAddr:           getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getint("REDIS_DB", 0),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		SessionTTL:          getduration("SESSION_TTL", 24*time.Hour),
		OAuthClientID:       os.Getenv("OAUTH_CLIENT_ID"),
		OAuthClientSecret:   os.Getenv("OAUTH_CLIENT_SECRET"),
		OAuthAuthURL:        os.Getenv("OAUTH_AUTH_URL"),
		OAuthTokenURL:       os.Getenv("OAUTH_TOKEN_URL"),
		OAuthUserInfoURL:    os.Getenv("OAUTH_USERINFO_URL"),
		OAuthRedirectURL:    os.Getenv("OAUTH_REDIRECT_URL"),
		IDTokenSecret:       os.Getenv("ID_TOKEN_SECRET"),
		IDTokenIssuer:       os.Getenv("ID_TOKEN_ISSUER"),
		FTPHost:             os.Getenv("FTP_HOST"),
		FTPPort:             getenv("FTP_PORT", "21"),
		FTPUser:             os.Getenv("FTP_USER"),
		FTPPassword:         os.Getenv("FTP_PASSWORD"),
		MediaBaseURL:        os.Getenv("MEDIA_BASE_URL"),
		DefaultStartDate:    getenv("DEFAULT_START_DATE", "1789-05-05"),
		ClockWorkerInterval: getduration("CLOCK_WORKER_INTERVAL", time.Hour),
		BatchSize:           getint("BATCH_SIZE", 100),
		PollInterval:        getduration("POLL_INTERVAL", 45*time.Second),
	}
	return cfg, nil
}

// ValidateServer checks the settings the HTTP server cannot start without.
func (c *Config) ValidateServer() error {
	if c.DBDSN == "" {
		return errors.New("DB_DSN is not set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getduration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
