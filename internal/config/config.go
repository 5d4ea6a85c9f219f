package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"golang.org/x/crypto/bcrypt"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	AppBaseURL     string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	Auth AuthConfig
	Mail MailConfig

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	ResetRequestLimit  int           `env:"RESET_REQUEST_LIMIT" envDefault:"3"`
	ResetRequestWindow time.Duration `env:"RESET_REQUEST_WINDOW" envDefault:"1h"`
	LoginAttemptLimit  int           `env:"LOGIN_ATTEMPT_LIMIT" envDefault:"10"`
	LoginAttemptWindow time.Duration `env:"LOGIN_ATTEMPT_WINDOW" envDefault:"15m"`
	RateLimitRPS       float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
}

// AuthConfig agrupa el secreto de firma y las ventanas de expiración.
type AuthConfig struct {
	JWTSecret        string        `env:"JWT_SECRET,required"`
	JWTExpiresIn     time.Duration `env:"JWT_EXPIRES_IN" envDefault:"2160h"`
	CookieExpiresIn  time.Duration `env:"JWT_COOKIE_EXPIRES_IN" envDefault:"2160h"`
	CookieSecure     bool          `env:"COOKIE_SECURE" envDefault:"false"`
	PasswordResetTTL time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"10m"`
	BcryptCost       int           `env:"BCRYPT_COST" envDefault:"12"`
}

// MailConfig configura el transporte SMTP.
type MailConfig struct {
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@insta.com"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
}

const minSecretLength = 32

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza combinaciones que dejarían el servicio inseguro.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength)
	}
	if c.Auth.JWTExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	if c.Auth.PasswordResetTTL <= 0 {
		return errors.New("PASSWORD_RESET_TTL must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}
