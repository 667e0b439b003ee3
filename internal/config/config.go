package config

import (
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string   `env:"HTTP_PORT" envDefault:"3030"`
	DatabaseURL   string   `env:"DATABASE_URL,required,notEmpty"`
	SessionSecret string   `env:"SECRET"`
	LoginExpires  int      `env:"LOGIN_EXPIRES" envDefault:"3600"`
	Mode          string   `env:"APPLICATION_START_MODE" envDefault:"development"`
	CookieDomain  string   `env:"DOMAIN" envDefault:"localhost"`
	AllowOrigins  []string `env:"ALLOW_ORIGINS" envSeparator:","`
	TrustedProxy  []string `env:"TRUSTED_PROXIES" envSeparator:","`
	ResetURL      string   `env:"RESET_URL" envDefault:"http://localhost:3000"`
	LogLevel      string   `env:"LOG_LEVEL" envDefault:"info"`

	SessionBindUserAgent    bool          `env:"SESSION_BIND_USER_AGENT" envDefault:"false"`
	RevocationPruneInterval time.Duration `env:"REVOCATION_PRUNE_INTERVAL" envDefault:"1h"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"BlogSpot"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction indica si el servicio corre con el perfil de producción.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Mode), ModeProduction)
}

// SessionTTL devuelve la vida de una credencial de sesión.
func (c *Config) SessionTTL() time.Duration {
	if c.LoginExpires <= 0 {
		return time.Hour
	}
	return time.Duration(c.LoginExpires) * time.Second
}

// CookiePolicy describe los atributos comunes de las cookies de sesión.
type CookiePolicy struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// CookiePolicy deriva los atributos de cookie según el perfil.
func (c *Config) CookiePolicy() CookiePolicy {
	if c.IsProduction() {
		domain := strings.TrimSpace(c.CookieDomain)
		if domain == "" {
			domain = "localhost"
		}
		return CookiePolicy{
			Domain:   domain,
			Secure:   true,
			SameSite: http.SameSiteNoneMode,
		}
	}
	return CookiePolicy{SameSite: http.SameSiteLaxMode}
}
