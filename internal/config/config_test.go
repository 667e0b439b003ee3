package config

import (
	"net/http"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/blog")
	t.Setenv("ALLOW_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPPort != "3030" {
		t.Fatalf("expected default port 3030, got %s", cfg.HTTPPort)
	}
	if cfg.SessionTTL() != time.Hour {
		t.Fatalf("expected default ttl 1h, got %v", cfg.SessionTTL())
	}
	if len(cfg.AllowOrigins) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.AllowOrigins)
	}
	if cfg.RevocationPruneInterval != time.Hour {
		t.Fatalf("expected prune interval 1h, got %v", cfg.RevocationPruneInterval)
	}
}

func TestLoadConfig_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}

func TestCookiePolicy_ByMode(t *testing.T) {
	dev := Config{Mode: ModeDevelopment, CookieDomain: "blog.example.com"}
	policy := dev.CookiePolicy()
	if policy.Secure || policy.Domain != "" || policy.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected development policy: %+v", policy)
	}

	prod := Config{Mode: "Production", CookieDomain: "blog.example.com"}
	policy = prod.CookiePolicy()
	if !policy.Secure || policy.Domain != "blog.example.com" || policy.SameSite != http.SameSiteNoneMode {
		t.Fatalf("unexpected production policy: %+v", policy)
	}
}

func TestSessionTTL_FromSeconds(t *testing.T) {
	cfg := Config{LoginExpires: 7200}
	if cfg.SessionTTL() != 2*time.Hour {
		t.Fatalf("expected 2h, got %v", cfg.SessionTTL())
	}
	cfg.LoginExpires = 0
	if cfg.SessionTTL() != time.Hour {
		t.Fatalf("expected fallback 1h, got %v", cfg.SessionTTL())
	}
}
