package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ANSWER_STRATEGY", "CLASSIFIER_MODE", "REPLY_DELAY", "ADMIN_EMAILS", "COOKIE_SECURE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" || cfg.AnswerStrategy != "scripted" || cfg.ClassifierMode != "keyword" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ReplyDelay != time.Second || cfg.ConfirmDelay != 1500*time.Millisecond {
		t.Fatalf("delays = %v / %v", cfg.ReplyDelay, cfg.ConfirmDelay)
	}
	if cfg.AdminEmails != nil || cfg.CookieSecure {
		t.Fatal("unexpected admin emails or secure cookie")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ANSWER_STRATEGY", "Delegated")
	t.Setenv("REPLY_DELAY", "250")
	t.Setenv("WELCOME_DELAY", "2s")
	t.Setenv("CONFIRM_DELAY", "soon")
	t.Setenv("ADMIN_EMAILS", " a@x.com, ,b@x.com ")
	t.Setenv("COOKIE_SECURE", "yes")
	t.Setenv("PASSWORD_COST", "4")

	cfg := Load()
	if cfg.Port != "9090" || cfg.AnswerStrategy != "delegated" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ReplyDelay != 250*time.Millisecond || cfg.WelcomeDelay != 2*time.Second {
		t.Fatalf("delays = %v / %v", cfg.ReplyDelay, cfg.WelcomeDelay)
	}
	if cfg.ConfirmDelay != 1500*time.Millisecond {
		t.Fatalf("invalid duration not ignored: %v", cfg.ConfirmDelay)
	}
	if len(cfg.AdminEmails) != 2 || cfg.AdminEmails[1] != "b@x.com" {
		t.Fatalf("admin emails = %q", cfg.AdminEmails)
	}
	if !cfg.CookieSecure || cfg.PasswordCost != 4 {
		t.Fatalf("cookie secure = %v, cost = %d", cfg.CookieSecure, cfg.PasswordCost)
	}
}

func TestOAuthEnabled(t *testing.T) {
	cfg := Config{OAuthClientID: "id", OAuthAuthURL: "a", OAuthTokenURL: "t"}
	if cfg.OAuthEnabled() {
		t.Fatal("enabled without userinfo url")
	}
	cfg.OAuthUserInfoURL = "u"
	if !cfg.OAuthEnabled() {
		t.Fatal("not enabled with every url set")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (Config{LogLevel: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
