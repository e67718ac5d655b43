package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	FrontendURL   string
	LogLevel      string
	LogFormat     string
	CookieSecure  bool
	// Answer generation
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	Model             string
	AnswerStrategy    string
	ClassifierMode    string
	ScriptFile        string
	KnowledgeFile     string
	GenerationTimeout time.Duration
	ScriptedLatency   time.Duration
	// Catalog
	CatalogBackend string
	CatalogFile    string
	DatabaseURL    string
	PriceLocale    string
	// Conversation pacing
	WelcomeDelay time.Duration
	ReplyDelay   time.Duration
	ConfirmDelay time.Duration
	SessionTTL   time.Duration
	SignInURL    string
	// OAuth sign-in
	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthUserInfoURL  string
	OAuthRedirectURL  string
	OAuthScopes       []string
	AdminEmails       []string
	// bcrypt cost for the built-in account directory
	PasswordCost int
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:              getEnvDefault("PORT", "8080"),
		AllowedOrigin:     getEnvDefault("ALLOWED_ORIGIN", "*"),
		FrontendURL:       getEnvDefault("FRONTEND_URL", "http://localhost:3000"),
		LogLevel:          getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvDefault("LOG_FORMAT", "text"),
		CookieSecure:      getEnvBoolDefault("COOKIE_SECURE", false),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		Model:             getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		AnswerStrategy:    strings.ToLower(getEnvDefault("ANSWER_STRATEGY", "scripted")),
		ClassifierMode:    strings.ToLower(getEnvDefault("CLASSIFIER_MODE", "keyword")),
		ScriptFile:        os.Getenv("SCRIPT_FILE"),
		KnowledgeFile:     os.Getenv("KNOWLEDGE_FILE"),
		GenerationTimeout: getEnvDurationDefault("GENERATION_TIMEOUT", 30*time.Second),
		ScriptedLatency:   getEnvDurationDefault("SCRIPTED_LATENCY", 1500*time.Millisecond),
		CatalogBackend:    strings.ToLower(getEnvDefault("CATALOG_BACKEND", "memory")),
		CatalogFile:       getEnvDefault("CATALOG_FILE", "data/packages.json"),
		DatabaseURL:       os.Getenv("DB_URL"),
		PriceLocale:       getEnvDefault("PRICE_LOCALE", "es-CO"),
		WelcomeDelay:      getEnvDurationDefault("WELCOME_DELAY", 500*time.Millisecond),
		ReplyDelay:        getEnvDurationDefault("REPLY_DELAY", time.Second),
		ConfirmDelay:      getEnvDurationDefault("CONFIRM_DELAY", 1500*time.Millisecond),
		SessionTTL:        getEnvDurationDefault("SESSION_TTL", 30*time.Minute),
		SignInURL:         getEnvDefault("SIGN_IN_URL", "/login"),
		OAuthClientID:     os.Getenv("OAUTH_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("OAUTH_CLIENT_SECRET"),
		OAuthAuthURL:      os.Getenv("OAUTH_AUTH_URL"),
		OAuthTokenURL:     os.Getenv("OAUTH_TOKEN_URL"),
		OAuthUserInfoURL:  os.Getenv("OAUTH_USERINFO_URL"),
		OAuthRedirectURL:  getEnvDefault("OAUTH_REDIRECT_URL", "http://localhost:8080/api/auth/callback"),
		OAuthScopes:       getEnvListDefault("OAUTH_SCOPES", []string{"openid", "email", "profile"}),
		AdminEmails:       getEnvListDefault("ADMIN_EMAILS", nil),
		PasswordCost:      getEnvIntDefault("PASSWORD_COST", 0),
	}
	if cfg.AnswerStrategy == "delegated" && cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set; delegated answers will fall back to the apology text")
	}
	if cfg.CatalogBackend == "sql" && cfg.DatabaseURL == "" {
		slog.Warn("CATALOG_BACKEND=sql but DB_URL is not set")
	}
	return cfg
}

// OAuthEnabled reports whether external sign-in is configured.
func (c Config) OAuthEnabled() bool {
	return c.OAuthClientID != "" && c.OAuthAuthURL != "" && c.OAuthTokenURL != "" && c.OAuthUserInfoURL != ""
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

// getEnvDurationDefault accepts Go durations ("1.5s") or bare milliseconds.
func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	slog.Warn("ignoring invalid duration", "key", key, "value", v)
	return def
}

func getEnvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid integer", "key", key, "value", v)
		return def
	}
	return n
}
