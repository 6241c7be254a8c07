package config

import "time"

const (
	CacheBackendMemory = "memory"
	CacheBackendSQLite = "sqlite"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	SQLitePath string

	// ProductsFile is an optional JSON array of products imported on start.
	ProductsFile string

	CacheBackend  string
	CacheSize     int
	AnonymousTTL  time.Duration
	PurgeInterval time.Duration

	// MaxItems caps the recently viewed list. Zero keeps it unbounded.
	MaxItems   int
	TrustProxy bool

	OIDCIssuerURL    string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
	SessionKey       string
	CookieSecure     bool
	DevUser          string
}

// Load loads Config from environment variables with defaults.
func Load() Config {
	addr := ":8080"
	if port := EnvString("PORT", ""); port != "" {
		addr = ":" + port
	}
	cfg := Config{
		HTTPAddr: EnvString("RV_HTTP_ADDR", addr),
		LogLevel: EnvString("RV_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("RV_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ShutdownTimeout:   EnvDuration("RV_SHUTDOWN_TIMEOUT", 10*time.Second),

		SQLitePath:   EnvString("RV_SQLITE_PATH", "recently-viewed.db"),
		ProductsFile: EnvString("RV_PRODUCTS_FILE", ""),

		CacheBackend:  EnvString("RV_CACHE_BACKEND", CacheBackendMemory),
		CacheSize:     EnvInt("RV_CACHE_SIZE", 16384),
		AnonymousTTL:  EnvDuration("RV_ANONYMOUS_TTL", 12*time.Hour),
		PurgeInterval: EnvDuration("RV_PURGE_INTERVAL", 15*time.Minute),

		MaxItems:   EnvInt("RV_MAX_ITEMS", 10),
		TrustProxy: EnvBool("RV_TRUST_PROXY", false),

		OIDCIssuerURL:    EnvString("RV_OIDC_ISSUER_URL", ""),
		OIDCClientID:     EnvString("RV_OIDC_CLIENT_ID", ""),
		OIDCClientSecret: EnvString("RV_OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  EnvString("RV_OIDC_REDIRECT_URL", ""),
		SessionKey:       EnvString("RV_SESSION_KEY", ""),
		CookieSecure:     EnvBool("RV_COOKIE_SECURE", false),
		DevUser:          EnvString("RV_DEV_USER", ""),
	}
	if cfg.CacheBackend != CacheBackendSQLite {
		cfg.CacheBackend = CacheBackendMemory
	}
	return cfg
}

// OIDCEnabled reports whether enough OIDC settings are present to enable login.
func (c Config) OIDCEnabled() bool {
	return c.OIDCIssuerURL != "" && c.OIDCClientID != "" && c.OIDCRedirectURL != ""
}
