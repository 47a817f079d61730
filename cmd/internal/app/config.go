package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" (default) or "pretty"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Persistence selection (first match wins):
	// - DatabaseURL set   -> Postgres-backed store and directory
	// - BadgerDir set     -> embedded Badger store
	// - neither           -> in-memory store (dev mode)
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	BadgerDir   string

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Identity verification.
	// TokenHMACSecret enables the JWT verifier; DevTokens ("token:user,...")
	// enables the static dev verifier when no secret is configured.
	TokenHMACSecret string
	TokenIssuer     string
	DevTokens       string

	// Security policy:
	// If true, PULSE_TOKEN_HMAC_SECRET MUST be set (>= 32 bytes); static dev
	// tokens are rejected.
	RequireTokenHMAC bool

	// Registration boundary. OTPEnabled gates the /api/register endpoints.
	OTPEnabled bool
	OTPTTL     time.Duration
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("PULSE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("PULSE_LOG_LEVEL", "info"),
		LogFormat: EnvString("PULSE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("PULSE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("PULSE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("PULSE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("PULSE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("PULSE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("PULSE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("PULSE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("PULSE_DB_MIN_CONNS", 0),
		BadgerDir:   EnvString("PULSE_BADGER_DIR", ""),

		ReadinessRequireDB: EnvBool("PULSE_READINESS_REQUIRE_DB", false),

		TokenHMACSecret: EnvString("PULSE_TOKEN_HMAC_SECRET", ""),
		TokenIssuer:     EnvString("PULSE_TOKEN_ISSUER", ""),
		DevTokens:       EnvString("PULSE_DEV_TOKENS", ""),

		RequireTokenHMAC: EnvBool("PULSE_REQUIRE_TOKEN_HMAC", false),

		OTPEnabled: EnvBool("PULSE_OTP_ENABLED", false),
		OTPTTL:     EnvDuration("PULSE_OTP_TTL", 10*time.Minute),
	}
}
