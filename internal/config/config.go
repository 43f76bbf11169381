package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  The types reflect how the values are used
// in the application: strings for identifiers and secrets, ints for
// durations, costs and thresholds.
type Config struct {
	Env                   string // application environment (e.g. "dev", "prod")
	Port                  string // HTTP port to listen on
	DBUser                string // database username
	DBPass                string // database password (optional)
	DBHost                string // database host address
	DBPort                string // database port number
	DBName                string // database name
	JWTSecret             string // secret used to sign operator JWTs
	AccessTTLMin          int    // access token time-to-live in minutes
	RefreshTTLDays        int    // refresh token time-to-live in days
	BcryptCost            int    // bcrypt cost for password hashing
	SepayWebhookSecret    string // shared secret for webhook HMAC; empty disables verification
	AlertFailureThreshold int    // consecutive webhook failures before operators are alerted
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The webhook secret
// is optional: Sepay test environments deliver unsigned payloads.
func Load() Config {
	return Config{
		Env:                   must("APP_ENV"),
		Port:                  must("APP_PORT"),
		DBUser:                must("DB_USER"),
		DBPass:                os.Getenv("DB_PASS"),
		DBHost:                must("DB_HOST"),
		DBPort:                must("DB_PORT"),
		DBName:                must("DB_NAME"),
		JWTSecret:             must("JWT_SECRET"),
		AccessTTLMin:          mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:        mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:            mustInt("BCRYPT_COST"),
		SepayWebhookSecret:    os.Getenv("SEPAY_WEBHOOK_SECRET"),
		AlertFailureThreshold: intOr("WEBHOOK_ALERT_THRESHOLD", 5),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// intOr reads an optional integer environment variable with a default.
func intOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
