// Package config loads application configuration from environment
// variables.
package config

import (
    "log"
    "os"
    "strconv"
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable; required variables are
// enforced by must() and missing values abort startup.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign admin JWTs
    AccessTTLMin   int    // access token time-to-live in minutes
    BcryptCost     int    // bcrypt cost for password hashing
    HoursIndexPath string // path of the JSON hours index file
    StageTTLMin    int    // staged reservation time-to-live in minutes
    PaymentBaseURL string // payment provider API base URL
    PaymentAPIKey  string // payment provider API key
    PaymentReturn  string // URL the provider redirects customers back to
}

// Load reads configuration values from environment variables and
// returns a Config.  Optional values fall back to sane defaults.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),
        Port:           must("APP_PORT"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   intOr("ACCESS_TOKEN_TTL_MIN", 30),
        BcryptCost:     intOr("BCRYPT_COST", 12),
        HoursIndexPath: stringOr("HOURS_INDEX_PATH", "data/hours_db.json"),
        StageTTLMin:    intOr("STAGE_TTL_MIN", 30),
        PaymentBaseURL: must("PAYMENT_BASE_URL"),
        PaymentAPIKey:  must("PAYMENT_API_KEY"),
        PaymentReturn:  must("PAYMENT_RETURN_URL"),
    }
}

// must retrieves the value of a required environment variable.  If
// the variable is unset or empty, the application logs a fatal error
// and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

func stringOr(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func intOr(key string, def int) int {
    s := os.Getenv(key)
    if s == "" {
        return def
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
