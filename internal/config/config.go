package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values. Each field corresponds to an
// environment variable. Durations are expressed in the unit the variable name
// states (minutes) and monetary tolerances in cents, matching how the values
// are used throughout the application.
type Config struct {
    Env                    string // application environment (e.g. "dev", "prod")
    Port                   string // HTTP port to listen on
    DBUser                 string // database username
    DBPass                 string // database password (optional)
    DBHost                 string // database host address
    DBPort                 string // database port number
    DBName                 string // database name
    JWTSecret              string // secret used to sign cashier/admin JWTs
    AccessTTLMin           int    // access token time-to-live in minutes
    BcryptCost             int    // bcrypt cost for PIN hashing
    AgentAPIKey            string // shared secret expected in the X-Agent-Key header
    LockTTLMin             int    // register lock expiry after inactivity, in minutes
    AmountToleranceCents   int64  // max drift allowed between client and server cart totals
    VarianceToleranceCents int64  // cash variance above which a close is flagged for review
    HeartbeatFreshMin      int    // heartbeat freshness window for "online" agents, in minutes
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values cause
// the program to exit with a fatal log message. Tolerances and TTLs have
// defaults so a minimal deployment only needs credentials and secrets.
func Load() Config {
    return Config{
        Env:                    must("APP_ENV"),
        Port:                   must("APP_PORT"),
        DBUser:                 must("DB_USER"),
        DBPass:                 os.Getenv("DB_PASS"), // empty allowed
        DBHost:                 must("DB_HOST"),
        DBPort:                 must("DB_PORT"),
        DBName:                 must("DB_NAME"),
        JWTSecret:              must("JWT_SECRET"),
        AccessTTLMin:           mustInt("ACCESS_TOKEN_TTL_MIN"),
        BcryptCost:             mustInt("BCRYPT_COST"),
        AgentAPIKey:            must("AGENT_API_KEY"),
        LockTTLMin:             intOr("LOCK_TTL_MIN", 30),
        AmountToleranceCents:   int64(intOr("AMOUNT_TOLERANCE_CENTS", 200)),
        VarianceToleranceCents: int64(intOr("CASH_VARIANCE_TOLERANCE_CENTS", 1000)),
        HeartbeatFreshMin:      intOr("HEARTBEAT_FRESH_MIN", 5),
    }
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

// intOr reads an optional integer variable, falling back to def when the
// variable is unset. A malformed value is fatal rather than silently ignored.
func intOr(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, v)
    }
    return n
}
