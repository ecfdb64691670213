package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses duration-valued variables
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Payment settings cover the counterparty
// bank account shown to guests, the settlement oracle endpoint, and the
// timing of the confirmation workflow.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	BankName       string        // receiving bank shown on transfer requests
	BankAccount    string        // receiving account number
	BankHolder     string        // name on the receiving account
	OracleURL      string        // settlement oracle base URL
	OracleKey      string        // settlement oracle API key (optional)
	IntentTTL      time.Duration // how long a payment intent stays payable
	PollInterval   time.Duration // settlement polling cadence per intent
	TaxRatePercent int           // tax applied to room subtotals, whole percent
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
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
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		BankName:       must("BANK_NAME"),
		BankAccount:    must("BANK_ACCOUNT"),
		BankHolder:     must("BANK_HOLDER"),
		OracleURL:      must("SETTLEMENT_ORACLE_URL"),
		OracleKey:      os.Getenv("SETTLEMENT_ORACLE_KEY"), // empty allowed
		IntentTTL:      mustDur("PAYMENT_INTENT_TTL"),
		PollInterval:   mustDur("PAYMENT_POLL_INTERVAL"),
		TaxRatePercent: mustInt("TAX_RATE_PERCENT"),
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

// mustDur is like must() but parses the value as a time.Duration
// (e.g. "30m", "15s").
func mustDur(key string) time.Duration {
	s := must(key)
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}
