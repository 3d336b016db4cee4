package config // package config loads application configuration from environment variables

import (
	"os"      // os provides access to environment variables
	"strings" // strings normalizes the environment name

	"github.com/joho/godotenv"  // godotenv loads a local .env file in development
	"github.com/rs/zerolog/log" // log reports configuration errors and halts execution
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Sub-configurations for caching, rate limiting and
// events live in their own files and are loaded separately.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	LogLevel       string // zerolog level name (debug, info, warn, error)
	MigrateOnStart bool   // apply pending schema migrations before serving
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when present;
// values already set in the process environment win.  Required variables are
// enforced by must() and missing values cause the program to exit.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:            must("APP_ENV"),                    // environment (dev/test/prod)
		Port:           must("APP_PORT"),                   // port to bind the HTTP server
		DBUser:         must("DB_USER"),                    // database user
		DBPass:         os.Getenv("DB_PASS"),               // database password (empty allowed)
		DBHost:         must("DB_HOST"),                    // database host
		DBPort:         must("DB_PORT"),                    // database port
		DBName:         must("DB_NAME"),                    // database name
		LogLevel:       getenv("LOG_LEVEL", "info"),        // log verbosity
		MigrateOnStart: envBool("MIGRATE_ON_START", false), // run migrations on boot
	}
}

// LoadLogging is Load for commands that never touch the database: only the
// environment name and log level are read, and nothing is required.
func LoadLogging() Config {
	_ = godotenv.Load()
	return Config{Env: getenv("APP_ENV", "dev"), LogLevel: getenv("LOG_LEVEL", "info")}
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Str("key", key).Msg("missing required env var")
	}
	return v
}
