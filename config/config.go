package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	LogMode string

	// Historical table
	HistorySource    string // "file" or "postgres"
	HistoryPath      string
	HistorySheet     string
	HistoryHeaderRow int
	DomainsPath      string
	FlattenPolicy    string // "lenient" or "strict"

	// Model
	ModelPath      string
	SchemaKind     string // "system" or "project"
	ForestTrees    int
	ForestSeed     int64
	ForestMaxDepth int
	ForestMinLeaf  int
	ForestWorkers  int
	TestFraction   float64

	// Versioned model snapshots (optional)
	SnapshotDriver string
	SnapshotDSN    string
	SnapshotKey    string

	// Historical projects in PostgreSQL (optional)
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Order portal
	APPlusURL      string
	ChromeBin      string
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int

	HTTPAddr      string
	CSVOutputPath string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		LogMode: getEnv("LOG_MODE", "development"),

		HistorySource:    strings.ToLower(getEnv("HISTORY_SOURCE", "file")),
		HistoryPath:      getEnv("HISTORY_PATH", "./data/KI_Zeitprognose_Vorlage_Projekt-W.xlsx"),
		HistorySheet:     getEnv("HISTORY_SHEET", ""),
		HistoryHeaderRow: getEnvInt("HISTORY_HEADER_ROW", 2),
		DomainsPath:      getEnv("DOMAINS_PATH", ""),
		FlattenPolicy:    strings.ToLower(getEnv("FLATTEN_POLICY", "lenient")),

		ModelPath:      getEnv("MODEL_PATH", "./ki_zeitprognose_model.json"),
		SchemaKind:     strings.ToLower(getEnv("SCHEMA_KIND", "system")),
		ForestTrees:    getEnvInt("FOREST_TREES", 100),
		ForestSeed:     int64(getEnvInt("FOREST_SEED", 42)),
		ForestMaxDepth: getEnvInt("FOREST_MAX_DEPTH", 0),
		ForestMinLeaf:  getEnvInt("FOREST_MIN_LEAF", 1),
		ForestWorkers:  getEnvInt("FOREST_WORKERS", 4),
		TestFraction:   getEnvFloat("TEST_FRACTION", 0.2),

		SnapshotDriver: strings.ToLower(getEnv("SNAPSHOT_DRIVER", "sqlite")),
		SnapshotDSN:    getEnv("SNAPSHOT_DSN", ""),
		SnapshotKey:    getEnv("SNAPSHOT_KEY", "zeitprognose"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "zeitprognose"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "zeitprognose"),
		PostgresDB:       getEnv("POSTGRES_DB", "zeitprognose"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		APPlusURL:      getEnv("APPLUS_URL", ""),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),

		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/estimate.csv"),
	}
}

// DSN returns the PostgreSQL connection string for the history store.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// StrictFlatten reports whether rows must have every declared system complete.
func (c *Config) StrictFlatten() bool {
	return c.FlattenPolicy == "strict"
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err == nil {
			return f
		}
	}
	return fallback
}
