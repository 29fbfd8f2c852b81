package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Storage backends.
const (
	BackendFilesystem = "filesystem"
	BackendPostgres   = "postgres"
	BackendMySQL      = "mysql"
)

type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	MySQL      MySQLConfig      `yaml:"mysql"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Matching   MatchingConfig   `yaml:"matching"`
	Enrollment EnrollmentConfig `yaml:"enrollment"`
	Web        WebConfig        `yaml:"web"`
}

// StorageConfig selects where enrollment images and attendance records live.
// The postgres backend keeps both in PostgreSQL; the mysql backend keeps
// attendance in MySQL/MariaDB and enrollment images in EnrollmentDir.
type StorageConfig struct {
	Backend        string `yaml:"backend"`
	EnrollmentDir  string `yaml:"enrollment_dir"`
	AttendanceFile string `yaml:"attendance_file"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`            // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"` // e.g. attendance:secret@tcp(mariadb:3306)/attendance
}

type EmbeddingConfig struct {
	URL    string `yaml:"url"`
	Metric string `yaml:"metric"` // euclidean or cosine
	Cache  bool   `yaml:"cache"`  // cache detections in PostgreSQL
}

type MatchingConfig struct {
	Threshold float64 `yaml:"threshold"`
	NearestK  int     `yaml:"nearest_k"`
}

type EnrollmentConfig struct {
	MaxImageSize int `yaml:"max_image_size"` // longer side in pixels, 0 keeps originals
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// envString returns the env var or defaultVal when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envList splits a comma-separated env var, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func defaults() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return cfg
}

func Load() *Config {
	d := defaults()

	return &Config{
		Storage: StorageConfig{
			Backend:        strings.ToLower(envString("STORAGE_BACKEND", d.Storage.Backend)),
			EnrollmentDir:  envString("ENROLLMENT_DIR", d.Storage.EnrollmentDir),
			AttendanceFile: envString("ATTENDANCE_FILE", d.Storage.AttendanceFile),
		},
		Database: DatabaseConfig{
			URL:          envString("DATABASE_URL", d.Database.URL),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		MySQL: MySQLConfig{
			DSN: envString("MYSQL_DSN", d.MySQL.DSN),
		},
		Embedding: EmbeddingConfig{
			URL:    envString("EMBEDDING_URL", d.Embedding.URL),
			Metric: strings.ToLower(envString("EMBEDDING_METRIC", d.Embedding.Metric)),
			Cache:  envBool("EMBEDDING_CACHE", d.Embedding.Cache),
		},
		Matching: MatchingConfig{
			Threshold: envFloat("MATCH_THRESHOLD", d.Matching.Threshold),
			NearestK:  envInt("MATCH_NEAREST_K", d.Matching.NearestK),
		},
		Enrollment: EnrollmentConfig{
			MaxImageSize: envInt("ENROLLMENT_MAX_IMAGE_SIZE", d.Enrollment.MaxImageSize),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
		},
	}
}
