package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config application configuration
type Config struct {
	Port   string `yaml:"port"`
	DBPath string `yaml:"db_path"`

	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level"`

	Paths    Paths    `yaml:"paths"`
	Split    Split    `yaml:"split"`
	Training Training `yaml:"training"`
	Encoding Encoding `yaml:"encoding"`

	RateLimit RateLimit `yaml:"rate_limit"`
	Mirror    Mirror    `yaml:"mirror"`
}

// Paths locates the raw data and the artifact tree.
type Paths struct {
	RawData      string `yaml:"raw_data"`
	ArtifactRoot string `yaml:"artifact_root"`
	ProcessedDir string `yaml:"processed_dir"`
	ModelDir     string `yaml:"model_dir"`
}

// Current is the pointer file naming the promoted run.
func (p Paths) Current() string {
	return filepath.Join(p.ArtifactRoot, "current.json")
}

// RunsDir holds one directory per pipeline run triggered through the API.
func (p Paths) RunsDir() string {
	return filepath.Join(p.ArtifactRoot, "runs")
}

// Split train/test split parameters
type Split struct {
	TestSize float64 `yaml:"test_size"`
	Seed     uint64  `yaml:"seed"`
}

// Training classifier hyper-parameters
type Training struct {
	MaxIter   int     `yaml:"max_iter"`
	Tolerance float64 `yaml:"tolerance"`
	C         float64 `yaml:"c"`
}

// Encoding fixes the category vocabularies. An empty list means the
// categories are learned from the data in sorted order.
type Encoding struct {
	OperationModes   []string `yaml:"operation_modes"`
	EfficiencyLabels []string `yaml:"efficiency_labels"`
}

// RateLimit limits prediction requests per client IP
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Mirror is the optional object storage copy of promoted artifacts.
// Disabled when Endpoint is empty.
type Mirror struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether a mirror endpoint is configured.
func (m Mirror) Enabled() bool {
	return m.Endpoint != ""
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:     ":5000",
		DBPath:   "./artifacts/runs.db",
		LogDir:   "./logs",
		LogLevel: "info",
		Paths: Paths{
			RawData:      "artifacts/raw/data.csv",
			ArtifactRoot: "artifacts",
			ProcessedDir: "artifacts/processed",
			ModelDir:     "artifacts/models",
		},
		Split: Split{
			TestSize: 0.2,
			Seed:     42,
		},
		Training: Training{
			MaxIter:   1000,
			Tolerance: 1e-4,
			C:         1.0,
		},
		Encoding: Encoding{
			OperationModes:   []string{"Idle", "Active", "Maintenance"},
			EfficiencyLabels: []string{"Low", "Medium", "High"},
		},
		RateLimit: RateLimit{
			Requests: 120,
			Window:   time.Minute,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (or path when given), then a .env file, then environment
// variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	// .env is optional; real environment variables still win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("PORT", &c.Port)
	setString("DB_PATH", &c.DBPath)
	setString("LOG_DIR", &c.LogDir)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("RAW_DATA_PATH", &c.Paths.RawData)
	setString("ARTIFACT_ROOT", &c.Paths.ArtifactRoot)
	setString("PROCESSED_DIR", &c.Paths.ProcessedDir)
	setString("MODEL_DIR", &c.Paths.ModelDir)
	setString("MIRROR_ENDPOINT", &c.Mirror.Endpoint)
	setString("MIRROR_BUCKET", &c.Mirror.Bucket)
	setString("MIRROR_PREFIX", &c.Mirror.Prefix)
	setString("MIRROR_ACCESS_KEY", &c.Mirror.AccessKey)
	setString("MIRROR_SECRET_KEY", &c.Mirror.SecretKey)

	if v := os.Getenv("SPLIT_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SPLIT_SEED value: %w", err)
		}
		c.Split.Seed = seed
	}
	if v := os.Getenv("TRAIN_MAX_ITER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TRAIN_MAX_ITER value: %w", err)
		}
		c.Training.MaxIter = n
	}
	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_REQUESTS value: %w", err)
		}
		c.RateLimit.Requests = n
	}
	if v := os.Getenv("MIRROR_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid MIRROR_USE_SSL value: %w", err)
		}
		c.Mirror.UseSSL = b
	}
	if v := os.Getenv("OPERATION_MODES"); v != "" {
		c.Encoding.OperationModes = splitList(v)
	}
	if v := os.Getenv("EFFICIENCY_LABELS"); v != "" {
		c.Encoding.EfficiencyLabels = splitList(v)
	}

	if !strings.HasPrefix(c.Port, ":") && !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return fmt.Errorf("split.test_size must be in (0, 1), got %v", c.Split.TestSize)
	}
	if c.Training.MaxIter <= 0 {
		return fmt.Errorf("training.max_iter must be positive, got %d", c.Training.MaxIter)
	}
	if c.Training.C <= 0 {
		return fmt.Errorf("training.c must be positive, got %v", c.Training.C)
	}
	if c.Training.Tolerance <= 0 {
		return fmt.Errorf("training.tolerance must be positive, got %v", c.Training.Tolerance)
	}
	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("rate_limit.requests must not be negative, got %d", c.RateLimit.Requests)
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %v", c.RateLimit.Window)
	}
	if c.Mirror.Enabled() && c.Mirror.Bucket == "" {
		return errors.New("mirror.bucket is required when mirror.endpoint is set")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
