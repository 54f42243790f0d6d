// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// ENV override like BACKEND_BASE_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // env overlay is optional

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that are usually only present in the environment
func overrideEmptyConfig(cfg *Config) {
	if cfg.Proposal.APIKey == "" {
		if val := os.Getenv("PROPOSAL_API_KEY"); val != "" {
			cfg.Proposal.APIKey = val
		}
	}
	if cfg.Branding.MapsAPIKey == "" {
		if val := os.Getenv("MAPS_API_KEY"); val != "" {
			cfg.Branding.MapsAPIKey = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "solar-funnel"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "redis"
	}
	if cfg.Store.KeyPrefix == "" {
		cfg.Store.KeyPrefix = "funnel"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.PoolSize == 0 {
		cfg.Database.Redis.PoolSize = 10
	}

	if cfg.Backend.BookingsPath == "" {
		cfg.Backend.BookingsPath = "/calls"
	}
	if cfg.Backend.CreateLeadPath == "" {
		cfg.Backend.CreateLeadPath = "/leads"
	}
	if cfg.Backend.BookCallPath == "" {
		cfg.Backend.BookCallPath = "/calls/book"
	}
	if cfg.Backend.ConfirmationEmailPath == "" {
		cfg.Backend.ConfirmationEmailPath = "/send-confirmation-email"
	}
	if cfg.Backend.BookingsPerPage == 0 {
		cfg.Backend.BookingsPerPage = 50
	}
	if cfg.Backend.MaxBookingPages == 0 {
		cfg.Backend.MaxBookingPages = 100
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 15000
	}

	if cfg.Proposal.Path == "" {
		cfg.Proposal.Path = "/proposal"
	}
	if cfg.Proposal.Timeout == 0 {
		cfg.Proposal.Timeout = 60000
	}

	if cfg.Scheduling.Timezone == "" {
		cfg.Scheduling.Timezone = "Europe/Dublin"
	}
	if cfg.Scheduling.LeadTimeMinutes == 0 {
		cfg.Scheduling.LeadTimeMinutes = 240
	}
	if cfg.Scheduling.SlotStepMinutes == 0 {
		cfg.Scheduling.SlotStepMinutes = 15
	}
	if cfg.Scheduling.SearchHorizonDays == 0 {
		cfg.Scheduling.SearchHorizonDays = 180
	}
	if len(cfg.Scheduling.Windows) == 0 {
		cfg.Scheduling.Windows = []WindowConfig{
			{Start: "09:00", End: "11:00"},
			{Start: "16:00", End: "18:00"},
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if cfg.Proposal.BaseURL == "" {
		return fmt.Errorf("proposal.base_url is required")
	}

	switch cfg.Store.Backend {
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required")
		}
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	default:
		return fmt.Errorf("store.backend must be redis or postgres, got %q", cfg.Store.Backend)
	}

	if _, err := time.LoadLocation(cfg.Scheduling.Timezone); err != nil {
		return fmt.Errorf("scheduling.timezone: %w", err)
	}
	for i, w := range cfg.Scheduling.Windows {
		start, err := ParseClock(w.Start)
		if err != nil {
			return fmt.Errorf("scheduling.windows[%d].start: %w", i, err)
		}
		end, err := ParseClock(w.End)
		if err != nil {
			return fmt.Errorf("scheduling.windows[%d].end: %w", i, err)
		}
		if end < start {
			return fmt.Errorf("scheduling.windows[%d] ends before it starts", i)
		}
	}

	return nil
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// Location returns the scheduling time zone; validateConfig guarantees it loads.
func (s SchedulingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
