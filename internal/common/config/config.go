// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Proposal   ProposalConfig   `mapstructure:"proposal"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Branding   BrandingConfig   `mapstructure:"branding"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // milliseconds
}

// StoreConfig selects the durable answer store backend.
type StoreConfig struct {
	Backend   string `mapstructure:"backend"` // redis | postgres
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// --- External services ---

// BackendConfig holds the lead/booking API settings.
type BackendConfig struct {
	BaseURL               string `mapstructure:"base_url"`
	BookingsPath          string `mapstructure:"bookings_path"`
	CreateLeadPath        string `mapstructure:"create_lead_path"`
	BookCallPath          string `mapstructure:"book_call_path"`
	ConfirmationEmailPath string `mapstructure:"confirmation_email_path"`
	BookingsPerPage       int    `mapstructure:"bookings_per_page"`
	MaxBookingPages       int    `mapstructure:"max_booking_pages"`
	Timeout               int    `mapstructure:"timeout"` // milliseconds
	RetryCount            int    `mapstructure:"retry_count"`
	CompanyID             string `mapstructure:"company_id"`
	CreditUnion           string `mapstructure:"credit_union"`
}

// ProposalConfig holds the proposal-generation service settings.
type ProposalConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Path    string `mapstructure:"path"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// SchedulingConfig holds the call slot grid rules.
type SchedulingConfig struct {
	Timezone          string         `mapstructure:"timezone"`
	LeadTimeMinutes   int            `mapstructure:"lead_time_minutes"`
	SlotStepMinutes   int            `mapstructure:"slot_step_minutes"`
	SearchHorizonDays int            `mapstructure:"search_horizon_days"`
	Windows           []WindowConfig `mapstructure:"windows"`
}

// WindowConfig is one daily window, "HH:MM" inclusive on both ends.
type WindowConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// BrandingConfig is the static white-label lookup.
type BrandingConfig struct {
	Name                   string            `mapstructure:"name" json:"name"`
	LogoURL                string            `mapstructure:"logo_url" json:"logoUrl"`
	ContactEmail           string            `mapstructure:"contact_email" json:"contactEmail"`
	ContactPhone           string            `mapstructure:"contact_phone" json:"contactPhone"`
	Socials                map[string]string `mapstructure:"socials" json:"socials,omitempty"`
	AddressTemplateVariant string            `mapstructure:"address_template_variant" json:"addressTemplateVariant"`
	MapsAPIKey             string            `mapstructure:"maps_api_key" json:"mapsApiKey"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
