package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/ssomap/pkg/claims"
	"github.com/platinummonkey/ssomap/pkg/enrollment"
	"github.com/platinummonkey/ssomap/pkg/middleware"
	"github.com/platinummonkey/ssomap/pkg/notify"
	"github.com/platinummonkey/ssomap/pkg/observability"
	"github.com/platinummonkey/ssomap/pkg/roles"
	"github.com/platinummonkey/ssomap/pkg/sso"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultRolesTokenPath is where Keycloak-style providers put client roles
	DefaultRolesTokenPath = "/resource_access/" + claims.ClientIDPlaceholder + "/roles"
	// DefaultOrganizationsTokenPath is the standard groups claim
	DefaultOrganizationsTokenPath = "/groups"

	// ConfigFileEnv names an optional YAML file loaded before the environment
	ConfigFileEnv = "SSOMAP_CONFIG_FILE"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	SSO           SSOConfig           `yaml:"sso"`
	SMTP          SMTPConfig          `yaml:"smtp"`
	Invite        InviteConfig        `yaml:"invite"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig selects the organization store backend
type DatabaseConfig struct {
	Driver       string        `yaml:"driver"` // "postgres" | "sqlite3"
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnMaxLife  time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig enables the shared login cache and rate limiter when URL is set
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// Enabled reports whether a Redis server is configured
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// SSOConfig holds the provider and claim mapping settings
type SSOConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Authority    string   `yaml:"authority"`
	CallbackURL  string   `yaml:"callback_url"`
	Scopes       []string `yaml:"scopes"`

	RolesEnabled       bool   `yaml:"roles_enabled"`
	RolesDefaultToUser bool   `yaml:"roles_default_to_user"`
	RolesTokenPath     string `yaml:"roles_token_path"`

	OrganizationsInvite    bool   `yaml:"organizations_invite"`
	OrganizationsTokenPath string `yaml:"organizations_token_path"`

	Attributes    sso.AttributeMap `yaml:"attributes"`
	LoginCacheTTL time.Duration    `yaml:"login_cache_ttl"`
	OrgCacheTTL   time.Duration    `yaml:"org_cache_ttl"`
}

// SMTPConfig holds outgoing mail settings. Mail is disabled without a host.
type SMTPConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	From               string        `yaml:"from"`
	TLSMode            string        `yaml:"tls_mode"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

// InviteConfig holds the invitation link settings
type InviteConfig struct {
	Secret      string        `yaml:"secret"`
	BaseURL     string        `yaml:"base_url"`
	TTL         time.Duration `yaml:"ttl"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// RateLimitConfig limits login callbacks per client address. Zero
// RequestsPerMinute disables it.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`

	// TrustedProxies are the addresses or CIDRs allowed to set
	// X-Forwarded-For. Empty keys every request on its peer address.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: observability.DefaultShutdownTimeout,
			MaxBodyBytes:    1 << 20,
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
			ConnMaxLife:  30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize: 10,
		},
		SSO: SSOConfig{
			RolesTokenPath:         DefaultRolesTokenPath,
			OrganizationsTokenPath: DefaultOrganizationsTokenPath,
			Attributes:             sso.DefaultAttributeMap,
			LoginCacheTTL:          sso.DefaultLoginCacheTTL,
			OrgCacheTTL:            time.Minute,
		},
		SMTP: SMTPConfig{
			Port:    587,
			TLSMode: "auto",
			Timeout: 10 * time.Second,
		},
		Invite: InviteConfig{
			TTL:         enrollment.DefaultInviteTTL,
			TaskTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			Burst:             10,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    observability.DefaultServiceName,
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by SSOMAP_CONFIG_FILE and then environment variables, and validates it
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("SSOMAP_HOST", s.Host)
	s.Port = getEnv("SSOMAP_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("SSOMAP_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("SSOMAP_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("SSOMAP_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("SSOMAP_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("SSOMAP_MAX_BODY_BYTES", s.MaxBodyBytes)

	d := &c.Database
	d.Driver = getEnv("SSOMAP_DB_DRIVER", d.Driver)
	d.DSN = getEnv("SSOMAP_DB_DSN", d.DSN)
	d.MaxOpenConns = getEnvInt("SSOMAP_DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("SSOMAP_DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLife = getEnvDuration("SSOMAP_DB_CONN_MAX_LIFETIME", d.ConnMaxLife)

	r := &c.Redis
	r.URL = getEnv("SSOMAP_REDIS_URL", r.URL)
	r.Password = getEnv("SSOMAP_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("SSOMAP_REDIS_DB", r.DB)
	r.PoolSize = getEnvInt("SSOMAP_REDIS_POOL_SIZE", r.PoolSize)

	o := &c.SSO
	o.ClientID = getEnv("SSO_CLIENT_ID", o.ClientID)
	o.ClientSecret = getEnv("SSO_CLIENT_SECRET", o.ClientSecret)
	o.Authority = getEnv("SSO_AUTHORITY", o.Authority)
	o.CallbackURL = getEnv("SSO_CALLBACK_URL", o.CallbackURL)
	if scopes := os.Getenv("SSO_SCOPES"); scopes != "" {
		o.Scopes = splitList(scopes)
	}
	o.RolesEnabled = getEnvBool("SSO_ROLES_ENABLED", o.RolesEnabled)
	o.RolesDefaultToUser = getEnvBool("SSO_ROLES_DEFAULT_TO_USER", o.RolesDefaultToUser)
	o.RolesTokenPath = getEnv("SSO_ROLES_TOKEN_PATH", o.RolesTokenPath)
	o.OrganizationsInvite = getEnvBool("SSO_ORGANIZATIONS_INVITE", o.OrganizationsInvite)
	o.OrganizationsTokenPath = getEnv("SSO_ORGANIZATIONS_TOKEN_PATH", o.OrganizationsTokenPath)
	o.LoginCacheTTL = getEnvDuration("SSO_LOGIN_CACHE_TTL", o.LoginCacheTTL)
	o.OrgCacheTTL = getEnvDuration("SSO_ORG_CACHE_TTL", o.OrgCacheTTL)

	m := &c.SMTP
	m.Host = getEnv("SSOMAP_SMTP_HOST", m.Host)
	m.Port = getEnvInt("SSOMAP_SMTP_PORT", m.Port)
	m.Username = getEnv("SSOMAP_SMTP_USERNAME", m.Username)
	m.Password = getEnv("SSOMAP_SMTP_PASSWORD", m.Password)
	m.From = getEnv("SSOMAP_SMTP_FROM", m.From)
	m.TLSMode = getEnv("SSOMAP_SMTP_TLS_MODE", m.TLSMode)
	m.InsecureSkipVerify = getEnvBool("SSOMAP_SMTP_INSECURE_SKIP_VERIFY", m.InsecureSkipVerify)
	m.Timeout = getEnvDuration("SSOMAP_SMTP_TIMEOUT", m.Timeout)

	i := &c.Invite
	i.Secret = getEnv("SSOMAP_INVITE_SECRET", i.Secret)
	i.BaseURL = getEnv("SSOMAP_INVITE_BASE_URL", i.BaseURL)
	i.TTL = getEnvDuration("SSOMAP_INVITE_TTL", i.TTL)
	i.TaskTimeout = getEnvDuration("SSOMAP_NOTIFY_TIMEOUT", i.TaskTimeout)

	c.RateLimit.RequestsPerMinute = getEnvInt("SSOMAP_LOGIN_RATE_LIMIT", c.RateLimit.RequestsPerMinute)
	c.RateLimit.Burst = getEnvInt("SSOMAP_LOGIN_RATE_BURST", c.RateLimit.Burst)
	if proxies := os.Getenv("SSOMAP_TRUSTED_PROXIES"); proxies != "" {
		c.RateLimit.TrustedProxies = splitList(proxies)
	}

	ob := &c.Observability
	ob.LogLevel = getEnv("SSOMAP_LOG_LEVEL", ob.LogLevel)
	ob.MetricsEnabled = getEnvBool("SSOMAP_METRICS_ENABLED", ob.MetricsEnabled)
	ob.OTelEnabled = getEnvBool("SSOMAP_OTEL_ENABLED", ob.OTelEnabled)
	ob.OTelEndpoint = getEnv("SSOMAP_OTEL_ENDPOINT", ob.OTelEndpoint)
	ob.OTelServiceName = getEnv("SSOMAP_OTEL_SERVICE_NAME", ob.OTelServiceName)
	ob.OTelServiceVersion = getEnv("SSOMAP_OTEL_SERVICE_VERSION", ob.OTelServiceVersion)
	ob.OTelInsecure = getEnvBool("SSOMAP_OTEL_INSECURE", ob.OTelInsecure)
	ob.OTelSampleRatio = getEnvFloat("SSOMAP_OTEL_SAMPLE_RATIO", ob.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if err := c.SSOSettings().Validate(); err != nil {
		return fmt.Errorf("sso: %w", err)
	}

	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return fmt.Errorf("smtp from address is required when smtp host is set")
	}
	if c.SMTP.Host != "" && c.SSO.OrganizationsInvite {
		if c.Invite.Secret == "" || c.Invite.BaseURL == "" {
			return fmt.Errorf("invite secret and base URL are required to send invitations")
		}
	}

	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	if _, err := middleware.ParseTrustedProxies(c.RateLimit.TrustedProxies); err != nil {
		return err
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// RolesConfig builds the role resolver configuration
func (c *Config) RolesConfig() roles.Config {
	return roles.Config{
		Enabled:       c.SSO.RolesEnabled,
		DefaultToUser: c.SSO.RolesDefaultToUser,
		TokenPath:     claims.ParsePath(c.SSO.RolesTokenPath, c.SSO.ClientID),
	}
}

// SSOSettings builds the login pipeline settings
func (c *Config) SSOSettings() sso.Settings {
	return sso.Settings{
		ClientID:     c.SSO.ClientID,
		ClientSecret: c.SSO.ClientSecret,
		Authority:    c.SSO.Authority,
		CallbackURL:  c.SSO.CallbackURL,
		Scopes:       c.SSO.Scopes,
		Attributes:   c.SSO.Attributes,
		Roles:        c.RolesConfig(),
		Organizations: sso.OrganizationSettings{
			InviteEnabled: c.SSO.OrganizationsInvite,
			TokenPath:     claims.ParsePath(c.SSO.OrganizationsTokenPath, c.SSO.ClientID),
		},
		LoginCacheTTL: c.SSO.LoginCacheTTL,
	}
}

// NotifySMTPConfig builds the mail sender configuration
func (c *Config) NotifySMTPConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:               c.SMTP.Host,
		Port:               c.SMTP.Port,
		Username:           c.SMTP.Username,
		Password:           c.SMTP.Password,
		From:               c.SMTP.From,
		TLSMode:            c.SMTP.TLSMode,
		InsecureSkipVerify: c.SMTP.InsecureSkipVerify,
		Timeout:            c.SMTP.Timeout,
	}
}

// LoginRateLimit builds the login rate limiter configuration, or nil when
// rate limiting is disabled
func (c *Config) LoginRateLimit() *middleware.RateLimitConfig {
	if c.RateLimit.RequestsPerMinute == 0 {
		return nil
	}
	return &middleware.RateLimitConfig{
		RequestsPerWindow: c.RateLimit.RequestsPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         c.RateLimit.Burst,
	}
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.Observability.LogLevel)
}

// OTelConfig builds the OpenTelemetry configuration
func (c *Config) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
		SampleRatio:    c.Observability.OTelSampleRatio,
	}
}

// splitList splits a comma and/or space separated list
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
