package internal

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"http_server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Security  SecurityConfig  `mapstructure:"security"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Draft     DraftConfig     `mapstructure:"draft"`
	Logs      LogsConfig      `mapstructure:"logs"`
	Census    CensusConfig    `mapstructure:"census"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	TrustedProxies    string        `mapstructure:"trusted_proxies"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SecurityConfig struct {
	TokenSecret  string        `mapstructure:"token_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
	BCryptCost   int           `mapstructure:"bcrypt_cost"`
	// how long a confirmed "user is active" answer is trusted before the
	// next authenticated request re-reads it
	ActiveCheckTTL time.Duration `mapstructure:"active_check_ttl"`
}

type SessionConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	MonitorInterval   time.Duration `mapstructure:"monitor_interval"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type RateLimitConfig struct {
	Backend       string        `mapstructure:"backend"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	Window        time.Duration `mapstructure:"window"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
	APIRate       float64       `mapstructure:"api_rate"`
	APIBurst      int           `mapstructure:"api_burst"`
}

type DraftConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LogsConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	PersistErrors bool          `mapstructure:"persist_errors"`
}

type CensusConfig struct {
	MaxPatientsPerRN int `mapstructure:"max_patients_per_rn"`
}

// WorkerConfig sizes the maintenance pool and spaces its jobs.
type WorkerConfig struct {
	MaxWorkers         int           `mapstructure:"max_workers"`
	JobQueueSize       int           `mapstructure:"job_queue_size"`
	DraftPurgeInterval time.Duration `mapstructure:"draft_purge_interval"`
	LogPurgeInterval   time.Duration `mapstructure:"log_purge_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ApplyDefaults fills zero values with the policy defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Security.TokenTTL == 0 {
		c.Security.TokenTTL = 24 * time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Security.ActiveCheckTTL == 0 {
		c.Security.ActiveCheckTTL = time.Minute
	}
	if c.Session.HeartbeatInterval == 0 {
		c.Session.HeartbeatInterval = 30 * time.Second
	}
	if c.Session.MonitorInterval == 0 {
		c.Session.MonitorInterval = 15 * time.Second
	}
	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = 12 * time.Hour
	}
	if c.Session.CleanupInterval == 0 {
		c.Session.CleanupInterval = 5 * time.Minute
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RateLimit.MaxAttempts == 0 {
		c.RateLimit.MaxAttempts = 5
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.BlockDuration == 0 {
		c.RateLimit.BlockDuration = 10 * time.Minute
	}
	if c.RateLimit.APIRate == 0 {
		c.RateLimit.APIRate = 20
	}
	if c.RateLimit.APIBurst == 0 {
		c.RateLimit.APIBurst = 40
	}
	if c.Draft.TTL == 0 {
		c.Draft.TTL = 7 * 24 * time.Hour
	}
	if c.Logs.Retention == 0 {
		c.Logs.Retention = 30 * 24 * time.Hour
	}
	if c.Census.MaxPatientsPerRN == 0 {
		c.Census.MaxPatientsPerRN = 8
	}
	if c.Worker.MaxWorkers == 0 {
		c.Worker.MaxWorkers = 2
	}
	if c.Worker.JobQueueSize == 0 {
		c.Worker.JobQueueSize = 16
	}
	if c.Worker.DraftPurgeInterval == 0 {
		c.Worker.DraftPurgeInterval = time.Hour
	}
	if c.Worker.LogPurgeInterval == 0 {
		c.Worker.LogPurgeInterval = 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// LoadConfigFromEnv builds the configuration for container deployments.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
			TrustedProxies:    getEnv("TRUSTED_PROXIES", ""),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Security: SecurityConfig{
			TokenSecret:    getEnv("TOKEN_SECRET", ""),
			TokenTTL:       getEnvAsDuration("TOKEN_TTL", 24*time.Hour),
			CookieSecure:   getEnvAsBool("COOKIE_SECURE", true),
			BCryptCost:     getEnvAsInt("BCRYPT_COST", 12),
			ActiveCheckTTL: getEnvAsDuration("ACTIVE_CHECK_TTL", time.Minute),
		},
		Session: SessionConfig{
			HeartbeatInterval: getEnvAsDuration("SESSION_HEARTBEAT_INTERVAL", 30*time.Second),
			MonitorInterval:   getEnvAsDuration("SESSION_MONITOR_INTERVAL", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SESSION_IDLE_TIMEOUT", 12*time.Hour),
			CleanupInterval:   getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Backend:       getEnv("RATE_LIMIT_BACKEND", "memory"),
			MaxAttempts:   getEnvAsInt("RATE_LIMIT_MAX_ATTEMPTS", 5),
			Window:        getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			BlockDuration: getEnvAsDuration("RATE_LIMIT_BLOCK", 10*time.Minute),
			APIRate:       float64(getEnvAsInt("API_RATE", 20)),
			APIBurst:      getEnvAsInt("API_BURST", 40),
		},
		Draft: DraftConfig{TTL: getEnvAsDuration("DRAFT_TTL", 7*24*time.Hour)},
		Logs: LogsConfig{
			Retention:     getEnvAsDuration("LOG_RETENTION", 30*24*time.Hour),
			PersistErrors: getEnvAsBool("LOG_PERSIST_ERRORS", true),
		},
		Census: CensusConfig{MaxPatientsPerRN: getEnvAsInt("MAX_PATIENTS_PER_RN", 8)},
		Worker: WorkerConfig{
			MaxWorkers:         getEnvAsInt("WORKER_MAX_WORKERS", 2),
			JobQueueSize:       getEnvAsInt("WORKER_JOB_QUEUE_SIZE", 16),
			DraftPurgeInterval: getEnvAsDuration("WORKER_DRAFT_PURGE_INTERVAL", time.Hour),
			LogPurgeInterval:   getEnvAsDuration("WORKER_LOG_PURGE_INTERVAL", 24*time.Hour),
		},
		Logging: LoggingConfig{Level: getEnv("LOG_LEVEL", "info"), Format: getEnv("LOG_FORMAT", "json")},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}
	if err := c.Session.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("session config: %v", err))
	}
	if err := c.RateLimit.Validate(c.Redis); err != nil {
		errs = append(errs, fmt.Sprintf("rate limit config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		for _, origin := range strings.Split(c.AllowedOrigins, ",") {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	for _, p := range c.TrustedProxyList() {
		if _, _, err := net.ParseCIDR(p); err == nil {
			continue
		}
		if net.ParseIP(p) == nil {
			return fmt.Errorf("invalid trusted proxy %s", p)
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

// TrustedProxyList splits trusted_proxies, a comma separated list of
// addresses or CIDR ranges of the load balancers in front of the server.
func (c *ServerConfig) TrustedProxyList() []string {
	var out []string
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.TokenSecret) < 32 {
		return errors.New("token_secret must be at least 32 characters")
	}
	if c.BCryptCost < 10 || c.BCryptCost > 15 {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *SessionConfig) Validate() error {
	if c.MonitorInterval <= 0 || c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat_interval and monitor_interval must be positive")
	}
	if c.IdleTimeout < c.HeartbeatInterval {
		return errors.New("idle_timeout must be >= heartbeat_interval")
	}
	return nil
}

func (c *RateLimitConfig) Validate(redis RedisConfig) error {
	switch c.Backend {
	case "memory":
	case "redis":
		if !redis.Enabled {
			return errors.New("redis backend requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.MaxAttempts < 1 {
		return errors.New("max_attempts must be at least 1")
	}
	return nil
}
