package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Disbursement  DisbursementConfig  `mapstructure:"disbursement"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
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

// SecurityConfig covers the service token used by operator-facing
// endpoints (disbursement trigger, refunds). Webhook deliveries are
// authenticated by their gateway signature instead.
type SecurityConfig struct {
	ServiceTokenSecret   string        `mapstructure:"service_token_secret"`
	ServiceTokenIssuer   string        `mapstructure:"service_token_issuer"`
	ServiceTokenDuration time.Duration `mapstructure:"service_token_duration"`
}

// GatewayConfig holds the inbound payment gateway credentials. The
// passphrase participates in notification signature verification and
// must match the value configured on the gateway's merchant dashboard.
type GatewayConfig struct {
	Name            string        `mapstructure:"name"`
	MerchantID      string        `mapstructure:"merchant_id"`
	MerchantKey     string        `mapstructure:"merchant_key"`
	Passphrase      string        `mapstructure:"passphrase"`
	HandlerTimeout  time.Duration `mapstructure:"handler_timeout"`
	AmountTolerance string        `mapstructure:"amount_tolerance"`
}

type DisbursementConfig struct {
	MaxRetries     int               `mapstructure:"max_retries"`
	AdapterTimeout time.Duration     `mapstructure:"adapter_timeout"`
	APIKey         string            `mapstructure:"api_key"`
	ProcessorURLs  map[string]string `mapstructure:"processor_urls"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- ENV LOADING -----------------

// LoadConfigFromEnv builds a Config entirely from environment variables,
// used for container deployments where no config.yml is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("SERVER_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		Security: SecurityConfig{
			ServiceTokenSecret:   getEnv("SECURITY_SERVICE_TOKEN_SECRET", ""),
			ServiceTokenIssuer:   getEnv("SECURITY_SERVICE_TOKEN_ISSUER", "payments-engine"),
			ServiceTokenDuration: getEnvAsDuration("SECURITY_SERVICE_TOKEN_DURATION", time.Hour),
		},
		Gateway: GatewayConfig{
			Name:            getEnv("GATEWAY_NAME", "payfast"),
			MerchantID:      getEnv("GATEWAY_MERCHANT_ID", ""),
			MerchantKey:     getEnv("GATEWAY_MERCHANT_KEY", ""),
			Passphrase:      getEnv("GATEWAY_PASSPHRASE", ""),
			HandlerTimeout:  getEnvAsDuration("GATEWAY_HANDLER_TIMEOUT", 10*time.Second),
			AmountTolerance: getEnv("GATEWAY_AMOUNT_TOLERANCE", "0.01"),
		},
		Disbursement: DisbursementConfig{
			MaxRetries:     getEnvAsInt("DISBURSEMENT_MAX_RETRIES", 3),
			AdapterTimeout: getEnvAsDuration("DISBURSEMENT_ADAPTER_TIMEOUT", 30*time.Second),
			APIKey:         getEnv("DISBURSEMENT_API_KEY", ""),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

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

	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}

	if err := c.Disbursement.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("disbursement config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if c.ServiceTokenSecret == "" {
		return errors.New("service_token_secret is required")
	}
	if len(c.ServiceTokenSecret) < 32 {
		return errors.New("service_token_secret must be at least 32 characters")
	}
	return nil
}

func (c *GatewayConfig) Validate() error {
	if c.MerchantID == "" {
		return errors.New("merchant_id is required")
	}
	if c.MerchantKey == "" {
		return errors.New("merchant_key is required")
	}
	return nil
}

func (c *DisbursementConfig) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max_retries cannot be negative")
	}
	for method, raw := range c.ProcessorURLs {
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("invalid processor url for method %s: %w", method, err)
		}
	}
	return nil
}
