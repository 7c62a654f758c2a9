package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Security    SecurityConfig    `json:"security"`
	Logging     LoggingConfig     `json:"logging"`
	Forecasting ForecastingConfig `json:"forecasting"`
	Cache       CacheConfig       `json:"cache"`
	AWS         AWSConfig         `json:"aws"`
	Email       EmailConfig       `json:"email"`
	Reports     ReportsConfig     `json:"reports"`
	External    ExternalConfig    `json:"external"`
	RateLimit   RateLimitConfig   `json:"rate_limit"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// SecurityConfig holds token signing settings
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// ForecastingConfig controls the model artifact and forecast defaults
type ForecastingConfig struct {
	ModelPath     string  `json:"model_path"`
	ModelS3Key    string  `json:"model_s3_key"`
	DefaultYears  int     `json:"default_years"`
	DefaultTarget float64 `json:"default_target"`
}

// CacheConfig configures the dashboard cache. Redis is used when RedisAddr is set.
type CacheConfig struct {
	TTL           time.Duration `json:"ttl"`
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"redis_password"`
	RedisDB       int           `json:"redis_db"`
}

// AWSConfig holds the region, optional static credentials and resource names
type AWSConfig struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Endpoint        string `json:"endpoint"`
	ReportBucket    string `json:"report_bucket"`
	SESSender       string `json:"ses_sender"`
	SNSTopicARN     string `json:"sns_topic_arn"`
	AuditTable      string `json:"audit_table"`
}

// Enabled reports whether any AWS integration is configured
func (c *AWSConfig) Enabled() bool {
	return c.Region != "" && (c.ReportBucket != "" || c.SESSender != "" || c.SNSTopicARN != "" || c.AuditTable != "")
}

// EmailConfig holds SMTP settings
type EmailConfig struct {
	SMTPHost string `json:"smtp_host"`
	SMTPPort int    `json:"smtp_port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// ReportsConfig controls scheduled report delivery
type ReportsConfig struct {
	Schedule       string `json:"schedule"`
	DeliveryMethod string `json:"delivery_method"`
	WebhookURL     string `json:"webhook_url"`
	Workers        int    `json:"workers"`
}

// ExternalConfig points at the third-party emission data API
type ExternalConfig struct {
	EmissionAPIURL string        `json:"emission_api_url"`
	Timeout        time.Duration `json:"timeout"`
}

// RateLimitConfig limits API-key traffic on the sync endpoints
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "co2_emissions",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			AutoMigrate:    true,
		},
		Security: SecurityConfig{
			TokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "debug",
		},
		Forecasting: ForecastingConfig{
			DefaultYears:  10,
			DefaultTarget: 1000,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Email: EmailConfig{
			SMTPPort: 587,
		},
		Reports: ReportsConfig{
			Schedule:       "0 0 8 * * 1",
			DeliveryMethod: "email",
			Workers:        4,
		},
		External: ExternalConfig{
			Timeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if migrate := os.Getenv("DATABASE_AUTO_MIGRATE"); migrate != "" {
		if b, err := strconv.ParseBool(migrate); err == nil {
			config.Database.AutoMigrate = b
		}
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("MODEL_PATH"); path != "" {
		config.Forecasting.ModelPath = path
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Cache.RedisAddr = addr
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.AWS.Region = region
	}
	if bucket := os.Getenv("REPORT_BUCKET"); bucket != "" {
		config.AWS.ReportBucket = bucket
	}
	if topic := os.Getenv("SNS_TOPIC_ARN"); topic != "" {
		config.AWS.SNSTopicARN = topic
	}
	if table := os.Getenv("AUDIT_TABLE"); table != "" {
		config.AWS.AuditTable = table
	}
	if smtpHost := os.Getenv("SMTP_HOST"); smtpHost != "" {
		config.Email.SMTPHost = smtpHost
	}
	if smtpUser := os.Getenv("SMTP_USERNAME"); smtpUser != "" {
		config.Email.Username = smtpUser
	}
	if smtpPass := os.Getenv("SMTP_PASSWORD"); smtpPass != "" {
		config.Email.Password = smtpPass
	}
	if from := os.Getenv("EMAIL_FROM"); from != "" {
		config.Email.From = from
	}
	if url := os.Getenv("EMISSION_API_URL"); url != "" {
		config.External.EmissionAPIURL = url
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
