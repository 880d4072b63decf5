package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Supported mail transports
const (
	ProviderGmail    = "gmail"
	ProviderSendGrid = "sendgrid"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mail      MailConfig      `mapstructure:"mail"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds the appointment store connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	// AutoMigrate lets the service create the appointments table. Leave it
	// off against a store owned by another application.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// MailConfig holds outbound mail configuration
type MailConfig struct {
	Provider        string `mapstructure:"provider"`
	FromAddress     string `mapstructure:"from_address"`
	FromName        string `mapstructure:"from_name"`
	OperatorAddress string `mapstructure:"operator_address"`

	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`

	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
}

// SchedulerConfig holds the cadences of the periodic jobs
type SchedulerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	ScanInterval     time.Duration `mapstructure:"scan_interval"`
	RotationInterval time.Duration `mapstructure:"rotation_interval"`
	DigestSchedule   string        `mapstructure:"digest_schedule"`
	ReminderWindow   time.Duration `mapstructure:"reminder_window"`
	JobTimeout       time.Duration `mapstructure:"job_timeout"`
	PendingStatus    string        `mapstructure:"pending_status"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig loads configuration from an optional .env file, a config file and
// environment variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Mail.OperatorAddress == "" {
		cfg.Mail.OperatorAddress = cfg.Mail.FromAddress
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("mail.provider", ProviderGmail)
	v.SetDefault("mail.from_name", "Appointments")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.scan_interval", "36s")
	v.SetDefault("scheduler.rotation_interval", "24h")
	v.SetDefault("scheduler.digest_schedule", "0 0 8 * * *")
	v.SetDefault("scheduler.reminder_window", "1h")
	v.SetDefault("scheduler.job_timeout", "30s")
	v.SetDefault("scheduler.pending_status", "not_arrived")

	v.SetDefault("log.level", "info")
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.auto_migrate", "DB_AUTO_MIGRATE")

	// Mail
	v.BindEnv("mail.provider", "MAIL_PROVIDER")
	v.BindEnv("mail.from_address", "MY_MAIL", "MAIL_FROM_ADDRESS")
	v.BindEnv("mail.from_name", "MAIL_FROM_NAME")
	v.BindEnv("mail.operator_address", "MAIL_OPERATOR_ADDRESS")
	v.BindEnv("mail.client_id", "GMAIL_CLIENT_ID")
	v.BindEnv("mail.client_secret", "GMAIL_CLIENT_SECRET")
	v.BindEnv("mail.refresh_token", "GMAIL_REFRESH_TOKEN")
	v.BindEnv("mail.sendgrid_api_key", "SENDGRID_API_KEY")

	// Scheduler
	v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	v.BindEnv("scheduler.scan_interval", "SCHEDULER_SCAN_INTERVAL")
	v.BindEnv("scheduler.rotation_interval", "SCHEDULER_ROTATION_INTERVAL")
	v.BindEnv("scheduler.digest_schedule", "SCHEDULER_DIGEST_SCHEDULE")
	v.BindEnv("scheduler.reminder_window", "SCHEDULER_REMINDER_WINDOW")
	v.BindEnv("scheduler.job_timeout", "SCHEDULER_JOB_TIMEOUT")
	v.BindEnv("scheduler.pending_status", "SCHEDULER_PENDING_STATUS")

	v.BindEnv("log.level", "LOG_LEVEL")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if c.Mail.FromAddress == "" {
		return fmt.Errorf("mail from address is required")
	}

	switch strings.ToLower(c.Mail.Provider) {
	case ProviderGmail:
		if c.Mail.ClientID == "" || c.Mail.ClientSecret == "" || c.Mail.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required for the gmail provider")
		}
	case ProviderSendGrid:
		if c.Mail.SendGridAPIKey == "" {
			return fmt.Errorf("SendGrid API key is required for the sendgrid provider")
		}
	default:
		return fmt.Errorf("unknown mail provider %q", c.Mail.Provider)
	}

	if c.Scheduler.ScanInterval <= 0 {
		return fmt.Errorf("scheduler scan interval must be greater than 0")
	}
	if c.Scheduler.RotationInterval <= 0 {
		return fmt.Errorf("scheduler rotation interval must be greater than 0")
	}
	if c.Scheduler.ReminderWindow <= 0 {
		return fmt.Errorf("scheduler reminder window must be greater than 0")
	}
	if c.Scheduler.ScanInterval >= c.Scheduler.ReminderWindow {
		return fmt.Errorf("scheduler scan interval must be shorter than the reminder window")
	}
	if c.Scheduler.JobTimeout <= 0 {
		return fmt.Errorf("scheduler job timeout must be greater than 0")
	}
	if c.Scheduler.DigestSchedule == "" {
		return fmt.Errorf("scheduler digest schedule is required")
	}
	if c.Scheduler.PendingStatus == "" {
		return fmt.Errorf("scheduler pending status is required")
	}

	return nil
}

// ApplyLogging configures the standard logrus logger
func (c *LogConfig) ApplyLogging() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, falling back to info", c.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
