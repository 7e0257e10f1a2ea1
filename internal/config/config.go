package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/orgoj/logchannel/internal/resolver"
)

// LogRotation defines parameters for log file rotation.
type LogRotation struct {
	MaxSize    string `yaml:"max_size,omitempty"`                     // e.g., "100MB", "50k"
	MaxAge     string `yaml:"max_age,omitempty"`                      // e.g., "7d", "2w", "1m"
	MaxBackups int    `yaml:"max_backups,omitempty" validate:"gte=0"` // 0 keeps all
	Compress   bool   `yaml:"compress,omitempty"`
}

// AppLogConfig configures the process log.
type AppLogConfig struct {
	Level          string      `yaml:"level"`
	ShowHealthLogs bool        `yaml:"show_health_logs"`
	File           string      `yaml:"file,omitempty"` // stdout when empty
	Rotation       LogRotation `yaml:"rotation,omitempty"`
}

// ServerConfig configures the HTTP relay.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port" validate:"min=1,max=65535"`
	PathPrefix      string   `yaml:"path_prefix"`
	TrustedProxies  []string `yaml:"trusted_proxies"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	RequestLimits   struct {
		MaxBodySize int `yaml:"max_body_size" validate:"gte=0"` // bytes
		RateLimit   int `yaml:"rate_limit" validate:"gte=0"`    // requests per minute per client
	} `yaml:"request_limits"`
}

// Config represents the application configuration
type Config struct {
	AppLog    AppLogConfig               `yaml:"app_log"`
	Server    ServerConfig               `yaml:"server"`
	Resolvers map[string]resolver.Config `yaml:"resolvers"`
	Channels  []ChannelDestination       `yaml:"channels" validate:"dive"`
}

// ChannelDestination is a queue or topic that relayed records are sent to.
type ChannelDestination struct {
	Name               string   `yaml:"name" validate:"required"`
	Kind               string   `yaml:"kind" validate:"required,oneof=queue topic"`
	Enabled            bool     `yaml:"enabled"`
	Resolver           string   `yaml:"resolver"` // Key into Config.Resolvers
	FactoryBinding     string   `yaml:"factory_binding" validate:"required"`
	DestinationBinding string   `yaml:"destination_binding" validate:"required"`
	UserName           string   `yaml:"user_name,omitempty"`
	Password           string   `yaml:"password,omitempty"`
	Format             string   `yaml:"format,omitempty" validate:"omitempty,oneof=json text"`
	MaxMessageSize     string   `yaml:"max_message_size,omitempty"` // e.g., "64K"; no limit when empty
	Sources            []string `yaml:"sources,omitempty"`          // Glob patterns; all sources when empty
}

var validLogLevels = map[string]bool{"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true}

// LoadConfig loads and validates the configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	// Default values can be set here before unmarshalling if needed
	cfg.AppLog.Level = "WARN"
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Server.ShutdownTimeout = "10s"

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file '%s': %w", path, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// validateConfig performs semantic validation of the configuration and
// fills per-channel defaults.
func validateConfig(cfg *Config) error {
	if !validLogLevels[strings.ToUpper(cfg.AppLog.Level)] {
		return fmt.Errorf("invalid app_log.level: '%s'", cfg.AppLog.Level)
	}
	if cfg.AppLog.Rotation.MaxSize != "" {
		if _, err := ParseSize(cfg.AppLog.Rotation.MaxSize); err != nil {
			return fmt.Errorf("invalid app_log.rotation.max_size: %w", err)
		}
	}
	if cfg.AppLog.Rotation.MaxAge != "" {
		if _, err := ParseDuration(cfg.AppLog.Rotation.MaxAge); err != nil {
			return fmt.Errorf("invalid app_log.rotation.max_age: %w", err)
		}
	}
	if cfg.AppLog.Rotation.MaxBackups < 0 {
		return errors.New("app_log.rotation.max_backups cannot be negative")
	}

	// Server validation
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != "" {
		if _, err := ParseDuration(cfg.Server.ShutdownTimeout); err != nil {
			return fmt.Errorf("invalid server.shutdown_timeout: %w", err)
		}
	}
	if cfg.Server.RequestLimits.MaxBodySize < 0 {
		return errors.New("server.request_limits.max_body_size cannot be negative")
	}
	if cfg.Server.RequestLimits.RateLimit < 0 {
		return errors.New("server.request_limits.rate_limit cannot be negative")
	}

	for name, rc := range cfg.Resolvers {
		if name == "" {
			return errors.New("resolvers: empty resolver name")
		}
		if (rc.Factory == "" || rc.Factory == resolver.DefaultFactory) && rc.ProviderURL == "" {
			return fmt.Errorf("resolvers[%s]: provider_url is required for factory '%s'", name, resolver.DefaultFactory)
		}
	}

	// Channels validation
	channelNames := make(map[string]bool)
	for i, ch := range cfg.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channels[%d]: name is required", i)
		}
		if channelNames[ch.Name] {
			return fmt.Errorf("channels: duplicate name '%s' found", ch.Name)
		}
		channelNames[ch.Name] = true

		if ch.Kind != "queue" && ch.Kind != "topic" {
			return fmt.Errorf("channels[%s]: invalid kind '%s', must be 'queue' or 'topic'", ch.Name, ch.Kind)
		}
		if ch.FactoryBinding == "" {
			return fmt.Errorf("channels[%s]: factory_binding is required", ch.Name)
		}
		if ch.DestinationBinding == "" {
			return fmt.Errorf("channels[%s]: destination_binding is required", ch.Name)
		}
		if ch.Resolver != "" {
			if _, ok := cfg.Resolvers[ch.Resolver]; !ok {
				return fmt.Errorf("channels[%s]: resolver '%s' not found in top-level resolvers", ch.Name, ch.Resolver)
			}
		}

		switch ch.Format {
		case "":
			cfg.Channels[i].Format = "json" // Assign back to the slice element
		case "json", "text":
		default:
			return fmt.Errorf("channels[%s]: invalid format '%s', must be 'json' or 'text'", ch.Name, ch.Format)
		}

		if ch.MaxMessageSize != "" {
			if _, err := ParseSize(ch.MaxMessageSize); err != nil {
				return fmt.Errorf("channels[%s]: invalid max_message_size: %w", ch.Name, err)
			}
		}
		for _, pattern := range ch.Sources {
			if _, err := glob.Compile(pattern); err != nil {
				return fmt.Errorf("channels[%s]: invalid source pattern '%s': %w", ch.Name, pattern, err)
			}
		}
	}

	return nil
}

// ValidateConfig uses go-playground/validator for struct-level validation.
// It complements the semantic validation in validateConfig.
func ValidateConfig(cfg *Config) error {
	validate := validator.New()

	err := validate.Struct(cfg)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}
		// Translate validation errors into a more readable format
		messages := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			messages = append(messages, fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", fe.Namespace(), fe.Tag()))
		}
		return errors.New(strings.Join(messages, "; "))
	}

	// Perform additional semantic validation (that validator can't easily handle)
	return validateConfig(cfg)
}

// ParseDuration parses a duration string (e.g., "10m", "1h30m", "7d").
// Supports standard time.ParseDuration units plus 'd' for days.
// Returns an error if the format is invalid or the duration is non-positive.
func ParseDuration(durationStr string) (time.Duration, error) {
	durationStr = strings.TrimSpace(durationStr)
	if durationStr == "" {
		return 0, errors.New("duration string cannot be empty")
	}

	// Handle 'd' suffix manually
	if strings.HasSuffix(strings.ToLower(durationStr), "d") {
		numStr := strings.TrimSuffix(strings.ToLower(durationStr), "d")
		days, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number format for days in '%s': %w", durationStr, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("duration must be positive: '%s'", durationStr)
		}
		d := time.Duration(days) * 24 * time.Hour
		if d <= 0 {
			return 0, fmt.Errorf("duration %dd results in overflow", days)
		}
		return d, nil
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format '%s': %w", durationStr, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: '%s'", durationStr)
	}
	return d, nil
}

var sizeSuffixes = []struct {
	suffix     string
	multiplier int64
}{
	{"KB", 1 << 10}, {"K", 1 << 10},
	{"MB", 1 << 20}, {"M", 1 << 20},
	{"GB", 1 << 30}, {"G", 1 << 30},
}

// ParseSize parses a size string (e.g., "10MB", "5k", "1G") into bytes.
// Supports K, M, G suffixes (case-insensitive).
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))
	if sizeStr == "" {
		return 0, errors.New("size string cannot be empty")
	}

	numStr, multiplier := sizeStr, int64(1)
	for _, s := range sizeSuffixes {
		if strings.HasSuffix(sizeStr, s.suffix) {
			numStr = strings.TrimSpace(strings.TrimSuffix(sizeStr, s.suffix))
			multiplier = s.multiplier
			break
		}
	}

	// big.Int catches overflow before converting back to int64
	num, ok := new(big.Int).SetString(numStr, 10)
	if !ok {
		return 0, fmt.Errorf("invalid number format in size string '%s'", sizeStr)
	}
	if num.Sign() < 0 {
		return 0, fmt.Errorf("size cannot be negative: %s", num.String())
	}

	result := new(big.Int).Mul(num, big.NewInt(multiplier))
	if !result.IsInt64() {
		return 0, fmt.Errorf("size value '%s' results in overflow (exceeds max int64)", sizeStr)
	}
	return result.Int64(), nil
}
