package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Receiver ReceiverConfig `mapstructure:"receiver"`
	Trellis  TrellisConfig  `mapstructure:"trellis"`
	Input    InputConfig    `mapstructure:"input"`
	Output   OutputConfig   `mapstructure:"output"`
	Web      WebConfig      `mapstructure:"web"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ReceiverConfig holds receiver identification
type ReceiverConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// TrellisConfig holds the trellis decode framing parameters. The
// defaults are the A/53 broadcast constants; they are exposed as
// configuration for non-broadcast test setups.
type TrellisConfig struct {
	InterleaveFactor int `mapstructure:"interleave_factor"` // Trellis branch count
	SegmentLength    int `mapstructure:"segment_length"`    // Symbols per segment, incl sync
	EncodedLength    int `mapstructure:"encoded_length"`    // Output bytes per segment
}

// InputConfig holds the soft symbol input source
type InputConfig struct {
	Path string `mapstructure:"path"` // Raw float32 LE segments; "-" for stdin
}

// OutputConfig holds the decoded byte stream sink
type OutputConfig struct {
	Path string `mapstructure:"path"` // Packed output frames; "-" for stdout
}

// WebConfig holds web dashboard configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// MQTTConfig holds MQTT client configuration
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// DatabaseConfig holds decode-run persistence configuration
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // SQLite database file
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	// Set defaults
	setDefaults()

	// Set config file
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/atsc-nexus")
	}

	// Environment variables
	viper.SetEnvPrefix("ATSC")
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal to struct
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Receiver defaults
	viper.SetDefault("receiver.name", "ATSC-Nexus")
	viper.SetDefault("receiver.description", "Go ATSC 8-VSB trellis decoder")

	// Trellis defaults: the A/53 broadcast constants
	viper.SetDefault("trellis.interleave_factor", 12)
	viper.SetDefault("trellis.segment_length", 832)
	viper.SetDefault("trellis.encoded_length", 207)

	// IO defaults
	viper.SetDefault("input.path", "-")
	viper.SetDefault("output.path", "-")

	// Web defaults
	viper.SetDefault("web.enabled", false)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)

	// MQTT defaults
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.topic_prefix", "atsc/nexus")
	viper.SetDefault("mqtt.client_id", "atsc-nexus")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retained", false)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", false)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")

	// Database defaults
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.path", "atsc-nexus.db")
}
