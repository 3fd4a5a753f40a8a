// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Printer   PrinterConfig   `mapstructure:"printer"`
	Bluetooth BluetoothConfig `mapstructure:"bluetooth"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Storage   StorageConfig   `mapstructure:"storage"`
	App       AppConfig       `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         string        `mapstructure:"port" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// PrinterConfig represents receipt layout configuration
type PrinterConfig struct {
	PaperWidth  int      `mapstructure:"paper_width"`
	HeaderName  string   `mapstructure:"header_name"`
	FooterLines []string `mapstructure:"footer_lines"`
}

// BluetoothConfig represents BLE backend configuration
type BluetoothConfig struct {
	ServiceUUID        string        `mapstructure:"service_uuid"`
	CharacteristicUUID string        `mapstructure:"characteristic_uuid"`
	ScanTimeout        time.Duration `mapstructure:"scan_timeout"`
	ChunkSize          int           `mapstructure:"chunk_size"`
}

// SerialConfig represents serial bridge backend configuration
type SerialConfig struct {
	BaudRate     int           `mapstructure:"baud_rate"`
	DataBits     int           `mapstructure:"data_bits"`
	StopBits     int           `mapstructure:"stop_bits"`
	Parity       string        `mapstructure:"parity"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PortPatterns []string      `mapstructure:"port_patterns"`
}

// StorageConfig represents local key-value storage configuration
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/printer-bridge")

	// Environment variable support
	viper.SetEnvPrefix("PRINTER_BRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file; the defaults cover a missing file entirely
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "8085")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// Printer layout defaults (58mm / 32 columns)
	viper.SetDefault("printer.paper_width", 32)
	viper.SetDefault("printer.header_name", "PEDIDO")
	viper.SetDefault("printer.footer_lines", []string{
		"Obrigado pela preferência!", "Volte sempre!",
	})

	// BLE backend defaults; 18f0/2af1 is the common thermal printer
	// vendor service on 2-inch units
	viper.SetDefault("bluetooth.service_uuid", "000018f0-0000-1000-8000-00805f9b34fb")
	viper.SetDefault("bluetooth.characteristic_uuid", "00002af1-0000-1000-8000-00805f9b34fb")
	viper.SetDefault("bluetooth.scan_timeout", "30s")
	viper.SetDefault("bluetooth.chunk_size", 20)

	// Serial bridge defaults
	viper.SetDefault("serial.baud_rate", 9600)
	viper.SetDefault("serial.data_bits", 8)
	viper.SetDefault("serial.stop_bits", 1)
	viper.SetDefault("serial.parity", "none")
	viper.SetDefault("serial.write_timeout", "5s")

	// Storage defaults
	viper.SetDefault("storage.path", "./data/bridge.db")

	// App defaults
	viper.SetDefault("app.name", "printer-bridge")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Printer.PaperWidth <= 0 {
		return fmt.Errorf("printer.paper_width must be positive")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
