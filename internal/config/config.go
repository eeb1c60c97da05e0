package config

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the runtime configuration of the service.
type Config struct {
	AppPort        string `mapstructure:"APP_PORT" validate:"required"`
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER" validate:"required,oneof=postgres sqlite"`
	DatabaseDSN    string `mapstructure:"DATABASE_DSN" validate:"required"`
	JWTSecret      string `mapstructure:"JWT_SECRET" validate:"required,min=8"`
	// RabbitMQURL may be empty, notifications are then only logged.
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`
	LogLevel    string `mapstructure:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`

	Scheduler SchedulerConfig `mapstructure:",squash"`
}

// SchedulerConfig holds cadence and batch sizes of the background jobs.
type SchedulerConfig struct {
	Enabled             bool          `mapstructure:"SCHEDULER_ENABLED"`
	ProgressionInterval time.Duration `mapstructure:"SCHEDULER_PROGRESSION_INTERVAL" validate:"gt=0"`
	ProgressionBatch    int           `mapstructure:"SCHEDULER_PROGRESSION_BATCH_SIZE" validate:"gt=0"`
	AutoConfirm         bool          `mapstructure:"SCHEDULER_PROGRESSION_AUTO_CONFIRM"`
	StaleInterval       time.Duration `mapstructure:"SCHEDULER_STALE_INTERVAL" validate:"gt=0"`
	StaleMaxAge         time.Duration `mapstructure:"SCHEDULER_STALE_MAX_AGE" validate:"gt=0"`
	StaleBatch          int           `mapstructure:"SCHEDULER_STALE_BATCH_SIZE" validate:"gt=0"`
	ShipmentInterval    time.Duration `mapstructure:"SCHEDULER_SHIPMENT_INTERVAL" validate:"gt=0"`
	ShipmentWindow      time.Duration `mapstructure:"SCHEDULER_SHIPMENT_WINDOW" validate:"gt=0"`
	ShipmentBatch       int           `mapstructure:"SCHEDULER_SHIPMENT_BATCH_SIZE" validate:"gt=0"`
	RunTimeout          time.Duration `mapstructure:"SCHEDULER_RUN_TIMEOUT" validate:"gt=0"`
}

var defaults = map[string]any{
	"APP_PORT":                           ":8080",
	"DATABASE_DRIVER":                    "postgres",
	"DATABASE_DSN":                       "host=localhost user=postgres password=postgres dbname=bookstore port=5432 sslmode=disable",
	"JWT_SECRET":                         "",
	"RABBITMQ_URL":                       "",
	"LOG_LEVEL":                          "info",
	"SCHEDULER_ENABLED":                  true,
	"SCHEDULER_PROGRESSION_INTERVAL":     2 * time.Minute,
	"SCHEDULER_PROGRESSION_BATCH_SIZE":   50,
	"SCHEDULER_PROGRESSION_AUTO_CONFIRM": true,
	"SCHEDULER_STALE_INTERVAL":           5 * time.Minute,
	"SCHEDULER_STALE_MAX_AGE":            30 * time.Minute,
	"SCHEDULER_STALE_BATCH_SIZE":         50,
	"SCHEDULER_SHIPMENT_INTERVAL":        3 * time.Minute,
	"SCHEDULER_SHIPMENT_WINDOW":          5 * time.Minute,
	"SCHEDULER_SHIPMENT_BATCH_SIZE":      50,
	"SCHEDULER_RUN_TIMEOUT":              time.Minute,
}

// Load reads the configuration from the environment and, when CONFIG_FILE
// is set, from that file. Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("CONFIG_FILE", "")
	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", file)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}
