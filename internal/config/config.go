// Package config loads lampd settings from defaults, an optional YAML file
// and LAMPD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Loop modes.
const (
	ModeModel  = "model"
	ModeMirror = "mirror"
)

// Training sources.
const (
	SourceFile   = "file"
	SourceSQLite = "sqlite"
)

// Config is the complete lampd configuration.
type Config struct {
	GPIO     GPIOConfig     `mapstructure:"gpio"`
	Loop     LoopConfig     `mapstructure:"loop"`
	Debounce DebounceConfig `mapstructure:"debounce"`
	Model    ModelConfig    `mapstructure:"model"`
	State    StateConfig    `mapstructure:"state"`
	History  HistoryConfig  `mapstructure:"history"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Alert    AlertConfig    `mapstructure:"alert"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type GPIOConfig struct {
	Chip      string  `mapstructure:"chip"`
	SwitchPin int     `mapstructure:"switch_pin"`
	LEDPin    int     `mapstructure:"led_pin"`
	LEDFreq   float64 `mapstructure:"led_freq"`
	Simulate  bool    `mapstructure:"simulate"`
}

type LoopConfig struct {
	Poll          time.Duration `mapstructure:"poll"`
	Mode          string        `mapstructure:"mode"`
	MaxReadErrors int           `mapstructure:"max_read_errors"`
	Heartbeat     time.Duration `mapstructure:"heartbeat"`
}

type DebounceConfig struct {
	Capacity  int     `mapstructure:"capacity"`
	Threshold float64 `mapstructure:"threshold"`
}

type ModelConfig struct {
	WindowDays      int           `mapstructure:"window_days"`
	IntervalMinutes int           `mapstructure:"interval_minutes"`
	TrainInterval   time.Duration `mapstructure:"train_interval"`
	Source          string        `mapstructure:"source"`
}

type StateConfig struct {
	File string `mapstructure:"file"`
}

type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// BackupConfig selects the backup target. A Dropbox token takes precedence
// over Dir; with neither, backups are disabled.
type BackupConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	DropboxToken     string        `mapstructure:"dropbox_token"`
	DropboxTokenFile string        `mapstructure:"dropbox_token_file"`
	Dir              string        `mapstructure:"dir"`
	OnShutdown       bool          `mapstructure:"on_shutdown"`
}

// AlertConfig holds the SMTP settings for safe-mode emails. The *_file
// variants are read at load time and override their inline values.
type AlertConfig struct {
	SMTPHost     string        `mapstructure:"smtp_host"`
	SMTPPort     int           `mapstructure:"smtp_port"`
	Username     string        `mapstructure:"username"`
	UsernameFile string        `mapstructure:"username_file"`
	Password     string        `mapstructure:"password"`
	PasswordFile string        `mapstructure:"password_file"`
	From         string        `mapstructure:"from"`
	To           string        `mapstructure:"to"`
	ToFile       string        `mapstructure:"to_file"`
	MinInterval  time.Duration `mapstructure:"min_interval"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("lampd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/lampd")
	}

	// Environment variable support: LAMPD_LOOP_MODE=mirror
	v.SetEnvPrefix("LAMPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}

// SetDefaults registers every key so that environment overrides apply
// even when no config file mentions it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gpio.chip", "gpiochip0")
	v.SetDefault("gpio.switch_pin", 23)
	v.SetDefault("gpio.led_pin", 17)
	v.SetDefault("gpio.led_freq", 100)
	v.SetDefault("gpio.simulate", false)

	v.SetDefault("loop.poll", "10ms")
	v.SetDefault("loop.mode", ModeModel)
	v.SetDefault("loop.max_read_errors", 100)
	v.SetDefault("loop.heartbeat", "15m")

	v.SetDefault("debounce.capacity", 100)
	v.SetDefault("debounce.threshold", 0.75)

	v.SetDefault("model.window_days", 7)
	v.SetDefault("model.interval_minutes", 10)
	v.SetDefault("model.train_interval", "3h")
	v.SetDefault("model.source", SourceFile)

	v.SetDefault("state.file", "/home/pi/code/state.txt")
	v.SetDefault("history.path", "")

	v.SetDefault("backup.interval", "24h")
	v.SetDefault("backup.dropbox_token", "")
	v.SetDefault("backup.dropbox_token_file", "")
	v.SetDefault("backup.dir", "")
	v.SetDefault("backup.on_shutdown", true)

	v.SetDefault("alert.smtp_host", "smtp.gmail.com")
	v.SetDefault("alert.smtp_port", 587)
	v.SetDefault("alert.username", "")
	v.SetDefault("alert.username_file", "")
	v.SetDefault("alert.password", "")
	v.SetDefault("alert.password_file", "")
	v.SetDefault("alert.from", "")
	v.SetDefault("alert.to", "")
	v.SetDefault("alert.to_file", "")
	v.SetDefault("alert.min_interval", "1h")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "lampd")

	v.SetDefault("http.addr", ":80")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Unmarshal decodes v into a Config, reads secret files and validates the
// result.
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolveSecrets() error {
	secrets := []struct {
		file string
		dst  *string
	}{
		{c.Backup.DropboxTokenFile, &c.Backup.DropboxToken},
		{c.Alert.UsernameFile, &c.Alert.Username},
		{c.Alert.PasswordFile, &c.Alert.Password},
		{c.Alert.ToFile, &c.Alert.To},
	}
	for _, s := range secrets {
		if s.file == "" {
			continue
		}
		data, err := os.ReadFile(s.file)
		if err != nil {
			return fmt.Errorf("reading secret: %w", err)
		}
		*s.dst = strings.TrimSpace(string(data))
	}
	return nil
}

// Validate checks that the configuration can drive the control loop.
func (c *Config) Validate() error {
	var errs []error
	if c.Loop.Poll <= 0 {
		errs = append(errs, fmt.Errorf("loop.poll must be positive, got %s", c.Loop.Poll))
	}
	if c.Loop.Mode != ModeModel && c.Loop.Mode != ModeMirror {
		errs = append(errs, fmt.Errorf("loop.mode must be %q or %q, got %q", ModeModel, ModeMirror, c.Loop.Mode))
	}
	if c.Loop.MaxReadErrors <= 0 {
		errs = append(errs, fmt.Errorf("loop.max_read_errors must be positive, got %d", c.Loop.MaxReadErrors))
	}
	if c.Debounce.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("debounce.capacity must be positive, got %d", c.Debounce.Capacity))
	}
	if t := c.Debounce.Threshold; math.IsNaN(t) || math.IsInf(t, 0) {
		errs = append(errs, fmt.Errorf("debounce.threshold must be finite, got %v", t))
	}
	if c.Model.WindowDays <= 0 {
		errs = append(errs, fmt.Errorf("model.window_days must be positive, got %d", c.Model.WindowDays))
	}
	if m := c.Model.IntervalMinutes; m <= 0 || 1440%m != 0 {
		errs = append(errs, fmt.Errorf("model.interval_minutes must divide 1440, got %d", m))
	}
	switch c.Model.Source {
	case SourceFile:
	case SourceSQLite:
		if c.History.Path == "" {
			errs = append(errs, errors.New("model.source sqlite requires history.path"))
		}
	default:
		errs = append(errs, fmt.Errorf("model.source must be %q or %q, got %q", SourceFile, SourceSQLite, c.Model.Source))
	}
	if c.State.File == "" {
		errs = append(errs, errors.New("state.file is required"))
	}
	if !c.GPIO.Simulate && c.GPIO.LEDFreq <= 0 {
		errs = append(errs, fmt.Errorf("gpio.led_freq must be positive, got %v", c.GPIO.LEDFreq))
	}
	return errors.Join(errs...)
}

// Recipients returns the alert recipients, split on commas.
func (c AlertConfig) Recipients() []string {
	var out []string
	for _, r := range strings.Split(c.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Sender returns From, falling back to the SMTP username.
func (c AlertConfig) Sender() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// Enabled reports whether enough SMTP settings are present to send email.
func (c AlertConfig) Enabled() bool {
	return c.SMTPHost != "" && c.Sender() != "" && len(c.Recipients()) > 0
}
