package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/OkutaniDaichi0106/gowtecho/wtecho/envelope"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. WTECHO_KEY_MODE.
const EnvPrefix = "WTECHO"

// Key derivation modes.
const (
	KeyModeStatic = "static"
	KeyModeHKDF   = "hkdf"
)

type Config struct {
	Addr         string        `mapstructure:"addr"`
	Secured      bool          `mapstructure:"secured"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Log          LogConfig     `mapstructure:"log"`
	Key          KeyConfig     `mapstructure:"key"`
	Metrics      MetricsConfig `mapstructure:"metrics"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type KeyConfig struct {
	Secret string `mapstructure:"secret"`
	File   string `mapstructure:"file"`
	Mode   string `mapstructure:"mode"`
	Salt   string `mapstructure:"salt"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", "[::1]:4433")
	v.SetDefault("secured", false)
	v.SetDefault("write_timeout", 5*time.Second)
	v.SetDefault("idle_timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("key.secret", hex.EncodeToString(envelope.DefaultKey()))
	v.SetDefault("key.file", "")
	v.SetDefault("key.mode", KeyModeStatic)
	v.SetDefault("key.salt", "")
	v.SetDefault("metrics.addr", "")
}

// Load reads the configuration. The file at path is optional; when path
// is empty only defaults, environment variables and flags apply.
// Flags that were set explicitly take precedence over every other source.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// flagKeys maps CLI flags onto configuration keys.
var flagKeys = map[string]string{
	"addr":          "addr",
	"secured":       "secured",
	"log-level":     "log.level",
	"metrics-addr":  "metrics.addr",
	"key-file":      "key.file",
	"key-mode":      "key.mode",
	"write-timeout": "write_timeout",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("config: failed to bind flag %q: %w", name, err)
		}
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: addr is required")
	}
	switch c.Key.Mode {
	case KeyModeStatic, KeyModeHKDF:
	default:
		return fmt.Errorf("config: unknown key mode %q", c.Key.Mode)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses the configured slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// KeyProvider builds the overlay key provider. A key file, when set,
// replaces the inline secret.
func (c *Config) KeyProvider() (envelope.KeyProvider, error) {
	secret := c.Key.Secret
	if c.Key.File != "" {
		b, err := os.ReadFile(c.Key.File)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read key file: %w", err)
		}
		secret = string(b)
	}

	key, err := envelope.ParseKey(secret)
	if err != nil {
		return nil, err
	}

	switch c.Key.Mode {
	case KeyModeHKDF:
		salt, err := hex.DecodeString(c.Key.Salt)
		if err != nil {
			return nil, fmt.Errorf("config: invalid hex salt: %w", err)
		}
		return envelope.NewHKDFKeys(key, salt)
	default:
		return envelope.StaticKey(key), nil
	}
}
