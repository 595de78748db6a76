package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the MediRemind server
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// NotifyConfig holds outbound notification settings
type NotifyConfig struct {
	Fast2SMSKey    string         `mapstructure:"fast2sms_key"`
	Proxies        []string       `mapstructure:"proxies"`
	TimeoutSeconds int            `mapstructure:"timeout_seconds"`
	SendsPerMinute int            `mapstructure:"sends_per_minute"`
	Burst          int            `mapstructure:"burst"`
	Telegram       TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds the fallback Telegram channel settings.
// Chats maps a recipient phone number to a Telegram chat ID.
type TelegramConfig struct {
	Enabled  bool             `mapstructure:"enabled"`
	BotToken string           `mapstructure:"bot_token"`
	Chats    map[string]int64 `mapstructure:"chats"`
}

// ReminderConfig holds reminder engine settings
type ReminderConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	CountdownSeconds    int `mapstructure:"countdown_seconds"`
	CooldownSeconds     int `mapstructure:"cooldown_seconds"`
}

// SecurityConfig holds auth settings
type SecurityConfig struct {
	JWTSecret     string   `mapstructure:"jwt_secret"`
	AllowOrigins  []string `mapstructure:"allow_origins"`
	FaceThreshold float64  `mapstructure:"face_threshold"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// The data dir is an explicit argument and always wins; the database
	// path merely defaults under it so a config file can relocate it.
	v.Set("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "mediremind.db"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "mediremind.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (MEDIREMIND_SERVER_PORT, MEDIREMIND_NOTIFY_FAST2SMS_KEY, etc.)
	v.SetEnvPrefix("MEDIREMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	// Notification defaults; the proxy list mirrors the channels the
	// Fast2SMS adapter walks before falling back to a direct attempt.
	v.SetDefault("notify.timeout_seconds", 15)
	v.SetDefault("notify.sends_per_minute", 30)
	v.SetDefault("notify.burst", 5)
	v.SetDefault("notify.proxies", []string{
		"https://api.codetabs.com/v1/proxy?quest=",
		"https://corsproxy.io/?",
		"https://api.allorigins.win/raw?url=",
	})

	v.SetDefault("reminder.poll_interval_seconds", 1)
	v.SetDefault("reminder.countdown_seconds", 120)
	v.SetDefault("reminder.cooldown_seconds", 120)

	v.SetDefault("security.allow_origins", []string{"*"})
	v.SetDefault("security.face_threshold", 0.6)
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mediremind")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "mediremind")
}

// loadEnvOverrides loads specific env vars that Viper doesn't map cleanly
func loadEnvOverrides(cfg *Config) {
	getEnv := func(key, fallback string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return fallback
	}

	cfg.Notify.Fast2SMSKey = getEnv("MEDIREMIND_NOTIFY_FAST2SMS_KEY", cfg.Notify.Fast2SMSKey)
	cfg.Notify.Telegram.BotToken = getEnv("MEDIREMIND_NOTIFY_TELEGRAM_BOT_TOKEN", cfg.Notify.Telegram.BotToken)
	cfg.Security.JWTSecret = getEnv("MEDIREMIND_SECURITY_JWT_SECRET", cfg.Security.JWTSecret)
}

func validate(cfg *Config) error {
	if cfg.Reminder.PollIntervalSeconds <= 0 {
		return fmt.Errorf("reminder.poll_interval_seconds must be positive")
	}
	if cfg.Reminder.CountdownSeconds <= 0 {
		return fmt.Errorf("reminder.countdown_seconds must be positive")
	}
	if cfg.Reminder.CooldownSeconds <= 0 {
		return fmt.Errorf("reminder.cooldown_seconds must be positive")
	}

	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = generateRandomString(32)
	}

	return nil
}

func generateRandomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "mediremind-insecure-default-secret"
	}
	return hex.EncodeToString(b)
}
