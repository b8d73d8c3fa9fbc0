package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

const (
	providerPrefix  = "providers."
	badgrAppSection = "badgrapp"
)

// SectionConfig stores key-value pairs of one INI section.
type SectionConfig map[string]string

// BadgrApp describes the front-end application the API redirects back to.
type BadgrApp struct {
	UILoginRedirect          string
	UIConnectSuccessRedirect string
}

// Config wraps viper and provides typed accessors.
type Config struct {
	v         *viper.Viper
	providers map[string]SectionConfig
	badgrApp  SectionConfig
}

// Load reads an INI (or any viper-supported) config file and prepares defaults.
// An empty path yields defaults plus BADGR_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BADGR")
	v.AutomaticEnv()

	setDefaults(v)

	c := &Config{
		v:         v,
		providers: make(map[string]SectionConfig),
		badgrApp:  make(SectionConfig),
	}

	switch {
	case strings.TrimSpace(path) == "":
	case strings.EqualFold(filepath.Ext(path), ".ini"):
		cfg, err := loadINI(v, path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		loadSections(cfg, c)
	default:
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		for code, raw := range v.GetStringMap("providers") {
			if section, ok := raw.(map[string]any); ok {
				c.providers[strings.ToLower(code)] = toSection(section)
			}
		}
		c.badgrApp = toSection(v.GetStringMap(badgrAppSection))
	}

	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenAddr", ":8000")
	v.SetDefault("PublicBaseURL", "http://localhost:8000")
	v.SetDefault("Database", "badgr.db")
	v.SetDefault("DBMaxOpenConns", 1)
	v.SetDefault("DBMaxIdleConns", 1)
	v.SetDefault("DBConnMaxLifetimeSec", 3600)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")
	v.SetDefault("LogSource", false)
	v.SetDefault("LogDir", "")
	v.SetDefault("GormLogLevel", "warn")
	v.SetDefault("GormSlowQueryMs", 200)
	v.SetDefault("WorkerPoolSize", 4)
	v.SetDefault("JWTSecret", "")
	v.SetDefault("JWTIssuer", "badgr")
	v.SetDefault("TokenTTLMinutes", 60*24)
	v.SetDefault("ShareRateLimitPerSecond", 2.0)
	v.SetDefault("ShareRateLimitBurst", 5)
	v.SetDefault("MailEndpoint", "")
	v.SetDefault("MailFrom", "noreply@badgr.io")
	v.SetDefault("MailTimeoutSec", 10)
	v.SetDefault("BadgeImageSize", 400)
	v.SetDefault("ShutdownTimeoutSec", 15)
}

// GetString returns a string value.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns an int value.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 returns a float64 value.
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool returns a bool value.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetSeconds returns an integer key as a duration in seconds.
func (c *Config) GetSeconds(key string) time.Duration {
	return time.Duration(c.v.GetInt(key)) * time.Second
}

// ProviderEnabled reports whether the share provider is enabled.
// Providers without an explicit `enabled` key are enabled.
func (c *Config) ProviderEnabled(code string) bool {
	section, ok := c.providers[strings.ToLower(code)]
	if !ok {
		return true
	}
	raw, ok := section["enabled"]
	if !ok {
		return true
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return true
	}
	return enabled
}

// ProviderNames returns the provider codes with a config section.
func (c *Config) ProviderNames() []string {
	if len(c.providers) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BadgrApp returns the front-end redirect settings.
func (c *Config) BadgrApp() BadgrApp {
	return BadgrApp{
		UILoginRedirect:          c.badgrApp["ui_login_redirect"],
		UIConnectSuccessRedirect: c.badgrApp["ui_connect_success_redirect"],
	}
}

func loadINI(v *viper.Viper, path string) (*ini.File, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	for _, key := range cfg.Section("").Keys() {
		v.Set(key.Name(), key.Value())
	}

	return cfg, nil
}

func loadSections(cfg *ini.File, c *Config) {
	for _, section := range cfg.Sections() {
		name := section.Name()
		switch {
		case name == "" || name == ini.DefaultSection:
			continue
		case strings.EqualFold(name, badgrAppSection):
			for _, key := range section.Keys() {
				c.badgrApp[key.Name()] = key.Value()
			}
		case strings.HasPrefix(name, providerPrefix):
			code := strings.ToLower(strings.TrimPrefix(name, providerPrefix))
			values := make(SectionConfig)
			for _, key := range section.Keys() {
				values[key.Name()] = key.Value()
			}
			c.providers[code] = values
		}
	}
}

func toSection(raw map[string]any) SectionConfig {
	section := make(SectionConfig, len(raw))
	for key, value := range raw {
		section[key] = fmt.Sprintf("%v", value)
	}
	return section
}
