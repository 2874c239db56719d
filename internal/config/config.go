package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "PAWPAW"

	defaultAppLogLevel     = "warn"
	defaultMirrorTimeout   = 10 * time.Second
	defaultPurgeTimeout    = 15 * time.Second
	defaultDatabaseFile    = "pawpaw.db"
	defaultPreferencesFile = "preferences.yaml"
	defaultKeyringDir      = "keyring"

	defaultHTTPAddress       = "0.0.0.0:8090"
	defaultMirrorDatabase    = "pawpaw-mirror.db"
	defaultMirrorLogLevel    = "info"
	defaultTokenIssuer       = "pawpaw-mirror"
	defaultTokenAudience     = "pawpaw-app"
	defaultTokenTTLMinutes   = 60 * 24 * 30
	defaultAllowedOriginsAll = "*"
)

// AppConfig captures runtime configuration for the pawpaw CLI.
type AppConfig struct {
	DataDir         string
	DatabasePath    string
	PreferencesPath string
	KeyringDir      string
	LogLevel        string
	MirrorURL       string
	MirrorToken     string
	MirrorTimeout   time.Duration
	PurgeTimeout    time.Duration
	Location        *time.Location
}

// MirrorConfig captures runtime configuration for the mirror service.
type MirrorConfig struct {
	HTTPAddress    string
	DatabasePath   string
	SigningSecret  string
	Issuer         string
	Audience       string
	TokenTTL       time.Duration
	AllowedOrigins []string
	LogLevel       string
}

// NewViper returns a viper instance with env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	applyEnv(configViper)
	return configViper
}

func applyEnv(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()
}

// ApplyAppDefaults configures the CLI defaults on configViper.
func ApplyAppDefaults(configViper *viper.Viper) {
	applyEnv(configViper)
	configViper.SetDefault("data.dir", defaultDataDir())
	configViper.SetDefault("log.level", defaultAppLogLevel)
	configViper.SetDefault("mirror.timeout", defaultMirrorTimeout)
	configViper.SetDefault("sync.purge_timeout", defaultPurgeTimeout)
	configViper.SetDefault("stats.timezone", "Local")
}

// ApplyMirrorDefaults configures the mirror service defaults on configViper.
func ApplyMirrorDefaults(configViper *viper.Viper) {
	applyEnv(configViper)
	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultMirrorDatabase)
	configViper.SetDefault("log.level", defaultMirrorLogLevel)
	configViper.SetDefault("auth.issuer", defaultTokenIssuer)
	configViper.SetDefault("auth.audience", defaultTokenAudience)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("cors.allowed_origins", defaultAllowedOriginsAll)
}

// LoadApp parses CLI configuration from viper. Paths left empty are placed
// under data.dir.
func LoadApp(configViper *viper.Viper) (AppConfig, error) {
	dataDir := strings.TrimSpace(configViper.GetString("data.dir"))
	cfg := AppConfig{
		DataDir:         dataDir,
		DatabasePath:    pathOrDefault(configViper.GetString("database.path"), dataDir, defaultDatabaseFile),
		PreferencesPath: pathOrDefault(configViper.GetString("preferences.path"), dataDir, defaultPreferencesFile),
		KeyringDir:      pathOrDefault(configViper.GetString("keyring.dir"), dataDir, defaultKeyringDir),
		LogLevel:        configViper.GetString("log.level"),
		MirrorURL:       strings.TrimSpace(configViper.GetString("mirror.url")),
		MirrorToken:     strings.TrimSpace(configViper.GetString("mirror.token")),
		MirrorTimeout:   configViper.GetDuration("mirror.timeout"),
		PurgeTimeout:    configViper.GetDuration("sync.purge_timeout"),
	}

	location, err := loadLocation(configViper.GetString("stats.timezone"))
	if err != nil {
		return AppConfig{}, err
	}
	cfg.Location = location

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.MirrorTimeout <= 0 {
		return fmt.Errorf("mirror.timeout must be positive")
	}
	if c.PurgeTimeout <= 0 {
		return fmt.Errorf("sync.purge_timeout must be positive")
	}
	if c.MirrorURL != "" && !strings.HasPrefix(c.MirrorURL, "http://") && !strings.HasPrefix(c.MirrorURL, "https://") {
		return fmt.Errorf("mirror.url must be an http or https url")
	}
	return nil
}

// LoadMirror parses mirror service configuration from viper.
func LoadMirror(configViper *viper.Viper) (MirrorConfig, error) {
	cfg := MirrorConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabasePath:   configViper.GetString("database.path"),
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		Issuer:         configViper.GetString("auth.issuer"),
		Audience:       configViper.GetString("auth.audience"),
		TokenTTL:       time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		AllowedOrigins: splitList(configViper.GetString("cors.allowed_origins")),
		LogLevel:       configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return MirrorConfig{}, err
	}
	return cfg, nil
}

func (c MirrorConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	return nil
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return ".pawpaw"
	}
	return filepath.Join(base, "pawpaw")
}

func pathOrDefault(value, dir, name string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return filepath.Join(dir, name)
}

func loadLocation(name string) (*time.Location, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.EqualFold(trimmed, "local") {
		return time.Local, nil
	}
	location, err := time.LoadLocation(trimmed)
	if err != nil {
		return nil, fmt.Errorf("stats.timezone: %w", err)
	}
	return location, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
