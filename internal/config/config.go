// Package config loads creatorfeed settings from config.yaml, .env files and
// CREATORFEED_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CREATORFEED_"

// FileName is the config file looked up in the config directory.
const FileName = "config.yaml"

// Config is the complete application configuration.
type Config struct {
	// Origin is the deployment origin redirect URIs are derived from.
	Origin  string        `yaml:"origin"`
	Limit   int           `yaml:"limit"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	YouTube YouTubeConfig `yaml:"youtube"`
	Meta    MetaConfig    `yaml:"meta"`
	TikTok  TikTokConfig  `yaml:"tiktok"`

	dir string
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type CacheConfig struct {
	Path string `yaml:"path"`
}

type YouTubeConfig struct {
	APIKey       string `yaml:"api_key"`
	Query        string `yaml:"query"`
	ChannelID    string `yaml:"channel_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	APIURL       string `yaml:"api_url"`
}

type MetaConfig struct {
	AppID          string `yaml:"app_id"`
	AppSecret      string `yaml:"app_secret"`
	FallbackPageID string `yaml:"fallback_page_id"`
	TargetHandle   string `yaml:"target_handle"`
	APIURL         string `yaml:"api_url"`
}

type TikTokConfig struct {
	ClientKey    string `yaml:"client_key"`
	ClientSecret string `yaml:"client_secret"`
	Relay        string `yaml:"relay"`
	APIURL       string `yaml:"api_url"`
}

// Dir returns the configuration directory: CREATORFEED_CONFIG_DIR, or
// ~/.config/creatorfeed.
func Dir() string {
	if dir := os.Getenv(EnvPrefix + "CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "creatorfeed")
}

// Default returns the configuration used when nothing is set.
func Default(dir string) *Config {
	return &Config{
		Origin: "http://localhost:8080",
		Limit:  20,
		Log:    LogConfig{Level: "info", Format: "console"},
		Server: ServerConfig{Addr: ":8080"},
		Cache:  CacheConfig{Path: filepath.Join(dir, "posts.db")},
		dir:    dir,
	}
}

// Load reads the configuration from dir. A missing config file or .env file
// is not an error. Variables already set in the environment win over .env
// entries.
func Load(dir string) (*Config, error) {
	for _, envFile := range []string{filepath.Join(dir, ".env"), ".env"} {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Default(dir)

	data, err := os.ReadFile(filepath.Join(dir, FileName)) // #nosec G304 -- path is the user's config dir
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	overrides := []struct {
		key string
		dst *string
	}{
		{"ORIGIN", &c.Origin},
		{"LOG_LEVEL", &c.Log.Level},
		{"LOG_FORMAT", &c.Log.Format},
		{"SERVER_ADDR", &c.Server.Addr},
		{"CACHE_PATH", &c.Cache.Path},
		{"YOUTUBE_API_KEY", &c.YouTube.APIKey},
		{"YOUTUBE_QUERY", &c.YouTube.Query},
		{"YOUTUBE_CHANNEL_ID", &c.YouTube.ChannelID},
		{"YOUTUBE_CLIENT_ID", &c.YouTube.ClientID},
		{"YOUTUBE_CLIENT_SECRET", &c.YouTube.ClientSecret},
		{"YOUTUBE_API_URL", &c.YouTube.APIURL},
		{"META_APP_ID", &c.Meta.AppID},
		{"META_APP_SECRET", &c.Meta.AppSecret},
		{"META_FALLBACK_PAGE_ID", &c.Meta.FallbackPageID},
		{"META_TARGET_HANDLE", &c.Meta.TargetHandle},
		{"META_API_URL", &c.Meta.APIURL},
		{"TIKTOK_CLIENT_KEY", &c.TikTok.ClientKey},
		{"TIKTOK_CLIENT_SECRET", &c.TikTok.ClientSecret},
		{"TIKTOK_RELAY", &c.TikTok.Relay},
		{"TIKTOK_API_URL", &c.TikTok.APIURL},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(EnvPrefix + o.key); ok {
			*o.dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sLIMIT %q: %w", EnvPrefix, v, err)
		}
		c.Limit = n
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Dir returns the directory the configuration was loaded from.
func (c *Config) Dir() string {
	return c.dir
}

// App returns the app identity registered for a platform. Facebook and
// Instagram share the Meta app.
func (c *Config) App(p oauth.Platform) oauth.AppIdentity {
	app := oauth.AppIdentity{Origin: c.Origin}
	switch p {
	case oauth.PlatformYouTube:
		app.ClientKey, app.ClientSecret = c.YouTube.ClientID, c.YouTube.ClientSecret
	case oauth.PlatformFacebook, oauth.PlatformInstagram:
		app.ClientKey, app.ClientSecret = c.Meta.AppID, c.Meta.AppSecret
	case oauth.PlatformTikTok:
		app.ClientKey, app.ClientSecret = c.TikTok.ClientKey, c.TikTok.ClientSecret
	}
	return app
}

// Validate reports the configuration error that would stop p from being
// connected, or nil.
func (c *Config) Validate(p oauth.Platform) error {
	if _, err := oauth.ParsePlatform(string(p)); err != nil {
		return err
	}
	if err := c.App(p).Validate(p); err != nil {
		return fmt.Errorf("%w (%s)", err, envHint(p))
	}
	return nil
}

func envHint(p oauth.Platform) string {
	switch p {
	case oauth.PlatformYouTube:
		return EnvPrefix + "YOUTUBE_CLIENT_ID / " + EnvPrefix + "YOUTUBE_CLIENT_SECRET"
	case oauth.PlatformTikTok:
		return EnvPrefix + "TIKTOK_CLIENT_KEY / " + EnvPrefix + "TIKTOK_CLIENT_SECRET"
	default:
		return EnvPrefix + "META_APP_ID / " + EnvPrefix + "META_APP_SECRET"
	}
}

// Mask hides all but the last four characters of a secret for display.
func Mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + secret[len(secret)-4:]
}
