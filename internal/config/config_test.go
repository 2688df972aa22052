package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func TestDir(t *testing.T) {
	t.Setenv("CREATORFEED_CONFIG_DIR", "/tmp/creatorfeed-test")
	assert.Equal(t, "/tmp/creatorfeed-test", Dir())

	t.Setenv("CREATORFEED_CONFIG_DIR", "")
	assert.True(t, strings.HasSuffix(Dir(), filepath.Join(".config", "creatorfeed")))
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Limit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, filepath.Join(dir, "posts.db"), cfg.Cache.Path)
	assert.Equal(t, dir, cfg.Dir())
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
origin: https://creator.example
limit: 10
log:
  level: debug
  format: json
server:
  allowed_origins: [https://dashboard.example]
youtube:
  api_key: yt-key
  query: creator name
meta:
  app_id: meta-id
  app_secret: meta-secret
  fallback_page_id: "104"
tiktok:
  client_key: tt-key
  client_secret: tt-secret
  relay: https://relay.example/
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://creator.example", cfg.Origin)
	assert.Equal(t, 10, cfg.Limit)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"https://dashboard.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "yt-key", cfg.YouTube.APIKey)
	assert.Equal(t, "104", cfg.Meta.FallbackPageID)
	assert.Equal(t, "https://relay.example/", cfg.TikTok.Relay)
	assert.Equal(t, ":8080", cfg.Server.Addr, "unset keys keep defaults")
}

func TestLoad_EnvOverridesFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "tiktok:\n  client_key: from-yaml\n")
	writeFile(t, dir, ".env", "CREATORFEED_TIKTOK_CLIENT_SECRET=from-dotenv\nCREATORFEED_META_APP_ID=dotenv-meta\n")
	t.Setenv("CREATORFEED_TIKTOK_CLIENT_KEY", "from-env")
	t.Setenv("CREATORFEED_META_APP_ID", "env-meta")
	t.Setenv("CREATORFEED_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CREATORFEED_LIMIT", "5")
	t.Cleanup(func() { _ = os.Unsetenv("CREATORFEED_TIKTOK_CLIENT_SECRET") })

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.TikTok.ClientKey)
	assert.Equal(t, "from-dotenv", cfg.TikTok.ClientSecret)
	assert.Equal(t, "env-meta", cfg.Meta.AppID, "real environment wins over .env")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5, cfg.Limit)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "limit: [not a number\n")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_InvalidLimit(t *testing.T) {
	t.Setenv("CREATORFEED_LIMIT", "many")

	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestApp_MetaPlatformsShareIdentity(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Origin = "https://creator.example"
	cfg.Meta.AppID, cfg.Meta.AppSecret = "id", "secret"

	fb := cfg.App(oauth.PlatformFacebook)
	ig := cfg.App(oauth.PlatformInstagram)

	assert.Equal(t, fb, ig)
	assert.Equal(t, "https://creator.example", fb.Origin)
}

func TestValidate(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.TikTok.ClientKey, cfg.TikTok.ClientSecret = "k", "s"

	assert.NoError(t, cfg.Validate(oauth.PlatformTikTok))

	err := cfg.Validate(oauth.PlatformYouTube)
	assert.ErrorIs(t, err, oauth.ErrMissingAppSecret)
	assert.Contains(t, err.Error(), "CREATORFEED_YOUTUBE_CLIENT_ID")

	assert.ErrorIs(t, cfg.Validate("myspace"), oauth.ErrUnknownPlatform)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "(not set)", Mask(""))
	assert.Equal(t, "****", Mask("abc"))
	assert.Equal(t, "********cdef", Mask("abcdef"))
}
