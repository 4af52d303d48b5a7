package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Markets = []MarketConfig{
		{Type: "bitcoin", QuestionName: "bitcoin", Contract: "0xabc"},
	}
	return cfg
}

func TestDefaultsValidateWithMarkets(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20*time.Hour, cfg.Settlement.GraceWindow.Duration)
	assert.Equal(t, time.Hour, cfg.Settlement.EvidenceWindow.Duration)
	assert.Equal(t, "0 5 0 * * *", cfg.Scheduler.SettleCron)
	assert.Equal(t, "full", cfg.Mode)
}

func TestValidateRejectsMissingMarkets(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one [[markets]] block")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	cfg.Redis.Addr = ""
	cfg.Settlement.GraceWindow.Duration = 0
	cfg.Markets = append(cfg.Markets,
		MarketConfig{Type: "Bitcoin", QuestionName: "btc2", Contract: "0xdef"},
		MarketConfig{Type: "ethereum", QuestionName: "", Contract: ""},
	)

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "turbo"`)
	assert.Contains(t, msg, "redis: addr must not be empty")
	assert.Contains(t, msg, "grace_window must be positive")
	assert.Contains(t, msg, `duplicate type "Bitcoin"`)
	assert.Contains(t, msg, "markets[2]: question_name must not be empty")
	assert.Contains(t, msg, "markets[2]: contract must not be empty")
}

func TestValidateDSNSkipsHostChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Host = ""
	cfg.Database.Port = 0
	cfg.Database.Database = ""
	cfg.Database.DSN = "postgres://u:p@db:5432/potd"
	assert.NoError(t, cfg.Validate())
}

func TestValidateS3OnlyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.S3.Bucket = ""
	require.NoError(t, cfg.Validate())

	cfg.S3.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "potd.toml")
	content := `
mode = "serve"
log_level = "debug"

[settlement]
grace_window = "12h"

[scheduler]
enabled = false

[[markets]]
type = "bitcoin"
question_name = "bitcoin"
contract = "0xabc"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 12*time.Hour, cfg.Settlement.GraceWindow.Duration)
	assert.False(t, cfg.Scheduler.Enabled)
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Settlement.EvidenceWindow.Duration)
	require.Len(t, cfg.Markets, 1)
	assert.Equal(t, "0xabc", cfg.Markets[0].Contract)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "potd.toml")
	content := `
[[markets]]
type = "bitcoin"
question_name = "bitcoin"
contract = "0xabc"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("POTD_DATABASE_DSN", "postgres://u:p@db:5432/potd")
	t.Setenv("POTD_GRACE_WINDOW", "6h")
	t.Setenv("POTD_SERVER_API_KEY", "sekrit")
	t.Setenv("POTD_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("POTD_MODE", "schedule")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/potd", cfg.Database.DSN)
	assert.Equal(t, 6*time.Hour, cfg.Settlement.GraceWindow.Duration)
	assert.Equal(t, "sekrit", cfg.Server.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "schedule", cfg.Mode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Database.DSN = "postgres://u:supersecret@db/potd"
	cfg.Database.Password = "supersecret"
	cfg.Redis.Password = "alsosecret"
	cfg.S3.SecretKey = "s3secret"
	cfg.Server.APIKey = "apikey"
	cfg.Notify.DiscordWebhookURL = "https://discord.com/api/webhooks/123/token"

	red := RedactedConfig(&cfg)
	for _, v := range []string{
		red.Database.DSN, red.Database.Password, red.Redis.Password,
		red.S3.SecretKey, red.Server.APIKey, red.Notify.DiscordWebhookURL,
	} {
		assert.False(t, strings.Contains(v, "secret") || strings.Contains(v, "token") || v == "apikey",
			"secret leaked: %q", v)
	}

	// The original is untouched.
	assert.Equal(t, "supersecret", cfg.Database.Password)
}
