package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the runtime configuration in three layers: built-in defaults,
// the TOML file at path decoded over them, then POTD_* environment
// overrides on top. A .env file in the working directory feeds the
// environment layer when present. Validation is the caller's job.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	_ = godotenv.Load()
	overrideFromEnv(&cfg)

	return &cfg, nil
}

// overrideFromEnv applies every recognized POTD_* variable. Operators use
// these to keep secrets out of the TOML file; an unset or empty variable
// leaves the field alone.
func overrideFromEnv(cfg *Config) {
	envString(&cfg.Database.DSN, "POTD_DATABASE_DSN")
	envString(&cfg.Database.DSN, "POTD_DATABASE_URL") // compatibility alias
	envString(&cfg.Database.Host, "POTD_DATABASE_HOST")
	envInt(&cfg.Database.Port, "POTD_DATABASE_PORT")
	envString(&cfg.Database.Database, "POTD_DATABASE_NAME")
	envString(&cfg.Database.User, "POTD_DATABASE_USER")
	envString(&cfg.Database.Password, "POTD_DATABASE_PASSWORD")
	envString(&cfg.Database.SSLMode, "POTD_DATABASE_SSLMODE")
	envInt(&cfg.Database.PoolMaxConns, "POTD_DATABASE_POOL_MAX_CONNS")
	envInt(&cfg.Database.PoolMinConns, "POTD_DATABASE_POOL_MIN_CONNS")
	envBool(&cfg.Database.RunMigrations, "POTD_DATABASE_RUN_MIGRATIONS")

	envString(&cfg.Redis.Addr, "POTD_REDIS_ADDR")
	envString(&cfg.Redis.Password, "POTD_REDIS_PASSWORD")
	envInt(&cfg.Redis.DB, "POTD_REDIS_DB")
	envInt(&cfg.Redis.PoolSize, "POTD_REDIS_POOL_SIZE")
	envInt(&cfg.Redis.MaxRetries, "POTD_REDIS_MAX_RETRIES")
	envBool(&cfg.Redis.TLSEnabled, "POTD_REDIS_TLS_ENABLED")

	envBool(&cfg.S3.Enabled, "POTD_S3_ENABLED")
	envString(&cfg.S3.Endpoint, "POTD_S3_ENDPOINT")
	envString(&cfg.S3.Region, "POTD_S3_REGION")
	envString(&cfg.S3.Bucket, "POTD_S3_BUCKET")
	envString(&cfg.S3.AccessKey, "POTD_S3_ACCESS_KEY")
	envString(&cfg.S3.SecretKey, "POTD_S3_SECRET_KEY")
	envBool(&cfg.S3.UseSSL, "POTD_S3_USE_SSL")
	envBool(&cfg.S3.ForcePathStyle, "POTD_S3_FORCE_PATH_STYLE")

	envString(&cfg.Chain.RPCURL, "POTD_CHAIN_RPC_URL")
	envInt(&cfg.Chain.ChainID, "POTD_CHAIN_ID")

	envDuration(&cfg.Settlement.GraceWindow, "POTD_GRACE_WINDOW")
	envDuration(&cfg.Settlement.EvidenceWindow, "POTD_EVIDENCE_WINDOW")

	envBool(&cfg.Scheduler.Enabled, "POTD_SCHEDULER_ENABLED")
	envString(&cfg.Scheduler.SettleCron, "POTD_SCHEDULER_SETTLE_CRON")

	envBool(&cfg.Server.Enabled, "POTD_SERVER_ENABLED")
	envInt(&cfg.Server.Port, "POTD_SERVER_PORT")
	envString(&cfg.Server.APIKey, "POTD_SERVER_API_KEY")
	envList(&cfg.Server.CORSOrigins, "POTD_SERVER_CORS_ORIGINS")

	envString(&cfg.Notify.TelegramToken, "POTD_NOTIFY_TELEGRAM_TOKEN")
	envString(&cfg.Notify.TelegramChatID, "POTD_NOTIFY_TELEGRAM_CHAT_ID")
	envString(&cfg.Notify.DiscordWebhookURL, "POTD_NOTIFY_DISCORD_WEBHOOK_URL")
	envList(&cfg.Notify.Events, "POTD_NOTIFY_EVENTS")

	envString(&cfg.Mode, "POTD_MODE")
	envString(&cfg.LogLevel, "POTD_LOG_LEVEL")
}

// lookup returns the variable's value and whether it should override, which
// requires it to be both set and non-empty.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}

func envString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func envBool(dst *bool, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

func envDuration(dst *duration, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		dst.Duration = d
	}
}

// envList splits a comma-separated variable, dropping empty entries. The
// override only applies when at least one entry survives.
func envList(dst *[]string, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	var items []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) > 0 {
		*dst = items
	}
}
