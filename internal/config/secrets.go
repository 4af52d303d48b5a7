package config

import "slices"

const redacted = "***"

// RedactedConfig returns a copy of cfg safe to log: every credential field
// is replaced with "***" and the slice fields are cloned so the copy cannot
// be used to mutate the original.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	out.Markets = slices.Clone(cfg.Markets)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)

	for _, secret := range []*string{
		&out.Database.DSN,
		&out.Database.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Server.APIKey,
		&out.Notify.TelegramToken,
		&out.Notify.DiscordWebhookURL,
	} {
		if *secret != "" {
			*secret = redacted
		}
	}

	return out
}
