package config

import (
	"github.com/damoang/angple-messenger/pkg/logger"
)

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

// LogResolved logs the effective configuration with secrets masked
func LogResolved(cfg *Config) {
	log := logger.Component("config")

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.Server.Port).
		Str("db_driver", cfg.Database.Driver).
		Str("db_host", cfg.Database.Host).
		Str("db_name", cfg.Database.DBName).
		Str("db_password", mask(cfg.Database.Password)).
		Bool("redis", cfg.Redis.Enabled).
		Str("redis_host", cfg.Redis.Host).
		Str("jwt_secret", mask(cfg.JWT.Secret)).
		Msg("resolved config")

	log.Info().
		Str("key_kind", cfg.Identity.KeyKind).
		Bool("hard_delete", cfg.Messaging.HardDeleteEnabled()).
		Int("page_size", cfg.Messaging.DefaultPageSize).
		Bool("editing", cfg.Editing.Enabled).
		Int("edit_limit_min", cfg.Editing.TimeLimitMinutes).
		Bool("broadcast", cfg.Broadcast.Enabled).
		Str("broadcast_driver", cfg.Broadcast.Driver).
		Bool("broadcast_async", cfg.Broadcast.Async).
		Str("pusher_secret", mask(cfg.Broadcast.Pusher.Secret)).
		Str("http_relay_secret", mask(cfg.Broadcast.HTTP.Secret)).
		Str("locale", cfg.I18n.DefaultLocale).
		Msg("messaging config")

	log.Info().
		Bool("uploads", cfg.Uploads.Enabled).
		Str("uploads_driver", cfg.Uploads.Driver).
		Str("s3_bucket", cfg.Uploads.S3.Bucket).
		Str("s3_secret", mask(cfg.Uploads.S3.SecretAccessKey)).
		Bool("rate_limit", cfg.RateLimit.Enabled).
		Int("writes_per_minute", cfg.RateLimit.WritesPerMinute).
		Msg("uploads config")
}
