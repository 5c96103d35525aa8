package config

import "github.com/dmitrijs2005/photoai/internal/flagx"

// parseEnv overlays secrets and deployment-specific endpoints from the
// environment. Secrets are never read from flags in production deployments,
// so this is the last and strongest source.
func parseEnv(config *Config) {
	flagx.StringFromEnv(&config.DatabaseDSN, "DATABASE_DSN")
	flagx.StringFromEnv(&config.SecretKey, "SECRET_KEY")
	flagx.StringFromEnv(&config.ConversionWebhookURL, "CONVERSION_WEBHOOK_URL")
	flagx.StringFromEnv(&config.IdentityBaseURL, "IDENTITY_BASE_URL")
	flagx.StringFromEnv(&config.IdentityAPIKey, "IDENTITY_API_KEY")
	flagx.StringFromEnv(&config.StripeSecretKey, "STRIPE_SECRET_KEY")
	flagx.StringFromEnv(&config.StripeWebhookSecret, "STRIPE_WEBHOOK_SECRET")
	flagx.StringFromEnv(&config.AdminBypassCode, "ADMIN_BYPASS_CODE")
	flagx.StringFromEnv(&config.RedisAddr, "REDIS_ADDR")
	flagx.StringFromEnv(&config.RedisPassword, "REDIS_PASSWORD")
	flagx.StringFromEnv(&config.S3RootUser, "S3_ROOT_USER")
	flagx.StringFromEnv(&config.S3RootPassword, "S3_ROOT_PASSWORD")
}
