package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/photoai/internal/flagx"
	"github.com/dmitrijs2005/photoai/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Duration
// fields use timex.Duration so both "200ms" and integer nanoseconds parse.
// Zero values leave the corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddrHTTP          string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC          string         `json:"endpoint_addr_grpc"`
	DatabaseDSN               string         `json:"database_dsn"`
	SecretKey                 string         `json:"secret_key"`
	TokenValidityDuration     timex.Duration `json:"token_validity_duration"`
	ResolverAttempts          int            `json:"resolver_attempts"`
	ResolverDelay             timex.Duration `json:"resolver_delay"`
	ConversionWebhookURL      string         `json:"conversion_webhook_url"`
	ConversionWebhookTimeout  timex.Duration `json:"conversion_webhook_timeout"`
	ConversionWorkers         int            `json:"conversion_workers"`
	ConversionQueueSize       int            `json:"conversion_queue_size"`
	DefaultCurrency           string         `json:"default_currency"`
	IdentityBaseURL           string         `json:"identity_base_url"`
	OneTimeCreditBundle       int64          `json:"one_time_credit_bundle"`
	RedisAddr                 string         `json:"redis_addr"`
	WebhookDedupTTL           timex.Duration `json:"webhook_dedup_ttl"`
	S3Bucket                  string         `json:"s3_bucket"`
	S3Region                  string         `json:"s3_region"`
	S3BaseEndpoint            string         `json:"s3_base_endpoint"`
	UploadURLValidityDuration timex.Duration `json:"upload_url_validity_duration"`
	LogLevel                  string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by -c or
// -config into config. Nothing happens when neither flag is given; an
// unreadable or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.ConversionWebhookURL, c.ConversionWebhookURL)
	setString(&config.DefaultCurrency, c.DefaultCurrency)
	setString(&config.IdentityBaseURL, c.IdentityBaseURL)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)

	setDuration(&config.TokenValidityDuration, c.TokenValidityDuration)
	setDuration(&config.ResolverDelay, c.ResolverDelay)
	setDuration(&config.ConversionWebhookTimeout, c.ConversionWebhookTimeout)
	setDuration(&config.WebhookDedupTTL, c.WebhookDedupTTL)
	setDuration(&config.UploadURLValidityDuration, c.UploadURLValidityDuration)

	if c.ResolverAttempts > 0 {
		config.ResolverAttempts = c.ResolverAttempts
	}
	if c.ConversionWorkers > 0 {
		config.ConversionWorkers = c.ConversionWorkers
	}
	if c.ConversionQueueSize > 0 {
		config.ConversionQueueSize = c.ConversionQueueSize
	}
	if c.OneTimeCreditBundle > 0 {
		config.OneTimeCreditBundle = c.OneTimeCreditBundle
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
