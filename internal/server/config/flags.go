package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/photoai/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      session token validity, hours
//	-n int      profile resolver attempts
//	-w int      profile resolver delay, milliseconds
//	-k string   conversion webhook URL
//	-i string   identity issuer base URL
//	-r string   Redis address
//	-b string   S3 bucket name
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-l string   log level
//
// Notes:
//   - os.Args is first filtered with flagx.FilterArgs so unrelated flags
//     (for example the -c config path) do not break parsing.
//   - Durations are accepted as integers and converted to time.Duration.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-t", "-n", "-w", "-k", "-i", "-r", "-b", "-e", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port to run gRPC health server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Hours()), "session token validity (in hours)")
	fs.IntVar(&config.ResolverAttempts, "n", config.ResolverAttempts, "profile resolver attempts")
	resolverDelay := fs.Int("w", int(config.ResolverDelay.Milliseconds()), "profile resolver delay (in milliseconds)")

	fs.StringVar(&config.ConversionWebhookURL, "k", config.ConversionWebhookURL, "conversion webhook URL")
	fs.StringVar(&config.IdentityBaseURL, "i", config.IdentityBaseURL, "identity issuer base URL")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Hour
	config.ResolverDelay = time.Duration(*resolverDelay) * time.Millisecond
}
