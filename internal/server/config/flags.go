package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/docvault/internal/flagx"
)

// parseFlags overlays command-line flags onto config.
//
//	-a string            gRPC bind address
//	-m string            ops HTTP bind address (metrics, health)
//	-d string            database DSN
//	-db-driver string    postgres or sqlite
//	-s string            JWT HMAC secret
//	-token-ttl duration  lifetime of tokens issued by cmd/token
//	-blob string         blob backend: s3, bolt or memory
//	-u, -p string        S3 user and password
//	-b, -g, -e string    S3 bucket, region and endpoint
//	-bolt-path string    bbolt file for the bolt backend
//	-key string          master key, 64 hex chars
//	-cache-size int      version cache entries, 0 disables
//	-log-level string    debug, info, warn or error
//	-log-format string   json or text
//	-shutdown-timeout duration
//
// The passphrase and salt are deliberately not flags; set them through the
// environment or the JSON file.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("docvault", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrOps, "m", config.EndpointAddrOps, "ops HTTP address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DatabaseDriver, "db-driver", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.TokenTTL, "token-ttl", config.TokenTTL, "issued token lifetime")
	fs.StringVar(&config.BlobBackend, "blob", config.BlobBackend, "blob backend")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.BoltPath, "bolt-path", config.BoltPath, "bbolt blob file")
	fs.StringVar(&config.EncryptionKey, "key", config.EncryptionKey, "master key (hex)")
	fs.IntVar(&config.VersionCacheSize, "cache-size", config.VersionCacheSize, "version cache size")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format")
	fs.DurationVar(&config.ShutdownTimeout, "shutdown-timeout", config.ShutdownTimeout, "graceful shutdown timeout")

	return fs.Parse(flagx.FilterArgs(args, flagx.Names(fs)))
}
