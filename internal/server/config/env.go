package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by parseEnv.
const EnvPrefix = "DOCVAULT_"

// dotenvPath is the optional dotenv file loaded before reading variables.
// Variables already present in the environment win over the file.
var dotenvPath = ".env"

// parseEnv overlays DOCVAULT_* environment variables onto config.
func parseEnv(config *Config) error {
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", dotenvPath, err)
	}

	strs := map[string]*string{
		"GRPC_ADDR":             &config.EndpointAddrGRPC,
		"OPS_ADDR":              &config.EndpointAddrOps,
		"DB_DRIVER":             &config.DatabaseDriver,
		"DATABASE_DSN":          &config.DatabaseDSN,
		"SECRET_KEY":            &config.SecretKey,
		"BLOB_BACKEND":          &config.BlobBackend,
		"S3_USER":               &config.S3RootUser,
		"S3_PASSWORD":           &config.S3RootPassword,
		"S3_BUCKET":             &config.S3Bucket,
		"S3_REGION":             &config.S3Region,
		"S3_ENDPOINT":           &config.S3BaseEndpoint,
		"BOLT_PATH":             &config.BoltPath,
		"ENCRYPTION_KEY":        &config.EncryptionKey,
		"ENCRYPTION_PASSPHRASE": &config.EncryptionPassphrase,
		"ENCRYPTION_SALT":       &config.EncryptionSalt,
		"LOG_LEVEL":             &config.LogLevel,
		"LOG_FORMAT":            &config.LogFormat,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "CACHE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCACHE_SIZE: %w", EnvPrefix, err)
		}
		config.VersionCacheSize = n
	}

	durations := map[string]*time.Duration{
		"TOKEN_TTL":        &config.TokenTTL,
		"SHUTDOWN_TIMEOUT": &config.ShutdownTimeout,
	}
	for name, dst := range durations {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}
	return nil
}
