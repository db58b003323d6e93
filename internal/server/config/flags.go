package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
)

var knownFlags = []string{
	"-a", "-d", "-store", "-redis", "-alg", "-s", "-private-key", "-public-key",
	"-iss", "-aud", "-t", "-r", "-skew", "-log-level", "-admin-user", "-admin-password",
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string            gRPC bind address (e.g., ":50051")
//	-d string            PostgreSQL DSN
//	-store string        token store backend: postgres, redis, memory
//	-redis string        Redis address
//	-alg string          signing algorithm
//	-s string            HMAC secret key
//	-private-key string  PEM private key file
//	-public-key string   PEM public key file
//	-iss string          token issuer
//	-aud string          token audience
//	-t int               access token validity, minutes
//	-r int               refresh token validity, minutes
//	-skew int            clock skew, seconds
//	-log-level string    log level
//	-admin-user string   admin account seeded at startup
//	-admin-password string  password of the seeded admin
//
// args is filtered with flagx.FilterArgs first, so flags that belong to
// other layers (-c) do not cause errors.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.StoreBackend, "store", config.StoreBackend, "refresh token store: postgres, redis or memory")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.SigningAlgorithm, "alg", config.SigningAlgorithm, "signing algorithm")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.PrivateKeyFile, "private-key", config.PrivateKeyFile, "PEM private key file")
	fs.StringVar(&config.PublicKeyFile, "public-key", config.PublicKeyFile, "PEM public key file")
	fs.StringVar(&config.Issuer, "iss", config.Issuer, "token issuer")
	fs.StringVar(&config.Audience, "aud", config.Audience, "token audience")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.AdminUsername, "admin-user", config.AdminUsername, "admin account seeded at startup")
	fs.StringVar(&config.AdminPassword, "admin-password", config.AdminPassword, "password of the seeded admin")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")
	clockSkew := fs.Int("skew", int(config.ClockSkew.Seconds()), "clock skew (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// only touch durations that were given, so sub-minute JSON values survive
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
		case "skew":
			config.ClockSkew = time.Duration(*clockSkew) * time.Second
		}
	})
	return nil
}
