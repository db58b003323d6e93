package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of Config. Durations use timex.Duration,
// so both "5m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	StoreBackend                 string         `json:"store_backend"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisKeyPrefix               string         `json:"redis_key_prefix"`
	SigningAlgorithm             string         `json:"signing_algorithm"`
	SecretKey                    string         `json:"secret_key"`
	PrivateKeyFile               string         `json:"private_key_file"`
	PublicKeyFile                string         `json:"public_key_file"`
	Issuer                       string         `json:"issuer"`
	Audience                     string         `json:"audience"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	ClockSkew                    timex.Duration `json:"clock_skew"`
	LogLevel                     string         `json:"log_level"`
	AdminUsername                string         `json:"admin_username"`
	AdminPassword                string         `json:"admin_password"`
}

// parseJson overlays the JSON file named by -c / -config onto config.
// Keys absent from the file keep their current values. Without the flag
// nothing is loaded.
func parseJson(config *Config, args []string) error {
	jsonConfigFile := flagx.ConfigFileFlag(args)

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{
		EndpointAddrGRPC:             config.EndpointAddrGRPC,
		DatabaseDSN:                  config.DatabaseDSN,
		StoreBackend:                 config.StoreBackend,
		RedisAddr:                    config.RedisAddr,
		RedisKeyPrefix:               config.RedisKeyPrefix,
		SigningAlgorithm:             config.SigningAlgorithm,
		SecretKey:                    config.SecretKey,
		PrivateKeyFile:               config.PrivateKeyFile,
		PublicKeyFile:                config.PublicKeyFile,
		Issuer:                       config.Issuer,
		Audience:                     config.Audience,
		AccessTokenValidityDuration:  timex.Duration{Duration: config.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: config.RefreshTokenValidityDuration},
		ClockSkew:                    timex.Duration{Duration: config.ClockSkew},
		LogLevel:                     config.LogLevel,
		AdminUsername:                config.AdminUsername,
		AdminPassword:                config.AdminPassword,
	}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", jsonConfigFile, err)
	}

	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDSN = c.DatabaseDSN
	config.StoreBackend = c.StoreBackend
	config.RedisAddr = c.RedisAddr
	config.RedisKeyPrefix = c.RedisKeyPrefix
	config.SigningAlgorithm = c.SigningAlgorithm
	config.SecretKey = c.SecretKey
	config.PrivateKeyFile = c.PrivateKeyFile
	config.PublicKeyFile = c.PublicKeyFile
	config.Issuer = c.Issuer
	config.Audience = c.Audience
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	config.ClockSkew = c.ClockSkew.Duration
	config.LogLevel = c.LogLevel
	config.AdminUsername = c.AdminUsername
	config.AdminPassword = c.AdminPassword
	return nil
}
