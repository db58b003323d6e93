package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_grpc":              "www.example:9000",
		"database_dsn":                    "postgres://db",
		"store_backend":                   "memory",
		"redis_addr":                      "redis:6379",
		"redis_key_prefix":                "rt:",
		"signing_algorithm":               "ES256",
		"secret_key":                      "my_secret_key",
		"private_key_file":                "/keys/priv.pem",
		"public_key_file":                 "/keys/pub.pem",
		"issuer":                          "iss",
		"audience":                        "aud",
		"access_token_validity_duration":  "5m",
		"refresh_token_validity_duration": "240h",
		"clock_skew":                      1000000000,
		"log_level":                       "warn",
		"admin_username":                  "root",
		"admin_password":                  "toor",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, parseJson(cfg, []string{"-config", pathFlag}))

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "memory", cfg.StoreBackend)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, "rt:", cfg.RedisKeyPrefix)
		assert.Equal(t, "ES256", cfg.SigningAlgorithm)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, "/keys/priv.pem", cfg.PrivateKeyFile)
		assert.Equal(t, "/keys/pub.pem", cfg.PublicKeyFile)
		assert.Equal(t, "iss", cfg.Issuer)
		assert.Equal(t, "aud", cfg.Audience)
		assert.Equal(t, 5*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 240*time.Hour, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, time.Second, cfg.ClockSkew)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, "root", cfg.AdminUsername)
		assert.Equal(t, "toor", cfg.AdminPassword)
	})

	t.Run("short flag", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, parseJson(cfg, []string{"-c", pathFlag}))
		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		want := *cfg

		require.NoError(t, parseJson(cfg, nil))
		assert.Equal(t, want, *cfg)
	})

	t.Run("partial file keeps other values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"issuer": "only-this"})
		cfg := &Config{}
		cfg.LoadDefaults()

		require.NoError(t, parseJson(cfg, []string{"-c", partial}))
		assert.Equal(t, "only-this", cfg.Issuer)
		assert.Equal(t, ":50051", cfg.EndpointAddrGRPC)
		assert.Equal(t, 5*time.Minute, cfg.AccessTokenValidityDuration)
	})

	t.Run("invalid JSON → error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		require.Error(t, parseJson(&Config{}, []string{"-config", bad}))
	})

	t.Run("missing file → error", func(t *testing.T) {
		require.Error(t, parseJson(&Config{}, []string{"-c", filepath.Join(dir, "nope.json")}))
	})
}
