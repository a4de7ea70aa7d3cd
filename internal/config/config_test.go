package config

import (
	"context"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	ctx := context.Background()

	cfg, err := load(ctx, envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "scrape", cfg.Lookup.Mode)
	assert.Equal(t, 10, cfg.Lookup.TimeoutSeconds)
	assert.Equal(t, "unveil-bridge", cfg.Observe.ServiceName)
	assert.Empty(t, cfg.Rules.File)
}

func TestLoad_ValkeyRequiresAddress(t *testing.T) {
	ctx := context.Background()

	_, err := load(ctx, envconfig.MapLookuper(map[string]string{
		"CACHE_TYPE": "valkey",
	}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "VALKEY_ADDRESS")
}

func TestLoad_InvalidCacheType(t *testing.T) {
	ctx := context.Background()

	_, err := load(ctx, envconfig.MapLookuper(map[string]string{
		"CACHE_TYPE": "redis",
	}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cache type")
}

func TestLoad_InvalidLookupMode(t *testing.T) {
	ctx := context.Background()

	_, err := load(ctx, envconfig.MapLookuper(map[string]string{
		"LOOKUP_MODE": "ldap",
	}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid lookup mode")
}

func TestLoad_ValkeySettings(t *testing.T) {
	ctx := context.Background()

	cfg, err := load(ctx, envconfig.MapLookuper(map[string]string{
		"CACHE_TYPE":      "valkey",
		"VALKEY_ADDRESS":  "cache.internal:6379",
		"VALKEY_TLS":      "false",
		"VALKEY_USERNAME": "bridge",
	}))
	require.NoError(t, err)

	assert.Equal(t, "cache.internal:6379", cfg.Cache.Valkey.Address)
	assert.False(t, cfg.Cache.Valkey.TLS)
	assert.Equal(t, "bridge", cfg.Cache.Valkey.Username)
}
