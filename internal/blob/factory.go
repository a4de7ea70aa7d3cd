package blob

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/unveil/unveil-bridge/internal/config"
	"github.com/valkey-io/valkey-go"
)

// NewFromConfig creates a blob store implementation based on the provided
// configuration. It returns the store and any error encountered.
//
// The cache type must be either "memory" or "valkey". Any other value returns
// an error. For "valkey", cacheConfig.Valkey.Address must be provided.
func NewFromConfig[T any](
	ctx context.Context,
	cacheConfig config.CacheConfig,
) (Store[T], error) {
	switch cacheConfig.Type {
	case "valkey":
		log.Info().
			Str("store_type", "valkey").
			Str("address", cacheConfig.Valkey.Address).
			Bool("tls", cacheConfig.Valkey.TLS).
			Msg("initializing distributed name store")

		if cacheConfig.Valkey.Address == "" {
			return nil, fmt.Errorf("valkey address is required when cache type is valkey")
		}

		valkeyOpts := valkey.ClientOption{
			InitAddress: []string{cacheConfig.Valkey.Address},
			Username:    cacheConfig.Valkey.Username,
			Password:    cacheConfig.Valkey.Password,
		}

		if cacheConfig.Valkey.TLS {
			valkeyOpts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}

		valkeyClient, err := valkey.NewClient(valkeyOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to create valkey client: %w", err)
		}

		distributed, err := NewDistributed[T](valkeyClient)
		if err != nil {
			valkeyClient.Close()
			return nil, fmt.Errorf("failed to create distributed store: %w", err)
		}

		return NewInstrumented[T](distributed, "distributed"), nil

	case "memory":
		log.Info().
			Str("store_type", "memory").
			Msg("initializing in-memory name store")

		memory, err := NewMemory[T](cacheConfig.MaxOrigins)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory store: %w", err)
		}

		return NewInstrumented[T](memory, "memory"), nil

	default:
		return nil, fmt.Errorf("invalid cache type %q: must be either \"memory\" or \"valkey\"", cacheConfig.Type)
	}
}
