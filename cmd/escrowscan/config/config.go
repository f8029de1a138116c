package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds ambient configuration loaded from environment variables.
// The run-specific inputs (output file, provider URL) come from CLI flags.
type Config struct {
	Network            string        `env:"ESCROWSCAN_NETWORK" envDefault:"mainnet"`
	RegistryURL        string        `env:"ESCROWSCAN_REGISTRY_URL" envDefault:"https://api.synthetix.io"`
	DefaultProviderURL string        `env:"ESCROWSCAN_PROVIDER_URL" envDefault:"https://ethereum-rpc.publicnode.com"`
	HTTPClientTimeout  time.Duration `env:"ESCROWSCAN_HTTP_CLIENT_TIMEOUT" envDefault:"30s"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	LogHumanFriendly   bool          `env:"LOG_HUMAN_FRIENDLY" envDefault:"true"`
}

// New loads all configuration from environment variables
func New() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}
	return cfg
}
