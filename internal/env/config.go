package env

import (
	"context"
	"net/netip"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// Backend selects the delivery implementation by name.
	Backend string `env:"COURIER_BACKEND,default=relay"`

	// SelfAddr overrides the address this node advertises as its own.
	// Unset means resolve it from the hostname.
	SelfAddr netip.Addr `env:"COURIER_SELF_ADDR"`

	// AckTimeout bounds every send and receive exchange.
	AckTimeout time.Duration `env:"COURIER_ACK_TIMEOUT,default=3s"`

	DebugHTTP bool `env:"COURIER_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
