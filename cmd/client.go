package cmd

import (
	"net/netip"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/courier/delivery"
	"github.com/luma/courier/internal/env"
)

// The relay port send and receive talk to
var clientPort int

func init() {
	for _, c := range []*cobra.Command{SendCmd, ReceiveCmd} {
		c.Flags().IntVarP(&clientPort, "port", "p", delivery.DefaultPort, "The port relays listen on")
	}
}

func makeBackend(conf *env.Config, log *zap.Logger) (delivery.Backend, error) {
	return delivery.New(conf.Backend, delivery.Options{
		Self:    resolveSelf(conf, log),
		Port:    clientPort,
		Timeout: conf.AckTimeout,
		Log:     log.Named("delivery"),
	})
}

// resolveSelf picks the address this node advertises as its own: the
// configured override when present, otherwise whatever the hostname
// resolves to. Hosts with no routable IPv4 fall back to loopback, which
// is also the only place their relay could be reached.
func resolveSelf(conf *env.Config, log *zap.Logger) netip.Addr {
	if conf.SelfAddr.IsValid() {
		return conf.SelfAddr
	}

	self, err := delivery.LocalIPv4()
	if err != nil {
		log.Warn("Failed to resolve a routable address, falling back to loopback",
			zap.Error(err))
		return netip.MustParseAddr("127.0.0.1")
	}

	return self
}
