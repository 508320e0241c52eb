package cmd

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/courier/internal/env"
)

var SendCmd = &cobra.Command{
	Use:   "send <dest> <payload>",
	Short: "Send one message through the destination's relay",
	Long: `Send one message through the destination's relay

The relay on the destination host stores the payload; it reaches the
destination whenever that host next collects its messages.

Usage
	courier send 10.0.0.7 "the cake is ready"

`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := env.MakeLogger()
		if err != nil {
			return err
		}

		conf, err := env.LoadConfig(context.Background())
		if err != nil {
			return err
		}

		dest, err := netip.ParseAddr(args[0])
		if err != nil {
			return fmt.Errorf("Failed to parse destination %q: %w", args[0], err)
		}

		backend, err := makeBackend(conf, log)
		if err != nil {
			return err
		}

		if err := backend.Send(dest, []byte(args[1])); err != nil {
			return err
		}

		log.Info("Message sent",
			zap.Stringer("dest", dest),
			zap.Int("bytes", len(args[1])))

		return nil
	},
}
