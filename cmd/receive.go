package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/courier/internal/env"
)

var ReceiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Collect the oldest message waiting at this host's relay",
	Long: `Collect the oldest message waiting at this host's relay

The payload is written to stdout. Collecting removes the message; run
again for the next one.

Usage
	courier receive

`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := env.MakeLogger()
		if err != nil {
			return err
		}

		conf, err := env.LoadConfig(context.Background())
		if err != nil {
			return err
		}

		backend, err := makeBackend(conf, log)
		if err != nil {
			return err
		}

		delivered, err := backend.Receive()
		if err != nil {
			return err
		}

		if delivered == nil {
			log.Info("No message waiting")
			return nil
		}

		from := "an anonymous sender"
		if delivered.Source.IsValid() {
			from = delivered.Source.String()
		}

		log.Info("Message received",
			zap.String("from", from),
			zap.Int("bytes", len(delivered.Payload)))

		if _, err := cmd.OutOrStdout().Write(append(delivered.Payload, '\n')); err != nil {
			return err
		}

		return nil
	},
}
