package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/courier/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "courier",
	Short: "A store-and-forward relay for one-way host to host messaging",
	Long: `Courier relays small one-way messages between hosts. Every host runs
a relay; producers push messages to the destination's relay, and the
destination collects them from its own relay whenever it likes.`,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(SendCmd)
	RootCmd.AddCommand(ReceiveCmd)
	RootCmd.AddCommand(gen.RootCmd)
}
