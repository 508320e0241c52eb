package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generators for courier's supporting files",
	Long:  `Generators for courier's supporting files, such as man pages`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
