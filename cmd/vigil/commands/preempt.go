package commands

import (
	"errors"

	"github.com/dyluth/vigil/internal/actionserver"
	"github.com/dyluth/vigil/internal/printer"
	"github.com/dyluth/vigil/internal/validator"
	"github.com/spf13/cobra"
)

var preemptCmd = &cobra.Command{
	Use:   "preempt",
	Short: "Withdraw the victim currently awaiting a decision",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := bridgeClient().Preempt(cmd.Context())
		switch {
		case err == nil:
			printer.Success("Preemption requested\n")
			return nil
		case errors.Is(err, validator.ErrNoActiveGoal):
			printer.Warning("No victim is awaiting a decision\n")
			return nil
		case errors.Is(err, actionserver.ErrUnreachable):
			return unreachable(err)
		default:
			return printer.Error("preempt failed", err.Error(), nil)
		}
	},
}

func init() {
	rootCmd.AddCommand(preemptCmd)
}
