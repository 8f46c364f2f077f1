package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/vigil/internal/actionserver"
	"github.com/dyluth/vigil/internal/printer"
	"github.com/dyluth/vigil/internal/validator"
	"github.com/spf13/cobra"
)

var (
	submitVictimID    string
	submitX           float64
	submitY           float64
	submitProbability float64
	submitSensors     []string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a victim for operator validation and wait for the verdict",
	Long: `Submit a victim detection to the bridge and block until the operator
confirms or rejects it.

Only one victim can be awaiting a decision at a time. Press Ctrl-C to
withdraw the request; the bridge treats that as a preemption.

Examples:
  # Ask the operator about a thermal + CO2 detection
  vigil submit --victim v1 --x 3.2 --y -1.5 --probability 0.82 --sensor thermal --sensor co2`,
	Args: cobra.NoArgs,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitVictimID, "victim", "", "Victim identifier (required)")
	submitCmd.Flags().Float64Var(&submitX, "x", 0, "Victim x position")
	submitCmd.Flags().Float64Var(&submitY, "y", 0, "Victim y position")
	submitCmd.Flags().Float64VarP(&submitProbability, "probability", "p", 0, "Detection confidence")
	submitCmd.Flags().StringSliceVarP(&submitSensors, "sensor", "s", nil, "Sensor that contributed to the detection (repeatable)")
	_ = submitCmd.MarkFlagRequired("victim")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	goal := validator.Goal{
		VictimID:    submitVictimID,
		X:           submitX,
		Y:           submitY,
		Probability: submitProbability,
		Sensors:     submitSensors,
	}

	printer.Step("Waiting for operator decision on victim %s...\n", goal.VictimID)

	valid, err := bridgeClient().Submit(cmd.Context(), goal)
	if err != nil {
		return submitError(goal, err)
	}

	printer.Decision(goal.VictimID, valid)
	return nil
}

func submitError(goal validator.Goal, err error) error {
	switch {
	case errors.Is(err, actionserver.ErrUnreachable):
		return unreachable(err)
	case errors.Is(err, validator.ErrBusy):
		return printer.Error(
			"bridge busy",
			"Another victim is already awaiting the operator's decision.",
			[]string{
				"Wait for it to finish, or check what it is:\n  vigil status",
				"Withdraw it:\n  vigil preempt",
			},
		)
	case errors.Is(err, validator.ErrPreempted):
		return printer.Error(
			"validation preempted",
			fmt.Sprintf("The request for victim %s was cancelled before the operator answered.", goal.VictimID),
			nil,
		)
	case errors.Is(err, validator.ErrTimedOut):
		return printer.Error(
			"operator did not answer",
			fmt.Sprintf("No decision for victim %s arrived within the bridge's decision timeout.", goal.VictimID),
			[]string{"Check an operator console is watching:\n  vigil watch"},
		)
	case errors.Is(err, validator.ErrPublishFailure):
		return printer.ErrorWithContext(
			"alert not delivered",
			"The bridge could not publish the alert to the operator console.",
			map[string]string{"Error": err.Error()},
			[]string{"Check the bridge's Redis connection:\n  vigil status"},
		)
	case errors.Is(err, validator.ErrStopped):
		return printer.Error(
			"bridge stopped",
			"The bridge is shutting down or has lost its operator console subscription.",
			[]string{"Restart the bridge:\n  vigil-bridge <console-host>"},
		)
	case errors.Is(err, validator.ErrInvalidGoal):
		return printer.Error("invalid victim", err.Error(), nil)
	default:
		return printer.Error("submit failed", err.Error(), nil)
	}
}
