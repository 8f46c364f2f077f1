package commands

import (
	"fmt"

	"github.com/dyluth/vigil/internal/printer"
	"github.com/dyluth/vigil/pkg/console"
	"github.com/spf13/cobra"
)

var decideRequestID string

var decideCmd = &cobra.Command{
	Use:   "decide confirm|reject",
	Short: "Answer the pending victim as the operator",
	Long: `Publish an operator decision on the bridge's decision channel, exactly as
the operator console does.

A decision sent while no victim is pending is discarded by the bridge.

Examples:
  vigil decide confirm
  vigil decide reject --request-id 5f0c...`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"confirm", "reject"},
	RunE:      runDecide,
}

func init() {
	decideCmd.Flags().StringVar(&decideRequestID, "request-id", "", "Echo this request ID (bridges running with correlation)")
	rootCmd.AddCommand(decideCmd)
}

func runDecide(cmd *cobra.Command, args []string) error {
	var valid bool
	switch args[0] {
	case "confirm":
		valid = true
	case "reject":
		valid = false
	default:
		return printer.Error(
			"invalid decision",
			fmt.Sprintf("Unknown decision: %s", args[0]),
			[]string{"Valid decisions: confirm, reject"},
		)
	}

	t := tokens()
	if err := t.Validate(); err != nil {
		return printer.Error("invalid decision tokens", err.Error(), nil)
	}

	client, err := consoleClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	receivers, err := client.PublishDecision(cmd.Context(), console.Decision{Valid: valid, RequestID: decideRequestID}, t)
	if err != nil {
		return printer.Error("failed to send decision", err.Error(), nil)
	}

	if receivers == 0 {
		printer.Warning("Decision sent but no bridge is listening on instance '%s'\n", instanceName())
		return nil
	}

	printer.Success("Sent %q to %s\n", console.EncodeDecision(console.Decision{Valid: valid, RequestID: decideRequestID}, t), console.DecisionsChannel(instanceName()))
	return nil
}
