package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/vigil/internal/actionserver"
	"github.com/dyluth/vigil/internal/printer"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bridge health and the victim awaiting a decision",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := bridgeClient()

	health, err := client.Health(cmd.Context())
	if err != nil {
		if errors.Is(err, actionserver.ErrUnreachable) {
			return unreachable(err)
		}
		return printer.Error("status failed", err.Error(), nil)
	}

	if health.Status == "healthy" {
		printer.Success("Bridge healthy (Redis %s)\n", health.Redis)
	} else {
		printer.Warning("Bridge unhealthy: %s\n", health.Error)
	}

	snapshot, err := client.Current(cmd.Context())
	if err != nil {
		return printer.Error("status failed", err.Error(), nil)
	}

	if snapshot == nil {
		printer.Info("No victim awaiting a decision\n")
		return nil
	}

	printer.Info("Awaiting decision:\n")
	sensors := strings.Join(snapshot.Goal.Sensors, ",")
	if sensors == "" {
		sensors = "-"
	}
	printer.Fields(map[string]string{
		"victim":  snapshot.VictimID,
		"request": snapshot.RequestID,
		"state":   snapshot.State,
		"waiting": time.Since(snapshot.Since).Round(time.Second).String(),
		"where":   fmt.Sprintf("(%.2f, %.2f)", snapshot.Goal.X, snapshot.Goal.Y),
		"sensors": sensors,
	})
	return nil
}
