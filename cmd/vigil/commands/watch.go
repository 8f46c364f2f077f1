package commands

import (
	"fmt"
	"os"

	"github.com/dyluth/vigil/internal/printer"
	"github.com/dyluth/vigil/internal/watch"
	"github.com/spf13/cobra"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor victim alerts and operator decisions",
	Long: `Monitor the exchange between the bridge and the operator console.

Streams every alert the bridge publishes and every reply the console sends,
including replies the bridge will not recognise.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the default instance
  vigil watch

  # Export events as JSON
  vigil watch --output=json > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	client, err := consoleClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	return watch.StreamActivity(cmd.Context(), client, tokens(), outputFormat, os.Stdout)
}
