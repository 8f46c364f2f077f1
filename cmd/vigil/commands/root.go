package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dyluth/vigil/internal/actionserver"
	"github.com/dyluth/vigil/internal/config"
	"github.com/dyluth/vigil/internal/printer"
	"github.com/dyluth/vigil/pkg/console"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultServer = "http://127.0.0.1:8089"

// settings resolves persistent flags, falling back to VIGIL_* environment variables.
var settings = viper.New()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Vigil - operator-in-the-loop victim validation",
	Long: `Vigil forwards victim detections from a search-and-rescue agent to a human
operator and returns the operator's verdict.

The vigil CLI talks to both ends of a running vigil-bridge:
  - submit, preempt and status drive the bridge's action server
  - watch and decide act as the operator console over Redis`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	// Ctrl-C cancels the command; a blocked submit then preempts its goal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("server", defaultServer, "Bridge action server URL [VIGIL_SERVER]")
	flags.String("redis", "redis://127.0.0.1:6379", "Operator console Redis URL [REDIS_URL]")
	flags.StringP("name", "n", config.DefaultInstance, "Bridge instance name [VIGIL_INSTANCE_NAME]")
	flags.String("confirm-token", console.DefaultConfirmToken, "Payload meaning 'victim confirmed' [VIGIL_CONFIRM_TOKEN]")
	flags.String("reject-token", console.DefaultRejectToken, "Payload meaning 'victim rejected' [VIGIL_REJECT_TOKEN]")

	settings.SetEnvPrefix("VIGIL")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	for _, name := range []string{"server", "redis", "name", "confirm-token", "reject-token"} {
		_ = settings.BindPFlag(name, flags.Lookup(name))
	}
	_ = settings.BindEnv("redis", "REDIS_URL", "VIGIL_REDIS")
	_ = settings.BindEnv("name", "VIGIL_INSTANCE_NAME", "VIGIL_NAME")
}

func instanceName() string {
	return settings.GetString("name")
}

func tokens() console.Tokens {
	return console.Tokens{
		Confirm: settings.GetString("confirm-token"),
		Reject:  settings.GetString("reject-token"),
	}
}

func bridgeClient() *actionserver.Client {
	return actionserver.NewClient(settings.GetString("server"))
}

// consoleClient connects to the console's Redis and verifies it is reachable.
func consoleClient(cmd *cobra.Command) (*console.Client, error) {
	redisURL := settings.GetString("redis")
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, printer.Error(
			"invalid Redis URL",
			fmt.Sprintf("Could not parse %q: %v", redisURL, err),
			[]string{"Use the form redis://host:port, e.g.:\n  vigil --redis redis://127.0.0.1:6379 watch"},
		)
	}

	client, err := console.NewClient(redisOpts, instanceName())
	if err != nil {
		return nil, printer.Error("invalid instance name", err.Error(), nil)
	}

	if err := client.Ping(cmd.Context()); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", redisURL),
			map[string]string{"Error": err.Error()},
			[]string{
				"Check the operator console's Redis is running",
				"Point vigil at it:\n  vigil --redis redis://<host>:6379 ...",
			},
		)
	}

	return client, nil
}

// unreachable renders the standard error for a bridge that cannot be contacted.
func unreachable(err error) error {
	return printer.ErrorWithContext(
		"bridge not reachable",
		fmt.Sprintf("Could not contact the action server at %s", settings.GetString("server")),
		map[string]string{"Error": err.Error()},
		[]string{
			"Start the bridge:\n  vigil-bridge <console-host>",
			"Point vigil at it:\n  vigil --server http://<host>:8089 ...",
		},
	)
}
