package jsonlcli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oremus-labs/ol-jsonl/internal/client"
	"github.com/spf13/cobra"
)

var (
	cfgFile       string
	contextName   string
	overrideURL   string
	overrideToken string
	outputFormat  string

	appConfig *Config
)

// Execute runs the CLI. Interrupts cancel the running stream.
func Execute() error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "jsonl",
	Short: "Consume NDJSON streams",
	Long: `jsonl reads newline-delimited JSON streams from the stream server.
Point it at a server with --server or a saved context (see 'jsonl config set-context').`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Config commands load/save the file manually.
		if strings.HasPrefix(cmd.CommandPath(), "jsonl config") {
			return nil
		}
		if err := validateOutput(outputFormat); err != nil {
			return err
		}
		if appConfig == nil {
			var err error
			appConfig, err = LoadConfig(cfgFile)
			if err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath(), "Path to the jsonl config file")
	rootCmd.PersistentFlags().StringVar(&contextName, "context", "", "Context name to use (overrides current)")
	rootCmd.PersistentFlags().StringVar(&overrideURL, "server", "", "Override API server URL")
	rootCmd.PersistentFlags().StringVar(&overrideToken, "token", "", "Override API token")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table|json|yaml")

	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(configCmd)
}

func mustClient() (*client.Client, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	ctx, err := appConfig.Resolve(Overrides{Context: contextName, Server: overrideURL, Token: overrideToken})
	if err != nil {
		return nil, err
	}
	return &client.Client{
		BaseURL: ctx.Server,
		Token:   ctx.Token,
		Timeout: 15 * time.Second,
	}, nil
}

func validateOutput(format string) error {
	switch strings.ToLower(format) {
	case "table", "", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
