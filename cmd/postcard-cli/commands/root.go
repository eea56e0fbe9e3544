package commands

import (
	"context"
	"fmt"
	"os"

	"postcard-creator/lib/serviceutil"
	"postcard-creator/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath *string
	debug      *bool
	traceDir   *string
	tokenCache *string
)

// state is populated before any subcommand runs.
var state struct {
	cfg Config
	tel telemetry.Telemetry
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file to read credentials and addresses from.")
	debug = rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging.")
	traceDir = rootCmd.PersistentFlags().String("trace-dir", "", "Write a dump of every http request into this directory.")
	tokenCache = rootCmd.PersistentFlags().String("token-cache", "", "Cache access tokens in the given sqlite database.")
}

var rootCmd = &cobra.Command{
	Use:   "postcard-cli",
	Short: "postcard-cli sends free postcards through the swiss post postcard creator.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*debug)

		// an explicit --config is only read from where it points to
		search := !cmd.Root().PersistentFlags().Changed("config")
		cfg, err := loadConfig(*configPath, search)
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		state.cfg = cfg

		state.tel, err = telemetry.Setup(cmd.Context(), "postcard-cli", cfg.Telemetry)
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		err := state.tel.Shutdown(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to flush telemetry:", err)
		}
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
