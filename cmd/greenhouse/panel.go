package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codefionn/greenhouse/internal/console"
	"github.com/codefionn/greenhouse/internal/socketclient"
	"github.com/spf13/cobra"
)

var (
	panelHost string
	panelPort int
)

// panelCmd runs an interactive control panel in the terminal.
var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Connect a terminal control panel to a relay",
	Long: `Connect to a relay as a control panel, print every node update and read
commands such as "on 1 2", "off 1 2" or "alloff" from standard input.`,
	RunE: runPanel,
}

func init() {
	rootCmd.AddCommand(panelCmd)
	panelCmd.Flags().StringVar(&panelHost, "host", "", "Relay host (overrides client.host)")
	panelCmd.Flags().IntVar(&panelPort, "port", 0, "Relay port (overrides client.port)")
}

func runPanel(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if panelHost != "" {
		cfg.Client.Host = panelHost
	}
	if panelPort != 0 {
		cfg.Client.Port = panelPort
	}

	// The terminal belongs to the panel, so logs only go to the file
	// unless asked for explicitly.
	closeLogger, err := initLogger(cfg, "panel")
	if err != nil {
		return err
	}
	defer closeLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory, err := openTransport(cfg)
	if err != nil {
		return err
	}

	view := console.NewPanel(os.Stdout)
	client := socketclient.NewPanelClient(socketclient.ConfigFrom(cfg, factory), view)
	if err := client.Open(ctx); err != nil {
		return err
	}
	defer client.Close()

	fmt.Fprintf(os.Stdout, "Connected to %s. Type 'help' for commands.\n", cfg.ServerAddress())
	return view.Run(ctx, os.Stdin, client)
}
