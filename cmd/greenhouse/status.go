package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/codefionn/greenhouse/internal/lockfile"
	"github.com/codefionn/greenhouse/internal/web"
	"github.com/spf13/cobra"
)

// statusCmd reports on the relay serving the configured port.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a relay is running on the configured port",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer cfg.SetKeystorePassword(nil)

		out := cmd.OutOrStdout()
		info, err := lockfile.Read(cfg.LockPath())
		if errors.Is(err, lockfile.ErrNotRunning) || (err == nil && !info.Alive()) {
			fmt.Fprintf(out, "No relay running on port %d\n", cfg.Server.Port)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Relay running (pid %d) on %s, tls %t, up %s\n",
			info.PID, info.RelayAddr, info.TLS, time.Since(info.Started).Round(time.Second))
		if info.WebAddr == "" {
			return nil
		}

		status, err := fetchStatus(info.WebAddr)
		if err != nil {
			fmt.Fprintf(out, "Web gateway on %s not reachable: %v\n", info.WebAddr, err)
			return nil
		}
		fmt.Fprintf(out, "Sessions: %d (%d nodes, %d control panels, %d unclassified), %d registered nodes\n",
			status.Sessions, status.Nodes, status.ControlPanels, status.Unclassified, status.Registered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func fetchStatus(addr string) (*web.Status, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var status web.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}
