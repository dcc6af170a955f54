package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/codefionn/greenhouse/internal/config"
	"github.com/codefionn/greenhouse/internal/logger"
	"github.com/codefionn/greenhouse/internal/securemem"
	"github.com/codefionn/greenhouse/internal/transport"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/pkcs12"
)

const maxPasswordAttempts = 3

var (
	configFile string
	logLevel   string
	logConsole bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "greenhouse",
	Short: "Greenhouse relay, simulated nodes and control panel",
	Long: `Greenhouse relays state between sensor/actuator nodes and control panels
over a line-based TCP protocol.

  greenhouse serve   run the relay together with the simulated nodes
  greenhouse panel   connect a terminal control panel to a relay`,
	SilenceUsage: true,
}

func main() {
	defer securemem.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (JSON); defaults to the user config dir")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Mirror log output to stderr")
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.GetConfigPath()
}

// loadConfig loads and validates the configuration, applying flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logConsole {
		cfg.LogConsole = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// initLogger installs the global logger and returns its cleanup.
func initLogger(cfg *config.Config, prefix string) (func(), error) {
	err := logger.Init(logger.Options{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Prefix:  prefix,
		Path:    cfg.LogPath,
		Console: cfg.LogConsole,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return func() {
		if err := logger.Global().Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", err)
		}
	}, nil
}

// openTransport builds the listener/dialer factory. When a keystore is
// configured without a password, the password is asked for on the terminal.
func openTransport(cfg *config.Config) (*transport.Factory, error) {
	if !cfg.TLS.Enabled() || cfg.TLS.KeystorePassword != nil {
		return transport.FromConfig(cfg)
	}

	for attempt := 0; attempt < maxPasswordAttempts; attempt++ {
		pw, err := securemem.ReadPassword(int(os.Stdin.Fd()), os.Stderr, "Keystore password: ")
		if err != nil {
			if errors.Is(err, securemem.ErrNotTerminal) {
				return nil, fmt.Errorf("keystore %s needs a password: set %s", cfg.TLS.KeystorePath, config.EnvKeystorePassword)
			}
			return nil, err
		}
		cfg.SetKeystorePassword(pw)

		factory, err := transport.FromConfig(cfg)
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			fmt.Fprintln(os.Stderr, "Invalid password, try again.")
			continue
		}
		return factory, err
	}
	return nil, errors.New("too many invalid password attempts")
}
