package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/codefionn/greenhouse/internal/config"
	"github.com/codefionn/greenhouse/internal/greenhouse"
	"github.com/codefionn/greenhouse/internal/lockfile"
	"github.com/codefionn/greenhouse/internal/logger"
	"github.com/codefionn/greenhouse/internal/registry"
	"github.com/codefionn/greenhouse/internal/socketclient"
	"github.com/codefionn/greenhouse/internal/socketserver"
	"github.com/codefionn/greenhouse/internal/web"
	"github.com/spf13/cobra"
)

var (
	serveBind  string
	servePort  int
	serveWeb   string
	servePprof bool
)

// serveCmd runs the relay and the simulated greenhouse.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server with the simulated nodes",
	Long: `Start the relay server, create the simulated nodes from the configuration
and connect one node client per node to the relay. With --web the HTTP
gateway is started as well.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "Bind address (overrides server.bind_address)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Relay port (overrides server.port)")
	serveCmd.Flags().StringVar(&serveWeb, "web", "", "Enable the HTTP gateway on this address")
	serveCmd.Flags().BoolVar(&servePprof, "pprof", false, "Expose /debug/pprof on the HTTP gateway")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("bind") {
		cfg.Server.BindAddress = serveBind
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveWeb != "" {
		cfg.Web.Enabled = true
		cfg.Web.Addr = serveWeb
	}
	if servePprof {
		cfg.Web.Pprof = true
	}

	closeLogger, err := initLogger(cfg, "relay")
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

	reg := registry.New()
	nodeFactory := greenhouse.NewFactory()
	nodes := make([]*greenhouse.Node, 0, len(cfg.Simulator.Nodes))
	for _, spec := range cfg.Simulator.Nodes {
		node := nodeFactory.CreateNode(spec.Temperature, spec.Humidity, spec.Windows, spec.Fans, spec.Heaters)
		if err := reg.Add(node); err != nil {
			return err
		}
		nodes = append(nodes, node)
	}
	logger.Info("Greenhouse initialized with %d nodes", len(nodes))

	srv, err := socketserver.NewServer(cfg, reg, factory)
	if err != nil {
		return err
	}
	if err := srv.Listen(cfg.ListenAddress()); err != nil {
		return err
	}

	info := lockfile.Info{RelayAddr: srv.Addr().String(), TLS: factory.TLS()}
	if cfg.Web.Enabled {
		info.WebAddr = cfg.Web.Addr
	}
	lock, err := lockfile.Acquire(cfg.LockPath(), info)
	if err != nil {
		srv.Stop()
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("%v", err)
		}
	}()

	// The relay outlives ctx so the nodes can still announce their stop
	serveCtx, cancelServe := context.WithCancel(context.Background())
	defer cancelServe()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(serveCtx)
	}()

	if cfg.Web.Enabled {
		gateway := web.NewServer(cfg.Web, srv)
		if err := gateway.Start(cfg.Web.Addr); err != nil {
			srv.Stop()
			return err
		}
		defer func() {
			if err := gateway.Stop(); err != nil {
				logger.Warn("%v", err)
			}
		}()
	}

	clientCfg := socketclient.ConfigFrom(cfg, factory)
	if addr, ok := srv.Addr().(*net.TCPAddr); ok {
		clientCfg.Address = net.JoinHostPort(cfg.Client.Host, strconv.Itoa(addr.Port))
	}
	clients := make([]*socketclient.NodeClient, 0, len(nodes))
	for _, node := range nodes {
		client := socketclient.NewNodeClient(clientCfg, node)
		if err := client.Start(ctx); err != nil {
			logger.Error("Failed to start client for node %d: %v", node.ID(), err)
			continue
		}
		clients = append(clients, client)
	}

	go greenhouse.NewSimulator(cfg.SensorInterval(), nodes...).Run(ctx)
	go watchConfig(ctx)

	fmt.Fprintf(os.Stderr, "Relay listening on %s (tls: %t)\n", srv.Addr(), factory.TLS())

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("relay server failed: %w", err)
		}
	}

	logger.Info("Shutting down...")
	for _, client := range clients {
		if err := client.Stop(); err != nil {
			logger.Debug("Stopping node client: %v", err)
		}
	}
	srv.Stop()
	return nil
}

// watchConfig applies log level changes from the config file while running.
func watchConfig(ctx context.Context) {
	err := config.Watch(ctx, configPath(), func(cfg *config.Config) {
		cfg.SetKeystorePassword(nil)
		if logLevel != "" {
			return
		}
		level := logger.ParseLevel(cfg.LogLevel)
		if level != logger.Global().GetLevel() {
			logger.Global().SetLevel(level)
			logger.Info("Log level changed to %s", level)
		}
	})
	if err != nil {
		logger.Warn("Config file is not watched: %v", err)
	}
}
