package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/codefionn/greenhouse/internal/consts"
	"github.com/codefionn/greenhouse/internal/protocol"
	"github.com/codefionn/greenhouse/internal/securemem"
	"github.com/joho/godotenv"
)

// Environment variables read from the process environment or the .env file.
const (
	EnvKeystorePath     = "KEYSTORE_PATH"
	EnvKeystorePassword = "KEYSTORE_PASSWORD"
	EnvLogLevel         = "GREENHOUSE_LOG_LEVEL"
	EnvLogPath          = "GREENHOUSE_LOG_PATH"
)

// ServerConfig configures the relay listener
type ServerConfig struct {
	BindAddress    string `json:"bind_address"`
	Port           int    `json:"port"`
	MaxConnections int    `json:"max_connections"`  // 0 = unlimited
	SendBufferSize int    `json:"send_buffer_size"` // queued lines per session
}

// TLSConfig describes the PKCS#12 keystore. TLS is enabled when KeystorePath is set.
type TLSConfig struct {
	KeystorePath       string `json:"keystore_path,omitempty"`
	ServerName         string `json:"server_name,omitempty"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty"`

	// KeystorePassword only comes from the environment or a prompt.
	KeystorePassword *securemem.String `json:"-"`
}

// Enabled reports whether a keystore is configured
func (t TLSConfig) Enabled() bool {
	return t.KeystorePath != ""
}

// WebConfig configures the optional HTTP gateway
type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Pprof   bool   `json:"pprof"`
}

// ClientConfig configures peer clients dialing the relay
type ClientConfig struct {
	Host                  string `json:"host"`
	Port                  int    `json:"port"`
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds"`
	ProxyURL              string `json:"proxy_url,omitempty"` // socks5://host:port
}

// NodeSpec describes one simulated node by sensor and actuator counts
type NodeSpec struct {
	Temperature int `json:"temperature"`
	Humidity    int `json:"humidity"`
	Windows     int `json:"windows"`
	Fans        int `json:"fans"`
	Heaters     int `json:"heaters"`
}

// SimulatorConfig configures the nodes started by `greenhouse serve`
type SimulatorConfig struct {
	Nodes                 []NodeSpec `json:"nodes"`
	SensorIntervalSeconds int        `json:"sensor_interval_seconds"`
}

// Config represents application configuration
type Config struct {
	Server     ServerConfig    `json:"server"`
	TLS        TLSConfig       `json:"tls"`
	Web        WebConfig       `json:"web"`
	Client     ClientConfig    `json:"client"`
	Simulator  SimulatorConfig `json:"simulator"`
	LogLevel   string          `json:"log_level"` // debug, info, warn, error, none
	LogPath    string          `json:"log_path,omitempty"`
	LogConsole bool            `json:"log_console"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "greenhouse")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "greenhouse")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "greenhouse")
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "greenhouse")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "greenhouse")
	default:
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "greenhouse")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "greenhouse")
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:    "",
			Port:           protocol.DefaultServerPort,
			MaxConnections: consts.DefaultMaxConnections,
			SendBufferSize: consts.DefaultSendBufferSize,
		},
		Web: WebConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8080",
		},
		Client: ClientConfig{
			Host:                  "localhost",
			Port:                  protocol.DefaultServerPort,
			ConnectTimeoutSeconds: int(consts.DefaultConnectTimeout / time.Second),
		},
		Simulator: SimulatorConfig{
			// Same layout as the classic three-node greenhouse
			Nodes: []NodeSpec{
				{Temperature: 1, Humidity: 2, Windows: 1},
				{Temperature: 1, Fans: 2, Heaters: 1},
				{Temperature: 2},
			},
			SensorIntervalSeconds: int(consts.DefaultSensorInterval / time.Second),
		},
		LogLevel: "info",
		LogPath:  filepath.Join(defaultStateDir(), "greenhouse.log"),
	}
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

// Load loads configuration from file, then applies the .env file next to
// the working directory and finally the process environment. A missing
// config file yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		// Unmarshal into default config (overrides only provided fields)
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := config.ApplyEnv(".env"); err != nil {
		return nil, err
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.Server.SendBufferSize <= 0 {
		config.Server.SendBufferSize = consts.DefaultSendBufferSize
	}
	if config.Client.ConnectTimeoutSeconds <= 0 {
		config.Client.ConnectTimeoutSeconds = int(consts.DefaultConnectTimeout / time.Second)
	}

	return config, nil
}

// ApplyEnv overlays values from envFile (if it exists) and then from the
// process environment, which wins.
func (c *Config) ApplyEnv(envFile string) error {
	values := map[string]string{}
	if envFile != "" {
		fileValues, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			values = fileValues
		case errors.Is(err, os.ErrNotExist):
		default:
			return fmt.Errorf("read env file %s: %w", envFile, err)
		}
	}
	for _, key := range []string{EnvKeystorePath, EnvKeystorePassword, EnvLogLevel, EnvLogPath} {
		if v, ok := os.LookupEnv(key); ok {
			values[key] = v
		}
	}

	if v := values[EnvKeystorePath]; v != "" {
		c.TLS.KeystorePath = v
	}
	if v, ok := values[EnvKeystorePassword]; ok {
		c.SetKeystorePassword(securemem.NewString(v))
	}
	if v := values[EnvLogLevel]; v != "" {
		c.LogLevel = v
	}
	if v := values[EnvLogPath]; v != "" {
		c.LogPath = v
	}
	return nil
}

// SetKeystorePassword replaces the keystore password, destroying the old one.
func (c *Config) SetKeystorePassword(password *securemem.String) {
	if c.TLS.KeystorePassword != nil && c.TLS.KeystorePassword != password {
		c.TLS.KeystorePassword.Destroy()
	}
	c.TLS.KeystorePassword = password
}

// ListenAddress is the host:port the relay binds to
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Server.BindAddress, strconv.Itoa(c.Server.Port))
}

// ServerAddress is the host:port peer clients dial
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Client.Host, strconv.Itoa(c.Client.Port))
}

// LockPath is the lock file of the relay serving on the configured port
func (c *Config) LockPath() string {
	return filepath.Join(defaultStateDir(), fmt.Sprintf("relay-%d.lock", c.Server.Port))
}

// ConnectTimeout returns the client dial timeout
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Client.ConnectTimeoutSeconds) * time.Second
}

// SensorInterval returns how often simulated nodes publish readings
func (c *Config) SensorInterval() time.Duration {
	if c.Simulator.SensorIntervalSeconds <= 0 {
		return consts.DefaultSensorInterval
	}
	return time.Duration(c.Simulator.SensorIntervalSeconds) * time.Second
}

// Validate checks the configuration for values the relay cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Client.Port <= 0 || c.Client.Port > 65535 {
		errs = append(errs, fmt.Errorf("client.port out of range: %d", c.Client.Port))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("server.max_connections must not be negative: %d", c.Server.MaxConnections))
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		errs = append(errs, errors.New("web.addr is required when web.enabled is set"))
	}
	for i, n := range c.Simulator.Nodes {
		if n.Temperature < 0 || n.Humidity < 0 || n.Windows < 0 || n.Fans < 0 || n.Heaters < 0 {
			errs = append(errs, fmt.Errorf("simulator.nodes[%d]: counts must not be negative", i))
		}
	}
	if c.Client.ProxyURL != "" && !strings.HasPrefix(c.Client.ProxyURL, "socks5://") {
		errs = append(errs, fmt.Errorf("client.proxy_url must be a socks5:// URL: %s", c.Client.ProxyURL))
	}
	return errors.Join(errs...)
}

// Save saves configuration to file. The keystore password is never written.
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
