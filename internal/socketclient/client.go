package socketclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codefionn/greenhouse/internal/config"
	"github.com/codefionn/greenhouse/internal/consts"
	"github.com/codefionn/greenhouse/internal/logger"
	"github.com/codefionn/greenhouse/internal/protocol"
	"github.com/codefionn/greenhouse/internal/transport"
)

// ConnectionState represents the current state of the relay connection
type ConnectionState int32

const (
	// StateDisconnected indicates the client is not connected
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates the client is dialing
	StateConnecting
	// StateConnected indicates the client is connected
	StateConnected
	// StateClosed indicates the owner has closed the client
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned when sending without a live connection
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyStarted is returned when connecting a client twice
	ErrAlreadyStarted = errors.New("already connected")
)

// Config holds client configuration
type Config struct {
	// Address is the relay's host:port
	Address string
	// Factory dials the relay; nil dials plain TCP
	Factory *transport.Factory
	// ConnectTimeout bounds dialing when Factory is nil
	ConnectTimeout time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Address:        fmt.Sprintf("localhost:%d", protocol.DefaultServerPort),
		ConnectTimeout: consts.DefaultConnectTimeout,
	}
}

// ConfigFrom derives a client configuration from the application config
func ConfigFrom(cfg *config.Config, factory *transport.Factory) *Config {
	return &Config{
		Address:        cfg.ServerAddress(),
		Factory:        factory,
		ConnectTimeout: cfg.ConnectTimeout(),
	}
}

// conn is the connection handling shared by node and panel clients:
// dialing, state tracking, line writes and the read loop.
type conn struct {
	config *Config
	log    *logger.Logger

	state atomic.Int32 // ConnectionState

	connMu sync.RWMutex
	line   transport.Conn

	doneCh chan struct{}
}

func newConn(config *Config, log *logger.Logger) *conn {
	if config == nil {
		config = DefaultConfig()
	}
	c := &conn{
		config: config,
		log:    log,
		doneCh: make(chan struct{}),
	}
	c.state.Store(int32(StateDisconnected))
	return c
}

func (c *conn) getState() ConnectionState {
	return ConnectionState(c.state.Load())
}

// dial connects and returns with the client in StateConnected
func (c *conn) dial(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		if c.getState() == StateClosed {
			return errors.New("client is closed")
		}
		return ErrAlreadyStarted
	}

	factory := c.config.Factory
	if factory == nil {
		var err error
		factory, err = transport.NewFactory(transport.Options{ConnectTimeout: c.config.ConnectTimeout})
		if err != nil {
			c.state.Store(int32(StateDisconnected))
			return err
		}
	}

	line, err := factory.Dial(ctx, c.config.Address)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("failed to connect to relay %s: %w", c.config.Address, err)
	}

	c.connMu.Lock()
	c.line = line
	c.connMu.Unlock()

	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected)) {
		// Closed while dialing
		line.Close()
		return errors.New("client is closed")
	}
	return nil
}

// send writes one encoded message
func (c *conn) send(msg protocol.Message) error {
	if c.getState() != StateConnected {
		return ErrNotConnected
	}

	c.connMu.RLock()
	line := c.line
	c.connMu.RUnlock()

	encoded := protocol.Encode(msg)
	if err := line.WriteLine(encoded); err != nil {
		return fmt.Errorf("send %s: %w", msg.Keyword(), err)
	}
	c.log.Debug("Sent %s", encoded)
	return nil
}

// readLoop decodes inbound lines into handle until the connection ends.
// onLost runs once if the connection ended without the owner closing it.
func (c *conn) readLoop(handle func(protocol.Message), onLost func()) {
	defer close(c.doneCh)

	c.connMu.RLock()
	line := c.line
	c.connMu.RUnlock()

	for {
		text, err := line.ReadLine()
		if err != nil {
			if c.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnected)) {
				if !transport.IsClosed(err) {
					c.log.Error("Error reading from relay: %v", err)
				} else {
					c.log.Info("Relay closed the connection")
				}
				line.Close()
				if onLost != nil {
					onLost()
				}
			}
			return
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		handle(protocol.Decode(text))
	}
}

// close closes the connection without notifying anyone. It is idempotent.
func (c *conn) close() error {
	if ConnectionState(c.state.Swap(int32(StateClosed))) == StateClosed {
		return nil
	}

	c.connMu.RLock()
	line := c.line
	c.connMu.RUnlock()
	if line == nil {
		return nil
	}
	return line.Close()
}

// done is closed when the read loop has exited
func (c *conn) done() <-chan struct{} {
	return c.doneCh
}
