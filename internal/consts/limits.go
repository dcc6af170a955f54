package consts

import "time"

// Relay limits
const (
	// DefaultSendBufferSize is the number of outbound lines queued per
	// session before Send starts failing
	DefaultSendBufferSize = 256
	// DefaultMaxConnections caps concurrently served sessions (0 = unlimited)
	DefaultMaxConnections = 1000
	// MaxLineLength is the longest protocol line accepted on a connection
	MaxLineLength = 64 * 1024
)

// Timeouts
const (
	// DefaultConnectTimeout bounds dialing the relay from a peer client
	DefaultConnectTimeout = 10 * time.Second
	// WriteWait bounds a single write to a peer
	WriteWait = 10 * time.Second
	// ShutdownTimeout bounds graceful shutdown of the HTTP gateway
	ShutdownTimeout = 5 * time.Second
)

// Simulation
const (
	// DefaultSensorInterval is how often simulated nodes publish readings
	DefaultSensorInterval = 5 * time.Second
)
