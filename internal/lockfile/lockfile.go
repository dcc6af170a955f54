// Package lockfile keeps one relay per port from running twice and lets
// other commands find the running relay.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrLocked is returned when a live process holds the lock
	ErrLocked = errors.New("relay is already running")
	// ErrNotRunning is returned by Read when no lock file exists
	ErrNotRunning = errors.New("relay is not running")
)

// Info is what a running relay records about itself
type Info struct {
	PID       int       `json:"pid"`
	RelayAddr string    `json:"relay_addr"`
	WebAddr   string    `json:"web_addr,omitempty"`
	TLS       bool      `json:"tls"`
	Started   time.Time `json:"started"`
}

// Lockfile is a held lock. The zero value is not usable; see Acquire.
type Lockfile struct {
	path string
	info Info
}

// Acquire creates the lock file at path describing info. A lock left by a
// process that is no longer running is replaced.
func Acquire(path string, info Info) (*Lockfile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lockfile directory: %w", err)
	}

	if info.PID == 0 {
		info.PID = os.Getpid()
	}
	if info.Started.IsZero() {
		info.Started = time.Now()
	}

	err := create(path, info)
	if errors.Is(err, os.ErrExist) {
		held, readErr := Read(path)
		if readErr == nil {
			if running, _ := isProcessRunning(held.PID); running {
				return nil, fmt.Errorf("%w: pid %d on %s", ErrLocked, held.PID, held.RelayAddr)
			}
		}
		// Unreadable or left behind by a dead process
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lockfile: %w", err)
		}
		err = create(path, info)
	}
	if err != nil {
		return nil, err
	}

	return &Lockfile{path: path, info: info}, nil
}

func create(path string, info Info) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(file).Encode(info); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("failed to sync lockfile: %w", err)
	}
	return file.Close()
}

// Read returns the info recorded in the lock file at path
func Read(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Info{}, ErrNotRunning
	}
	if err != nil {
		return Info{}, fmt.Errorf("failed to read lockfile: %w", err)
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("invalid lockfile %s: %w", path, err)
	}
	return info, nil
}

// Alive reports whether the process recorded in info is still running
func (i Info) Alive() bool {
	running, _ := isProcessRunning(i.PID)
	return running
}

// Release removes the lock file. It is safe to call more than once.
func (l *Lockfile) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	path := l.path
	l.path = ""

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}

// Info returns what was recorded when the lock was taken
func (l *Lockfile) Info() Info {
	return l.info
}
