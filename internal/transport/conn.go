// Package transport opens relay connections: plain or TLS listeners and
// dialers, optionally through a SOCKS5 proxy, and newline framing on top.
package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/greenhouse/internal/consts"
)

// Conn is a connection that exchanges protocol lines. ReadLine must only
// be called from one goroutine; WriteLine is safe for concurrent use.
type Conn interface {
	// ReadLine returns the next line without its terminator. It returns
	// io.EOF once the peer has closed the connection.
	ReadLine() (string, error)
	// WriteLine writes line followed by a newline.
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

// LineConn frames a net.Conn into newline-terminated lines.
type LineConn struct {
	conn    net.Conn
	scanner *bufio.Scanner

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewLineConn wraps conn. Lines longer than consts.MaxLineLength fail the read.
func NewLineConn(conn net.Conn) *LineConn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), consts.MaxLineLength)
	return &LineConn{
		conn:    conn,
		scanner: scanner,
	}
}

// ReadLine implements Conn. A trailing "\r" is dropped.
func (c *LineConn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSuffix(c.scanner.Text(), "\r"), nil
}

// WriteLine implements Conn.
func (c *LineConn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(consts.WriteWait)); err != nil {
		return err
	}
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

// Close closes the underlying connection once.
func (c *LineConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr implements Conn.
func (c *LineConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// IsClosed reports whether err means the connection is gone rather than a
// genuine failure worth logging.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
