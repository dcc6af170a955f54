package socketserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codefionn/greenhouse/internal/config"
	"github.com/codefionn/greenhouse/internal/greenhouse"
	"github.com/codefionn/greenhouse/internal/protocol"
	"github.com/codefionn/greenhouse/internal/registry"
	"github.com/codefionn/greenhouse/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func startServer(t *testing.T, reg *registry.Registry, mutate ...func(*config.Config)) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	for _, fn := range mutate {
		fn(cfg)
	}
	srv, err := NewServer(cfg, reg, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Listen("127.0.0.1:0"))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()
	t.Cleanup(func() {
		srv.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			t.Error("Serve did not return after Stop")
		}
	})
	return srv
}

type peer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, srv *Server) *peer {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &peer{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (p *peer) send(line string) {
	p.t.Helper()
	_, err := p.conn.Write([]byte(line + "\n"))
	require.NoError(p.t, err)
}

func (p *peer) read() string {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(waitFor)))
	line, err := p.r.ReadString('\n')
	require.NoError(p.t, err)
	return strings.TrimRight(line, "\r\n")
}

// panel connects as a control panel and waits until the hub has it.
func panel(t *testing.T, srv *Server) *peer {
	t.Helper()
	before := srv.Hub().Count()
	p := dial(t, srv)
	p.send("CONTROL_PANEL_CONNECT")
	require.Eventually(t, func() bool { return srv.Hub().Count() > before }, waitFor, 5*time.Millisecond)
	return p
}

func newRegistry(t *testing.T, nodes ...*greenhouse.Node) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, n := range nodes {
		require.NoError(t, reg.Add(n))
	}
	return reg
}

func nodeWith(t *testing.T, id int, actuators map[int]string) *greenhouse.Node {
	t.Helper()
	n := greenhouse.NewNode(id)
	for actuatorID, actuatorType := range actuators {
		require.NoError(t, n.AddActuator(actuatorID, actuatorType))
	}
	return n
}

func TestLateJoinSnapshotPrecedesLiveBroadcasts(t *testing.T) {
	reg := newRegistry(t,
		nodeWith(t, 1, map[int]string{1: greenhouse.ActuatorWindow}),
		nodeWith(t, 2, nil),
	)
	srv := startServer(t, reg)

	cp := panel(t, srv)
	node := dial(t, srv)
	node.send("SENSOR_DATA;1;temperature=20.0 C")

	snapshot := []string{cp.read(), cp.read()}
	assert.ElementsMatch(t, []string{"NODE_READY;1;1_window", "NODE_READY;2"}, snapshot)
	assert.Equal(t, "SENSOR_DATA;1;temperature=20.0 C", cp.read())
}

func TestFanOutSurvivesClosedPanel(t *testing.T) {
	srv := startServer(t, registry.New())

	panels := []*peer{panel(t, srv), panel(t, srv), panel(t, srv)}
	require.Equal(t, 3, srv.Hub().Count())

	panels[1].conn.Close()

	node := dial(t, srv)
	node.send("SENSOR_DATA;1;temperature=20.0 C")

	assert.Equal(t, "SENSOR_DATA;1;temperature=20.0 C", panels[0].read())
	assert.Equal(t, "SENSOR_DATA;1;temperature=20.0 C", panels[2].read())
	assert.Eventually(t, func() bool { return srv.Hub().Count() == 2 }, waitFor, 5*time.Millisecond)
}

func TestActuatorCommandRouting(t *testing.T) {
	target := nodeWith(t, 5, map[int]string{2: greenhouse.ActuatorWindow})
	srv := startServer(t, newRegistry(t, target))

	cp := panel(t, srv)
	assert.Equal(t, "NODE_READY;5;1_window", cp.read())

	sender := dial(t, srv)
	sender.send("ACTUATOR_COMMAND;5;2;true")
	assert.Eventually(t, func() bool { return target.Actuators()[0].On }, waitFor, 5*time.Millisecond)

	// Unknown node: nothing changes and nothing is broadcast. The marker
	// comes from the same connection, so it is handled after the command.
	sender.send("ACTUATOR_COMMAND;99;2;false")
	sender.send("SENSOR_DATA;5;temperature=21.0 C")
	assert.Equal(t, "SENSOR_DATA;5;temperature=21.0 C", cp.read())
	assert.True(t, target.Actuators()[0].On)
}

func TestTurnOffAllOverNetwork(t *testing.T) {
	first := nodeWith(t, 1, map[int]string{1: greenhouse.ActuatorWindow, 2: greenhouse.ActuatorFan})
	second := nodeWith(t, 2, map[int]string{3: greenhouse.ActuatorHeater})
	reg := newRegistry(t, first, second)
	require.NoError(t, reg.SetActuator(1, 2, true))
	require.NoError(t, reg.SetActuator(2, 3, true))

	srv := startServer(t, reg)
	p := dial(t, srv)
	p.send("TURN_OFF_ALL")
	p.send("TURN_OFF_ALL")

	allOff := func() bool {
		for _, n := range []*greenhouse.Node{first, second} {
			for _, a := range n.Actuators() {
				if a.On {
					return false
				}
			}
		}
		return true
	}
	assert.Eventually(t, allOff, waitFor, 5*time.Millisecond)
}

func TestMalformedLineIsBroadcastAsError(t *testing.T) {
	srv := startServer(t, registry.New())
	cp := panel(t, srv)

	node := dial(t, srv)
	node.send("BOGUS;1")
	node.send("")
	node.send("ACTUATOR_STATE;1;2;maybe")

	assert.Equal(t, "ERROR;unknown message type: BOGUS", cp.read())
	assert.True(t, strings.HasPrefix(cp.read(), "ERROR;invalid state in ACTUATOR_STATE"))

	// The connection stays usable after malformed input
	node.send("NODE_STOPPED;1")
	assert.Equal(t, "NODE_STOPPED;1", cp.read())
}

func TestSessionClassification(t *testing.T) {
	srv := startServer(t, registry.New())

	node := dial(t, srv)
	node.send("NODE_READY;7;1_fan")
	node.send("CONTROL_PANEL_CONNECT")

	cp := panel(t, srv)
	cp.send("CONTROL_PANEL_CONNECT")

	assert.Eventually(t, func() bool {
		counts := srv.RoleCounts()
		return counts[RoleNode] == 1 && counts[RoleControlPanel] == 1
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, 1, srv.Hub().Count())
}

func TestConnectionLimit(t *testing.T) {
	srv := startServer(t, registry.New(), func(cfg *config.Config) {
		cfg.Server.MaxConnections = 1
	})

	first := dial(t, srv)
	require.Eventually(t, func() bool { return srv.SessionCount() == 1 }, waitFor, 5*time.Millisecond)

	second := dial(t, srv)
	require.NoError(t, second.conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, err := second.r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)

	first.conn.Close()
	assert.Eventually(t, func() bool { return srv.SessionCount() == 0 }, waitFor, 5*time.Millisecond)
}

func TestServerStop(t *testing.T) {
	srv := startServer(t, registry.New())
	cp := panel(t, srv)

	srv.Stop()
	srv.Stop()

	require.NoError(t, cp.conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, err := cp.r.ReadString('\n')
	assert.Error(t, err)
	assert.Equal(t, 0, srv.Hub().Count())

	_, err = srv.Attach(newFakeConn())
	assert.ErrorIs(t, err, ErrServerStopped)
	assert.ErrorIs(t, srv.Listen("127.0.0.1:0"), ErrServerStopped)
}

func TestServeContextCancel(t *testing.T) {
	srv, err := NewServer(config.DefaultConfig(), registry.New(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Serve(context.Background()), ErrNotListening)

	require.NoError(t, srv.Listen("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestListenBindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	srv, err := NewServer(config.DefaultConfig(), registry.New(), nil)
	require.NoError(t, err)
	assert.Error(t, srv.Listen(occupied.Addr().String()))
	assert.Nil(t, srv.Addr())
}

// fakeConn is an in-memory transport.Conn.
type fakeConn struct {
	mu         sync.Mutex
	written    []string
	failWrites bool

	in        chan string
	closed    chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan string, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadLine() (string, error) {
	select {
	case line := <-c.in:
		return line, nil
	case <-c.closed:
		return "", io.EOF
	}
}

func (c *fakeConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("broken pipe")
	}
	c.written = append(c.written, line)
	return nil
}

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake" }

func (c *fakeConn) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

func TestHubRemovesSessionOnWriteFailure(t *testing.T) {
	srv, err := NewServer(config.DefaultConfig(), registry.New(), nil)
	require.NoError(t, err)
	defer srv.Stop()

	conns := []*fakeConn{newFakeConn(), newFakeConn(), newFakeConn()}
	conns[1].failWrites = true
	for _, c := range conns {
		s, err := srv.Attach(c)
		require.NoError(t, err)
		require.True(t, srv.Hub().Register(s))
	}
	require.Equal(t, 3, srv.Hub().Count())

	srv.Hub().Broadcast(protocol.SensorData{NodeID: 1, Readings: "temperature=20.0 C"})

	for _, c := range []*fakeConn{conns[0], conns[2]} {
		c := c
		assert.Eventually(t, func() bool {
			return assert.ObjectsAreEqual([]string{"SENSOR_DATA;1;temperature=20.0 C"}, c.lines())
		}, waitFor, 5*time.Millisecond)
	}
	assert.Eventually(t, func() bool { return srv.Hub().Count() == 2 }, waitFor, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return srv.SessionCount() == 2 }, waitFor, 5*time.Millisecond)
}

func TestSendAfterCloseFails(t *testing.T) {
	srv, err := NewServer(config.DefaultConfig(), registry.New(), nil)
	require.NoError(t, err)
	defer srv.Stop()

	s, err := srv.Attach(newFakeConn())
	require.NoError(t, err)
	s.Close()
	s.Close()

	assert.ErrorIs(t, s.Send("TURN_OFF_ALL"), ErrSessionClosed)
	assert.Equal(t, RoleClosed, s.Role())
	assert.False(t, srv.Hub().Register(s))
}

func TestSendBufferFull(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.SendBufferSize = 1
	srv, err := NewServer(cfg, registry.New(), nil)
	require.NoError(t, err)
	defer srv.Stop()

	// Not started, so nothing drains the queue
	s := newSession(srv, newFakeConn(), 1)
	require.NoError(t, s.Send("A"))
	assert.ErrorIs(t, s.Send("B"), ErrSendBufferFull)
}

func newUnlimitedServer(t *testing.T, sendBuffer int) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.MaxConnections = 0
	if sendBuffer > 0 {
		cfg.Server.SendBufferSize = sendBuffer
	}
	srv, err := NewServer(cfg, registry.New(), nil)
	require.NoError(t, err)
	return srv
}

func TestConcurrentBroadcastAndClose(t *testing.T) {
	srv := newUnlimitedServer(t, 0)
	defer srv.Stop()

	const panels = 20
	conns := make([]*fakeConn, panels)
	sessions := make([]*Session, panels)
	for i := range sessions {
		conns[i] = newFakeConn()
		s, err := srv.Attach(conns[i])
		require.NoError(t, err)
		require.True(t, srv.Hub().Register(s))
		sessions[i] = s
	}
	require.Equal(t, panels, srv.Hub().Count())

	var wg sync.WaitGroup
	for b := 0; b < 4; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				srv.Hub().Broadcast(protocol.NodeStopped{NodeID: b*100 + i})
			}
		}(b)
	}
	for _, s := range sessions {
		for k := 0; k < 2; k++ {
			wg.Add(1)
			go func(s *Session) {
				defer wg.Done()
				s.Close()
			}(s)
		}
	}
	wg.Wait()

	assert.Equal(t, 0, srv.Hub().Count())
	assert.Equal(t, 0, srv.SessionCount())
	for i, s := range sessions {
		assert.Equal(t, RoleClosed, s.Role())
		assert.ErrorIs(t, s.Send("NODE_STOPPED;1"), ErrSessionClosed)
		assert.Equal(t, int32(1), conns[i].closes.Load(), "session %d", i)
	}
}

func TestConcurrentSendsKeepLinesWhole(t *testing.T) {
	const writers, perWriter = 8, 50
	srv := newUnlimitedServer(t, writers*perWriter)
	defer srv.Stop()

	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	s, err := srv.Attach(transport.NewLineConn(serverSide))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, s.Send(fmt.Sprintf("SENSOR_DATA;%d;seq=%d.0 n", w, i)))
			}
		}(w)
	}

	r := bufio.NewReader(clientSide)
	require.NoError(t, clientSide.SetReadDeadline(time.Now().Add(waitFor)))
	next := make([]int, writers)
	for n := 0; n < writers*perWriter; n++ {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSuffix(line, "\n")

		var w, i int
		_, err = fmt.Sscanf(line, "SENSOR_DATA;%d;seq=%d.0 n", &w, &i)
		require.NoError(t, err, "garbled line %q", line)
		require.Equal(t, fmt.Sprintf("SENSOR_DATA;%d;seq=%d.0 n", w, i), line)
		require.True(t, w >= 0 && w < writers, "unknown writer in %q", line)
		assert.Equal(t, next[w], i, "writer %d out of order", w)
		next[w] = i + 1
	}
	wg.Wait()

	for w, n := range next {
		assert.Equal(t, perWriter, n, "writer %d", w)
	}
}

func TestAttachRacingStop(t *testing.T) {
	const rounds, attachers = 50, 8

	for round := 0; round < rounds; round++ {
		srv := newUnlimitedServer(t, 0)

		conns := make([]*fakeConn, attachers)
		attached := make([]bool, attachers)
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := range conns {
			conns[i] = newFakeConn()
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, err := srv.Attach(conns[i])
				if err != nil {
					assert.ErrorIs(t, err, ErrServerStopped)
					return
				}
				attached[i] = true
			}(i)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			srv.Stop()
		}()
		close(start)
		wg.Wait()

		require.Equal(t, 0, srv.SessionCount(), "round %d", round)
		for i, c := range conns {
			if attached[i] {
				assert.Equal(t, int32(1), c.closes.Load(), "round %d conn %d", round, i)
			} else {
				assert.Zero(t, c.closes.Load(), "round %d conn %d", round, i)
			}
		}
	}
}
