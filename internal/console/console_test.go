package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/codefionn/greenhouse/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
	err   error
}

func (r *recorder) SendActuatorChange(nodeID, actuatorID int, on bool) error {
	r.calls = append(r.calls, fmt.Sprintf("change %d %d %t", nodeID, actuatorID, on))
	return r.err
}

func (r *recorder) SendTurnOffAll() error {
	r.calls = append(r.calls, "alloff")
	return r.err
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr bool
	}{
		{line: "on 1 2", want: Command{Kind: CommandOn, NodeID: 1, ActuatorID: 2}},
		{line: "  OFF 3 4 ", want: Command{Kind: CommandOff, NodeID: 3, ActuatorID: 4}},
		{line: "t 1 1", want: Command{Kind: CommandToggle, NodeID: 1, ActuatorID: 1}},
		{line: "alloff", want: Command{Kind: CommandAllOff}},
		{line: "status", want: Command{Kind: CommandStatus}},
		{line: "?", want: Command{Kind: CommandHelp}},
		{line: "quit", want: Command{Kind: CommandQuit}},
		{line: "on 1", wantErr: true},
		{line: "on x 2", wantErr: true},
		{line: "on 1 y", wantErr: true},
		{line: "alloff now", wantErr: true},
		{line: "dance", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseCommand("   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestPanelTracksRelayEvents(t *testing.T) {
	var out bytes.Buffer
	p := NewPanel(&out)

	assert.Equal(t, "no nodes", p.Render())

	p.OnNodeAdded(protocol.NodeInfo{NodeID: 2, Actuators: []protocol.ActuatorCount{{Count: 2, Type: "fan"}}})
	p.OnNodeAdded(protocol.NodeInfo{NodeID: 1})
	p.OnSensorData(2, []protocol.SensorReading{{Type: "temperature", Value: 21.5, Unit: "C"}})
	p.OnActuatorStateChanged(2, 4, true)
	p.OnActuatorStateChanged(2, 3, false)

	assert.Equal(t, []int{1, 2}, p.NodeIDs())
	on, known := p.ActuatorState(2, 4)
	assert.True(t, known)
	assert.True(t, on)
	_, known = p.ActuatorState(2, 9)
	assert.False(t, known)

	table := p.Render()
	lines := strings.Split(table, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "NODE"))
	assert.True(t, strings.HasPrefix(lines[1], "1"))
	assert.Contains(t, lines[1], "no actuators")
	assert.Contains(t, lines[2], "2 fan")
	assert.Contains(t, lines[2], "#3 off #4 on")
	assert.Contains(t, lines[2], "temperature=21.5 C")

	p.OnNodeRemoved(1)
	assert.Equal(t, []int{2}, p.NodeIDs())

	log := out.String()
	assert.Contains(t, log, "+ node 2 (2 fan)")
	assert.Contains(t, log, "node 2: temperature=21.5 C")
	assert.Contains(t, log, "node 2 actuator 4: on")
	assert.Contains(t, log, "- node 1")
}

func TestPanelDataBeforeAnnouncement(t *testing.T) {
	p := NewPanel(io.Discard)
	p.OnActuatorStateChanged(5, 1, true)
	assert.Equal(t, []int{5}, p.NodeIDs())

	p.OnNodeAdded(protocol.NodeInfo{NodeID: 5, Actuators: []protocol.ActuatorCount{{Count: 1, Type: "heater"}}})
	on, known := p.ActuatorState(5, 1)
	assert.True(t, known)
	assert.True(t, on)
}

func TestExecute(t *testing.T) {
	var out bytes.Buffer
	p := NewPanel(&out)
	rec := &recorder{}

	p.OnActuatorStateChanged(1, 2, true)

	for _, line := range []string{"on 1 3", "off 1 3", "toggle 1 2", "toggle 1 7", "alloff"} {
		quit, err := p.Execute(line, rec)
		require.NoError(t, err)
		assert.False(t, quit)
	}
	assert.Equal(t, []string{
		"change 1 3 true",
		"change 1 3 false",
		"change 1 2 false",
		"change 1 7 true",
		"alloff",
	}, rec.calls)

	quit, err := p.Execute("quit", rec)
	require.NoError(t, err)
	assert.True(t, quit)

	rec.err = errors.New("not connected")
	_, err = p.Execute("alloff", rec)
	assert.EqualError(t, err, "not connected")

	out.Reset()
	_, err = p.Execute("help", rec)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "alloff")
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	p := NewPanel(&out)
	rec := &recorder{}

	in := strings.NewReader("on 1 2\n\nbogus\nquit\non 9 9\n")
	require.NoError(t, p.Run(context.Background(), in, rec))

	assert.Equal(t, []string{"change 1 2 true"}, rec.calls)
	assert.Contains(t, out.String(), `unknown command "bogus"`)
}

func TestRunEndsAtEOF(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, NewPanel(io.Discard).Run(context.Background(), strings.NewReader("alloff"), rec))
	assert.Equal(t, []string{"alloff"}, rec.calls)
}

func TestRunEndsWhenRelayIsLost(t *testing.T) {
	p := NewPanel(io.Discard)
	in, w := io.Pipe()
	defer w.Close()

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), in, &recorder{}) }()

	p.OnCommunicationChannelClosed()
	p.OnCommunicationChannelClosed()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRunEndsWithContext(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, NewPanel(io.Discard).Run(ctx, in, &recorder{}))
}
