// Package console is a terminal control panel for the greenhouse relay. It
// keeps the picture the relay pushes to a control panel and turns typed
// commands into actuator requests.
package console

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/codefionn/greenhouse/internal/protocol"
)

type nodeState struct {
	info      protocol.NodeInfo
	readings  []protocol.SensorReading
	actuators map[int]bool
}

// Panel tracks nodes, readings and actuator states and prints every change
// to its writer. It implements socketclient.Logic.
type Panel struct {
	outMu sync.Mutex
	out   io.Writer

	headerStyle lipgloss.Style
	cellStyle   lipgloss.Style
	onStyle     lipgloss.Style
	offStyle    lipgloss.Style
	eventStyle  lipgloss.Style
	alertStyle  lipgloss.Style

	mu    sync.Mutex
	nodes map[int]*nodeState

	lostOnce sync.Once
	lost     chan struct{}
}

// NewPanel creates a panel printing to out
func NewPanel(out io.Writer) *Panel {
	r := lipgloss.NewRenderer(out)
	return &Panel{
		out:         out,
		headerStyle: r.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
		cellStyle:   r.NewStyle().PaddingRight(2),
		onStyle:     r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		offStyle:    r.NewStyle().Foreground(lipgloss.Color("241")),
		eventStyle:  r.NewStyle().Foreground(lipgloss.Color("86")),
		alertStyle:  r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		nodes:       make(map[int]*nodeState),
		lost:        make(chan struct{}),
	}
}

// Lost is closed once the relay connection has gone away
func (p *Panel) Lost() <-chan struct{} {
	return p.lost
}

func (p *Panel) OnNodeAdded(info protocol.NodeInfo) {
	p.mu.Lock()
	state, ok := p.nodes[info.NodeID]
	if !ok {
		state = &nodeState{actuators: make(map[int]bool)}
		p.nodes[info.NodeID] = state
	}
	state.info = info
	p.mu.Unlock()

	p.event("+ node %d (%s)", info.NodeID, describeActuators(info.Actuators))
}

func (p *Panel) OnNodeRemoved(nodeID int) {
	p.mu.Lock()
	delete(p.nodes, nodeID)
	p.mu.Unlock()

	p.event("- node %d", nodeID)
}

func (p *Panel) OnSensorData(nodeID int, readings []protocol.SensorReading) {
	p.mu.Lock()
	p.node(nodeID).readings = readings
	p.mu.Unlock()

	p.event("node %d: %s", nodeID, protocol.FormatReadings(readings))
}

func (p *Panel) OnActuatorStateChanged(nodeID, actuatorID int, on bool) {
	p.mu.Lock()
	p.node(nodeID).actuators[actuatorID] = on
	p.mu.Unlock()

	p.event("node %d actuator %d: %s", nodeID, actuatorID, p.onOff(on))
}

func (p *Panel) OnCommunicationChannelClosed() {
	p.lostOnce.Do(func() {
		p.println(p.alertStyle.Render("connection to the relay was lost"))
		close(p.lost)
	})
}

// node returns the state of nodeID, creating it for data that arrives
// before the node's announcement. Callers hold p.mu.
func (p *Panel) node(nodeID int) *nodeState {
	state, ok := p.nodes[nodeID]
	if !ok {
		state = &nodeState{
			info:      protocol.NodeInfo{NodeID: nodeID},
			actuators: make(map[int]bool),
		}
		p.nodes[nodeID] = state
	}
	return state
}

// ActuatorState reports the last known state of an actuator
func (p *Panel) ActuatorState(nodeID, actuatorID int) (on, known bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.nodes[nodeID]
	if !ok {
		return false, false
	}
	on, known = state.actuators[actuatorID]
	return on, known
}

// NodeIDs returns the known node ids in ascending order
func (p *Panel) NodeIDs() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]int, 0, len(p.nodes))
	for id := range p.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Render draws the current state as a table, one row per node
func (p *Panel) Render() string {
	rows := [][]string{{"NODE", "ACTUATORS", "STATES", "READINGS"}}

	p.mu.Lock()
	ids := make([]int, 0, len(p.nodes))
	for id := range p.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		state := p.nodes[id]
		rows = append(rows, []string{
			strconv.Itoa(id),
			describeActuators(state.info.Actuators),
			p.describeStates(state.actuators),
			protocol.FormatReadings(state.readings),
		})
	}
	p.mu.Unlock()

	if len(rows) == 1 {
		return p.offStyle.Render("no nodes")
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	lines := make([]string, 0, len(rows))
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := p.cellStyle.Width(widths[i] + 2)
			if r == 0 {
				style = style.Inherit(p.headerStyle)
			}
			cells[i] = style.Render(cell)
		}
		lines = append(lines, strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " "))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (p *Panel) describeStates(actuators map[int]bool) string {
	if len(actuators) == 0 {
		return "-"
	}
	ids := make([]int, 0, len(actuators))
	for id := range actuators {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("#%d %s", id, p.onOff(actuators[id])))
	}
	return strings.Join(parts, " ")
}

func (p *Panel) onOff(on bool) string {
	if on {
		return p.onStyle.Render("on")
	}
	return p.offStyle.Render("off")
}

func (p *Panel) event(format string, args ...any) {
	p.println(p.eventStyle.Render(fmt.Sprintf(format, args...)))
}

func (p *Panel) println(s string) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	fmt.Fprintln(p.out, s)
}

func describeActuators(counts []protocol.ActuatorCount) string {
	if len(counts) == 0 {
		return "no actuators"
	}
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%d %s", c.Count, c.Type))
	}
	return strings.Join(parts, ", ")
}
