package greenhouse

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/codefionn/greenhouse/internal/protocol"
)

// Simulator drifts the sensor readings of its nodes at a fixed interval.
type Simulator struct {
	nodes    []*Node
	interval time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulator creates a simulator publishing every interval
func NewSimulator(interval time.Duration, nodes ...*Node) *Simulator {
	return &Simulator{
		nodes:    nodes,
		interval: interval,
		rnd:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
}

// Run steps until ctx is done
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step moves every reading by at most one unit and publishes the result
func (s *Simulator) Step() {
	for _, n := range s.nodes {
		current := n.Readings()
		if len(current) == 0 {
			continue
		}

		next := make([]protocol.SensorReading, len(current))
		s.mu.Lock()
		for i, r := range current {
			next[i] = drift(r, s.rnd.Float64()*2-1)
		}
		s.mu.Unlock()

		n.UpdateReadings(next)
	}
}

func drift(r protocol.SensorReading, delta float64) protocol.SensorReading {
	v := math.Round((r.Value+delta)*10) / 10
	if r.Unit == "%" {
		v = min(max(v, 0), 100)
	}
	r.Value = v
	return r
}
