package helper

import (
	"sync"

	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
)

// ScriptedRandom replays fixed sequences of samples and wraps around at the end of each.
// An empty sequence yields zero.
type ScriptedRandom struct {
	mu       sync.Mutex
	floats   []float64
	ints     []int
	floatPos int
	intPos   int
}

// NewScriptedRandom creates a ScriptedRandom. Values in ints are reduced modulo n on each IntN call.
func NewScriptedRandom(floats []float64, ints []int) *ScriptedRandom {
	return &ScriptedRandom{floats: floats, ints: ints}
}

// Float64 implements simulation.Random.
func (r *ScriptedRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.floats) == 0 {
		return 0
	}

	v := r.floats[r.floatPos%len(r.floats)]
	r.floatPos++

	return v
}

// IntN implements simulation.Random.
func (r *ScriptedRandom) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ints) == 0 || n <= 0 {
		return 0
	}

	v := r.ints[r.intPos%len(r.ints)]
	r.intPos++

	return v % n
}

var _ simulation.Random = (*ScriptedRandom)(nil)
