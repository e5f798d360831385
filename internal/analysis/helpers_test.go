package analysis

import (
	"context"
	"fmt"
	"sync"
)

// scriptedLLM answers by system prompt so one fake can serve every stage.
type scriptedLLM struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(ctx context.Context, prompt, system string) (string, error)
}

func newScriptedLLM(respond func(ctx context.Context, prompt, system string) (string, error)) *scriptedLLM {
	return &scriptedLLM{calls: map[string]int{}, respond: respond}
}

func (s *scriptedLLM) Call(ctx context.Context, prompt, system string) (string, error) {
	s.mu.Lock()
	s.calls[system]++
	s.mu.Unlock()
	return s.respond(ctx, prompt, system)
}

func (s *scriptedLLM) count(system string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[system]
}

// seqRand replays fixed values, wrapping around.
type seqRand struct {
	mu   sync.Mutex
	vals []int
	i    int
}

func (r *seqRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v % n
}

// counterIDs returns id-1, id-2, ... in call order.
func counterIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}
