package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates "<prefix>-000001", "<prefix>-000002", ...
//
// The same scenario with a fresh SequentialIDs produces byte-identical
// event logs, which golden trace comparison relies on.
//
// Implements engine.IDGenerator.
//
// Thread-safety: SequentialIDs is safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix means "evt".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "evt"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
