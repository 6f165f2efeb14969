package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence_New(t *testing.T) {
	s := NewSequence()
	assert.Equal(t, int64(0), s.Current(), "new sequence should start at 0")
	assert.Equal(t, int64(1), s.Peek())
}

func TestSequence_NewAt(t *testing.T) {
	s := NewSequenceAt(100)
	assert.Equal(t, int64(100), s.Current())
	assert.Equal(t, int64(101), s.Next())
}

func TestSequence_NextIncrementing(t *testing.T) {
	s := NewSequence()

	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
	assert.Equal(t, int64(3), s.Next())
	assert.Equal(t, int64(3), s.Current())
	assert.Equal(t, int64(4), s.Peek(), "peek does not advance")
	assert.Equal(t, int64(3), s.Current())
}

func TestSequence_ThreadSafe(t *testing.T) {
	s := NewSequence()
	const goroutines = 50
	const calls = 100

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				v := s.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*calls, "all values should be unique")
	assert.Equal(t, int64(goroutines*calls), s.Current())
}
