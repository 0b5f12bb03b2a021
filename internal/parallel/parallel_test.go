package parallel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 10}

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestRange_CoversEveryIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 7}
	n := 100
	seen := make([]int32, n)

	var (
		mu     sync.Mutex
		chunks int
	)
	Range(n, func(start, end int) {
		mu.Lock()
		chunks++
		mu.Unlock()
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	}, cfg)

	assert.Equal(t, 3, chunks)
	for i, v := range seen {
		assert.Equal(t, int32(1), v, "index %d", i)
	}
}

func TestRange_Sequential(t *testing.T) {
	tests := []struct {
		name string
		n    int
		cfg  Config
	}{
		{"disabled", 100, Config{Enabled: false, NumWorkers: 4, MinChunkSize: 1}},
		{"one worker", 100, Config{Enabled: true, NumWorkers: 1, MinChunkSize: 1}},
		{"small", 15, Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls [][2]int
			Range(tt.n, func(start, end int) {
				calls = append(calls, [2]int{start, end})
			}, tt.cfg)
			assert.Equal(t, [][2]int{{0, tt.n}}, calls)
		})
	}
}

func TestRange_Empty(t *testing.T) {
	called := false
	Range(0, func(_, _ int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func BenchmarkRange(b *testing.B) {
	cfg := DefaultConfig()
	data := make([]float64, 1<<20)

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			Range(len(data), func(s, e int) {
				for j := s; j < e; j++ {
					data[j] = data[j]*0.5 + 1
				}
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for i := 0; i < b.N; i++ {
			Range(len(data), func(s, e int) {
				for j := s; j < e; j++ {
					data[j] = data[j]*0.5 + 1
				}
			}, cfgSeq)
		}
	})
}
