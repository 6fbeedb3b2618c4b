package lens

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// maxConcurrentHolders locks the given keys from concurrent goroutines and returns the highest number of goroutines
// observed holding a lock at the same time.
func maxConcurrentHolders(sm *stripedMutex, keys []string) int {
	var mu sync.Mutex
	var running, maxRunning int
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := sm.Lock(key)
			defer l.Unlock()

			mu.Lock()
			running++
			maxRunning = max(maxRunning, running)
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		}()
	}
	wg.Wait()
	return maxRunning
}

func TestStripedMutex(t *testing.T) {
	if testing.Short() {
		t.Skip("skip in short mode")
	}
	t.Parallel()

	t.Run("same_key_exclusive", func(t *testing.T) {
		t.Parallel()

		keys := make([]string, 20)
		for i := range keys {
			keys[i] = "unit"
		}
		require.Equal(t, 1, maxConcurrentHolders(newStripedMutex(8), keys))
	})

	t.Run("different_keys_concurrent", func(t *testing.T) {
		t.Parallel()

		keys := make([]string, 20)
		for i := range keys {
			keys[i] = "a"
			if i%2 == 0 {
				keys[i] = "b"
			}
		}
		require.Greater(t, maxConcurrentHolders(newStripedMutex(8), keys), 1)
	})

	t.Run("stable_stripe", func(t *testing.T) {
		t.Parallel()

		sm := newDefaultStripedMutex()
		assert.Len(t, sm.locks, 257)
		assert.Same(t, sm.getLock("demo.Sample"), sm.getLock("demo.Sample"))
	})
}

func TestLimitStringLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		lineCount int
		head      bool
		expected  string
	}{
		{
			name:      "no_truncation",
			input:     "line1\nline2\nline3",
			lineCount: 4,
			head:      true,
			expected:  "line1\nline2\nline3",
		},
		{
			name:      "truncate_from_head",
			input:     "a\nb\nc\nd",
			lineCount: 2,
			head:      true,
			expected:  "a\nb",
		},
		{
			name:      "truncate_from_tail",
			input:     "a\nb\nc\nd",
			lineCount: 2,
			expected:  "c\nd",
		},
		{
			name:      "empty_string",
			lineCount: 1,
			head:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, limitStringLines(tt.input, tt.lineCount, tt.head))
		})
	}
}

func TestDigestKey(t *testing.T) {
	t.Parallel()

	a := digestKey([]byte("unit-a"))
	assert.Equal(t, a, digestKey([]byte("unit-a")))
	assert.NotEqual(t, a, digestKey([]byte("unit-b")))
	assert.NotEmpty(t, digestKey(nil))
	assert.NotContains(t, a, "\n")
}
