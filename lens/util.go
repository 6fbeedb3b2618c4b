package lens

import (
	"crypto/sha256"
	"hash"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/mtraver/base91"
)

const ErrorLogPrefix = "!! "

// limitStringLines keeps the first (head) or last count lines of s.
func limitStringLines(s string, count int, head bool) string {
	lines := strings.Split(s, "\n")
	if len(lines) > count {
		if head {
			lines = lines[:count]
		} else {
			lines = lines[len(lines)-count:]
		}
		return strings.Join(lines, "\n")
	} else {
		return s
	}
}

func newDefaultStripedMutex() *stripedMutex {
	return newStripedMutex(257) // prime number provides better distributions
}

// newStripedMutex creates a new mutex with the given concurrency.
func newStripedMutex(stripes uint) *stripedMutex {
	m := &stripedMutex{
		make([]*sync.Mutex, stripes),
		&sync.Pool{New: func() interface{} { return fnv.New64() }},
	}
	for i := range m.locks {
		m.locks[i] = &sync.Mutex{}
	}

	return m
}

type stripedMutex struct {
	locks []*sync.Mutex
	pool  *sync.Pool
}

// Lock acquire lock for a given key, returning the mutex for an easy unlock.
func (m *stripedMutex) Lock(key string) *sync.Mutex {
	l := m.getLock(key)
	l.Lock()
	return l
}

func (m *stripedMutex) getLock(key string) *sync.Mutex {
	h := m.pool.Get().(hash.Hash64)
	defer m.pool.Put(h)
	h.Reset()
	_, _ = h.Write([]byte(key))
	return m.locks[h.Sum64()%uint64(len(m.locks))]
}

// digestKey returns a printable sha256 digest of b, usable as a storage key or file name component.
func digestKey(b []byte) string {
	sum := sha256.Sum256(b)
	return base91.StdEncoding.EncodeToString(sum[:])
}
