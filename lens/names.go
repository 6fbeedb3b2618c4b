package lens

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// synthetic variable purposes
const (
	capturedReturnPrefix = "$capturedReturn"
	caughtErrorPrefix    = "$e"
	startTimestampPrefix = "$startTimestamp"
	stopTimestampPrefix  = "$stopTimestamp"
)

// NameGenerator produces identifiers for synthetic variables. Implementations must be safe for concurrent use and
// never return the same name twice.
type NameGenerator interface {
	Next(prefix string) string
}

// SeqNameGenerator produces deterministic names from a seed and a monotonic counter.
type SeqNameGenerator struct {
	tag     string
	counter atomic.Uint64
}

// NewNameGenerator returns a generator whose output is fully determined by the seed and the call order.
func NewNameGenerator(seed uint64) *SeqNameGenerator {
	var tag string
	if seed != 0 {
		tag = strconv.FormatUint(seed, 36) + "x"
	}
	return &SeqNameGenerator{tag: tag}
}

// Next returns prefix_<tag><n>, with non identifier characters of the prefix replaced.
func (g *SeqNameGenerator) Next(prefix string) string {
	n := g.counter.Add(1)
	return sanitizeIdent(prefix) + "_" + g.tag + strconv.FormatUint(n, 10)
}

// syntheticName builds the method qualified prefix for a synthetic variable.
func syntheticName(names NameGenerator, purpose, scopeName string) string {
	return names.Next(purpose + "_" + scopeName)
}

func sanitizeIdent(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '$' || r == '_',
			r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '(' || r == ')' || r == ',' || r == ':' || r == '-' || r == '>' || r == '<':
			return '_'
		}
		return -1
	}, s)
}
