package lens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifiedDiff(t *testing.T) {
	t.Parallel()

	t.Run("equal", func(t *testing.T) {
		t.Parallel()

		diff, err := UnifiedDiff("A.java", "a\n", "a\n")
		require.NoError(t, err)
		assert.Empty(t, diff)
	})

	t.Run("changed", func(t *testing.T) {
		t.Parallel()

		diff, err := UnifiedDiff("A.java", "a\nb\n", "a\nc\nb\n")
		require.NoError(t, err)
		assert.Contains(t, diff, "--- A.java\n")
		assert.Contains(t, diff, "+++ A.java (instrumented)\n")
		assert.Contains(t, diff, "+c\n")
	})
}

func TestMethodDiff(t *testing.T) {
	t.Parallel()

	m := testMethod("m", "void", nil, assignStmt(ident("a"), intLit("1")))
	before := RenderMethod(m)
	s := testScope(t, testConfig(), m)
	require.NoError(t, injectEnteringExiting(s))

	diff, err := MethodDiff(before, m)
	require.NoError(t, err)
	assert.Contains(t, diff, "--- demo.Sample#m()")
	assert.Contains(t, diff, `+    io.ghostwriter.GhostWriter.entering(this, "m");`)

	var stmts []Stmt
	for range maxDiffLines {
		stmts = append(stmts, assignStmt(ident("a"), intLit("1")))
	}
	long := testMethod("long", "void", nil, stmts...)
	before = RenderMethod(long)
	require.NoError(t, injectEnteringExiting(testScope(t, testConfig(), long)))
	diff, err = MethodDiff(before, long)
	require.NoError(t, err)
	assert.Len(t, strings.Split(diff, "\n"), maxDiffLines)
}
