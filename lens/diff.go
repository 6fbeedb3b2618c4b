package lens

import (
	"github.com/pmezard/go-difflib/difflib"
)

// maxDiffLines bounds the diff included in verbose logs.
const maxDiffLines = 200

// UnifiedDiff returns a unified diff between the rendered before and after source, empty when they are equal.
func UnifiedDiff(name, before, after string) (string, error) {
	if before == after {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: name,
		ToFile:   name + " (instrumented)",
		Context:  3,
	})
}

// MethodDiff diffs a rendering of m taken before instrumentation against its current state, truncated for logs.
func MethodDiff(before string, m *Method) (string, error) {
	diff, err := UnifiedDiff(m.Ident(), before, RenderMethod(m))
	if err != nil {
		return "", err
	}
	return limitStringLines(diff, maxDiffLines, true), nil
}
