package lens

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReports() []*UnitReport {
	return []*UnitReport{
		{
			Unit:    "A.java",
			Package: "demo",
			Cached:  true,
			Methods: []MethodReport{
				{Method: "demo.A#m(int)", Hooks: map[HookKind]int{HookEntering: 1, HookExiting: 1, HookValueChange: 2}},
				{Method: "demo.A#toString()", Skipped: SkipExcludedName},
			},
		},
		{
			Unit:    "B.java",
			Package: "demo",
			Methods: []MethodReport{
				{Method: "demo.B#x()", Hooks: map[HookKind]int{HookEntering: 1, HookExiting: 1}},
				{Method: "demo.B#y()", Skipped: SkipNoBody},
			},
		},
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("aggregates", func(t *testing.T) {
		t.Parallel()

		summary := Summarize(sampleReports())
		assert.Equal(t, 2, summary.Units)
		assert.Equal(t, 1, summary.CachedUnits)
		assert.Equal(t, 4, summary.Methods)
		assert.Equal(t, 2, summary.Instrumented)
		assert.Equal(t, map[string]int{"method name excluded": 1, "no body": 1}, summary.SkipReasons)
		assert.Equal(t, map[HookKind]int{HookEntering: 2, HookExiting: 2, HookValueChange: 2}, summary.HookTotals)
		assert.Equal(t, map[string]int{"demo.A": 4, "demo.B": 2}, summary.ClassHooks)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		summary := Summarize(nil)
		assert.Zero(t, summary.Methods)
		assert.Nil(t, summary.SkipReasons)
		assert.Empty(t, summary.HookTotals)
	})
}

func TestReportSummaryFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.json")
	summary := Summarize(sampleReports())
	require.NoError(t, summary.WriteToFile(path))

	read, err := ReadReportSummary(path)
	require.NoError(t, err)
	assert.Equal(t, summary.Methods, read.Methods)
	assert.Equal(t, summary.HookTotals, read.HookTotals)
	assert.Equal(t, summary.SkipReasons, read.SkipReasons)
	require.Len(t, read.Reports, 2)
	assert.Equal(t, SkipExcludedName, read.Reports[0].Methods[1].Skipped)
	assert.True(t, read.Reports[0].Cached)

	_, err = ReadReportSummary(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestTopClasses(t *testing.T) {
	t.Parallel()

	classHooks := map[string]int{"demo.A": 3, "demo.B": 7, "demo.C": 3, "demo.D": 1}
	assert.Equal(t, []string{"demo.B", "demo.A", "demo.C"}, topClasses(classHooks, 3))
	assert.Len(t, topClasses(classHooks, 10), 4)
}

func TestRenderReportChart(t *testing.T) {
	if testing.Short() {
		t.Skip("skip in short mode")
	}
	t.Parallel()

	t.Run("png", func(t *testing.T) {
		t.Parallel()

		buf, err := RenderReportChart(Summarize(sampleReports()))
		require.NoError(t, err)
		require.Greater(t, len(buf), 8)
		assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), buf[:8])
	})

	t.Run("write_file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "report.png")
		require.NoError(t, WriteReportChart(path, Summarize(sampleReports())))
		assert.FileExists(t, path)
	})

	t.Run("no_methods", func(t *testing.T) {
		t.Parallel()

		_, err := RenderReportChart(Summarize(nil))
		assert.Error(t, err)
	})
}

func TestSkipReasonText(t *testing.T) {
	t.Parallel()

	for r := SkipNone; r <= SkipShortMethod; r++ {
		text, err := r.MarshalText()
		require.NoError(t, err)
		var decoded SkipReason
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, r, decoded)
	}
	assert.Equal(t, "unknown", SkipReason(200).String())
}
