package lens

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/go-analyze/bulk"
	"github.com/go-analyze/charts"
)

// MethodReport describes the outcome for one method.
type MethodReport struct {
	// Method is the method identifier, see Method.Ident.
	Method string `json:"method"`
	// Constructor is set for constructors.
	Constructor bool `json:"constructor,omitempty"`
	// Skipped is set when the exclusion policy skipped the method.
	Skipped SkipReason `json:"skipped,omitempty"`
	// Hooks counts the emitted hook calls by kind.
	Hooks map[HookKind]int `json:"hooks,omitempty"`
}

// UnitReport describes the outcome for one compilation unit.
type UnitReport struct {
	Unit        string         `json:"unit"`
	Package     string         `json:"package,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Cached      bool           `json:"cached,omitempty"`
	Methods     []MethodReport `json:"methods"`
}

// ReportSummary aggregates unit reports.
type ReportSummary struct {
	Units        int              `json:"units"`
	CachedUnits  int              `json:"cachedUnits"`
	Methods      int              `json:"methods"`
	Instrumented int              `json:"instrumented"`
	SkipReasons  map[string]int   `json:"skipReasons,omitempty"`
	HookTotals   map[HookKind]int `json:"hookTotals"`
	ClassHooks   map[string]int   `json:"classHooks,omitempty"`
	Reports      []*UnitReport    `json:"reports,omitempty"`
}

// methodClass returns the class part of a method identifier.
func methodClass(ident string) string {
	if i := strings.IndexByte(ident, '#'); i >= 0 {
		return ident[:i]
	}
	return ident
}

// Summarize aggregates the unit reports.
func Summarize(reports []*UnitReport) ReportSummary {
	summary := ReportSummary{
		Units:      len(reports),
		HookTotals: make(map[HookKind]int),
		ClassHooks: make(map[string]int),
		Reports:    reports,
	}
	var methods []MethodReport
	for _, r := range reports {
		if r.Cached {
			summary.CachedUnits++
		}
		methods = append(methods, r.Methods...)
	}
	summary.Methods = len(methods)

	instrumented := bulk.SliceFilter(func(m MethodReport) bool {
		return m.Skipped == SkipNone
	}, methods)
	summary.Instrumented = len(instrumented)

	var skipReasons []string
	for _, m := range methods {
		if m.Skipped != SkipNone {
			skipReasons = append(skipReasons, m.Skipped.String())
		}
	}
	if len(skipReasons) > 0 {
		summary.SkipReasons = bulk.SliceToCounts(skipReasons)
	}

	byClass := bulk.SliceToGroupsBy(func(m MethodReport) string {
		return methodClass(m.Method)
	}, instrumented)
	for class, classMethods := range byClass {
		for _, m := range classMethods {
			for kind, n := range m.Hooks {
				summary.HookTotals[kind] += n
				summary.ClassHooks[class] += n
			}
		}
	}
	return summary
}

// WriteToFile writes the summary as indented JSON.
func (s ReportSummary) WriteToFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadReportSummary loads a summary written by WriteToFile.
func ReadReportSummary(path string) (ReportSummary, error) {
	var summary ReportSummary
	data, err := os.ReadFile(path)
	if err != nil {
		return summary, err
	} else if err = json.Unmarshal(data, &summary); err != nil {
		return summary, fmt.Errorf("decode report %s: %w", path, err)
	}
	return summary, nil
}

// topClasses returns up to count classes with the most emitted hooks, highest first.
func topClasses(classHooks map[string]int, count int) []string {
	classes := bulk.MapKeysSlice(classHooks)
	slices.SortFunc(classes, func(a, b string) int {
		if classHooks[a] != classHooks[b] {
			return classHooks[b] - classHooks[a]
		}
		return strings.Compare(a, b)
	})
	if len(classes) > count {
		classes = classes[:count]
	}
	return classes
}

// RenderReportChart renders the hook totals and the busiest classes as a PNG.
func RenderReportChart(summary ReportSummary) ([]byte, error) {
	if summary.Methods == 0 {
		return nil, errors.New("report contains no methods")
	}
	painterOpt := charts.PainterOptions{
		OutputFormat: charts.ChartOutputPNG,
		Width:        1024,
		Height:       768,
	}
	const chartPadding = 10
	p := charts.NewPainter(painterOpt)
	p.FilledRect(0, 0, p.Width(), p.Height(), charts.ColorWhite, charts.ColorWhite, 0)
	content := p.Child(charts.PainterPaddingOption(charts.NewBox(0, chartPadding, chartPadding, chartPadding)))
	painters, err := content.LayoutByRows().
		Row().Height(strconv.Itoa(content.Height() / 2)).Columns("top").
		Row().Columns("bottom").
		Build()
	if err != nil {
		return nil, fmt.Errorf("error building chart layout: %w", err)
	}

	top := painters["top"]
	hookValues := make([][]float64, len(AllHookKinds))
	for i, kind := range AllHookKinds {
		hookValues[i] = []float64{float64(summary.HookTotals[kind])}
	}
	hookOpt := charts.NewHorizontalBarChartOptionWithData(hookValues)
	hookOpt.Title.Text = "Emitted Hooks (" + strconv.Itoa(summary.Instrumented) + " of " +
		strconv.Itoa(summary.Methods) + " methods instrumented)"
	hookOpt.YAxis.Show = charts.Ptr(false)
	for i := range hookOpt.SeriesList {
		kind := AllHookKinds[i]
		hookOpt.SeriesList[i].Label.Show = charts.Ptr(true)
		hookOpt.SeriesList[i].Label.ValueFormatter = func(f float64) string {
			return string(kind) + ": " + charts.FormatValueHumanize(f, 0, false)
		}
	}
	if err := top.HorizontalBarChart(hookOpt); err != nil {
		return nil, fmt.Errorf("error rendering chart: %w", err)
	}

	classes := topClasses(summary.ClassHooks, 8)
	if len(classes) > 0 {
		bottom := painters["bottom"]
		classValues := make([][]float64, len(classes))
		for i, class := range classes {
			classValues[i] = []float64{float64(summary.ClassHooks[class])}
		}
		classOpt := charts.NewHorizontalBarChartOptionWithData(classValues)
		classOpt.Title.Text = "Hooks per Class"
		classOpt.YAxis.Show = charts.Ptr(false)
		for i := range classOpt.SeriesList {
			class := classes[i]
			classOpt.SeriesList[i].Label.Show = charts.Ptr(true)
			classOpt.SeriesList[i].Label.ValueFormatter = func(f float64) string {
				return class + ": " + charts.FormatValueHumanize(f, 0, false)
			}
		}
		if err := bottom.HorizontalBarChart(classOpt); err != nil {
			return nil, fmt.Errorf("error rendering chart: %w", err)
		}
	}
	return p.Bytes()
}

// WriteReportChart renders the chart to a PNG file.
func WriteReportChart(path string, summary ReportSummary) error {
	buf, err := RenderReportChart(summary)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}
