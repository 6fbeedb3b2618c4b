package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/PatchLens/go-trace-lens/lens"
)

// Output formats.
const (
	FormatYAML    = "yaml"
	FormatMsgpack = "msgpack"
	FormatJava    = "java"
)

var formatExtensions = map[string]string{
	FormatYAML:    ".yaml",
	FormatMsgpack: ".msgpack",
	FormatJava:    ".java",
}

// InstrumentOptions configures one instrument run.
type InstrumentOptions struct {
	// Inputs are unit files or directories searched recursively for unit files.
	Inputs []string
	// OutputDir receives one file per unit, nothing is written when empty.
	OutputDir string
	// Format is one of FormatYAML, FormatMsgpack or FormatJava.
	Format string
	// Diff receives a unified diff per changed unit when set.
	Diff io.Writer
	// CacheDir enables the persistent result cache.
	CacheDir string
	// CacheMB bounds the memory used for caching.
	CacheMB int
	// ReportFile and ChartFile receive the run summary when set.
	ReportFile string
	ChartFile  string
}

func isUnitFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".msgpack":
		return true
	}
	return false
}

// inputFile is a unit file and its path relative to the input it was found under.
type inputFile struct {
	path string
	rel  string
}

func collectInputs(inputs []string) ([]inputFile, error) {
	var files []inputFile
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, err
		} else if !info.IsDir() {
			files = append(files, inputFile{path: input, rel: filepath.Base(input)})
			continue
		}
		if err := filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			} else if d.IsDir() || !isUnitFile(path) {
				return nil
			}
			rel, err := filepath.Rel(input, path)
			if err != nil {
				return err
			}
			files = append(files, inputFile{path: path, rel: rel})
			return nil
		}); err != nil {
			return nil, err
		}
	}
	slices.SortStableFunc(files, func(a, b inputFile) int { return strings.Compare(a.path, b.path) })
	return slices.CompactFunc(files, func(a, b inputFile) bool { return a.path == b.path }), nil
}

// ExpandInputs resolves directories into the unit files they contain, in lexical order.
func ExpandInputs(inputs []string) ([]string, error) {
	files, err := collectInputs(inputs)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// ReadUnit decodes a unit file, msgpack by the .msgpack extension, YAML otherwise. Units without a name are named
// after the file.
func ReadUnit(path string) (*lens.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var u *lens.Unit
	if strings.EqualFold(filepath.Ext(path), ".msgpack") {
		u, err = lens.UnmarshalUnitMsgpack(data)
	} else {
		u, err = lens.UnmarshalUnitYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	} else if u.Name == "" {
		u.Name = filepath.ToSlash(path)
	}
	return u, nil
}

// EncodeUnit serializes the unit in the given format.
func EncodeUnit(u *lens.Unit, format string) ([]byte, error) {
	switch format {
	case FormatYAML:
		return lens.MarshalUnitYAML(u)
	case FormatMsgpack:
		return lens.MarshalUnitMsgpack(u)
	case FormatJava:
		return []byte(lens.RenderUnit(u)), nil
	}
	return nil, fmt.Errorf("unsupported format: %q", format)
}

// outputPath maps a unit path, relative to its input root, to the file receiving the result.
func outputPath(dir, rel, format string) string {
	return filepath.Join(dir, strings.TrimSuffix(rel, filepath.Ext(rel))+formatExtensions[format])
}

// checkOutputCollisions fails when two inputs would be written to the same output file.
func checkOutputCollisions(files []inputFile, dir, format string) error {
	written := make(map[string]string, len(files))
	var errs error
	for _, f := range files {
		out := outputPath(dir, f.rel, format)
		if prev, ok := written[out]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%s and %s both write %s", prev, f.path, out))
			continue
		}
		written[out] = f.path
	}
	return errs
}

func openCache(opts InstrumentOptions, log *zap.Logger) (*lens.ResultCache, error) {
	cacheBytes := int64(max(opts.CacheMB, 1)) << 20
	var store lens.Storage
	if opts.CacheDir == "" {
		store = lens.NewMemStorage()
	} else {
		var err error
		if store, err = lens.NewBadgerStorage(opts.CacheDir, opts.CacheMB, log); err != nil {
			return nil, err
		}
	}
	return lens.NewResultCache(lens.KeyPrefixStorage(store, "unit"), cacheBytes/2, log)
}

// RunInstrument instruments every input unit. A failing unit is logged and left out of the output, the other units
// are still processed and the failures are returned together.
func RunInstrument(ctx context.Context, cfg lens.Config, opts InstrumentOptions, log *zap.Logger) (lens.ReportSummary, error) {
	if _, ok := formatExtensions[opts.Format]; !ok {
		return lens.ReportSummary{}, fmt.Errorf("unsupported format: %q", opts.Format)
	}
	files, err := collectInputs(opts.Inputs)
	if err != nil {
		return lens.ReportSummary{}, err
	} else if len(files) == 0 {
		return lens.ReportSummary{}, fmt.Errorf("no unit files found in %s", strings.Join(opts.Inputs, ", "))
	} else if opts.OutputDir != "" {
		if err := checkOutputCollisions(files, opts.OutputDir, opts.Format); err != nil {
			return lens.ReportSummary{}, err
		}
	}
	in, err := lens.NewInstrumenter(cfg, lens.WithLogger(log))
	if err != nil {
		return lens.ReportSummary{}, err
	}
	cache, err := openCache(opts, log)
	if err != nil {
		return lens.ReportSummary{}, err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			log.Warn("failed to close cache", zap.Error(err))
		}
	}()
	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
			return lens.ReportSummary{}, err
		}
	}

	var reports []*lens.UnitReport
	var errs error
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return lens.ReportSummary{}, err
		}
		report, err := instrumentFile(ctx, in, cache, file, opts)
		if err != nil {
			log.Error(lens.ErrorLogPrefix+"unit failed", zap.String("file", file.path), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		reports = append(reports, report)
	}

	summary := lens.Summarize(reports)
	log.Info("instrumentation complete",
		zap.Int("units", summary.Units), zap.Int("cached", summary.CachedUnits),
		zap.Int("methods", summary.Methods), zap.Int("instrumented", summary.Instrumented))
	if opts.ReportFile != "" {
		if err := summary.WriteToFile(opts.ReportFile); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if opts.ChartFile != "" && summary.Methods > 0 {
		if err := lens.WriteReportChart(opts.ChartFile, summary); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return summary, errs
}

func instrumentFile(ctx context.Context, in *lens.Instrumenter, cache *lens.ResultCache, file inputFile, opts InstrumentOptions) (*lens.UnitReport, error) {
	u, err := ReadUnit(file.path)
	if err != nil {
		return nil, err
	}
	var before string
	if opts.Diff != nil {
		before = lens.RenderUnit(u)
	}
	result, report, err := cache.Instrument(ctx, in, u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.path, err)
	}

	if opts.Diff != nil {
		diff, err := lens.UnifiedDiff(u.Name, before, lens.RenderUnit(result))
		if err != nil {
			return nil, err
		} else if _, err = io.WriteString(opts.Diff, diff); err != nil {
			return nil, err
		}
	}
	if opts.OutputDir != "" {
		data, err := EncodeUnit(result, opts.Format)
		if err != nil {
			return nil, err
		}
		out := outputPath(opts.OutputDir, file.rel, opts.Format)
		if err = os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return nil, err
		} else if err = os.WriteFile(out, data, 0644); err != nil {
			return nil, err
		}
	}
	return report, nil
}
