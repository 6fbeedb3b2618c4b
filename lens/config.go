package lens

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/mod/semver"
)

// HookKind names one of the runtime hooks emitted into method bodies.
type HookKind string

const (
	HookEntering    HookKind = "entering"
	HookExiting     HookKind = "exiting"
	HookReturning   HookKind = "returning"
	HookValueChange HookKind = "valueChange"
	HookOnError     HookKind = "onError"
	HookTimeout     HookKind = "timeout"
)

// AllHookKinds lists the hooks in report order.
var AllHookKinds = []HookKind{HookEntering, HookExiting, HookReturning, HookValueChange, HookOnError, HookTimeout}

// lambdaLanguageLevel is the first host language level with lambda expressions.
const lambdaLanguageLevel = "v8"

// HookNames configures the static handler type and the method names the emitted calls target.
type HookNames struct {
	// Handler is the fully qualified type declaring the static hook methods.
	Handler     string
	Entering    string
	Exiting     string
	Returning   string
	ValueChange string
	OnError     string
	Timeout     string
}

// DefaultHookNames returns the hook names of the standard runtime.
func DefaultHookNames() HookNames {
	return HookNames{
		Handler:     "io.ghostwriter.GhostWriter",
		Entering:    string(HookEntering),
		Exiting:     string(HookExiting),
		Returning:   string(HookReturning),
		ValueChange: string(HookValueChange),
		OnError:     string(HookOnError),
		Timeout:     string(HookTimeout),
	}
}

// Method returns the configured method name for the hook.
func (h HookNames) Method(kind HookKind) string {
	switch kind {
	case HookEntering:
		return h.Entering
	case HookExiting:
		return h.Exiting
	case HookReturning:
		return h.Returning
	case HookValueChange:
		return h.ValueChange
	case HookOnError:
		return h.OnError
	case HookTimeout:
		return h.Timeout
	}
	return ""
}

// Qualified returns Handler.method for the hook.
func (h HookNames) Qualified(kind HookKind) string {
	return h.Handler + "." + h.Method(kind)
}

// Config controls which hooks are emitted and which methods are eligible.
type Config struct {
	// Instrument is the master switch, when false every method is skipped.
	Instrument bool
	// TraceValueChange enables value change reports and return expression extraction.
	TraceValueChange bool
	// TraceReturning enables returning reports.
	TraceReturning bool
	// TraceOnError enables the catch and rethrow reporting clause.
	TraceOnError bool
	// TraceTimeout enables timeout reports for methods carrying a Timeout marker.
	TraceTimeout bool
	// TraceLambdas instruments lambda bodies as their own sub-scope.
	TraceLambdas bool
	// LanguageLevel is the host language level, for example "8" or "1.7".
	LanguageLevel string
	// AnnotatedOnly limits instrumentation to declarations carrying an Include marker.
	AnnotatedOnly bool
	// ExcludedClasses lists fully qualified class names and package patterns ending in ".*".
	ExcludedClasses []string
	// ExcludedMethods lists method names never instrumented.
	ExcludedMethods []string
	// ShortMethodLimit skips methods with at most this many top-level statements, 0 disables the check.
	ShortMethodLimit int
	// Verbose logs the rendered body after each pass.
	Verbose bool
	// Hooks configures the emitted call targets.
	Hooks HookNames
	// Clock is the static method returning the current time in milliseconds.
	Clock string
	// ThrowableType is the type caught by the on-error clause.
	ThrowableType string
	// NameSeed seeds the synthetic name generator.
	NameSeed uint64
	// Parallelism limits concurrent class processing, 0 uses the CPU count.
	Parallelism int
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Instrument:       true,
		TraceValueChange: true,
		TraceReturning:   true,
		TraceOnError:     true,
		TraceTimeout:     true,
		LanguageLevel:    "8",
		ExcludedMethods:  []string{"toString", "equals", "hashCode", "compareTo"},
		Hooks:            DefaultHookNames(),
		Clock:            "System.currentTimeMillis",
		ThrowableType:    "java.lang.Throwable",
	}
}

// Validate checks the configuration for values the pipeline can not work with.
func (c Config) Validate() error {
	if c.ShortMethodLimit < 0 {
		return errors.New("short method limit must not be negative")
	} else if c.Parallelism < 0 {
		return errors.New("parallelism must not be negative")
	} else if c.Hooks.Handler == "" {
		return errors.New("hook handler type is required")
	} else if c.Clock == "" || c.ThrowableType == "" {
		return errors.New("clock and throwable type are required")
	}
	for _, kind := range AllHookKinds {
		if c.Hooks.Method(kind) == "" {
			return fmt.Errorf("hook method name for %s is required", kind)
		}
	}
	if c.TraceLambdas {
		level, err := ParseLanguageLevel(c.LanguageLevel)
		if err != nil {
			return err
		} else if semver.Compare(level, lambdaLanguageLevel) < 0 {
			return fmt.Errorf("lambda tracing requires language level 8 or newer, got %s", c.LanguageLevel)
		}
	}
	return nil
}

// ParseLanguageLevel converts a host language level ("1.7", "8", "17.0.2") into a semver string.
func ParseLanguageLevel(level string) (string, error) {
	level = strings.TrimSpace(level)
	if strings.HasPrefix(level, "1.") && len(level) > 2 {
		level = level[2:] // legacy 1.x naming
	}
	v := "v" + strings.TrimPrefix(level, "v")
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid language level: %q", level)
	}
	return semver.Canonical(v), nil
}

// Fingerprint returns a stable digest of every setting that influences the instrumented output.
func (c Config) Fingerprint() (string, error) {
	c.Verbose = false // logging only
	c.Parallelism = 0 // scheduling only
	encoded, err := msgpack.Marshal(&c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return digestKey(encoded), nil
}
