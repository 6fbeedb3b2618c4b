package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/PatchLens/go-trace-lens/lens"
)

const (
	configBaseName = "tracelens"
	envPrefix      = "GHOSTWRITER"

	instrumentKey       = "instrument"
	traceValueChangeKey = "trace-value-change"
	traceReturningKey   = "trace-returning"
	traceOnErrorKey     = "trace-on-error"
	traceTimeoutKey     = "trace-timeout"
	traceLambdasKey     = "trace-lambdas"
	languageLevelKey    = "language-level"
	annotatedOnlyKey    = "annotated-only"
	excludeKey          = "exclude"
	excludeMethodsKey   = "exclude-methods"
	shortMethodLimitKey = "short-method-limit"
	verboseKey          = "verbose"
	nameSeedKey         = "name-seed"
	parallelKey         = "parallel"
	hookHandlerKey      = "hooks.handler"
	clockKey            = "hooks.clock"
	throwableKey        = "hooks.throwable"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
)

// NewViper returns a viper instance with the defaults of lens.DefaultConfig, reading GHOSTWRITER_* environment
// variables. When configFile is empty tracelens.yaml is looked up in the working directory, a missing file is not an
// error.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configBaseName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	defaults := lens.DefaultConfig()
	v.SetDefault(instrumentKey, defaults.Instrument)
	v.SetDefault(traceValueChangeKey, defaults.TraceValueChange)
	v.SetDefault(traceReturningKey, defaults.TraceReturning)
	v.SetDefault(traceOnErrorKey, defaults.TraceOnError)
	v.SetDefault(traceTimeoutKey, defaults.TraceTimeout)
	v.SetDefault(traceLambdasKey, defaults.TraceLambdas)
	v.SetDefault(languageLevelKey, defaults.LanguageLevel)
	v.SetDefault(annotatedOnlyKey, defaults.AnnotatedOnly)
	v.SetDefault(excludeKey, []string{})
	v.SetDefault(excludeMethodsKey, defaults.ExcludedMethods)
	v.SetDefault(shortMethodLimitKey, defaults.ShortMethodLimit)
	v.SetDefault(verboseKey, defaults.Verbose)
	v.SetDefault(nameSeedKey, defaults.NameSeed)
	v.SetDefault(parallelKey, defaults.Parallelism)
	v.SetDefault(hookHandlerKey, defaults.Hooks.Handler)
	v.SetDefault(clockKey, defaults.Clock)
	v.SetDefault(throwableKey, defaults.ThrowableType)

	v.SetDefault(logFilenameKey, "")
	v.SetDefault(logLevelKey, "info")
	v.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	v.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	v.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	v.SetDefault(logCompressKey, true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (configFile == "" && errors.Is(err, os.ErrNotExist)) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ConfigureFlags registers the instrumentation flags on flags and binds them to v, so a set flag overrides the
// environment and the config file.
func ConfigureFlags(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool(instrumentKey, v.GetBool(instrumentKey), "master switch, disable to skip every method")
	flags.Bool(traceValueChangeKey, v.GetBool(traceValueChangeKey), "report local variable and array element changes")
	flags.Bool(traceReturningKey, v.GetBool(traceReturningKey), "report returned values")
	flags.Bool(traceOnErrorKey, v.GetBool(traceOnErrorKey), "report thrown errors")
	flags.Bool(traceTimeoutKey, v.GetBool(traceTimeoutKey), "report methods exceeding their timeout marker")
	flags.Bool(traceLambdasKey, v.GetBool(traceLambdasKey), "instrument lambda bodies")
	flags.String(languageLevelKey, v.GetString(languageLevelKey), "host language level, lambdas require 8 or newer")
	flags.Bool(annotatedOnlyKey, v.GetBool(annotatedOnlyKey), "only instrument declarations carrying an include marker")
	flags.StringSlice(excludeKey, v.GetStringSlice(excludeKey), "excluded classes, use pkg.* for packages (can be repeated)")
	flags.StringSlice(excludeMethodsKey, v.GetStringSlice(excludeMethodsKey), "method names never instrumented")
	flags.Int(shortMethodLimitKey, v.GetInt(shortMethodLimitKey), "skip methods with at most this many statements, 0 disables")
	flags.BoolP(verboseKey, "v", v.GetBool(verboseKey), "log every pass and the resulting diff")
	flags.Uint64(nameSeedKey, v.GetUint64(nameSeedKey), "seed for synthetic variable names")
	flags.Int(parallelKey, v.GetInt(parallelKey), "classes instrumented concurrently, 0 uses the CPU count")
	flags.String(hookHandlerKey, v.GetString(hookHandlerKey), "type declaring the static hook methods")

	for _, key := range []string{
		instrumentKey, traceValueChangeKey, traceReturningKey, traceOnErrorKey, traceTimeoutKey, traceLambdasKey,
		languageLevelKey, annotatedOnlyKey, excludeKey, excludeMethodsKey, shortMethodLimitKey, verboseKey,
		nameSeedKey, parallelKey, hookHandlerKey,
	} {
		bindFlagToConfig(v, flags.Lookup(key), key)
	}
}

// bindFlagToConfig wires a flag to a viper key so config and env values feed the flag.
func bindFlagToConfig(v *viper.Viper, flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}
	cobra.CheckErr(v.BindPFlag(key, flag))
}

// splitList accepts both repeated values and comma separated lists, as environment variables only carry the latter.
func splitList(values []string) []string {
	var result []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

// LoadConfig resolves the lens configuration from v and validates it.
func LoadConfig(v *viper.Viper) (lens.Config, error) {
	cfg := lens.DefaultConfig()
	cfg.Instrument = v.GetBool(instrumentKey)
	cfg.TraceValueChange = v.GetBool(traceValueChangeKey)
	cfg.TraceReturning = v.GetBool(traceReturningKey)
	cfg.TraceOnError = v.GetBool(traceOnErrorKey)
	cfg.TraceTimeout = v.GetBool(traceTimeoutKey)
	cfg.TraceLambdas = v.GetBool(traceLambdasKey)
	cfg.LanguageLevel = v.GetString(languageLevelKey)
	cfg.AnnotatedOnly = v.GetBool(annotatedOnlyKey)
	cfg.ExcludedClasses = splitList(v.GetStringSlice(excludeKey))
	cfg.ExcludedMethods = splitList(v.GetStringSlice(excludeMethodsKey))
	cfg.ShortMethodLimit = v.GetInt(shortMethodLimitKey)
	cfg.Verbose = v.GetBool(verboseKey)
	cfg.NameSeed = v.GetUint64(nameSeedKey)
	cfg.Parallelism = v.GetInt(parallelKey)
	cfg.Hooks.Handler = v.GetString(hookHandlerKey)
	cfg.Clock = v.GetString(clockKey)
	cfg.ThrowableType = v.GetString(throwableKey)
	return cfg, cfg.Validate()
}

// NewLogger builds a zap logger writing to stderr, and additionally to a rotating log file when log.filename is set.
// Verbose lowers the level to debug.
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if v.GetBool(verboseKey) {
		level = zapcore.DebugLevel
	} else if err := level.UnmarshalText([]byte(v.GetString(logLevelKey))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}
	if filename := strings.TrimSpace(v.GetString(logFilenameKey)); filename != "" {
		logWriter := &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    v.GetInt(logMaxSizeKey),
			MaxBackups: v.GetInt(logMaxBackupsKey),
			MaxAge:     v.GetInt(logMaxAgeKey),
			Compress:   v.GetBool(logCompressKey),
		}
		cores = append(cores,
			zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(logWriter), level))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}
