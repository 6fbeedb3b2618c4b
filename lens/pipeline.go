package lens

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrStructure is returned when a pass does not find the tree shape an earlier pass should have produced, or the
// source itself is ambiguous (for example two constructor delegation calls).
var ErrStructure = errors.New("unexpected tree structure")

// passEnv holds the capabilities shared by every pass of one Instrumenter.
type passEnv struct {
	cfg     Config
	factory TreeFactory
	names   NameGenerator
	log     *zap.Logger
}

// bodyScope is the unit a pass operates on, a method body or a lambda body.
type bodyScope struct {
	env      *passEnv
	method   *Method
	name     string
	params   []*Parameter
	result   TypeRef
	body     *Block
	// excluded holds excluded parameters and synthetic variables, locals are scoped by the value change pass.
	excluded map[string]bool
	// lambdaExcluded holds the exclusions visible where each lambda of the body is defined.
	lambdaExcluded map[*Lambda]map[string]bool
}

func newMethodScope(env *passEnv, m *Method) *bodyScope {
	s := &bodyScope{
		env:      env,
		method:   m,
		name:     m.Name,
		params:   m.Params,
		result:   m.ResultType,
		body:     m.Body,
		excluded: make(map[string]bool),
	}
	for _, p := range m.Params {
		if p.Excluded {
			s.excluded[p.Name] = true
		}
	}
	return s
}

func (s *bodyScope) lambdaScope(l *Lambda) *bodyScope {
	ls := &bodyScope{
		env:      s.env,
		method:   s.method,
		name:     lambdaName(s.method.Name, l),
		params:   l.Params,
		result:   l.ResultType,
		body:     l.Body,
		excluded: maps.Clone(s.excluded),
	}
	if visible, ok := s.lambdaExcluded[l]; ok {
		ls.excluded = maps.Clone(visible)
	}
	for _, p := range l.Params {
		if p.Excluded {
			ls.excluded[p.Name] = true
		}
	}
	return ls
}

// context returns the receiver for instance methods, or the class literal of the owner for static methods.
func (s *bodyScope) context() Expr {
	if s.method.Static && s.method.Class != nil {
		return s.env.factory.ClassLit(s.method.Class.TypeRef())
	}
	return s.env.factory.Ident("this")
}

func (s *bodyScope) hookCall(kind HookKind, args ...Expr) *Call {
	f := s.env.factory
	all := make([]Expr, 0, len(args)+2)
	all = append(all, s.context(), f.StringLit(s.name))
	all = append(all, args...)
	return f.Call(f.QualifiedName(s.env.cfg.Hooks.Qualified(kind)), all...)
}

func (s *bodyScope) hookStmt(kind HookKind, args ...Expr) *ExprStmt {
	return &ExprStmt{X: s.hookCall(kind, args...)}
}

// declareSynthetic declares a final variable that is never traced itself.
func (s *bodyScope) declareSynthetic(purpose string, t TypeRef, init Expr) *VarDecl {
	name := syntheticName(s.env.names, purpose, s.method.Name)
	s.excluded[name] = true
	return s.env.factory.SyntheticVar(name, t, init)
}

type pass struct {
	name    string
	enabled func(*bodyScope) bool // nil means always
	run     func(*bodyScope) error
}

func valueChangeEnabled(s *bodyScope) bool { return s.env.cfg.TraceValueChange }

// methodPasses run in this fixed order, each consumes the tree shape produced by the previous one.
var methodPasses = []pass{
	{name: "normalize", run: normalizeBlocks},
	{name: "extract-return", enabled: valueChangeEnabled, run: extractReturnMutations},
	{name: "value-change", enabled: valueChangeEnabled, run: injectValueChanges},
	{name: "entering-exiting", run: injectEnteringExiting},
	{name: "returning", enabled: func(s *bodyScope) bool {
		return s.env.cfg.TraceReturning
	}, run: injectReturning},
	{name: "timeout", enabled: func(s *bodyScope) bool {
		return s.env.cfg.TraceTimeout && s.method.Timeout() != nil
	}, run: injectTimeout},
	{name: "on-error", enabled: func(s *bodyScope) bool {
		return s.env.cfg.TraceOnError
	}, run: injectOnError},
	{name: "constructor", enabled: func(s *bodyScope) bool {
		return s.method.Constructor
	}, run: reorderConstructorCall},
	{name: "lambda", enabled: func(s *bodyScope) bool {
		return s.env.cfg.TraceLambdas
	}, run: instrumentLambdas},
}

func runPasses(s *bodyScope, passes []pass) error {
	for _, p := range passes {
		if p.enabled != nil && !p.enabled(s) {
			continue
		}
		if err := p.run(s); err != nil {
			return fmt.Errorf("%s pass: %w", p.name, err)
		}
		if s.env.cfg.Verbose {
			s.env.log.Debug("pass applied",
				zap.String("pass", p.name), zap.String("scope", s.name), zap.String("body", RenderStmt(s.body)))
		}
	}
	return nil
}

// Instrumenter applies the instrumentation pipeline to methods and compilation units.
type Instrumenter struct {
	env    passEnv
	policy *ExclusionPolicy
}

// Option customizes an Instrumenter.
type Option func(*Instrumenter)

// WithLogger sets the logger, by default nothing is logged.
func WithLogger(log *zap.Logger) Option {
	return func(in *Instrumenter) {
		in.env.log = log
	}
}

// WithNameGenerator replaces the synthetic name generator seeded from Config.NameSeed.
func WithNameGenerator(names NameGenerator) Option {
	return func(in *Instrumenter) {
		in.env.names = names
	}
}

// WithTreeFactory replaces the factory building inserted nodes.
func WithTreeFactory(factory TreeFactory) Option {
	return func(in *Instrumenter) {
		in.env.factory = factory
	}
}

// NewInstrumenter validates the config and returns an Instrumenter.
func NewInstrumenter(cfg Config, opts ...Option) (*Instrumenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	in := &Instrumenter{
		env: passEnv{
			cfg:     cfg,
			factory: NewTreeFactory(),
			names:   NewNameGenerator(cfg.NameSeed),
			log:     zap.NewNop(),
		},
		policy: NewExclusionPolicy(cfg),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// InstrumentMethod runs the pipeline on one method. Skipped methods are reported with a reason and no error. On
// failure the body is restored to its state before the first pass.
func (in *Instrumenter) InstrumentMethod(m *Method) (MethodReport, error) {
	report := MethodReport{Method: m.Ident(), Constructor: m.Constructor}
	if reason := in.policy.SkipReason(m); reason != SkipNone {
		report.Skipped = reason
		in.env.log.Debug("method skipped", zap.String("method", report.Method), zap.Stringer("reason", reason))
		return report, nil
	}

	original := CloneBlock(m.Body)
	var before string
	if in.env.cfg.Verbose {
		before = RenderMethod(m)
	}
	s := newMethodScope(&in.env, m)
	if err := runPasses(s, methodPasses); err != nil {
		m.Body = original
		return report, fmt.Errorf("instrument %s: %w", report.Method, err)
	}
	m.Body = s.body
	report.Hooks = CountHooks(m.Body, in.env.cfg.Hooks)
	if in.env.cfg.Verbose {
		if diff, err := MethodDiff(before, m); err != nil {
			in.env.log.Warn("failed to diff method", zap.String("method", report.Method), zap.Error(err))
		} else {
			in.env.log.Debug("method instrumented", zap.String("method", report.Method), zap.String("diff", diff))
		}
	}
	return report, nil
}

// InstrumentUnit instruments every method of the unit, one task per top-level class. The first failure is terminal
// for the unit and returned.
func (in *Instrumenter) InstrumentUnit(ctx context.Context, u *Unit) (*UnitReport, error) {
	limit := in.env.cfg.Parallelism
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	perClass := make([][]MethodReport, len(u.Classes))
	for i, c := range u.Classes {
		if c.Package == "" {
			c.Package = u.Package
		}
		group.Go(func() error {
			for _, m := range CollectMethods(c) {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				report, err := in.InstrumentMethod(m)
				if err != nil {
					in.env.log.Error("instrumentation failed", zap.String("unit", u.Name), zap.Error(err))
					return err
				}
				perClass[i] = append(perClass[i], report)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := &UnitReport{Unit: u.Name, Package: u.Package}
	for _, reports := range perClass {
		result.Methods = append(result.Methods, reports...)
	}
	return result, nil
}

// CountHooks counts the hook calls of each kind in the tree, lambda bodies included.
func CountHooks(root Node, hooks HookNames) map[HookKind]int {
	names := make(map[string]HookKind, len(AllHookKinds))
	for _, kind := range AllHookKinds {
		names[hooks.Qualified(kind)] = kind
	}
	counts := make(map[HookKind]int)
	Inspect(root, func(n Node) bool {
		if call, ok := n.(*Call); ok {
			if kind, ok := names[RenderExpr(call.Fun)]; ok {
				counts[kind]++
			}
		}
		return true
	})
	return counts
}
