package lens

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// archiveMethod returns the method named by the "method:" line of an archive comment.
func archiveMethod(t *testing.T, comment string) string {
	t.Helper()
	for _, line := range strings.Split(comment, "\n") {
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "method:"); ok {
			return strings.TrimSpace(name)
		}
	}
	t.Fatal("archive comment names no method")
	return ""
}

func TestInstrumentScenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []any
		result   any
		uncaught string
	}{
		{name: "scenario_value_change", result: int64(314)},
		{name: "scenario_loop"},
		{name: "scenario_on_error", args: []any{nil}, uncaught: "NullPointerException"},
		{name: "scenario_index", args: []any{&array{elems: []any{int64(0), int64(0), int64(0)}}}, result: int64(7)},
		{name: "scenario_return_extract", args: []any{int64(5)}, result: int64(5)},
		{name: "scenario_timeout"},
	}

	for _, tt := range tests {
		t.Run(strings.TrimPrefix(tt.name, "scenario_"), func(t *testing.T) {
			t.Parallel()

			files := loadArchive(t, tt.name)
			u := loadUnit(t, files, "unit.yaml")
			m := findMethod(t, u, archiveMethod(t, files[""]))
			cfg := testConfig()

			report, err := testInstrumenter(t, cfg).InstrumentMethod(m)
			require.NoError(t, err)
			assert.Equal(t, SkipNone, report.Skipped)

			vm := newInterp(t, cfg)
			result, uncaught := vm.run(m, tt.args...)
			assert.Equal(t, expectedLines(files["events"]), vm.eventStrings())
			if tt.uncaught == "" {
				assert.Nil(t, uncaught)
				assert.Equal(t, tt.result, result)
			} else {
				require.NotNil(t, uncaught)
				assert.Equal(t, tt.uncaught, formatValue(uncaught))
			}
		})
	}
}

func TestInstrumentConstructorScenario(t *testing.T) {
	t.Parallel()

	files := loadArchive(t, "scenario_constructor")
	u := loadUnit(t, files, "unit.yaml")
	m := findMethod(t, u, archiveMethod(t, files[""]))
	require.True(t, m.Constructor)

	report, err := testInstrumenter(t, testConfig()).InstrumentMethod(m)
	require.NoError(t, err)
	assert.True(t, report.Constructor)
	assert.Equal(t, files["want.java"], RenderMethod(m))
}

func TestInstrumentMethod(t *testing.T) {
	t.Parallel()

	t.Run("unsupported_target_restores_body", func(t *testing.T) {
		t.Parallel()

		m := testMethod("fill", "void", nil,
			varDecl("a", "int", intLit("1")),
			assignStmt(&Index{X: &Call{Fun: ident("values")}, Index: intLit("0")}, ident("a")),
		)
		before := RenderMethod(m)

		_, err := testInstrumenter(t, testConfig()).InstrumentMethod(m)
		require.ErrorIs(t, err, ErrUnsupportedExpression)
		assert.Contains(t, err.Error(), "demo.Sample#fill()")
		assert.Equal(t, before, RenderMethod(m))
	})

	t.Run("void_return_value", func(t *testing.T) {
		t.Parallel()

		m := testMethod("bump", "void", nil, &Return{X: &IncDec{X: ident("x")}})
		before := RenderMethod(m)

		_, err := testInstrumenter(t, testConfig()).InstrumentMethod(m)
		require.ErrorIs(t, err, ErrStructure)
		assert.Equal(t, before, RenderMethod(m))
	})

	t.Run("skipped_method_untouched", func(t *testing.T) {
		t.Parallel()

		m := testMethod("get", "int", nil, &Return{X: ident("v")})
		m.Markers.Exclude = true
		before := RenderMethod(m)

		report, err := testInstrumenter(t, testConfig()).InstrumentMethod(m)
		require.NoError(t, err)
		assert.Equal(t, SkipExcludedMethod, report.Skipped)
		assert.Empty(t, report.Hooks)
		assert.Equal(t, before, RenderMethod(m))
	})

	t.Run("hook_counts", func(t *testing.T) {
		t.Parallel()

		m := testMethod("sum", "int", []*Parameter{param("a", "int"), param("b", "int")},
			varDecl("s", "int", &Binary{Op: "+", X: ident("a"), Y: ident("b")}),
			&ExprStmt{X: &IncDec{X: ident("s")}},
			&Return{X: ident("s")},
		)

		report, err := testInstrumenter(t, testConfig()).InstrumentMethod(m)
		require.NoError(t, err)
		assert.Equal(t, map[HookKind]int{
			HookEntering:    1,
			HookExiting:     1,
			HookReturning:   1,
			HookValueChange: 2,
			HookOnError:     1,
		}, report.Hooks)
	})

	t.Run("disabled_hooks", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.TraceValueChange = false
		cfg.TraceReturning = false
		cfg.TraceOnError = false
		m := testMethod("sum", "int", []*Parameter{param("a", "int")},
			&ExprStmt{X: &IncDec{X: ident("a")}},
			&Return{X: ident("a")},
		)

		report, err := testInstrumenter(t, cfg).InstrumentMethod(m)
		require.NoError(t, err)
		assert.Equal(t, map[HookKind]int{HookEntering: 1, HookExiting: 1}, report.Hooks)
	})

	t.Run("verbose", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.Verbose = true
		m := testMethod("set", "void", nil, assignStmt(ident("v"), intLit("3")))

		report, err := testInstrumenter(t, cfg).InstrumentMethod(m)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Hooks[HookValueChange])
	})
}

func TestInstrumentLambdas(t *testing.T) {
	t.Parallel()

	newMethod := func() (*Method, *Lambda) {
		l := &Lambda{
			Params:     []*Parameter{{Name: "item"}},
			Value:      &CompoundAssign{Op: "+", Target: ident("total"), Value: ident("item")},
			ResultType: typ("void"),
		}
		call := &Call{Fun: &Field{X: ident("items"), Name: "forEach"}, Args: []Expr{l}}
		return testMethod("run", "void", []*Parameter{param("items", "List")}, &ExprStmt{X: call}), l
	}

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.TraceLambdas = true
		m, l := newMethod()

		report, err := testInstrumenter(t, cfg).InstrumentMethod(m)
		require.NoError(t, err)
		require.NotNil(t, l.Body)
		assert.Nil(t, l.Value)
		require.Len(t, l.Body.Stmts, 2)
		assert.Equal(t, `io.ghostwriter.GhostWriter.entering(this, "run: (item)->", "item", item);`,
			RenderStmt(l.Body.Stmts[0]))
		scaffold, ok := l.Body.Stmts[1].(*Try)
		require.True(t, ok)
		assert.Empty(t, scaffold.Catches)
		assert.Equal(t, []string{
			"total += item;",
			`io.ghostwriter.GhostWriter.valueChange(this, "run: (item)->", "total", total);`,
		}, strings.Split(renderBody(scaffold.Body), "\n"))

		assert.Equal(t, map[HookKind]int{
			HookEntering:    2,
			HookExiting:     2,
			HookValueChange: 1,
			HookOnError:     1,
		}, report.Hooks)
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()

		m, l := newMethod()
		report, err := testInstrumenter(t, testConfig()).InstrumentMethod(m)
		require.NoError(t, err)
		assert.Nil(t, l.Body)
		assert.Equal(t, 1, report.Hooks[HookEntering])
	})

	t.Run("value_lambda", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.TraceLambdas = true
		l := &Lambda{
			Params:     []*Parameter{{Name: "x"}},
			Value:      &IncDec{X: ident("x")},
			ResultType: typ("int"),
		}
		m := testMethod("apply", "void", nil, varDecl("f", "IntUnaryOperator", l))

		_, err := testInstrumenter(t, cfg).InstrumentMethod(m)
		require.NoError(t, err)
		scaffold, ok := l.Body.Stmts[1].(*Try)
		require.True(t, ok)
		assert.Equal(t, []string{
			"final int $capturedReturn_apply_2 = x++;",
			`io.ghostwriter.GhostWriter.valueChange(this, "apply: (x)->", "x", x);`,
			"return $capturedReturn_apply_2;",
		}, strings.Split(renderBody(scaffold.Body), "\n"))
	})

	t.Run("enclosing_exclusions", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.TraceLambdas = true
		newLambda := func() *Lambda {
			return &Lambda{
				Body:       block(assignStmt(&Index{X: ident("buf"), Index: intLit("0")}, intLit("1"))),
				ResultType: typ("void"),
			}
		}
		hidden, shown := newLambda(), newLambda()
		buf := varDecl("buf", "int[]", nil)
		buf.Excluded = true
		m := testMethod("fill", "void", nil,
			block(buf, &ExprStmt{X: &Call{Fun: ident("submit"), Args: []Expr{hidden}}}),
			block(varDecl("buf", "int[]", nil), &ExprStmt{X: &Call{Fun: ident("submit"), Args: []Expr{shown}}}),
		)

		_, err := testInstrumenter(t, cfg).InstrumentMethod(m)
		require.NoError(t, err)
		assert.Equal(t, 0, CountHooks(hidden.Body, cfg.Hooks)[HookValueChange])
		assert.Equal(t, 1, CountHooks(shown.Body, cfg.Hooks)[HookValueChange])
	})
}

func TestInstrumentUnit(t *testing.T) {
	t.Parallel()

	files := loadArchive(t, "unit_shapes")
	u := loadUnit(t, files, "unit.yaml")

	report, err := testInstrumenter(t, DefaultConfig()).InstrumentUnit(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "src/demo/Shapes.java", report.Unit)
	assert.Equal(t, "demo", report.Package)

	var idents []string
	skipped := make(map[string]SkipReason)
	for _, mr := range report.Methods {
		idents = append(idents, mr.Method)
		skipped[mr.Method] = mr.Skipped
	}
	assert.Equal(t, []string{
		"demo.Circle#area()",
		"demo.Circle#toString()",
		"demo.Circle#draw()",
		"demo.Circle.Builder#build()",
		"demo.Square#area()",
		"demo.Scheduler#start()",
		"demo.Scheduler$1#run()",
		"demo.Scheduler#abstractHook()",
	}, idents)
	assert.Equal(t, map[string]SkipReason{
		"demo.Circle#area()":            SkipNone,
		"demo.Circle#toString()":        SkipExcludedName,
		"demo.Circle#draw()":            SkipExcludedMethod,
		"demo.Circle.Builder#build()":   SkipNone,
		"demo.Square#area()":            SkipExcludedClass,
		"demo.Scheduler#start()":        SkipNone,
		"demo.Scheduler$1#run()":        SkipNone,
		"demo.Scheduler#abstractHook()": SkipNoBody,
	}, skipped)

	returning := map[HookKind]int{HookEntering: 1, HookExiting: 1, HookReturning: 1, HookOnError: 1}
	assert.Equal(t, returning, report.Methods[0].Hooks)
	assert.Equal(t, returning, report.Methods[3].Hooks)
	assert.Equal(t, map[HookKind]int{HookEntering: 1, HookExiting: 1, HookOnError: 1}, report.Methods[6].Hooks)

	build := findMethod(t, u, "build")
	ret := build.Body.Stmts[1].(*Try).Body.Stmts[0]
	assert.Equal(t, `return (Circle)io.ghostwriter.GhostWriter.returning(this, "build", new Circle());`, RenderStmt(ret))
}

func TestInstrumentUnitCanceled(t *testing.T) {
	t.Parallel()

	files := loadArchive(t, "unit_shapes")
	u := loadUnit(t, files, "unit.yaml")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testInstrumenter(t, testConfig()).InstrumentUnit(ctx, u)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCountHooks(t *testing.T) {
	t.Parallel()

	hooks := DefaultHookNames()
	f := NewTreeFactory()
	b := block(
		f.CallStmt(f.QualifiedName(hooks.Qualified(HookEntering)), ident("this")),
		f.CallStmt(f.QualifiedName("other.Type.entering"), ident("this")),
		&ExprStmt{X: &Lambda{Body: block(
			f.CallStmt(f.QualifiedName(hooks.Qualified(HookValueChange))),
		)}},
	)
	assert.Equal(t, map[HookKind]int{HookEntering: 1, HookValueChange: 1}, CountHooks(b, hooks))
}
