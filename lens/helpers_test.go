package lens

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/tools/txtar"
)

func ident(name string) *Ident { return &Ident{Name: name} }

func intLit(v string) *Literal { return &Literal{Type: LitInt, Value: v} }

func strLit(v string) *Literal { return &Literal{Type: LitString, Value: v} }

func typ(name string) TypeRef { return TypeRef{Name: name} }

func assignStmt(target, value Expr) *ExprStmt {
	return &ExprStmt{X: &Assign{Target: target, Value: value}}
}

func varDecl(name, t string, init Expr) *VarDecl {
	return &VarDecl{Name: name, Type: typ(t), Init: init}
}

func param(name, t string) *Parameter {
	return &Parameter{Name: name, Type: typ(t)}
}

func block(stmts ...Stmt) *Block { return &Block{Stmts: stmts} }

// testMethod builds an instance method of class demo.Sample.
func testMethod(name, result string, params []*Parameter, stmts ...Stmt) *Method {
	c := &Class{Name: "Sample", Package: "demo"}
	m := &Method{Name: name, Class: c, Params: params, ResultType: typ(result), Body: block(stmts...)}
	c.Methods = append(c.Methods, m)
	return m
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ExcludedMethods = nil
	cfg.Parallelism = 2
	return cfg
}

func testEnv(t *testing.T, cfg Config) *passEnv {
	t.Helper()
	return &passEnv{
		cfg:     cfg,
		factory: NewTreeFactory(),
		names:   NewNameGenerator(0),
		log:     zaptest.NewLogger(t),
	}
}

func testScope(t *testing.T, cfg Config, m *Method) *bodyScope {
	t.Helper()
	return newMethodScope(testEnv(t, cfg), m)
}

func testInstrumenter(t *testing.T, cfg Config) *Instrumenter {
	t.Helper()
	in, err := NewInstrumenter(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return in
}

// renderBody renders the statements of a body, one per line without the enclosing braces.
func renderBody(b *Block) string {
	lines := make([]string, 0, len(b.Stmts))
	for _, s := range b.Stmts {
		lines = append(lines, RenderStmt(s))
	}
	return strings.Join(lines, "\n")
}

// loadArchive reads testdata/<name>.txtar into a map of file name to content, the archive comment is returned
// under the empty name.
func loadArchive(t *testing.T, name string) map[string]string {
	t.Helper()
	archive, err := txtar.ParseFile(filepath.Join("testdata", name+".txtar"))
	require.NoError(t, err)
	files := map[string]string{"": string(archive.Comment)}
	for _, f := range archive.Files {
		files[f.Name] = string(f.Data)
	}
	return files
}

// loadUnit decodes the YAML unit stored under file in the archive.
func loadUnit(t *testing.T, files map[string]string, file string) *Unit {
	t.Helper()
	data, ok := files[file]
	require.True(t, ok, "archive file %s missing", file)
	u, err := UnmarshalUnitYAML([]byte(data))
	require.NoError(t, err)
	return u
}

// findMethod returns the method with the given name from the first class of the unit that declares it.
func findMethod(t *testing.T, u *Unit, name string) *Method {
	t.Helper()
	for _, c := range u.Classes {
		for _, m := range CollectMethods(c) {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("method %s not found in unit %s", name, u.Name)
	return nil
}

// expectedLines splits a fixture file into trimmed non empty lines.
func expectedLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
