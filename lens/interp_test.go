package lens

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
)

// hookEvent is one recorded hook invocation, without the context and scope name arguments. Arguments are formatted
// when the hook is called, so later mutations do not change the record.
type hookEvent struct {
	Hook  string
	Scope string
	Args  []string
}

func (e hookEvent) String() string {
	return strings.Join(append([]string{e.Hook}, e.Args...), " ")
}

func formatValue(v any) string {
	if arr, ok := v.(*array); ok {
		return fmt.Sprint(arr.elems)
	}
	return fmt.Sprintf("%v", v)
}

// throwable is the value of a thrown exception.
type throwable struct {
	typ string
}

func (t *throwable) String() string {
	return t.typ
}

// thrown carries an exception through the Go stack while interpreting.
type thrown struct {
	value any
}

type array struct {
	elems []any
}

type ctrlKind uint8

const (
	ctrlNone ctrlKind = iota
	ctrlReturn
	ctrlBreak
	ctrlContinue
)

type outcome struct {
	kind  ctrlKind
	value any
}

// interp executes method bodies for tests, recording every call to the configured hook handler. Only the subset of
// the language used by the test fixtures is supported, anything else fails the test.
type interp struct {
	t      *testing.T
	hooks  HookNames
	clock  string
	now    int64
	scopes []map[string]any
	events []hookEvent
}

func newInterp(t *testing.T, cfg Config) *interp {
	t.Helper()
	return &interp{t: t, hooks: cfg.Hooks, clock: cfg.Clock}
}

// run executes the method with the given arguments. It returns the result and, if the method completed abruptly,
// the uncaught exception.
func (in *interp) run(m *Method, args ...any) (result any, uncaught any) {
	in.t.Helper()
	if len(args) != len(m.Params) {
		in.t.Fatalf("method %s takes %d arguments, got %d", m.Name, len(m.Params), len(args))
	}
	in.scopes = []map[string]any{{}}
	for i, p := range m.Params {
		in.scopes[0][p.Name] = args[i]
	}
	defer func() {
		if r := recover(); r != nil {
			th, ok := r.(thrown)
			if !ok {
				panic(r)
			}
			uncaught = th.value
		}
	}()
	out := in.execBlock(m.Body)
	return out.value, nil
}

func (in *interp) eventStrings() []string {
	result := make([]string, len(in.events))
	for i, e := range in.events {
		result[i] = e.String()
	}
	return result
}

func (in *interp) push() {
	in.scopes = append(in.scopes, map[string]any{})
}

func (in *interp) pop() {
	in.scopes = in.scopes[:len(in.scopes)-1]
}

func (in *interp) define(name string, v any) {
	in.scopes[len(in.scopes)-1][name] = v
}

func (in *interp) lookup(name string) any {
	for i := len(in.scopes) - 1; i >= 0; i-- {
		if v, ok := in.scopes[i][name]; ok {
			return v
		}
	}
	if name == "this" {
		return "this"
	}
	in.t.Fatalf("undefined variable %q", name)
	return nil
}

func (in *interp) set(name string, v any) {
	for i := len(in.scopes) - 1; i >= 0; i-- {
		if _, ok := in.scopes[i][name]; ok {
			in.scopes[i][name] = v
			return
		}
	}
	in.t.Fatalf("assignment to undefined variable %q", name)
}

func throwNew(typ string) {
	panic(thrown{value: &throwable{typ: typ}})
}

func (in *interp) execBlock(b *Block) outcome {
	if b == nil {
		return outcome{}
	}
	in.push()
	defer in.pop()
	return in.execStmts(b.Stmts)
}

func (in *interp) execStmts(stmts []Stmt) outcome {
	for _, s := range stmts {
		if out := in.exec(s); out.kind != ctrlNone {
			return out
		}
	}
	return outcome{}
}

func (in *interp) exec(s Stmt) outcome {
	switch s := s.(type) {
	case *Block:
		return in.execBlock(s)
	case *VarDecl:
		var v any
		if s.Init != nil {
			v = in.eval(s.Init)
		}
		in.define(s.Name, v)
	case *ExprStmt:
		in.eval(s.X)
	case *If:
		if in.truth(s.Cond) {
			return in.exec(s.Then)
		} else if s.Else != nil {
			return in.exec(s.Else)
		}
	case *For:
		in.push()
		defer in.pop()
		in.execStmts(s.Init)
		for s.Cond == nil || in.truth(s.Cond) {
			out := in.exec(s.Body)
			if out.kind == ctrlBreak {
				break
			} else if out.kind == ctrlReturn {
				return out
			}
			in.execStmts(s.Update)
		}
	case *While:
		for first := true; (first && s.Do) || in.truth(s.Cond); first = false {
			out := in.exec(s.Body)
			if out.kind == ctrlBreak {
				break
			} else if out.kind == ctrlReturn {
				return out
			}
		}
	case *Try:
		return in.execTry(s)
	case *Return:
		var v any
		if s.X != nil {
			v = in.eval(s.X)
		}
		return outcome{kind: ctrlReturn, value: v}
	case *Throw:
		panic(thrown{value: in.eval(s.X)})
	case *Jump:
		if s.Continue {
			return outcome{kind: ctrlContinue}
		}
		return outcome{kind: ctrlBreak}
	default:
		in.t.Fatalf("interp: unsupported statement %s", s.Kind())
	}
	return outcome{}
}

func (in *interp) execTry(s *Try) (out outcome) {
	var pending *thrown
	guard := func(f func()) {
		defer func() {
			if r := recover(); r != nil {
				th, ok := r.(thrown)
				if !ok {
					panic(r)
				}
				pending = &th
			}
		}()
		f()
	}

	guard(func() { out = in.execBlock(s.Body) })
	if pending != nil {
		for _, c := range s.Catches {
			if !catches(c.Param.Type, pending.value) {
				continue
			}
			caught := *pending
			pending = nil
			guard(func() {
				in.push()
				defer in.pop()
				in.define(c.Param.Name, caught.value)
				out = in.execBlock(c.Body)
			})
			break
		}
	}
	if s.Finally != nil {
		if fout := in.execBlock(s.Finally); fout.kind != ctrlNone {
			return fout
		}
	}
	if pending != nil {
		panic(*pending)
	}
	return out
}

func catches(t TypeRef, value any) bool {
	if t.Name == "java.lang.Throwable" || t.Name == "Throwable" {
		return true
	}
	th, ok := value.(*throwable)
	return ok && strings.HasSuffix(t.Name, th.typ)
}

func (in *interp) truth(e Expr) bool {
	b, ok := in.eval(e).(bool)
	if !ok {
		in.t.Fatalf("interp: %s is not a boolean", RenderExpr(e))
	}
	return b
}

func (in *interp) intOf(e Expr) int64 {
	v, ok := in.eval(e).(int64)
	if !ok {
		in.t.Fatalf("interp: %s is not an integer", RenderExpr(e))
	}
	return v
}

func literalValue(t *testing.T, l *Literal) any {
	switch l.Type {
	case LitInt, LitLong:
		v, err := strconv.ParseInt(strings.TrimRight(l.Value, "lL"), 10, 64)
		if err != nil {
			t.Fatalf("interp: bad integer literal %q", l.Value)
		}
		return v
	case LitBool:
		return l.Value == "true"
	case LitString, LitChar:
		return l.Value
	case LitNull:
		return nil
	}
	t.Fatalf("interp: unsupported literal type %s", l.Type)
	return nil
}

func (in *interp) eval(e Expr) any {
	switch e := e.(type) {
	case *Ident:
		return in.lookup(e.Name)
	case *Literal:
		return literalValue(in.t, e)
	case *Assign:
		v := in.eval(e.Value)
		in.store(e.Target, func(any) any { return v })
		return v
	case *CompoundAssign:
		var result any
		rhs := in.eval(e.Value)
		in.store(e.Target, func(old any) any {
			result = arith(in.t, e.Op, old, rhs)
			return result
		})
		return result
	case *IncDec:
		var before, after any
		in.store(e.X, func(old any) any {
			before = old
			if e.Dec {
				after = arith(in.t, "-", old, int64(1))
			} else {
				after = arith(in.t, "+", old, int64(1))
			}
			return after
		})
		if e.Prefix {
			return after
		}
		return before
	case *Unary:
		switch e.Op {
		case "!":
			return !in.truth(e.X)
		case "-":
			return -in.intOf(e.X)
		}
	case *Binary:
		switch e.Op {
		case "&&":
			return in.truth(e.X) && in.truth(e.Y)
		case "||":
			return in.truth(e.X) || in.truth(e.Y)
		}
		return arith(in.t, e.Op, in.eval(e.X), in.eval(e.Y))
	case *Conditional:
		if in.truth(e.Cond) {
			return in.eval(e.Then)
		}
		return in.eval(e.Else)
	case *Index:
		arr := in.arrayOf(e.X)
		i := in.intOf(e.Index)
		if i < 0 || i >= int64(len(arr.elems)) {
			throwNew("ArrayIndexOutOfBoundsException")
		}
		return arr.elems[i]
	case *NewArray:
		if e.Len != nil {
			n := in.intOf(e.Len)
			arr := &array{elems: make([]any, n)}
			for i := range arr.elems {
				arr.elems[i] = int64(0)
			}
			return arr
		}
		arr := &array{}
		for _, el := range e.Elems {
			arr.elems = append(arr.elems, in.eval(el))
		}
		return arr
	case *Cast:
		return in.eval(e.X)
	case *ClassLit:
		return e.Type.String()
	case *Call:
		return in.call(e)
	case *Field:
		if e.Name == "length" {
			return int64(len(in.arrayOf(e.X).elems))
		}
	}
	in.t.Fatalf("interp: unsupported expression %s", RenderExpr(e))
	return nil
}

func (in *interp) arrayOf(e Expr) *array {
	v := in.eval(e)
	if v == nil {
		throwNew("NullPointerException")
	}
	arr, ok := v.(*array)
	if !ok {
		in.t.Fatalf("interp: %s is not an array", RenderExpr(e))
	}
	return arr
}

// store evaluates the target location once and replaces its value.
func (in *interp) store(target Expr, update func(old any) any) {
	switch t := target.(type) {
	case *Ident:
		in.set(t.Name, update(in.lookup(t.Name)))
	case *Index:
		arr := in.arrayOf(t.X)
		i := in.intOf(t.Index)
		if i < 0 || i >= int64(len(arr.elems)) {
			throwNew("ArrayIndexOutOfBoundsException")
		}
		arr.elems[i] = update(arr.elems[i])
	default:
		in.t.Fatalf("interp: unsupported assignment target %s", RenderExpr(target))
	}
}

func (in *interp) call(c *Call) any {
	name := RenderExpr(c.Fun)
	if hook, ok := strings.CutPrefix(name, in.hooks.Handler+"."); ok {
		args := make([]any, len(c.Args))
		for i, a := range c.Args {
			args[i] = in.eval(a)
		}
		if len(args) < 2 {
			in.t.Fatalf("interp: hook %s without context and name", hook)
		}
		scope, _ := args[1].(string)
		event := hookEvent{Hook: hook, Scope: scope}
		for _, a := range args[2:] {
			event.Args = append(event.Args, formatValue(a))
		}
		in.events = append(in.events, event)
		if hook == in.hooks.Returning {
			return args[2]
		}
		return nil
	} else if name == in.clock {
		in.now++
		return in.now
	}
	if f, ok := c.Fun.(*Field); ok {
		if in.eval(f.X) == nil {
			throwNew("NullPointerException")
		}
	}
	in.t.Fatalf("interp: unsupported call %s", name)
	return nil
}

func arith(t *testing.T, op string, x, y any) any {
	switch op {
	case "==":
		return x == y
	case "!=":
		return x != y
	}
	if xs, ok := x.(string); ok && op == "+" {
		return xs + fmt.Sprintf("%v", y)
	}
	a, ok1 := x.(int64)
	b, ok2 := y.(int64)
	if !ok1 || !ok2 {
		t.Fatalf("interp: %v %s %v on non integers", x, op, y)
	}
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		if b == 0 {
			throwNew("ArithmeticException")
		}
		return a / b
	case "%":
		if b == 0 {
			throwNew("ArithmeticException")
		}
		return a % b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	t.Fatalf("interp: unsupported operator %s", op)
	return nil
}
