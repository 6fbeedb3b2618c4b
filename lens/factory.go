package lens

import (
	"strconv"
	"strings"
)

// TreeFactory builds the nodes inserted by the instrumentation passes. Hosts with their own node conventions may
// provide an alternative implementation.
type TreeFactory interface {
	Ident(name string) *Ident
	StringLit(v string) *Literal
	IntLit(v int) *Literal
	LongLit(v int64) *Literal
	// QualifiedName builds a field selector chain from a dotted name.
	QualifiedName(name string) Expr
	Call(fun Expr, args ...Expr) *Call
	CallStmt(fun Expr, args ...Expr) *ExprStmt
	Cast(t TypeRef, x Expr) *Cast
	Binary(op string, x, y Expr) *Binary
	// SyntheticVar declares a final, excluded variable.
	SyntheticVar(name string, t TypeRef, init Expr) *VarDecl
	ClassLit(t TypeRef) *ClassLit
	Block(stmts ...Stmt) *Block
	If(cond Expr, then *Block) *If
	Return(x Expr) *Return
	Throw(x Expr) *Throw
	TryFinally(body, finally *Block) *Try
	Catch(param *VarDecl, body *Block) *Catch
}

// JavaTreeFactory is the default TreeFactory.
type JavaTreeFactory struct{}

// NewTreeFactory returns the default TreeFactory.
func NewTreeFactory() *JavaTreeFactory {
	return &JavaTreeFactory{}
}

func (JavaTreeFactory) Ident(name string) *Ident {
	return &Ident{Name: name}
}

func (JavaTreeFactory) StringLit(v string) *Literal {
	return &Literal{Type: LitString, Value: v}
}

func (JavaTreeFactory) IntLit(v int) *Literal {
	return &Literal{Type: LitInt, Value: strconv.Itoa(v)}
}

func (JavaTreeFactory) LongLit(v int64) *Literal {
	return &Literal{Type: LitLong, Value: strconv.FormatInt(v, 10) + "L"}
}

func (JavaTreeFactory) QualifiedName(name string) Expr {
	parts := strings.Split(name, ".")
	var e Expr = &Ident{Name: parts[0]}
	for _, p := range parts[1:] {
		e = &Field{X: e, Name: p}
	}
	return e
}

func (JavaTreeFactory) Call(fun Expr, args ...Expr) *Call {
	return &Call{Fun: fun, Args: args}
}

func (f JavaTreeFactory) CallStmt(fun Expr, args ...Expr) *ExprStmt {
	return &ExprStmt{X: f.Call(fun, args...)}
}

func (JavaTreeFactory) Cast(t TypeRef, x Expr) *Cast {
	return &Cast{Type: t, X: x}
}

func (JavaTreeFactory) Binary(op string, x, y Expr) *Binary {
	return &Binary{Op: op, X: x, Y: y}
}

func (JavaTreeFactory) SyntheticVar(name string, t TypeRef, init Expr) *VarDecl {
	return &VarDecl{Name: name, Type: t, Init: init, Final: true, Excluded: true}
}

func (JavaTreeFactory) ClassLit(t TypeRef) *ClassLit {
	return &ClassLit{Type: t}
}

func (JavaTreeFactory) Block(stmts ...Stmt) *Block {
	return &Block{Stmts: stmts}
}

func (JavaTreeFactory) If(cond Expr, then *Block) *If {
	return &If{Cond: cond, Then: then}
}

func (JavaTreeFactory) Return(x Expr) *Return {
	return &Return{X: x}
}

func (JavaTreeFactory) Throw(x Expr) *Throw {
	return &Throw{X: x}
}

func (JavaTreeFactory) TryFinally(body, finally *Block) *Try {
	return &Try{Body: body, Finally: finally}
}

func (JavaTreeFactory) Catch(param *VarDecl, body *Block) *Catch {
	return &Catch{Param: param, Body: body}
}
