package lens

import (
	"strings"
)

// NodeKind identifies a tree variant.
type NodeKind uint8

const (
	KindInvalid NodeKind = iota
	// statements
	KindBlock
	KindVarDecl
	KindExprStmt
	KindIf
	KindFor
	KindForEach
	KindWhile
	KindSwitch
	KindCase
	KindTry
	KindCatch
	KindReturn
	KindThrow
	KindJump
	KindLabeled
	KindClassDeclStmt
	// expressions
	KindIdent
	KindLiteral
	KindAssign
	KindCompoundAssign
	KindIncDec
	KindUnary
	KindBinary
	KindConditional
	KindIndex
	KindField
	KindCall
	KindNew
	KindNewArray
	KindLambda
	KindCast
	KindClassLit
	KindInstanceOf
)

var kindNames = [...]string{
	KindInvalid:        "invalid",
	KindBlock:          "block",
	KindVarDecl:        "var",
	KindExprStmt:       "expr",
	KindIf:             "if",
	KindFor:            "for",
	KindForEach:        "foreach",
	KindWhile:          "while",
	KindSwitch:         "switch",
	KindCase:           "case",
	KindTry:            "try",
	KindCatch:          "catch",
	KindReturn:         "return",
	KindThrow:          "throw",
	KindJump:           "jump",
	KindLabeled:        "labeled",
	KindClassDeclStmt:  "class",
	KindIdent:          "ident",
	KindLiteral:        "literal",
	KindAssign:         "assign",
	KindCompoundAssign: "assignop",
	KindIncDec:         "incdec",
	KindUnary:          "unary",
	KindBinary:         "binary",
	KindConditional:    "cond",
	KindIndex:          "index",
	KindField:          "field",
	KindCall:           "call",
	KindNew:            "new",
	KindNewArray:       "newarray",
	KindLambda:         "lambda",
	KindCast:           "cast",
	KindClassLit:       "classlit",
	KindInstanceOf:     "instanceof",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// ParseNodeKind resolves the name produced by NodeKind.String.
func ParseNodeKind(name string) (NodeKind, bool) {
	for i, n := range kindNames {
		if n == name && i != int(KindInvalid) {
			return NodeKind(i), true
		}
	}
	return KindInvalid, false
}

// Node is implemented by every statement, expression and clause of the tree.
type Node interface {
	Kind() NodeKind
}

// Stmt is the closed set of statement variants.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is the closed set of expression variants.
type Expr interface {
	Node
	exprNode()
}

var primitiveTypes = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true,
}

// TypeRef is a reference to a declared type, rendered in source form.
type TypeRef struct {
	Name string    `yaml:"name" msgpack:"n"`
	Args []TypeRef `yaml:"args,omitempty" msgpack:"a,omitempty"`
	Dims int       `yaml:"dims,omitempty" msgpack:"d,omitempty"`
}

// IsPrimitive reports if the type is a non-array primitive.
func (t TypeRef) IsPrimitive() bool {
	return t.Dims == 0 && primitiveTypes[t.Name]
}

// IsVoid reports if the type is the void result type.
func (t TypeRef) IsVoid() bool {
	return t.Dims == 0 && t.Name == "void"
}

// IsZero reports if no type is known.
func (t TypeRef) IsZero() bool {
	return t.Name == ""
}

func (t TypeRef) String() string {
	var sb strings.Builder
	sb.WriteString(t.Name)
	if len(t.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte('>')
	}
	for i := 0; i < t.Dims; i++ {
		sb.WriteString("[]")
	}
	return sb.String()
}

/* statements */

// Block is an ordered statement list with its own scope.
type Block struct {
	Stmts []Stmt
}

// VarDecl declares a local variable, loop variable, resource or catch parameter.
type VarDecl struct {
	Name     string
	Type     TypeRef
	Init     Expr // nil when declared without a value
	Final    bool
	Excluded bool
}

type ExprStmt struct {
	X Expr
}

type If struct {
	Cond Expr
	Then Stmt
	Else Stmt // nil when absent
}

// For is the classic three-part loop. Update holds expression statements.
type For struct {
	Init   []Stmt
	Cond   Expr // nil for an infinite loop
	Update []Stmt
	Body   Stmt
}

type ForEach struct {
	Var      *VarDecl
	Iterable Expr
	Body     Stmt
}

// While is a while loop, or a do-while loop when Do is set.
type While struct {
	Cond Expr
	Body Stmt
	Do   bool
}

type Switch struct {
	Selector Expr
	Cases    []*Case
}

// Case is one switch clause, Labels is empty for the default clause.
type Case struct {
	Labels []Expr
	Body   []Stmt
}

type Try struct {
	Resources []*VarDecl
	Body      *Block
	Catches   []*Catch
	Finally   *Block // nil when absent
}

type Catch struct {
	Param *VarDecl
	Body  *Block
}

type Return struct {
	X Expr // nil for a bare return
}

type Throw struct {
	X Expr
}

// Jump is a break, or a continue when Continue is set.
type Jump struct {
	Continue bool
	Label    string
}

type Labeled struct {
	Label string
	Body  Stmt
}

// ClassDeclStmt declares a local class inside a method body.
type ClassDeclStmt struct {
	Class *Class
}

/* expressions */

type Ident struct {
	Name string
}

// LiteralType distinguishes literal forms for rendering.
type LiteralType uint8

const (
	LitInt LiteralType = iota
	LitLong
	LitFloat
	LitDouble
	LitBool
	LitChar
	LitString
	LitNull
)

var literalTypeNames = [...]string{"int", "long", "float", "double", "boolean", "char", "string", "null"}

func (l LiteralType) String() string {
	if int(l) < len(literalTypeNames) {
		return literalTypeNames[l]
	}
	return "int"
}

// Literal holds the literal value as source text. String and char values are unquoted.
type Literal struct {
	Type  LiteralType
	Value string
}

type Assign struct {
	Target Expr
	Value  Expr
}

// CompoundAssign is `Target Op= Value`, Op excludes the trailing '='.
type CompoundAssign struct {
	Op     string
	Target Expr
	Value  Expr
}

// IncDec is a prefix or postfix increment or decrement.
type IncDec struct {
	X      Expr
	Dec    bool
	Prefix bool
}

type Unary struct {
	Op string
	X  Expr
}

type Binary struct {
	Op string
	X  Expr
	Y  Expr
}

type Conditional struct {
	Cond Expr
	Then Expr
	Else Expr
}

type Index struct {
	X     Expr
	Index Expr
}

type Field struct {
	X    Expr
	Name string
}

// Call invokes Fun, an identifier (including this and super) or a field selector.
type Call struct {
	Fun  Expr
	Args []Expr
}

// New constructs an object, Body is set for anonymous classes.
type New struct {
	Type TypeRef
	Args []Expr
	Body *Class
}

// NewArray creates an array from a length or from initializer elements.
type NewArray struct {
	Elem  TypeRef
	Len   Expr
	Elems []Expr
}

// Lambda holds either a block Body or an expression Value.
type Lambda struct {
	Params     []*Parameter
	Body       *Block
	Value      Expr
	ResultType TypeRef // zero when unknown
}

type Cast struct {
	Type TypeRef
	X    Expr
}

// ClassLit is a `Type.class` reference.
type ClassLit struct {
	Type TypeRef
}

type InstanceOf struct {
	X    Expr
	Type TypeRef
}

func (*Block) Kind() NodeKind          { return KindBlock }
func (*VarDecl) Kind() NodeKind        { return KindVarDecl }
func (*ExprStmt) Kind() NodeKind       { return KindExprStmt }
func (*If) Kind() NodeKind             { return KindIf }
func (*For) Kind() NodeKind            { return KindFor }
func (*ForEach) Kind() NodeKind        { return KindForEach }
func (*While) Kind() NodeKind          { return KindWhile }
func (*Switch) Kind() NodeKind         { return KindSwitch }
func (*Case) Kind() NodeKind           { return KindCase }
func (*Try) Kind() NodeKind            { return KindTry }
func (*Catch) Kind() NodeKind          { return KindCatch }
func (*Return) Kind() NodeKind         { return KindReturn }
func (*Throw) Kind() NodeKind          { return KindThrow }
func (*Jump) Kind() NodeKind           { return KindJump }
func (*Labeled) Kind() NodeKind        { return KindLabeled }
func (*ClassDeclStmt) Kind() NodeKind  { return KindClassDeclStmt }
func (*Ident) Kind() NodeKind          { return KindIdent }
func (*Literal) Kind() NodeKind        { return KindLiteral }
func (*Assign) Kind() NodeKind         { return KindAssign }
func (*CompoundAssign) Kind() NodeKind { return KindCompoundAssign }
func (*IncDec) Kind() NodeKind         { return KindIncDec }
func (*Unary) Kind() NodeKind          { return KindUnary }
func (*Binary) Kind() NodeKind         { return KindBinary }
func (*Conditional) Kind() NodeKind    { return KindConditional }
func (*Index) Kind() NodeKind          { return KindIndex }
func (*Field) Kind() NodeKind          { return KindField }
func (*Call) Kind() NodeKind           { return KindCall }
func (*New) Kind() NodeKind            { return KindNew }
func (*NewArray) Kind() NodeKind       { return KindNewArray }
func (*Lambda) Kind() NodeKind         { return KindLambda }
func (*Cast) Kind() NodeKind           { return KindCast }
func (*ClassLit) Kind() NodeKind       { return KindClassLit }
func (*InstanceOf) Kind() NodeKind     { return KindInstanceOf }

func (*Block) stmtNode()         {}
func (*VarDecl) stmtNode()       {}
func (*ExprStmt) stmtNode()      {}
func (*If) stmtNode()            {}
func (*For) stmtNode()           {}
func (*ForEach) stmtNode()       {}
func (*While) stmtNode()         {}
func (*Switch) stmtNode()        {}
func (*Try) stmtNode()           {}
func (*Return) stmtNode()        {}
func (*Throw) stmtNode()         {}
func (*Jump) stmtNode()          {}
func (*Labeled) stmtNode()       {}
func (*ClassDeclStmt) stmtNode() {}

func (*Ident) exprNode()          {}
func (*Literal) exprNode()        {}
func (*Assign) exprNode()         {}
func (*CompoundAssign) exprNode() {}
func (*IncDec) exprNode()         {}
func (*Unary) exprNode()          {}
func (*Binary) exprNode()         {}
func (*Conditional) exprNode()    {}
func (*Index) exprNode()          {}
func (*Field) exprNode()          {}
func (*Call) exprNode()           {}
func (*New) exprNode()            {}
func (*NewArray) exprNode()       {}
func (*Lambda) exprNode()         {}
func (*Cast) exprNode()           {}
func (*ClassLit) exprNode()       {}
func (*InstanceOf) exprNode()     {}
