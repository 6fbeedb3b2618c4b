package lens

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf16"
)

const renderIndent = "    "

// operator precedence, higher binds tighter
const (
	precAssign = iota + 1
	precConditional
	precOrOr
	precAndAnd
	precOr
	precXor
	precAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
	precUnary
	precPostfix
	precPrimary
)

var binaryPrecedence = map[string]int{
	"||": precOrOr, "&&": precAndAnd,
	"|": precOr, "^": precXor, "&": precAnd,
	"==": precEquality, "!=": precEquality,
	"<": precRelational, ">": precRelational, "<=": precRelational, ">=": precRelational,
	"<<": precShift, ">>": precShift, ">>>": precShift,
	"+": precAdditive, "-": precAdditive,
	"*": precMultiplicative, "/": precMultiplicative, "%": precMultiplicative,
}

func precedence(e Expr) int {
	switch e := e.(type) {
	case *Assign, *CompoundAssign, *Lambda:
		return precAssign
	case *Conditional:
		return precConditional
	case *Binary:
		if p, ok := binaryPrecedence[e.Op]; ok {
			return p
		}
		return precAssign
	case *InstanceOf:
		return precRelational
	case *Unary, *Cast:
		return precUnary
	case *IncDec:
		if e.Prefix {
			return precUnary
		}
		return precPostfix
	}
	return precPrimary
}

// RenderExpr renders the expression as host source text. The result is used as the reported variable name.
func RenderExpr(e Expr) string {
	var sb strings.Builder
	writeExpr(&sb, e, precAssign)
	return sb.String()
}

// RenderStmt renders the statement as indented host source text.
func RenderStmt(s Stmt) string {
	var sb strings.Builder
	writeStmt(&sb, s, 0)
	return sb.String()
}

// RenderMethod renders the method signature and body.
func RenderMethod(m *Method) string {
	var sb strings.Builder
	if m.Static {
		sb.WriteString("static ")
	}
	if !m.Constructor {
		sb.WriteString(m.ResultType.String())
		sb.WriteByte(' ')
	}
	sb.WriteString(m.Name)
	writeParams(&sb, m.Params)
	if m.Body == nil {
		sb.WriteString(";\n")
		return sb.String()
	}
	sb.WriteByte(' ')
	writeBlock(&sb, m.Body, 0)
	sb.WriteByte('\n')
	return sb.String()
}

// RenderUnit renders every class of the unit.
func RenderUnit(u *Unit) string {
	var sb strings.Builder
	if u.Package != "" {
		sb.WriteString("package ")
		sb.WriteString(u.Package)
		sb.WriteString(";\n\n")
	}
	for i, c := range u.Classes {
		if i > 0 {
			sb.WriteByte('\n')
		}
		writeClass(&sb, c, 0)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func writeClass(sb *strings.Builder, c *Class, depth int) {
	sb.WriteString("class ")
	sb.WriteString(c.Name)
	writeClassBody(sb, c, depth)
}

func writeClassBody(sb *strings.Builder, c *Class, depth int) {
	sb.WriteString(" {\n")
	for _, m := range c.Methods {
		writeIndent(sb, depth+1)
		body := RenderMethod(m)
		// re-indent nested lines for the class depth
		sb.WriteString(strings.ReplaceAll(strings.TrimSuffix(body, "\n"), "\n", "\n"+strings.Repeat(renderIndent, depth+1)))
		sb.WriteByte('\n')
	}
	for _, n := range c.Nested {
		writeIndent(sb, depth+1)
		writeClass(sb, n, depth+1)
		sb.WriteByte('\n')
	}
	writeIndent(sb, depth)
	sb.WriteByte('}')
}

func writeParams(sb *strings.Builder, params []*Parameter) {
	sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if !p.Type.IsZero() {
			sb.WriteString(p.Type.String())
			sb.WriteByte(' ')
		}
		sb.WriteString(p.Name)
	}
	sb.WriteByte(')')
}

func writeIndent(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteString(renderIndent)
	}
}

func writeBlock(sb *strings.Builder, b *Block, depth int) {
	if b == nil || len(b.Stmts) == 0 {
		sb.WriteString("{}")
		return
	}
	sb.WriteString("{\n")
	for _, s := range b.Stmts {
		writeIndent(sb, depth+1)
		writeStmt(sb, s, depth+1)
		sb.WriteByte('\n')
	}
	writeIndent(sb, depth)
	sb.WriteByte('}')
}

// writeBody renders a control construct body, blocks inline and single statements on their own line.
func writeBody(sb *strings.Builder, s Stmt, depth int) {
	if b, ok := s.(*Block); ok {
		sb.WriteByte(' ')
		writeBlock(sb, b, depth)
		return
	}
	sb.WriteByte('\n')
	writeIndent(sb, depth+1)
	writeStmt(sb, s, depth+1)
}

func writeVarDecl(sb *strings.Builder, d *VarDecl) {
	if d.Final {
		sb.WriteString("final ")
	}
	if !d.Type.IsZero() {
		sb.WriteString(d.Type.String())
		sb.WriteByte(' ')
	}
	sb.WriteString(d.Name)
	if d.Init != nil {
		sb.WriteString(" = ")
		writeExpr(sb, d.Init, precAssign)
	}
}

func writeStmt(sb *strings.Builder, s Stmt, depth int) {
	switch s := s.(type) {
	case nil:
		sb.WriteByte(';')
	case *Block:
		writeBlock(sb, s, depth)
	case *VarDecl:
		writeVarDecl(sb, s)
		sb.WriteByte(';')
	case *ExprStmt:
		writeExpr(sb, s.X, precAssign)
		sb.WriteByte(';')
	case *If:
		sb.WriteString("if (")
		writeExpr(sb, s.Cond, precAssign)
		sb.WriteByte(')')
		writeBody(sb, s.Then, depth)
		if s.Else != nil {
			if _, ok := s.Then.(*Block); ok {
				sb.WriteString(" else")
			} else {
				sb.WriteByte('\n')
				writeIndent(sb, depth)
				sb.WriteString("else")
			}
			if elseIf, ok := s.Else.(*If); ok {
				sb.WriteByte(' ')
				writeStmt(sb, elseIf, depth)
			} else {
				writeBody(sb, s.Else, depth)
			}
		}
	case *For:
		sb.WriteString("for (")
		for i, init := range s.Init {
			if i > 0 {
				sb.WriteString(", ")
			}
			switch init := init.(type) {
			case *VarDecl:
				writeVarDecl(sb, init)
			case *ExprStmt:
				writeExpr(sb, init.X, precAssign)
			}
		}
		sb.WriteString("; ")
		if s.Cond != nil {
			writeExpr(sb, s.Cond, precAssign)
		}
		sb.WriteString("; ")
		for i, u := range s.Update {
			if i > 0 {
				sb.WriteString(", ")
			}
			if u, ok := u.(*ExprStmt); ok {
				writeExpr(sb, u.X, precAssign)
			}
		}
		sb.WriteByte(')')
		writeBody(sb, s.Body, depth)
	case *ForEach:
		sb.WriteString("for (")
		writeVarDecl(sb, s.Var)
		sb.WriteString(" : ")
		writeExpr(sb, s.Iterable, precAssign)
		sb.WriteByte(')')
		writeBody(sb, s.Body, depth)
	case *While:
		if s.Do {
			sb.WriteString("do")
			writeBody(sb, s.Body, depth)
			sb.WriteString(" while (")
			writeExpr(sb, s.Cond, precAssign)
			sb.WriteString(");")
		} else {
			sb.WriteString("while (")
			writeExpr(sb, s.Cond, precAssign)
			sb.WriteByte(')')
			writeBody(sb, s.Body, depth)
		}
	case *Switch:
		sb.WriteString("switch (")
		writeExpr(sb, s.Selector, precAssign)
		sb.WriteString(") {\n")
		for _, c := range s.Cases {
			writeIndent(sb, depth+1)
			if len(c.Labels) == 0 {
				sb.WriteString("default:\n")
			} else {
				sb.WriteString("case ")
				for i, l := range c.Labels {
					if i > 0 {
						sb.WriteString(", ")
					}
					writeExpr(sb, l, precAssign)
				}
				sb.WriteString(":\n")
			}
			for _, st := range c.Body {
				writeIndent(sb, depth+2)
				writeStmt(sb, st, depth+2)
				sb.WriteByte('\n')
			}
		}
		writeIndent(sb, depth)
		sb.WriteByte('}')
	case *Try:
		sb.WriteString("try ")
		if len(s.Resources) > 0 {
			sb.WriteByte('(')
			for i, r := range s.Resources {
				if i > 0 {
					sb.WriteString("; ")
				}
				writeVarDecl(sb, r)
			}
			sb.WriteString(") ")
		}
		writeBlock(sb, s.Body, depth)
		for _, c := range s.Catches {
			sb.WriteString(" catch (")
			writeVarDecl(sb, c.Param)
			sb.WriteString(") ")
			writeBlock(sb, c.Body, depth)
		}
		if s.Finally != nil {
			sb.WriteString(" finally ")
			writeBlock(sb, s.Finally, depth)
		}
	case *Return:
		sb.WriteString("return")
		if s.X != nil {
			sb.WriteByte(' ')
			writeExpr(sb, s.X, precAssign)
		}
		sb.WriteByte(';')
	case *Throw:
		sb.WriteString("throw ")
		writeExpr(sb, s.X, precAssign)
		sb.WriteByte(';')
	case *Jump:
		if s.Continue {
			sb.WriteString("continue")
		} else {
			sb.WriteString("break")
		}
		if s.Label != "" {
			sb.WriteByte(' ')
			sb.WriteString(s.Label)
		}
		sb.WriteByte(';')
	case *Labeled:
		sb.WriteString(s.Label)
		sb.WriteString(": ")
		writeStmt(sb, s.Body, depth)
	case *ClassDeclStmt:
		writeClass(sb, s.Class, depth)
	}
}

func writeOperand(sb *strings.Builder, e Expr, minPrec int) {
	if precedence(e) < minPrec {
		sb.WriteByte('(')
		writeExpr(sb, e, precAssign)
		sb.WriteByte(')')
		return
	}
	writeExpr(sb, e, minPrec)
}

func writeArgs(sb *strings.Builder, args []Expr) {
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeExpr(sb, a, precAssign)
	}
	sb.WriteByte(')')
}

func writeLiteral(sb *strings.Builder, l *Literal) {
	switch l.Type {
	case LitString:
		writeQuoted(sb, l.Value, '"')
	case LitChar:
		writeQuoted(sb, string([]rune(l.Value + "\x00")[0]), '\'')
	case LitLong:
		sb.WriteString(l.Value)
		if !strings.HasSuffix(l.Value, "L") && !strings.HasSuffix(l.Value, "l") {
			sb.WriteByte('L')
		}
	case LitFloat:
		sb.WriteString(l.Value)
		if !strings.HasSuffix(l.Value, "f") && !strings.HasSuffix(l.Value, "F") {
			sb.WriteByte('f')
		}
	case LitNull:
		sb.WriteString("null")
	default:
		sb.WriteString(l.Value)
	}
}

// writeQuoted writes value as a host language literal. Characters without a short escape that are not printable are
// written as \uXXXX units, using surrogate pairs above the basic plane.
func writeQuoted(sb *strings.Builder, value string, quote byte) {
	sb.WriteByte(quote)
	for _, r := range value {
		switch r {
		case '\b':
			sb.WriteString(`\b`)
		case '\t':
			sb.WriteString(`\t`)
		case '\n':
			sb.WriteString(`\n`)
		case '\f':
			sb.WriteString(`\f`)
		case '\r':
			sb.WriteString(`\r`)
		case '\\':
			sb.WriteString(`\\`)
		case rune(quote):
			sb.WriteByte('\\')
			sb.WriteByte(quote)
		default:
			if unicode.IsPrint(r) {
				sb.WriteRune(r)
			} else if r > 0xFFFF {
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(sb, `\u%04x\u%04x`, hi, lo)
			} else {
				fmt.Fprintf(sb, `\u%04x`, r)
			}
		}
	}
	sb.WriteByte(quote)
}

func writeExpr(sb *strings.Builder, e Expr, minPrec int) {
	if precedence(e) < minPrec {
		sb.WriteByte('(')
		defer sb.WriteByte(')')
	}
	switch e := e.(type) {
	case nil:
	case *Ident:
		sb.WriteString(e.Name)
	case *Literal:
		writeLiteral(sb, e)
	case *Assign:
		writeOperand(sb, e.Target, precPostfix)
		sb.WriteString(" = ")
		writeOperand(sb, e.Value, precAssign)
	case *CompoundAssign:
		writeOperand(sb, e.Target, precPostfix)
		sb.WriteByte(' ')
		sb.WriteString(e.Op)
		sb.WriteString("= ")
		writeOperand(sb, e.Value, precAssign)
	case *IncDec:
		op := "++"
		if e.Dec {
			op = "--"
		}
		if e.Prefix {
			sb.WriteString(op)
			writeOperand(sb, e.X, precUnary)
		} else {
			writeOperand(sb, e.X, precPostfix)
			sb.WriteString(op)
		}
	case *Unary:
		sb.WriteString(e.Op)
		writeOperand(sb, e.X, precUnary)
	case *Binary:
		p := precedence(e)
		writeOperand(sb, e.X, p)
		sb.WriteByte(' ')
		sb.WriteString(e.Op)
		sb.WriteByte(' ')
		writeOperand(sb, e.Y, p+1)
	case *Conditional:
		writeOperand(sb, e.Cond, precOrOr)
		sb.WriteString(" ? ")
		writeOperand(sb, e.Then, precConditional)
		sb.WriteString(" : ")
		writeOperand(sb, e.Else, precConditional)
	case *Index:
		writeOperand(sb, e.X, precPrimary)
		sb.WriteByte('[')
		writeExpr(sb, e.Index, precAssign)
		sb.WriteByte(']')
	case *Field:
		writeOperand(sb, e.X, precPrimary)
		sb.WriteByte('.')
		sb.WriteString(e.Name)
	case *Call:
		writeOperand(sb, e.Fun, precPrimary)
		writeArgs(sb, e.Args)
	case *New:
		sb.WriteString("new ")
		sb.WriteString(e.Type.String())
		writeArgs(sb, e.Args)
		if e.Body != nil {
			writeClassBody(sb, e.Body, 0)
		}
	case *NewArray:
		sb.WriteString("new ")
		sb.WriteString(e.Elem.String())
		if e.Len != nil {
			sb.WriteByte('[')
			writeExpr(sb, e.Len, precAssign)
			sb.WriteByte(']')
		} else {
			sb.WriteString("[]{")
			for i, el := range e.Elems {
				if i > 0 {
					sb.WriteString(", ")
				}
				writeExpr(sb, el, precAssign)
			}
			sb.WriteByte('}')
		}
	case *Lambda:
		writeParams(sb, e.Params)
		sb.WriteString(" -> ")
		if e.Body != nil {
			writeBlock(sb, e.Body, 0)
		} else {
			writeOperand(sb, e.Value, precAssign)
		}
	case *Cast:
		sb.WriteByte('(')
		sb.WriteString(e.Type.String())
		sb.WriteByte(')')
		writeOperand(sb, e.X, precUnary)
	case *ClassLit:
		sb.WriteString(e.Type.String())
		sb.WriteString(".class")
	case *InstanceOf:
		writeOperand(sb, e.X, precRelational)
		sb.WriteString(" instanceof ")
		sb.WriteString(e.Type.String())
	}
}
