package lens

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// ErrUnknownKind is returned when decoding a node kind that does not fit the position it appears in.
var ErrUnknownKind = errors.New("unknown node kind")

// ErrMissingOperand is returned when decoding a node that lacks a child its kind requires.
var ErrMissingOperand = errors.New("missing operand")

// node flags
const (
	flagFinal    = "final"
	flagExcluded = "excluded"
	flagPrefix   = "prefix"
	flagDec      = "dec"
	flagDo       = "do"
	flagContinue = "continue"
)

// WireNode is the serialized form of every tree variant. Only the fields relevant to Kind are set.
type WireNode struct {
	Kind      string        `yaml:"kind" msgpack:"k"`
	Name      string        `yaml:"name,omitempty" msgpack:"n,omitempty"`
	Op        string        `yaml:"op,omitempty" msgpack:"o,omitempty"`
	Lit       string        `yaml:"lit,omitempty" msgpack:"l,omitempty"`
	Value     string        `yaml:"value,omitempty" msgpack:"v,omitempty"`
	Type      *TypeRef      `yaml:"type,omitempty" msgpack:"t,omitempty"`
	Flags     []string      `yaml:"flags,omitempty" msgpack:"f,omitempty"`
	X         *WireNode     `yaml:"x,omitempty" msgpack:"x,omitempty"`
	Y         *WireNode     `yaml:"y,omitempty" msgpack:"y,omitempty"`
	Cond      *WireNode     `yaml:"cond,omitempty" msgpack:"c,omitempty"`
	Then      *WireNode     `yaml:"then,omitempty" msgpack:"th,omitempty"`
	Else      *WireNode     `yaml:"else,omitempty" msgpack:"el,omitempty"`
	Init      *WireNode     `yaml:"init,omitempty" msgpack:"i,omitempty"`
	Decl      *WireNode     `yaml:"decl,omitempty" msgpack:"dc,omitempty"`
	Body      *WireNode     `yaml:"body,omitempty" msgpack:"b,omitempty"`
	Finally   *WireNode     `yaml:"finally,omitempty" msgpack:"fi,omitempty"`
	Stmts     []*WireNode   `yaml:"stmts,omitempty" msgpack:"s,omitempty"`
	Args      []*WireNode   `yaml:"args,omitempty" msgpack:"a,omitempty"`
	Inits     []*WireNode   `yaml:"inits,omitempty" msgpack:"is,omitempty"`
	Updates   []*WireNode   `yaml:"updates,omitempty" msgpack:"us,omitempty"`
	Resources []*WireNode   `yaml:"resources,omitempty" msgpack:"rs,omitempty"`
	Cases     []*WireNode   `yaml:"cases,omitempty" msgpack:"cs,omitempty"`
	Catches   []*WireNode   `yaml:"catches,omitempty" msgpack:"ct,omitempty"`
	Params    []WireParam   `yaml:"params,omitempty" msgpack:"p,omitempty"`
	Class     *WireClass    `yaml:"class,omitempty" msgpack:"cl,omitempty"`
}

// WireParam is the serialized form of a Parameter.
type WireParam struct {
	Name     string  `yaml:"name" msgpack:"n"`
	Type     TypeRef `yaml:"type,omitempty" msgpack:"t,omitempty"`
	Excluded bool    `yaml:"excluded,omitempty" msgpack:"e,omitempty"`
}

// WireMarkers is the serialized form of Markers.
type WireMarkers struct {
	Exclude bool   `yaml:"exclude,omitempty" msgpack:"e,omitempty"`
	Include bool   `yaml:"include,omitempty" msgpack:"i,omitempty"`
	Timeout *int64 `yaml:"timeout,omitempty" msgpack:"t,omitempty"`
}

// WireMethod is the serialized form of a Method.
type WireMethod struct {
	Name        string      `yaml:"name" msgpack:"n"`
	Params      []WireParam `yaml:"params,omitempty" msgpack:"p,omitempty"`
	Result      TypeRef     `yaml:"result,omitempty" msgpack:"r,omitempty"`
	Constructor bool        `yaml:"constructor,omitempty" msgpack:"c,omitempty"`
	Static      bool        `yaml:"static,omitempty" msgpack:"s,omitempty"`
	Markers     WireMarkers `yaml:"markers,omitempty" msgpack:"m,omitempty"`
	Body        *WireNode   `yaml:"body,omitempty" msgpack:"b,omitempty"`
}

// WireClass is the serialized form of a Class.
type WireClass struct {
	Name    string        `yaml:"name,omitempty" msgpack:"n,omitempty"`
	Markers WireMarkers   `yaml:"markers,omitempty" msgpack:"m,omitempty"`
	Methods []*WireMethod `yaml:"methods,omitempty" msgpack:"ms,omitempty"`
	Nested  []*WireClass  `yaml:"nested,omitempty" msgpack:"ns,omitempty"`
}

// WireUnit is the serialized form of a Unit.
type WireUnit struct {
	Name    string       `yaml:"name,omitempty" msgpack:"n,omitempty"`
	Package string       `yaml:"package,omitempty" msgpack:"p,omitempty"`
	Classes []*WireClass `yaml:"classes" msgpack:"c"`
}

// UnmarshalUnitYAML decodes a unit from YAML.
func UnmarshalUnitYAML(data []byte) (*Unit, error) {
	var w WireUnit
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode yaml unit: %w", err)
	}
	return DecodeUnit(&w)
}

// MarshalUnitYAML encodes a unit as YAML.
func MarshalUnitYAML(u *Unit) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(EncodeUnit(u)); err != nil {
		return nil, fmt.Errorf("encode yaml unit: %w", err)
	} else if err = enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalUnitMsgpack decodes a unit from msgpack.
func UnmarshalUnitMsgpack(data []byte) (*Unit, error) {
	var w WireUnit
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode msgpack unit: %w", err)
	}
	return DecodeUnit(&w)
}

// MarshalUnitMsgpack encodes a unit as msgpack.
func MarshalUnitMsgpack(u *Unit) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(&buf)
	enc.SetOmitEmpty(true)
	if err := enc.Encode(EncodeUnit(u)); err != nil {
		return nil, fmt.Errorf("encode msgpack unit: %w", err)
	}
	return buf.Bytes(), nil
}

/* decoding */

// DecodeUnit converts the wire form into the tree model.
func DecodeUnit(w *WireUnit) (*Unit, error) {
	u := &Unit{Name: w.Name, Package: w.Package}
	for _, wc := range w.Classes {
		c, err := decodeClass(wc, u.Package, nil)
		if err != nil {
			return nil, err
		}
		u.Classes = append(u.Classes, c)
	}
	return u, nil
}

func decodeMarkers(w WireMarkers) Markers {
	m := Markers{Exclude: w.Exclude, Include: w.Include}
	if w.Timeout != nil {
		m.Timeout = &Timeout{ThresholdMillis: *w.Timeout}
	}
	return m
}

func decodeParams(ws []WireParam) []*Parameter {
	if len(ws) == 0 {
		return nil
	}
	params := make([]*Parameter, len(ws))
	for i, w := range ws {
		params[i] = &Parameter{Name: w.Name, Type: w.Type, Excluded: w.Excluded}
	}
	return params
}

func decodeClass(w *WireClass, pkg string, outer *Class) (*Class, error) {
	if w == nil {
		return nil, errors.New("missing class")
	}
	c := &Class{Name: w.Name, Package: pkg, Outer: outer, Markers: decodeMarkers(w.Markers)}
	for _, wm := range w.Methods {
		m := &Method{
			Name:        wm.Name,
			Class:       c,
			Params:      decodeParams(wm.Params),
			ResultType:  wm.Result,
			Constructor: wm.Constructor,
			Static:      wm.Static,
			Markers:     decodeMarkers(wm.Markers),
		}
		if m.Constructor && m.ResultType.IsZero() {
			m.ResultType = TypeRef{Name: "void"}
		}
		if wm.Body != nil {
			body, err := decodeBlock(wm.Body)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", m.Ident(), err)
			}
			m.Body = body
		}
		c.Methods = append(c.Methods, m)
	}
	for _, wn := range w.Nested {
		nested, err := decodeClass(wn, pkg, c)
		if err != nil {
			return nil, err
		}
		c.Nested = append(c.Nested, nested)
	}
	return c, nil
}

func decodeBlock(w *WireNode) (*Block, error) {
	if w == nil {
		return nil, nil
	} else if w.Kind != KindBlock.String() {
		return nil, fmt.Errorf("%w: expected block, got %q", ErrUnknownKind, w.Kind)
	}
	stmts, err := decodeStmts(w.Stmts)
	if err != nil {
		return nil, err
	}
	return &Block{Stmts: stmts}, nil
}

func decodeStmts(ws []*WireNode) ([]Stmt, error) {
	if len(ws) == 0 {
		return nil, nil
	}
	stmts := make([]Stmt, 0, len(ws))
	for _, w := range ws {
		s, err := decodeStmt(w)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func decodeExprs(ws []*WireNode) ([]Expr, error) {
	if len(ws) == 0 {
		return nil, nil
	}
	exprs := make([]Expr, 0, len(ws))
	for _, w := range ws {
		e, err := decodeExpr(w)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func decodeVarDecl(w *WireNode) (*VarDecl, error) {
	if w == nil {
		return nil, nil
	} else if w.Kind != KindVarDecl.String() {
		return nil, fmt.Errorf("%w: expected var, got %q", ErrUnknownKind, w.Kind)
	}
	init, err := decodeExpr(w.Init)
	if err != nil {
		return nil, err
	}
	d := &VarDecl{
		Name:     w.Name,
		Init:     init,
		Final:    slices.Contains(w.Flags, flagFinal),
		Excluded: slices.Contains(w.Flags, flagExcluded),
	}
	if w.Type != nil {
		d.Type = *w.Type
	}
	return d, nil
}

func typeOf(w *WireNode) TypeRef {
	if w.Type == nil {
		return TypeRef{}
	}
	return *w.Type
}

func decodeStmt(w *WireNode) (Stmt, error) {
	if w == nil {
		return nil, nil
	}
	kind, ok := ParseNodeKind(w.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, w.Kind)
	}
	var err error
	switch kind {
	case KindBlock:
		return decodeBlock(w)
	case KindVarDecl:
		return decodeVarDecl(w)
	case KindExprStmt:
		s := &ExprStmt{}
		s.X, err = decodeOperand(w.X, kind, "expression")
		return s, err
	case KindIf:
		s := &If{}
		if s.Cond, err = decodeOperand(w.Cond, kind, "condition"); err != nil {
			return nil, err
		} else if s.Then, err = decodeStmt(w.Then); err != nil {
			return nil, err
		}
		s.Else, err = decodeStmt(w.Else)
		return s, err
	case KindFor:
		s := &For{}
		if s.Init, err = decodeStmts(w.Inits); err != nil {
			return nil, err
		} else if s.Cond, err = decodeExpr(w.Cond); err != nil {
			return nil, err
		} else if s.Update, err = decodeStmts(w.Updates); err != nil {
			return nil, err
		}
		s.Body, err = decodeStmt(w.Body)
		return s, err
	case KindForEach:
		s := &ForEach{}
		if s.Var, err = decodeVarDecl(w.Decl); err != nil {
			return nil, err
		} else if s.Iterable, err = decodeOperand(w.X, kind, "iterable"); err != nil {
			return nil, err
		}
		s.Body, err = decodeStmt(w.Body)
		return s, err
	case KindWhile:
		s := &While{Do: slices.Contains(w.Flags, flagDo)}
		if s.Cond, err = decodeOperand(w.Cond, kind, "condition"); err != nil {
			return nil, err
		}
		s.Body, err = decodeStmt(w.Body)
		return s, err
	case KindSwitch:
		s := &Switch{}
		if s.Selector, err = decodeOperand(w.X, kind, "selector"); err != nil {
			return nil, err
		}
		for _, wc := range w.Cases {
			if wc.Kind != KindCase.String() {
				return nil, fmt.Errorf("%w: expected case, got %q", ErrUnknownKind, wc.Kind)
			}
			c := &Case{}
			if c.Labels, err = decodeExprs(wc.Args); err != nil {
				return nil, err
			} else if c.Body, err = decodeStmts(wc.Stmts); err != nil {
				return nil, err
			}
			s.Cases = append(s.Cases, c)
		}
		return s, nil
	case KindTry:
		s := &Try{}
		for _, wr := range w.Resources {
			r, err := decodeVarDecl(wr)
			if err != nil {
				return nil, err
			}
			s.Resources = append(s.Resources, r)
		}
		if s.Body, err = decodeBlock(w.Body); err != nil {
			return nil, err
		}
		for _, wc := range w.Catches {
			if wc.Kind != KindCatch.String() {
				return nil, fmt.Errorf("%w: expected catch, got %q", ErrUnknownKind, wc.Kind)
			}
			c := &Catch{}
			if c.Param, err = decodeVarDecl(wc.Decl); err != nil {
				return nil, err
			} else if c.Body, err = decodeBlock(wc.Body); err != nil {
				return nil, err
			}
			s.Catches = append(s.Catches, c)
		}
		s.Finally, err = decodeBlock(w.Finally)
		return s, err
	case KindReturn:
		s := &Return{}
		s.X, err = decodeExpr(w.X)
		return s, err
	case KindThrow:
		s := &Throw{}
		s.X, err = decodeOperand(w.X, kind, "expression")
		return s, err
	case KindJump:
		return &Jump{Continue: slices.Contains(w.Flags, flagContinue), Label: w.Name}, nil
	case KindLabeled:
		s := &Labeled{Label: w.Name}
		s.Body, err = decodeStmt(w.Body)
		return s, err
	case KindClassDeclStmt:
		c, err := decodeClass(w.Class, "", nil)
		if err != nil {
			return nil, err
		}
		return &ClassDeclStmt{Class: c}, nil
	}
	return nil, fmt.Errorf("%w: %q is not a statement", ErrUnknownKind, w.Kind)
}

// decodeOperand decodes a child expression the parent kind can not do without.
func decodeOperand(w *WireNode, parent NodeKind, role string) (Expr, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: %s without %s", ErrMissingOperand, parent, role)
	}
	return decodeExpr(w)
}

func decodeExpr(w *WireNode) (Expr, error) {
	if w == nil {
		return nil, nil
	}
	kind, ok := ParseNodeKind(w.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, w.Kind)
	}
	var err error
	switch kind {
	case KindIdent:
		return &Ident{Name: w.Name}, nil
	case KindLiteral:
		lt, ok := parseLiteralType(w.Lit)
		if !ok {
			return nil, fmt.Errorf("%w: literal type %q", ErrUnknownKind, w.Lit)
		}
		return &Literal{Type: lt, Value: w.Value}, nil
	case KindAssign:
		e := &Assign{}
		if e.Target, err = decodeOperand(w.X, kind, "target"); err != nil {
			return nil, err
		}
		e.Value, err = decodeOperand(w.Y, kind, "value")
		return e, err
	case KindCompoundAssign:
		e := &CompoundAssign{Op: w.Op}
		if e.Target, err = decodeOperand(w.X, kind, "target"); err != nil {
			return nil, err
		}
		e.Value, err = decodeOperand(w.Y, kind, "value")
		return e, err
	case KindIncDec:
		e := &IncDec{Prefix: slices.Contains(w.Flags, flagPrefix), Dec: slices.Contains(w.Flags, flagDec)}
		e.X, err = decodeOperand(w.X, kind, "target")
		return e, err
	case KindUnary:
		e := &Unary{Op: w.Op}
		e.X, err = decodeOperand(w.X, kind, "operand")
		return e, err
	case KindBinary:
		e := &Binary{Op: w.Op}
		if e.X, err = decodeOperand(w.X, kind, "left operand"); err != nil {
			return nil, err
		}
		e.Y, err = decodeOperand(w.Y, kind, "right operand")
		return e, err
	case KindConditional:
		e := &Conditional{}
		if e.Cond, err = decodeOperand(w.Cond, kind, "condition"); err != nil {
			return nil, err
		} else if e.Then, err = decodeOperand(w.Then, kind, "then"); err != nil {
			return nil, err
		}
		e.Else, err = decodeOperand(w.Else, kind, "else")
		return e, err
	case KindIndex:
		e := &Index{}
		if e.X, err = decodeOperand(w.X, kind, "array"); err != nil {
			return nil, err
		}
		e.Index, err = decodeOperand(w.Y, kind, "index")
		return e, err
	case KindField:
		e := &Field{Name: w.Name}
		e.X, err = decodeExpr(w.X)
		return e, err
	case KindCall:
		e := &Call{}
		if e.Fun, err = decodeOperand(w.X, kind, "callee"); err != nil {
			return nil, err
		}
		e.Args, err = decodeExprs(w.Args)
		return e, err
	case KindNew:
		e := &New{Type: typeOf(w)}
		if e.Args, err = decodeExprs(w.Args); err != nil {
			return nil, err
		}
		if w.Class != nil {
			if e.Body, err = decodeClass(w.Class, "", nil); err != nil {
				return nil, err
			}
		}
		return e, nil
	case KindNewArray:
		e := &NewArray{Elem: typeOf(w)}
		if e.Len, err = decodeExpr(w.X); err != nil {
			return nil, err
		}
		e.Elems, err = decodeExprs(w.Args)
		return e, err
	case KindLambda:
		e := &Lambda{Params: decodeParams(w.Params), ResultType: typeOf(w)}
		if e.Body, err = decodeBlock(w.Body); err != nil {
			return nil, err
		}
		e.Value, err = decodeExpr(w.X)
		return e, err
	case KindCast:
		e := &Cast{Type: typeOf(w)}
		e.X, err = decodeOperand(w.X, kind, "operand")
		return e, err
	case KindClassLit:
		return &ClassLit{Type: typeOf(w)}, nil
	case KindInstanceOf:
		e := &InstanceOf{Type: typeOf(w)}
		e.X, err = decodeOperand(w.X, kind, "operand")
		return e, err
	}
	return nil, fmt.Errorf("%w: %q is not an expression", ErrUnknownKind, w.Kind)
}

func parseLiteralType(name string) (LiteralType, bool) {
	if name == "" {
		return LitInt, true
	}
	for i, n := range literalTypeNames {
		if n == name {
			return LiteralType(i), true
		}
	}
	return LitInt, false
}

/* encoding */

// EncodeUnit converts the tree model into the wire form.
func EncodeUnit(u *Unit) *WireUnit {
	w := &WireUnit{Name: u.Name, Package: u.Package}
	for _, c := range u.Classes {
		w.Classes = append(w.Classes, encodeClass(c))
	}
	return w
}

func encodeMarkers(m Markers) WireMarkers {
	w := WireMarkers{Exclude: m.Exclude, Include: m.Include}
	if m.Timeout != nil {
		threshold := m.Timeout.ThresholdMillis
		w.Timeout = &threshold
	}
	return w
}

func encodeParams(params []*Parameter) []WireParam {
	if len(params) == 0 {
		return nil
	}
	ws := make([]WireParam, len(params))
	for i, p := range params {
		ws[i] = WireParam{Name: p.Name, Type: p.Type, Excluded: p.Excluded}
	}
	return ws
}

func encodeClass(c *Class) *WireClass {
	if c == nil {
		return nil
	}
	w := &WireClass{Name: c.Name, Markers: encodeMarkers(c.Markers)}
	if c.Local && isNumeric(c.Name) {
		w.Name = "" // anonymous, numbered again on collection
	}
	for _, m := range c.Methods {
		wm := &WireMethod{
			Name:        m.Name,
			Params:      encodeParams(m.Params),
			Result:      m.ResultType,
			Constructor: m.Constructor,
			Static:      m.Static,
			Markers:     encodeMarkers(m.Markers),
		}
		if m.Body != nil {
			wm.Body = encodeStmt(m.Body)
		}
		w.Methods = append(w.Methods, wm)
	}
	for _, n := range c.Nested {
		w.Nested = append(w.Nested, encodeClass(n))
	}
	return w
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func flags(pairs ...any) []string {
	var out []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1].(bool) {
			out = append(out, pairs[i].(string))
		}
	}
	return out
}

func typePtr(t TypeRef) *TypeRef {
	if t.IsZero() {
		return nil
	}
	return &t
}

func encodeStmts(stmts []Stmt) []*WireNode {
	if len(stmts) == 0 {
		return nil
	}
	ws := make([]*WireNode, len(stmts))
	for i, s := range stmts {
		ws[i] = encodeStmt(s)
	}
	return ws
}

func encodeExprs(exprs []Expr) []*WireNode {
	if len(exprs) == 0 {
		return nil
	}
	ws := make([]*WireNode, len(exprs))
	for i, e := range exprs {
		ws[i] = encodeExpr(e)
	}
	return ws
}

func encodeVarDecl(d *VarDecl) *WireNode {
	if d == nil {
		return nil
	}
	return &WireNode{
		Kind:  KindVarDecl.String(),
		Name:  d.Name,
		Type:  typePtr(d.Type),
		Init:  encodeExpr(d.Init),
		Flags: flags(flagFinal, d.Final, flagExcluded, d.Excluded),
	}
}

func encodeStmt(s Stmt) *WireNode {
	if isNilNode(s) {
		return nil
	}
	w := &WireNode{Kind: s.Kind().String()}
	switch s := s.(type) {
	case *Block:
		w.Stmts = encodeStmts(s.Stmts)
	case *VarDecl:
		return encodeVarDecl(s)
	case *ExprStmt:
		w.X = encodeExpr(s.X)
	case *If:
		w.Cond = encodeExpr(s.Cond)
		w.Then = encodeStmt(s.Then)
		w.Else = encodeStmt(s.Else)
	case *For:
		w.Inits = encodeStmts(s.Init)
		w.Cond = encodeExpr(s.Cond)
		w.Updates = encodeStmts(s.Update)
		w.Body = encodeStmt(s.Body)
	case *ForEach:
		w.Decl = encodeVarDecl(s.Var)
		w.X = encodeExpr(s.Iterable)
		w.Body = encodeStmt(s.Body)
	case *While:
		w.Cond = encodeExpr(s.Cond)
		w.Body = encodeStmt(s.Body)
		w.Flags = flags(flagDo, s.Do)
	case *Switch:
		w.X = encodeExpr(s.Selector)
		for _, c := range s.Cases {
			w.Cases = append(w.Cases, &WireNode{
				Kind:  KindCase.String(),
				Args:  encodeExprs(c.Labels),
				Stmts: encodeStmts(c.Body),
			})
		}
	case *Try:
		for _, r := range s.Resources {
			w.Resources = append(w.Resources, encodeVarDecl(r))
		}
		w.Body = encodeStmt(s.Body)
		for _, c := range s.Catches {
			w.Catches = append(w.Catches, &WireNode{
				Kind: KindCatch.String(),
				Decl: encodeVarDecl(c.Param),
				Body: encodeStmt(c.Body),
			})
		}
		if s.Finally != nil {
			w.Finally = encodeStmt(s.Finally)
		}
	case *Return:
		w.X = encodeExpr(s.X)
	case *Throw:
		w.X = encodeExpr(s.X)
	case *Jump:
		w.Name = s.Label
		w.Flags = flags(flagContinue, s.Continue)
	case *Labeled:
		w.Name = s.Label
		w.Body = encodeStmt(s.Body)
	case *ClassDeclStmt:
		w.Class = encodeClass(s.Class)
	}
	return w
}

func encodeExpr(e Expr) *WireNode {
	if e == nil {
		return nil
	}
	w := &WireNode{Kind: e.Kind().String()}
	switch e := e.(type) {
	case *Ident:
		w.Name = e.Name
	case *Literal:
		w.Lit = e.Type.String()
		w.Value = e.Value
	case *Assign:
		w.X = encodeExpr(e.Target)
		w.Y = encodeExpr(e.Value)
	case *CompoundAssign:
		w.Op = e.Op
		w.X = encodeExpr(e.Target)
		w.Y = encodeExpr(e.Value)
	case *IncDec:
		w.X = encodeExpr(e.X)
		w.Flags = flags(flagPrefix, e.Prefix, flagDec, e.Dec)
	case *Unary:
		w.Op = e.Op
		w.X = encodeExpr(e.X)
	case *Binary:
		w.Op = e.Op
		w.X = encodeExpr(e.X)
		w.Y = encodeExpr(e.Y)
	case *Conditional:
		w.Cond = encodeExpr(e.Cond)
		w.Then = encodeExpr(e.Then)
		w.Else = encodeExpr(e.Else)
	case *Index:
		w.X = encodeExpr(e.X)
		w.Y = encodeExpr(e.Index)
	case *Field:
		w.Name = e.Name
		w.X = encodeExpr(e.X)
	case *Call:
		w.X = encodeExpr(e.Fun)
		w.Args = encodeExprs(e.Args)
	case *New:
		w.Type = typePtr(e.Type)
		w.Args = encodeExprs(e.Args)
		w.Class = encodeClass(e.Body)
	case *NewArray:
		w.Type = typePtr(e.Elem)
		w.X = encodeExpr(e.Len)
		w.Args = encodeExprs(e.Elems)
	case *Lambda:
		w.Params = encodeParams(e.Params)
		w.Type = typePtr(e.ResultType)
		if e.Body != nil {
			w.Body = encodeStmt(e.Body)
		}
		w.X = encodeExpr(e.Value)
	case *Cast:
		w.Type = typePtr(e.Type)
		w.X = encodeExpr(e.X)
	case *ClassLit:
		w.Type = typePtr(e.Type)
	case *InstanceOf:
		w.Type = typePtr(e.Type)
		w.X = encodeExpr(e.X)
	}
	return w
}

// ParseTypeRef parses the source form produced by TypeRef.String, for example "Map<String, int[]>[]".
func ParseTypeRef(s string) (TypeRef, error) {
	s = strings.TrimSpace(s)
	var t TypeRef
	for strings.HasSuffix(s, "[]") {
		t.Dims++
		s = strings.TrimSpace(strings.TrimSuffix(s, "[]"))
	}
	open := strings.IndexByte(s, '<')
	if open < 0 {
		if s == "" || strings.ContainsAny(s, "<>,[] ") {
			return TypeRef{}, fmt.Errorf("invalid type: %q", s)
		}
		t.Name = s
		return t, nil
	} else if !strings.HasSuffix(s, ">") {
		return TypeRef{}, fmt.Errorf("invalid type: %q", s)
	}
	t.Name = strings.TrimSpace(s[:open])
	var depth, start int
	inner := s[open+1 : len(s)-1]
	for i, r := range inner {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				arg, err := ParseTypeRef(inner[start:i])
				if err != nil {
					return TypeRef{}, err
				}
				t.Args = append(t.Args, arg)
				start = i + 1
			}
		}
	}
	arg, err := ParseTypeRef(inner[start:])
	if err != nil {
		return TypeRef{}, err
	}
	t.Args = append(t.Args, arg)
	return t, nil
}

// UnmarshalYAML accepts both the source form ("int[]") and the mapping form of a type.
func (t *TypeRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Value == "" {
			*t = TypeRef{}
			return nil
		}
		parsed, err := ParseTypeRef(value.Value)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	type plain TypeRef
	return value.Decode((*plain)(t))
}

// MarshalYAML writes the source form.
func (t TypeRef) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}
