package lens

// children returns the direct child nodes of n in evaluation order. Class bodies are not children, they hold methods
// which are instrumented on their own.
func children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		if !isNilNode(c) {
			out = append(out, c)
		}
	}
	switch n := n.(type) {
	case *Block:
		for _, s := range n.Stmts {
			add(s)
		}
	case *VarDecl:
		add(n.Init)
	case *ExprStmt:
		add(n.X)
	case *If:
		add(n.Cond)
		add(n.Then)
		add(n.Else)
	case *For:
		for _, s := range n.Init {
			add(s)
		}
		add(n.Cond)
		add(n.Body)
		for _, s := range n.Update {
			add(s)
		}
	case *ForEach:
		add(n.Var)
		add(n.Iterable)
		add(n.Body)
	case *While:
		if n.Do {
			add(n.Body)
			add(n.Cond)
		} else {
			add(n.Cond)
			add(n.Body)
		}
	case *Switch:
		add(n.Selector)
		for _, c := range n.Cases {
			add(c)
		}
	case *Case:
		for _, l := range n.Labels {
			add(l)
		}
		for _, s := range n.Body {
			add(s)
		}
	case *Try:
		for _, r := range n.Resources {
			add(r)
		}
		add(n.Body)
		for _, c := range n.Catches {
			add(c)
		}
		add(n.Finally)
	case *Catch:
		add(n.Param)
		add(n.Body)
	case *Return:
		add(n.X)
	case *Throw:
		add(n.X)
	case *Labeled:
		add(n.Body)
	case *Assign:
		add(n.Target)
		add(n.Value)
	case *CompoundAssign:
		add(n.Target)
		add(n.Value)
	case *IncDec:
		add(n.X)
	case *Unary:
		add(n.X)
	case *Binary:
		add(n.X)
		add(n.Y)
	case *Conditional:
		add(n.Cond)
		add(n.Then)
		add(n.Else)
	case *Index:
		add(n.X)
		add(n.Index)
	case *Field:
		add(n.X)
	case *Call:
		add(n.Fun)
		for _, a := range n.Args {
			add(a)
		}
	case *New:
		for _, a := range n.Args {
			add(a)
		}
	case *NewArray:
		add(n.Len)
		for _, e := range n.Elems {
			add(e)
		}
	case *Lambda:
		add(n.Body)
		add(n.Value)
	case *Cast:
		add(n.X)
	case *InstanceOf:
		add(n.X)
	}
	return out
}

// isNilNode reports if the interface is nil or holds a nil pointer.
func isNilNode(n Node) bool {
	if n == nil {
		return true
	}
	switch n := n.(type) {
	case *Block:
		return n == nil
	case *VarDecl:
		return n == nil
	case *Case:
		return n == nil
	case *Catch:
		return n == nil
	case *Lambda:
		return n == nil
	}
	return false
}

// Inspect traverses the tree in depth-first order, calling f for each node. Children are skipped when f returns false.
func Inspect(n Node, f func(Node) bool) {
	if isNilNode(n) || !f(n) {
		return
	}
	for _, c := range children(n) {
		Inspect(c, f)
	}
}

// CloneExpr returns a deep copy of the expression. Anonymous class bodies are shared, not copied.
func CloneExpr(e Expr) Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *Ident:
		c := *e
		return &c
	case *Literal:
		c := *e
		return &c
	case *Assign:
		return &Assign{Target: CloneExpr(e.Target), Value: CloneExpr(e.Value)}
	case *CompoundAssign:
		return &CompoundAssign{Op: e.Op, Target: CloneExpr(e.Target), Value: CloneExpr(e.Value)}
	case *IncDec:
		return &IncDec{X: CloneExpr(e.X), Dec: e.Dec, Prefix: e.Prefix}
	case *Unary:
		return &Unary{Op: e.Op, X: CloneExpr(e.X)}
	case *Binary:
		return &Binary{Op: e.Op, X: CloneExpr(e.X), Y: CloneExpr(e.Y)}
	case *Conditional:
		return &Conditional{Cond: CloneExpr(e.Cond), Then: CloneExpr(e.Then), Else: CloneExpr(e.Else)}
	case *Index:
		return &Index{X: CloneExpr(e.X), Index: CloneExpr(e.Index)}
	case *Field:
		return &Field{X: CloneExpr(e.X), Name: e.Name}
	case *Call:
		return &Call{Fun: CloneExpr(e.Fun), Args: cloneExprs(e.Args)}
	case *New:
		return &New{Type: cloneType(e.Type), Args: cloneExprs(e.Args), Body: e.Body}
	case *NewArray:
		return &NewArray{Elem: cloneType(e.Elem), Len: CloneExpr(e.Len), Elems: cloneExprs(e.Elems)}
	case *Lambda:
		params := make([]*Parameter, len(e.Params))
		for i, p := range e.Params {
			cp := *p
			cp.Type = cloneType(p.Type)
			params[i] = &cp
		}
		return &Lambda{Params: params, Body: CloneBlock(e.Body), Value: CloneExpr(e.Value), ResultType: cloneType(e.ResultType)}
	case *Cast:
		return &Cast{Type: cloneType(e.Type), X: CloneExpr(e.X)}
	case *ClassLit:
		return &ClassLit{Type: cloneType(e.Type)}
	case *InstanceOf:
		return &InstanceOf{X: CloneExpr(e.X), Type: cloneType(e.Type)}
	}
	panic("unknown expression kind: " + e.Kind().String())
}

func cloneExprs(list []Expr) []Expr {
	if list == nil {
		return nil
	}
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = CloneExpr(e)
	}
	return out
}

func cloneType(t TypeRef) TypeRef {
	if len(t.Args) > 0 {
		args := make([]TypeRef, len(t.Args))
		for i, a := range t.Args {
			args[i] = cloneType(a)
		}
		t.Args = args
	}
	return t
}

// CloneBlock returns a deep copy of the block, nil stays nil.
func CloneBlock(b *Block) *Block {
	if b == nil {
		return nil
	}
	return &Block{Stmts: cloneStmts(b.Stmts)}
}

func cloneStmts(list []Stmt) []Stmt {
	if list == nil {
		return nil
	}
	out := make([]Stmt, len(list))
	for i, s := range list {
		out[i] = CloneStmt(s)
	}
	return out
}

func cloneVarDecl(d *VarDecl) *VarDecl {
	if d == nil {
		return nil
	}
	c := *d
	c.Type = cloneType(d.Type)
	c.Init = CloneExpr(d.Init)
	return &c
}

// CloneStmt returns a deep copy of the statement. Local class declarations are shared, not copied.
func CloneStmt(s Stmt) Stmt {
	switch s := s.(type) {
	case nil:
		return nil
	case *Block:
		if s == nil {
			return (*Block)(nil)
		}
		return CloneBlock(s)
	case *VarDecl:
		return cloneVarDecl(s)
	case *ExprStmt:
		return &ExprStmt{X: CloneExpr(s.X)}
	case *If:
		return &If{Cond: CloneExpr(s.Cond), Then: CloneStmt(s.Then), Else: CloneStmt(s.Else)}
	case *For:
		return &For{Init: cloneStmts(s.Init), Cond: CloneExpr(s.Cond), Update: cloneStmts(s.Update), Body: CloneStmt(s.Body)}
	case *ForEach:
		return &ForEach{Var: cloneVarDecl(s.Var), Iterable: CloneExpr(s.Iterable), Body: CloneStmt(s.Body)}
	case *While:
		return &While{Cond: CloneExpr(s.Cond), Body: CloneStmt(s.Body), Do: s.Do}
	case *Switch:
		cases := make([]*Case, len(s.Cases))
		for i, c := range s.Cases {
			cases[i] = &Case{Labels: cloneExprs(c.Labels), Body: cloneStmts(c.Body)}
		}
		return &Switch{Selector: CloneExpr(s.Selector), Cases: cases}
	case *Try:
		t := &Try{Body: CloneBlock(s.Body), Finally: CloneBlock(s.Finally)}
		for _, r := range s.Resources {
			t.Resources = append(t.Resources, cloneVarDecl(r))
		}
		for _, c := range s.Catches {
			t.Catches = append(t.Catches, &Catch{Param: cloneVarDecl(c.Param), Body: CloneBlock(c.Body)})
		}
		return t
	case *Return:
		return &Return{X: CloneExpr(s.X)}
	case *Throw:
		return &Throw{X: CloneExpr(s.X)}
	case *Jump:
		c := *s
		return &c
	case *Labeled:
		return &Labeled{Label: s.Label, Body: CloneStmt(s.Body)}
	case *ClassDeclStmt:
		return &ClassDeclStmt{Class: s.Class}
	}
	panic("unknown statement kind: " + s.Kind().String())
}

// isSideEffectFree reports if evaluating the expression again can not change program state. Calls and object
// creation are conservatively treated as effectful.
func isSideEffectFree(e Expr) bool {
	switch e := e.(type) {
	case *Ident, *Literal, *ClassLit:
		return true
	case *Field:
		return isSideEffectFree(e.X)
	case *Index:
		return isSideEffectFree(e.X) && isSideEffectFree(e.Index)
	case *Unary:
		return isSideEffectFree(e.X)
	case *Binary:
		return isSideEffectFree(e.X) && isSideEffectFree(e.Y)
	case *Cast:
		return isSideEffectFree(e.X)
	case *Conditional:
		return isSideEffectFree(e.Cond) && isSideEffectFree(e.Then) && isSideEffectFree(e.Else)
	case *InstanceOf:
		return isSideEffectFree(e.X)
	}
	return false
}

// isJump reports if control never continues to the statement that follows.
func isJump(s Stmt) bool {
	switch s.(type) {
	case *Return, *Throw, *Jump:
		return true
	}
	return false
}

// rewriteStmtLists applies fn to every statement list of the scope rooted at b, innermost lists first. Class bodies
// and lambdas are separate scopes and are not entered.
func rewriteStmtLists(b *Block, fn func([]Stmt) ([]Stmt, error)) error {
	var rewrite func(list []Stmt) ([]Stmt, error)
	var nested func(st Stmt) error
	nested = func(st Stmt) error {
		var err error
		switch st := st.(type) {
		case *Block:
			if st != nil {
				st.Stmts, err = rewrite(st.Stmts)
			}
		case *If:
			if err = nested(st.Then); err == nil {
				err = nested(st.Else)
			}
		case *For:
			err = nested(st.Body)
		case *ForEach:
			err = nested(st.Body)
		case *While:
			err = nested(st.Body)
		case *Switch:
			for _, c := range st.Cases {
				if c.Body, err = rewrite(c.Body); err != nil {
					return err
				}
			}
		case *Try:
			if err = nested(st.Body); err != nil {
				return err
			}
			for _, c := range st.Catches {
				if err = nested(c.Body); err != nil {
					return err
				}
			}
			err = nested(st.Finally)
		case *Labeled:
			err = nested(st.Body)
		}
		return err
	}
	rewrite = func(list []Stmt) ([]Stmt, error) {
		for _, st := range list {
			if err := nested(st); err != nil {
				return nil, err
			}
		}
		return fn(list)
	}
	return nested(b)
}
