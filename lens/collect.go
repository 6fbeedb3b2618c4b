package lens

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrUnsupportedExpression is returned when a mutation target can not be reported without evaluating a side effect
// a second time.
var ErrUnsupportedExpression = errors.New("unsupported expression")

type traversal uint8

const (
	// descend visits the children of the node.
	descend traversal = iota
	// boundary returns the node unexpanded, it is visited on its own when the pass descends into it.
	boundary
	// boundaryWithClassBody stops only when the node carries an anonymous class body.
	boundaryWithClassBody
)

// scopeTraversal is the single table deciding where the mutation collector stops. Kinds not listed are descended.
var scopeTraversal = map[NodeKind]traversal{
	KindBlock:         boundary,
	KindIf:            boundary,
	KindFor:           boundary,
	KindForEach:       boundary,
	KindWhile:         boundary, // condition mutations are not reported
	KindSwitch:        boundary,
	KindCase:          boundary,
	KindTry:           boundary,
	KindCatch:         boundary,
	KindLabeled:       boundary,
	KindClassDeclStmt: boundary,
	KindLambda:        boundary,
	KindNew:           boundaryWithClassBody,
}

func isScopeBoundary(n Node) bool {
	switch scopeTraversal[n.Kind()] {
	case boundary:
		return true
	case boundaryWithClassBody:
		nw, ok := n.(*New)
		return ok && nw.Body != nil
	}
	return false
}

// mutationCollector gathers the targets of value changes in evaluation order, confined to one scope.
type mutationCollector struct {
	log      *zap.Logger
	excluded map[string]bool
	targets  []Expr
}

// collectMutations returns side-effect free expressions naming every variable changed while evaluating root, in
// evaluation order. Nested scopes are not entered.
func collectMutations(root Node, excluded map[string]bool, log *zap.Logger) ([]Expr, error) {
	c := &mutationCollector{log: log, excluded: excluded}
	if err := c.visit(root); err != nil {
		return nil, err
	}
	return c.targets, nil
}

// containsMutation reports if evaluating the expression changes a variable.
func containsMutation(e Expr) bool {
	found := false
	var visit func(n Node)
	visit = func(n Node) {
		if found || isNilNode(n) || isScopeBoundary(n) {
			return
		}
		switch n := n.(type) {
		case *Assign, *CompoundAssign, *IncDec:
			found = true
			return
		case *VarDecl:
			if n.Init != nil {
				found = true
				return
			}
		}
		for _, child := range children(n) {
			visit(child)
		}
	}
	visit(e)
	return found
}

// visit records mutations below n. A boundary kind is never expanded, even as the root, the passes visit its parts
// on their own.
func (c *mutationCollector) visit(n Node) error {
	if isNilNode(n) || isScopeBoundary(n) {
		return nil
	}

	switch n := n.(type) {
	case *VarDecl:
		if n.Init == nil {
			return nil // no value yet
		}
		if err := c.visit(n.Init); err != nil {
			return err
		}
		if !n.Excluded {
			c.record(&Ident{Name: n.Name})
		}
		return nil
	case *Assign:
		if err := c.visitTarget(n.Target); err != nil {
			return err
		} else if err := c.visit(n.Value); err != nil {
			return err
		}
		return c.recordTarget(n.Target)
	case *CompoundAssign:
		if err := c.visitTarget(n.Target); err != nil {
			return err
		} else if err := c.visit(n.Value); err != nil {
			return err
		}
		return c.recordTarget(n.Target)
	case *IncDec:
		if err := c.visitTarget(n.X); err != nil {
			return err
		}
		return c.recordTarget(n.X)
	}

	for _, child := range children(n) {
		if err := c.visit(child); err != nil {
			return err
		}
	}
	return nil
}

// visitTarget collects mutations evaluated while locating the assigned variable, the variable itself is recorded by
// the caller once the store happens.
func (c *mutationCollector) visitTarget(target Expr) error {
	if _, ok := target.(*Ident); ok {
		return nil
	}
	return c.visit(target)
}

func (c *mutationCollector) recordTarget(target Expr) error {
	if c.isExcluded(target) {
		return nil
	}
	reported, err := reportableTarget(target)
	if err != nil {
		return err
	}
	c.record(reported)
	return nil
}

func (c *mutationCollector) isExcluded(target Expr) bool {
	for {
		switch t := target.(type) {
		case *Ident:
			return c.excluded[t.Name]
		case *Index:
			target = t.X
		default:
			return false
		}
	}
}

func (c *mutationCollector) record(target Expr) {
	if target == nil {
		c.log.Warn("ignoring absent mutation target")
		return
	}
	c.targets = append(c.targets, target)
}

// reportableTarget returns an expression naming the mutated variable which can be evaluated after the mutation
// without repeating any side effect of the target.
func reportableTarget(target Expr) (Expr, error) {
	if target == nil {
		return nil, nil
	} else if isSideEffectFree(target) {
		return CloneExpr(target), nil
	}

	idx, ok := target.(*Index)
	if !ok {
		return nil, fmt.Errorf("%w: mutation target %s", ErrUnsupportedExpression, RenderExpr(target))
	} else if !isSideEffectFree(idx.X) {
		return nil, fmt.Errorf("%w: indexed expression %s", ErrUnsupportedExpression, RenderExpr(idx.X))
	}
	index, err := sideEffectFreeIndex(idx.Index)
	if err != nil {
		return nil, err
	}
	return &Index{X: CloneExpr(idx.X), Index: index}, nil
}

// sideEffectFreeIndex rewrites an index expression into the value it had when the store happened.
func sideEffectFreeIndex(index Expr) (Expr, error) {
	switch index := index.(type) {
	case *IncDec:
		if !isSideEffectFree(index.X) {
			break
		}
		operand := CloneExpr(index.X)
		if index.Prefix {
			return operand, nil
		} else if index.Dec {
			return &Binary{Op: "+", X: operand, Y: &Literal{Type: LitInt, Value: "1"}}, nil
		}
		return &Binary{Op: "-", X: operand, Y: &Literal{Type: LitInt, Value: "1"}}, nil
	case *CompoundAssign:
		if isSideEffectFree(index.Target) && isSideEffectFree(index.Value) {
			return CloneExpr(index.Target), nil
		}
	}
	return nil, fmt.Errorf("%w: index expression %s", ErrUnsupportedExpression, RenderExpr(index))
}
