package lens

import (
	"fmt"
)

// isDelegationCall reports if the statement invokes a sibling (this) or parent (super) constructor.
func isDelegationCall(st Stmt) bool {
	es, ok := st.(*ExprStmt)
	if !ok {
		return false
	}
	call, ok := es.X.(*Call)
	if !ok {
		return false
	}
	switch fun := call.Fun.(type) {
	case *Ident:
		return fun.Name == "this" || fun.Name == "super"
	case *Field:
		return fun.Name == "super" // qualified outer.super(...)
	}
	return false
}

// reorderConstructorCall moves the delegation call, wherever earlier passes relocated it, back to the first statement
// of the constructor body.
func reorderConstructorCall(s *bodyScope) error {
	if !s.method.Constructor {
		return fmt.Errorf("%w: %s is not a constructor", ErrStructure, s.name)
	}
	var found []Stmt
	err := rewriteStmtLists(s.body, func(list []Stmt) ([]Stmt, error) {
		var out []Stmt
		for i, st := range list {
			if isDelegationCall(st) {
				if out == nil {
					out = append(make([]Stmt, 0, len(list)), list[:i]...)
				}
				found = append(found, st)
				continue
			} else if out != nil {
				out = append(out, st)
			}
		}
		if out == nil {
			return list, nil
		}
		return out, nil
	})
	if err != nil {
		return err
	} else if len(found) > 1 {
		return fmt.Errorf("%w: %d constructor delegation calls in %s", ErrStructure, len(found), s.name)
	} else if len(found) == 1 {
		s.body.Stmts = append([]Stmt{found[0]}, s.body.Stmts...)
	}
	return nil
}
