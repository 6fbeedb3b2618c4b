package lens

import (
	"fmt"
)

// extractReturnMutations hoists mutating return expressions into a captured synthetic variable declared right before
// the return. The mutation then runs once as part of the declaration, and the value change pass can report it
// between the declaration and the return.
func extractReturnMutations(s *bodyScope) error {
	return rewriteStmtLists(s.body, func(list []Stmt) ([]Stmt, error) {
		var out []Stmt
		for i, st := range list {
			ret, ok := st.(*Return)
			if !ok || ret.X == nil || !containsMutation(ret.X) {
				if out != nil {
					out = append(out, st)
				}
				continue
			} else if s.result.IsZero() || s.result.IsVoid() {
				return nil, fmt.Errorf("%w: return value in %s without a declared result type", ErrStructure, s.name)
			}
			if out == nil {
				out = append(make([]Stmt, 0, len(list)+1), list[:i]...)
			}
			captured := s.declareSynthetic(capturedReturnPrefix, s.result, ret.X)
			ret.X = s.env.factory.Ident(captured.Name)
			out = append(out, captured, ret)
		}
		if out == nil {
			return list, nil
		}
		return out, nil
	})
}
