package lens

// injectReturning reports every returned value before it leaves the method:
//
//	return (R) returning(ctx, name, expr);
//
// For primitive result types the argument is cast as well, so boxing happens against the declared type. Bare returns
// have no value and are left untouched.
func injectReturning(s *bodyScope) error {
	f := s.env.factory
	return rewriteStmtLists(s.body, func(list []Stmt) ([]Stmt, error) {
		for _, st := range list {
			ret, ok := st.(*Return)
			if !ok || ret.X == nil {
				continue
			}
			value := ret.X
			if s.result.IsZero() {
				ret.X = s.hookCall(HookReturning, value)
				continue
			} else if s.result.IsPrimitive() {
				value = f.Cast(s.result, value)
			}
			ret.X = f.Cast(s.result, s.hookCall(HookReturning, value))
		}
		return list, nil
	})
}
