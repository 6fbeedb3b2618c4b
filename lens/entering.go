package lens

// injectEnteringExiting wraps the body into the tracing scaffold:
//
//	entering(ctx, name, "p1", p1, ...);
//	try { <body> } finally { exiting(ctx, name); }
//
// Excluded parameters are left out of the entering payload.
func injectEnteringExiting(s *bodyScope) error {
	f := s.env.factory
	var args []Expr
	for _, p := range s.params {
		if p.Excluded {
			continue
		}
		args = append(args, f.StringLit(p.Name), f.Ident(p.Name))
	}
	entering := s.hookStmt(HookEntering, args...)
	exiting := s.hookStmt(HookExiting)

	scaffold := f.TryFinally(f.Block(s.body.Stmts...), f.Block(exiting))
	s.body.Stmts = []Stmt{entering, scaffold}
	return nil
}

// findScaffold returns the try statement built by injectEnteringExiting. It must be a top-level statement whose
// finally block ends with the exiting hook.
func findScaffold(s *bodyScope) (*Try, error) {
	exiting := s.env.cfg.Hooks.Qualified(HookExiting)
	for _, st := range s.body.Stmts {
		try, ok := st.(*Try)
		if !ok || try.Finally == nil || len(try.Finally.Stmts) == 0 {
			continue
		}
		last, ok := try.Finally.Stmts[len(try.Finally.Stmts)-1].(*ExprStmt)
		if !ok {
			continue
		}
		if call, ok := last.X.(*Call); ok && RenderExpr(call.Fun) == exiting {
			return try, nil
		}
	}
	return nil, ErrStructure
}
