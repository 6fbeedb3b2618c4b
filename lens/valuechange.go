package lens

import (
	"fmt"
	"maps"
)

// injectValueChanges reports the new value of every variable mutated by a statement right after the statement.
// Loop updates, for-each variables and try resources are reported at the start of the body they lead into.
func injectValueChanges(s *bodyScope) error {
	stmts, err := s.valueChangeStmts(s.body.Stmts, s.excluded)
	if err != nil {
		return err
	}
	s.body.Stmts = stmts
	return nil
}

func (s *bodyScope) valueChangeReport(target Expr) Stmt {
	return s.hookStmt(HookValueChange, s.env.factory.StringLit(RenderExpr(target)), target)
}

// declareLocals returns a copy of scope with the declarations added. Names map to their exclusion, so a declaration
// in a nested block shadows an excluded variable of the same name.
func declareLocals(scope map[string]bool, decls ...*VarDecl) map[string]bool {
	scope = maps.Clone(scope)
	for _, d := range decls {
		if d != nil {
			scope[d.Name] = d.Excluded
		}
	}
	return scope
}

func stmtDecls(stmts []Stmt) []*VarDecl {
	var decls []*VarDecl
	for _, st := range stmts {
		if d, ok := st.(*VarDecl); ok {
			decls = append(decls, d)
		}
	}
	return decls
}

// noteLambdas records the exclusions visible to the outermost lambdas of n.
func (s *bodyScope) noteLambdas(n Node, scope map[string]bool) {
	Inspect(n, func(n Node) bool {
		if l, ok := n.(*Lambda); ok {
			if s.lambdaExcluded == nil {
				s.lambdaExcluded = make(map[*Lambda]map[string]bool)
			}
			s.lambdaExcluded[l] = maps.Clone(scope)
			return false
		}
		return true
	})
}

// mutationReports collects the mutations of root and returns one report per mutation.
func (s *bodyScope) mutationReports(root Node, scope map[string]bool) ([]Stmt, error) {
	targets, err := collectMutations(root, scope, s.env.log)
	if err != nil {
		return nil, err
	}
	reports := make([]Stmt, 0, len(targets))
	for _, t := range targets {
		reports = append(reports, s.valueChangeReport(t))
	}
	return reports, nil
}

func (s *bodyScope) valueChangeStmts(stmts []Stmt, scope map[string]bool) ([]Stmt, error) {
	scope = maps.Clone(scope)
	out := make([]Stmt, 0, len(stmts))
	for _, st := range stmts {
		if d, ok := st.(*VarDecl); ok {
			scope[d.Name] = d.Excluded
		}
		s.noteLambdas(st, scope) // nested blocks overwrite with their own scope
		if err := s.valueChangeNested(st, scope); err != nil {
			return nil, err
		}
		out = append(out, st)
		if isJump(st) {
			continue // following position is unreachable
		}
		reports, err := s.mutationReports(st, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, reports...)
	}
	return out, nil
}

// valueChangeBlock instruments a construct body produced by the block normalizer, prefix reports are placed before
// the original statements.
func (s *bodyScope) valueChangeBlock(body Stmt, prefix []Stmt, scope map[string]bool) error {
	b, ok := body.(*Block)
	if !ok || b == nil {
		return fmt.Errorf("%w: construct body in %s is not a block", ErrStructure, s.name)
	}
	stmts, err := s.valueChangeStmts(b.Stmts, scope)
	if err != nil {
		return err
	}
	if len(prefix) > 0 {
		stmts = append(prefix, stmts...)
	}
	b.Stmts = stmts
	return nil
}

func (s *bodyScope) valueChangeNested(st Stmt, scope map[string]bool) error {
	switch st := st.(type) {
	case *Block:
		return s.valueChangeBlock(st, nil, scope)
	case *If:
		if err := s.valueChangeBlock(st.Then, nil, scope); err != nil {
			return err
		}
		switch elseStmt := st.Else.(type) {
		case nil:
			return nil
		case *If:
			return s.valueChangeNested(elseStmt, scope)
		default:
			return s.valueChangeBlock(elseStmt, nil, scope)
		}
	case *For:
		forScope := declareLocals(scope, stmtDecls(st.Init)...)
		var updates []Stmt
		for _, u := range st.Update {
			s.noteLambdas(u, forScope)
			reports, err := s.mutationReports(u, forScope)
			if err != nil {
				return err
			}
			updates = append(updates, reports...)
		}
		return s.valueChangeBlock(st.Body, updates, forScope)
	case *ForEach:
		var prefix []Stmt
		if st.Var != nil && !st.Var.Excluded {
			prefix = append(prefix, s.valueChangeReport(s.env.factory.Ident(st.Var.Name)))
		}
		return s.valueChangeBlock(st.Body, prefix, declareLocals(scope, st.Var))
	case *While:
		return s.valueChangeBlock(st.Body, nil, scope)
	case *Switch:
		// case groups share the scope of the switch block
		switchScope := maps.Clone(scope)
		for _, c := range st.Cases {
			stmts, err := s.valueChangeStmts(c.Body, switchScope)
			if err != nil {
				return err
			}
			c.Body = stmts
			for _, d := range stmtDecls(stmts) {
				switchScope[d.Name] = d.Excluded
			}
		}
	case *Try:
		resourceScope := declareLocals(scope, st.Resources...)
		var prefix []Stmt
		for _, r := range st.Resources {
			reports, err := s.mutationReports(r, resourceScope)
			if err != nil {
				return err
			}
			prefix = append(prefix, reports...)
		}
		if err := s.valueChangeBlock(st.Body, prefix, resourceScope); err != nil {
			return err
		}
		for _, c := range st.Catches {
			if err := s.valueChangeBlock(c.Body, nil, declareLocals(scope, c.Param)); err != nil {
				return err
			}
		}
		if st.Finally != nil {
			return s.valueChangeBlock(st.Finally, nil, scope)
		}
	case *Labeled:
		switch body := st.Body.(type) {
		case *Block:
			return s.valueChangeBlock(body, nil, scope)
		default:
			return s.valueChangeNested(body, scope)
		}
	}
	return nil
}
