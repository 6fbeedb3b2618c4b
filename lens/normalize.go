package lens

// normalizeBlocks rewrites every single statement body of if, else, for, for-each and while constructs into a one
// statement block, so later passes can insert siblings next to the original statement. Bodies which already are
// blocks are left untouched.
func normalizeBlocks(s *bodyScope) error {
	normalizeStmts(s.body.Stmts)
	return nil
}

func normalizeStmts(stmts []Stmt) {
	for _, st := range stmts {
		normalizeStmt(st)
	}
}

func wrapInBlock(s Stmt) *Block {
	switch s := s.(type) {
	case *Block:
		if s != nil {
			return s
		}
		return &Block{}
	case nil:
		return &Block{}
	}
	return &Block{Stmts: []Stmt{s}}
}

func normalizeStmt(st Stmt) {
	switch st := st.(type) {
	case *Block:
		if st != nil {
			normalizeStmts(st.Stmts)
		}
	case *If:
		st.Then = wrapInBlock(st.Then)
		normalizeStmt(st.Then)
		switch elseStmt := st.Else.(type) {
		case nil:
		case *If:
			normalizeStmt(elseStmt) // keep else-if chains flat
		default:
			st.Else = wrapInBlock(elseStmt)
			normalizeStmt(st.Else)
		}
	case *For:
		st.Body = wrapInBlock(st.Body)
		normalizeStmt(st.Body)
	case *ForEach:
		st.Body = wrapInBlock(st.Body)
		normalizeStmt(st.Body)
	case *While:
		st.Body = wrapInBlock(st.Body)
		normalizeStmt(st.Body)
	case *Switch:
		for _, c := range st.Cases {
			normalizeStmts(c.Body)
		}
	case *Try:
		normalizeStmt(st.Body)
		for _, c := range st.Catches {
			normalizeStmt(c.Body)
		}
		normalizeStmt(st.Finally)
	case *Labeled:
		normalizeStmt(st.Body) // the label must stay on the loop itself
	}
}
