package lens

import (
	"fmt"
)

var longType = TypeRef{Name: "long"}

// injectTimeout measures the elapsed time around the scaffold and reports when it exceeds the threshold of the
// method's Timeout marker. The report is observational, nothing is thrown.
func injectTimeout(s *bodyScope) error {
	timeout := s.method.Timeout()
	if timeout == nil {
		return nil
	}
	scaffold, err := findScaffold(s)
	if err != nil {
		return fmt.Errorf("%w: timeout requires the entering/exiting scaffold in %s", err, s.name)
	}

	f := s.env.factory
	clock := s.env.cfg.Clock
	start := s.declareSynthetic(startTimestampPrefix, longType, f.Call(f.QualifiedName(clock)))
	stop := s.declareSynthetic(stopTimestampPrefix, longType, f.Call(f.QualifiedName(clock)))
	elapsed := func() Expr {
		return f.Binary("-", f.Ident(stop.Name), f.Ident(start.Name))
	}
	threshold := timeout.ThresholdMillis
	check := f.If(
		f.Binary("<", f.LongLit(threshold), elapsed()),
		f.Block(s.hookStmt(HookTimeout, f.LongLit(threshold), elapsed())),
	)

	scaffold.Finally.Stmts = append([]Stmt{stop, check}, scaffold.Finally.Stmts...)
	s.body.Stmts = append([]Stmt{start}, s.body.Stmts...)
	return nil
}
