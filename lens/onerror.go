package lens

import (
	"fmt"
)

// injectOnError extends the scaffold with a clause catching every throwable, reporting it, and rethrowing it
// unchanged before the finally block runs.
func injectOnError(s *bodyScope) error {
	scaffold, err := findScaffold(s)
	if err != nil {
		return fmt.Errorf("%w: on-error requires the entering/exiting scaffold in %s", err, s.name)
	}
	f := s.env.factory
	caught := s.declareSynthetic(caughtErrorPrefix, TypeRef{Name: s.env.cfg.ThrowableType}, nil)
	handler := f.Block(
		s.hookStmt(HookOnError, f.Ident(caught.Name)),
		f.Throw(f.Ident(caught.Name)),
	)
	scaffold.Catches = append(scaffold.Catches, f.Catch(caught, handler))
	return nil
}
