package lens

import (
	"strings"
)

// lambdaName returns the name lambdas report under, for example "process: (item, idx)->".
func lambdaName(methodName string, l *Lambda) string {
	params := make([]string, len(l.Params))
	for i, p := range l.Params {
		params[i] = p.Name
	}
	return methodName + ": (" + strings.Join(params, ", ") + ")->"
}

// outermostLambdas returns the lambdas of the scope which are not nested in another lambda. Class bodies are not
// entered.
func outermostLambdas(b *Block) []*Lambda {
	var found []*Lambda
	Inspect(b, func(n Node) bool {
		if l, ok := n.(*Lambda); ok {
			found = append(found, l)
			return false
		}
		return true
	})
	return found
}

// lambdaPasses instrument a lambda body. Returning and on-error reports are not applied to lambdas.
var lambdaPasses = []pass{
	{name: "normalize", run: normalizeBlocks},
	{name: "extract-return", enabled: lambdaExtractEnabled, run: extractReturnMutations},
	{name: "value-change", enabled: valueChangeEnabled, run: injectValueChanges},
	{name: "entering-exiting", run: injectEnteringExiting},
}

func lambdaExtractEnabled(s *bodyScope) bool {
	return valueChangeEnabled(s) && !s.result.IsZero() && !s.result.IsVoid()
}

// instrumentLambdas runs the lambda passes on every lambda of the scope, then recurses into nested lambdas.
func instrumentLambdas(s *bodyScope) error {
	for _, l := range outermostLambdas(s.body) {
		if l.Body == nil {
			// expression bodies become a block so hooks can surround them
			var st Stmt
			if l.ResultType.IsVoid() {
				st = &ExprStmt{X: l.Value}
			} else {
				st = s.env.factory.Return(l.Value)
			}
			l.Body = s.env.factory.Block(st)
			l.Value = nil
		}

		ls := s.lambdaScope(l)
		if err := runPasses(ls, lambdaPasses); err != nil {
			return err
		} else if err := instrumentLambdas(ls); err != nil {
			return err
		}
		l.Body = ls.body
	}
	return nil
}
