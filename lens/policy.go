package lens

import (
	"slices"
	"strings"
)

// SkipReason explains why a method was not instrumented.
type SkipReason uint8

const (
	SkipNone SkipReason = iota
	SkipDisabled
	SkipNoBody
	SkipSynthetic
	SkipExcludedClass
	SkipExcludedMethod
	SkipExcludedName
	SkipNotIncluded
	SkipShortMethod
)

var skipReasonNames = [...]string{
	SkipNone:           "",
	SkipDisabled:       "instrumentation disabled",
	SkipNoBody:         "no body",
	SkipSynthetic:      "synthetic method",
	SkipExcludedClass:  "class excluded",
	SkipExcludedMethod: "method excluded",
	SkipExcludedName:   "method name excluded",
	SkipNotIncluded:    "not included",
	SkipShortMethod:    "short method",
}

func (r SkipReason) String() string {
	if int(r) < len(skipReasonNames) {
		return skipReasonNames[r]
	}
	return "unknown"
}

// MarshalText encodes the reason by name for reports.
func (r SkipReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a reason written by MarshalText.
func (r *SkipReason) UnmarshalText(text []byte) error {
	for i, n := range skipReasonNames {
		if n == string(text) {
			*r = SkipReason(i)
			return nil
		}
	}
	*r = SkipNone
	return nil
}

// ExclusionPolicy decides which methods are eligible for instrumentation.
type ExclusionPolicy struct {
	instrument       bool
	annotatedOnly    bool
	shortMethodLimit int
	excludedClasses  map[string]bool
	excludedPackages map[string]bool
	excludedMethods  []string
}

// NewExclusionPolicy builds the policy from the exclusion settings of the config.
func NewExclusionPolicy(cfg Config) *ExclusionPolicy {
	p := &ExclusionPolicy{
		instrument:       cfg.Instrument,
		annotatedOnly:    cfg.AnnotatedOnly,
		shortMethodLimit: cfg.ShortMethodLimit,
		excludedClasses:  make(map[string]bool),
		excludedPackages: make(map[string]bool),
		excludedMethods:  slices.Clone(cfg.ExcludedMethods),
	}
	for _, name := range cfg.ExcludedClasses {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		} else if pkg, ok := strings.CutSuffix(name, ".*"); ok {
			p.excludedPackages[pkg] = true
		} else {
			p.excludedClasses[name] = true
		}
	}
	return p
}

// SkipReason returns SkipNone when the method should be instrumented. The resolved exclusion is recorded on the
// method.
func (p *ExclusionPolicy) SkipReason(m *Method) SkipReason {
	m.Exclusion = resolveExclusion(m)
	switch {
	case !p.instrument:
		return SkipDisabled
	case m.Body == nil:
		return SkipNoBody
	case strings.HasPrefix(m.Name, LambdaMethodPrefix):
		return SkipSynthetic
	case m.Exclusion == ExclusionMethod:
		return SkipExcludedMethod
	case m.Exclusion == ExclusionClass || p.isExcludedClass(m.Class):
		return SkipExcludedClass
	case slices.Contains(p.excludedMethods, m.Name):
		return SkipExcludedName
	case p.annotatedOnly && !isIncluded(m):
		return SkipNotIncluded
	case p.shortMethodLimit > 0 && len(m.Body.Stmts) <= p.shortMethodLimit:
		return SkipShortMethod
	}
	return SkipNone
}

func resolveExclusion(m *Method) Exclusion {
	if m.Markers.Exclude {
		return ExclusionMethod
	}
	for c := m.Class; c != nil; c = c.Outer {
		if c.Markers.Exclude || (c.OuterMethod != nil && c.OuterMethod.Markers.Exclude) {
			return ExclusionClass
		}
	}
	return ExclusionNone
}

func isIncluded(m *Method) bool {
	if m.Markers.Include {
		return true
	}
	for c := m.Class; c != nil; c = c.Outer {
		if c.Markers.Include || (c.OuterMethod != nil && c.OuterMethod.Markers.Include) {
			return true
		}
	}
	return false
}

// isExcludedClass matches the class and every enclosing class against the excluded names, walking up the dotted
// name so an excluded package also covers its sub packages.
func (p *ExclusionPolicy) isExcludedClass(c *Class) bool {
	for ; c != nil; c = c.Outer {
		name := c.QualifiedName()
		if p.excludedClasses[name] {
			return true
		}
		for pkg := c.Package; pkg != ""; {
			if p.excludedPackages[pkg] {
				return true
			}
			i := strings.LastIndexByte(pkg, '.')
			if i < 0 {
				break
			}
			pkg = pkg[:i]
		}
	}
	return false
}
