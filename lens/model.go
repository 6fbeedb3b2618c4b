package lens

import (
	"strconv"
	"strings"
)

// LambdaMethodPrefix marks compiler generated lambda methods which are never instrumented directly.
const LambdaMethodPrefix = "lambda$"

// Exclusion records where an exclusion marker was inherited from.
type Exclusion uint8

const (
	// ExclusionNone indicates the method is eligible.
	ExclusionNone Exclusion = iota
	// ExclusionClass indicates the marker came from an enclosing class, or from the method declaring an enclosing
	// local class.
	ExclusionClass
	// ExclusionMethod indicates the marker is on the method itself.
	ExclusionMethod
)

func (e Exclusion) String() string {
	switch e {
	case ExclusionClass:
		return "class"
	case ExclusionMethod:
		return "method"
	default:
		return "none"
	}
}

// Timeout holds a Timeout marker.
type Timeout struct {
	// ThresholdMillis is the elapsed time above which the timeout hook is emitted.
	ThresholdMillis int64
}

// Markers holds the recognized declaration markers.
type Markers struct {
	// Exclude skips instrumentation for the declaration and everything inside it.
	Exclude bool
	// Include opts the declaration in when running in annotated-only mode.
	Include bool
	// Timeout is set when a Timeout marker is present.
	Timeout *Timeout
}

// Parameter is a formal parameter of a method or lambda.
type Parameter struct {
	// Name is the parameter name.
	Name string
	// Type is the declared type, zero for implicitly typed lambda parameters.
	Type TypeRef
	// Excluded parameters are omitted from the entering payload.
	Excluded bool
}

// Class describes a class declaration, named or anonymous.
type Class struct {
	// Name is the simple name, empty for anonymous classes until CollectMethods assigns one.
	Name string
	// Package is the dotted package name of the owning unit.
	Package string
	// Outer is the enclosing class, nil for top-level classes.
	Outer *Class
	// Markers holds the class level markers.
	Markers Markers
	// Methods are the declared methods and constructors.
	Methods []*Method
	// Nested are member classes.
	Nested []*Class
	// Local is set for local and anonymous classes declared inside a method body.
	Local bool
	// OuterMethod is the method whose body declares a local or anonymous class.
	OuterMethod *Method

	anonymousCount int
}

// QualifiedName returns the fully qualified, dotted class name.
func (c *Class) QualifiedName() string {
	if c.Outer != nil {
		if c.Local {
			return c.Outer.QualifiedName() + "$" + c.Name
		}
		return c.Outer.QualifiedName() + "." + c.Name
	}
	if c.Package == "" {
		return c.Name
	}
	return c.Package + "." + c.Name
}

// TypeRef returns a reference to this class usable in the tree.
func (c *Class) TypeRef() TypeRef {
	return TypeRef{Name: c.QualifiedName()}
}

// Method is the model of one method or constructor being instrumented.
type Method struct {
	// Name is the method name.
	Name string
	// Class is the enclosing class.
	Class *Class
	// Params are the formal parameters in declaration order.
	Params []*Parameter
	// ResultType is the declared return type, void for constructors.
	ResultType TypeRef
	// Body is the mutable body tree, nil for abstract and native methods.
	Body *Block
	// Constructor is set for constructors.
	Constructor bool
	// Static is set for static methods.
	Static bool
	// Markers holds the method level markers.
	Markers Markers
	// Exclusion is resolved by the ExclusionPolicy.
	Exclusion Exclusion
}

// Ident returns a stable identifier in the form pkg.Class#name(ParamTypes).
func (m *Method) Ident() string {
	var sb strings.Builder
	if m.Class != nil {
		sb.WriteString(m.Class.QualifiedName())
	}
	sb.WriteByte('#')
	sb.WriteString(m.Name)
	sb.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.Type.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Timeout returns the effective Timeout marker, the method's own marker wins over the class.
func (m *Method) Timeout() *Timeout {
	if m.Markers.Timeout != nil {
		return m.Markers.Timeout
	}
	for c := m.Class; c != nil; c = c.Outer {
		if c.Markers.Timeout != nil {
			return c.Markers.Timeout
		}
	}
	return nil
}

// Unit is a compilation unit, the granularity of caching and of failure.
type Unit struct {
	// Name identifies the unit, typically the source path.
	Name string
	// Package is the dotted package name.
	Package string
	// Classes are the top-level classes.
	Classes []*Class
}

// CollectMethods returns every method declared by the class, its nested classes, and the local and anonymous classes
// declared inside method bodies. Anonymous classes are numbered in encounter order, yielding names like Outer$1.
func CollectMethods(c *Class) []*Method {
	var methods []*Method
	var visitClass func(c *Class)
	visitClass = func(c *Class) {
		for _, m := range c.Methods {
			if m.Class == nil {
				m.Class = c
			}
			methods = append(methods, m)
			if m.Body == nil {
				continue
			}
			Inspect(m.Body, func(n Node) bool {
				var local *Class
				switch n := n.(type) {
				case *New:
					local = n.Body
				case *ClassDeclStmt:
					local = n.Class
				}
				if local != nil {
					local.Local = true
					if local.Outer == nil {
						local.Outer = c
					}
					if local.OuterMethod == nil {
						local.OuterMethod = m
					}
					if local.Package == "" {
						local.Package = c.Package
					}
					if local.Name == "" {
						c.anonymousCount++
						local.Name = strconv.Itoa(c.anonymousCount)
					}
					visitClass(local)
				}
				return true
			})
		}
		for _, nested := range c.Nested {
			if nested.Outer == nil {
				nested.Outer = c
			}
			if nested.Package == "" {
				nested.Package = c.Package
			}
			visitClass(nested)
		}
	}
	visitClass(c)
	return methods
}
