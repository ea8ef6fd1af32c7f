// Package contract builds the read-only ServiceContract: the set of operations
// a service exposes, each with its declared parameters and return type.
//
// Operations are registered explicitly with a descriptor and a handler, so the
// contract is exactly what can be invoked:
//
//	c, err := contract.NewBuilder("Arith").
//		Register(contract.Op("add", message.Int, add,
//			contract.Param("a", message.Int),
//			contract.Param("b", message.Int))).
//		Build("https://soap.example.org/arith")
//
// Build validates every descriptor and fails with a RegistryError before any
// request can be served.
package contract

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"sort"

	"mini-soap/message"
)

// ParameterDescriptor names one declared parameter.
type ParameterDescriptor struct {
	Name string
	Type message.Type
}

// OperationDescriptor is the public shape of an operation.
type OperationDescriptor struct {
	Name    string
	Params  []ParameterDescriptor
	Returns message.Type
	Doc     string
}

// HandlerFunc implements an operation. args are already checked against the
// descriptor and ordered as declared.
type HandlerFunc func(ctx context.Context, args Args) (message.Value, error)

// Operation binds a descriptor to its implementation.
type Operation struct {
	OperationDescriptor
	Handler HandlerFunc
}

// Param declares a parameter.
func Param(name string, t message.Type) ParameterDescriptor {
	return ParameterDescriptor{Name: name, Type: t}
}

// Op declares an operation.
func Op(name string, returns message.Type, h HandlerFunc, params ...ParameterDescriptor) Operation {
	return Operation{
		OperationDescriptor: OperationDescriptor{Name: name, Params: params, Returns: returns},
		Handler:             h,
	}
}

// WithDoc returns a copy of op carrying a documentation string for the
// contract document.
func (op Operation) WithDoc(doc string) Operation {
	op.Doc = doc
	return op
}

// Contract is the immutable result of Build. It is safe for concurrent use.
type Contract struct {
	name        string
	baseAddress string
	ops         map[string]Operation
	names       []string
	records     []message.Type
}

// Name is the service name used in the contract document.
func (c *Contract) Name() string { return c.name }

// BaseAddress is the URI clients post to. It doubles as the target namespace.
func (c *Contract) BaseAddress() string { return c.baseAddress }

// Namespace is the XML namespace of operation elements and record types.
func (c *Contract) Namespace() string { return c.baseAddress }

// Lookup resolves an operation by exact name.
func (c *Contract) Lookup(name string) (Operation, bool) {
	op, ok := c.ops[name]
	return op, ok
}

// Operations returns every descriptor sorted by name.
func (c *Contract) Operations() []OperationDescriptor {
	out := make([]OperationDescriptor, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.ops[name].OperationDescriptor)
	}
	return out
}

// Records returns every record type referenced by the contract, sorted by
// name and deduplicated.
func (c *Contract) Records() []message.Type {
	return append([]message.Type(nil), c.records...)
}

// Builder collects operations until Build.
type Builder struct {
	name string
	ops  []Operation
}

// NewBuilder starts a contract for the named service.
func NewBuilder(serviceName string) *Builder {
	return &Builder{name: serviceName}
}

// Register adds operations. Validation is deferred to Build.
func (b *Builder) Register(ops ...Operation) *Builder {
	b.ops = append(b.ops, ops...)
	return b
}

var ncName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

// Build validates all registered operations and freezes them into a Contract.
// All problems are reported together, each as a RegistryError.
func (b *Builder) Build(baseAddress string) (*Contract, error) {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, message.Errorf(message.RegistryError, format, args...))
	}

	if !ncName.MatchString(b.name) {
		fail("service name %q is not a valid XML name", b.name)
	}
	u, err := url.Parse(baseAddress)
	if err != nil || u.Scheme == "" || u.Host == "" {
		fail("base address %q is not an absolute URI", baseAddress)
	}

	c := &Contract{
		name:        b.name,
		baseAddress: baseAddress,
		ops:         make(map[string]Operation, len(b.ops)),
	}
	records := make(map[string]message.Type)

	for _, op := range b.ops {
		if !ncName.MatchString(op.Name) {
			fail("operation name %q is not a valid XML name", op.Name)
			continue
		}
		if _, dup := c.ops[op.Name]; dup {
			fail("operation %q registered twice", op.Name)
			continue
		}
		if op.Handler == nil {
			fail("operation %q has no handler", op.Name)
		}
		seen := make(map[string]bool, len(op.Params))
		for i, p := range op.Params {
			switch {
			case p.Name == "":
				fail("operation %q: parameter %d has no name", op.Name, i)
			case !ncName.MatchString(p.Name):
				fail("operation %q: parameter name %q is not a valid XML name", op.Name, p.Name)
			case seen[p.Name]:
				fail("operation %q: parameter %q declared twice", op.Name, p.Name)
			}
			seen[p.Name] = true
			if p.Type.IsZero() {
				fail("operation %q: parameter %q has no type", op.Name, p.Name)
				continue
			}
			for _, msg := range collectRecords(p.Type, records) {
				fail("operation %q: parameter %q: %s", op.Name, p.Name, msg)
			}
		}
		if op.Returns.IsZero() {
			fail("operation %q has no return type", op.Name)
		} else {
			for _, msg := range collectRecords(op.Returns, records) {
				fail("operation %q: return type: %s", op.Name, msg)
			}
		}

		frozen := op
		frozen.Params = append([]ParameterDescriptor(nil), op.Params...)
		c.ops[op.Name] = frozen
		c.names = append(c.names, op.Name)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sort.Strings(c.names)
	for _, t := range records {
		c.records = append(c.records, t)
	}
	sort.Slice(c.records, func(i, j int) bool {
		return c.records[i].Name < c.records[j].Name
	})
	return c, nil
}

// collectRecords walks t and registers every record type it contains. It
// returns a message per problem found.
func collectRecords(t message.Type, records map[string]message.Type) []string {
	if t.Kind != message.KindRecord {
		if t.Kind == message.KindInvalid {
			return []string{"missing type"}
		}
		return nil
	}
	var problems []string
	if !ncName.MatchString(t.Name) {
		return []string{"record type name " + quote(t.Name) + " is not a valid XML name"}
	}
	if prev, ok := records[t.Name]; ok {
		if !sameType(prev, t) {
			problems = append(problems, "record type "+quote(t.Name)+" declared with different fields")
		}
		return problems
	}
	if len(t.Fields) == 0 {
		return []string{"record type " + quote(t.Name) + " has no fields"}
	}
	records[t.Name] = t
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if !ncName.MatchString(f.Name) || seen[f.Name] {
			problems = append(problems, "record type "+quote(t.Name)+": bad or duplicate field name "+quote(f.Name))
			continue
		}
		seen[f.Name] = true
		for _, p := range collectRecords(f.Type, records) {
			problems = append(problems, "record type "+quote(t.Name)+": field "+quote(f.Name)+": "+p)
		}
	}
	return problems
}

func sameType(a, b message.Type) bool {
	if a.Kind != b.Kind || a.Name != b.Name || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i].Name != b.Fields[i].Name || !sameType(a.Fields[i].Type, b.Fields[i].Type) {
			return false
		}
	}
	return true
}

func quote(s string) string {
	return `"` + s + `"`
}

// Bind maps each argument name to the index of the parameter it fills. When
// every name matches a distinct parameter the binding is by name; otherwise it
// is positional. -1 marks a surplus argument.
func (d OperationDescriptor) Bind(names []string) []int {
	idx := make(map[string]int, len(d.Params))
	for i, p := range d.Params {
		idx[p.Name] = i
	}
	out := make([]int, len(names))
	used := make(map[int]bool, len(names))
	byName := len(names) > 0
	for i, n := range names {
		j, ok := idx[n]
		if !ok || used[j] {
			byName = false
			break
		}
		used[j] = true
		out[i] = j
	}
	if byName {
		return out
	}
	for i := range names {
		if i < len(d.Params) {
			out[i] = i
		} else {
			out[i] = -1
		}
	}
	return out
}
