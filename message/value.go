package message

import (
	"fmt"
	"strings"
)

// Kind tags the variant held by a Value or described by a Type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindString
	KindFloat
	KindBool
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindRecord:
		return "record"
	default:
		return "invalid"
	}
}

// Field is a named member of a record type.
type Field struct {
	Name string
	Type Type
}

// Type describes a parameter or return type. Scalars only set Kind; records
// also carry a Name and their ordered Fields.
type Type struct {
	Kind   Kind
	Name   string
	Fields []Field
}

var (
	Int    = Type{Kind: KindInt}
	String = Type{Kind: KindString}
	Float  = Type{Kind: KindFloat}
	Bool   = Type{Kind: KindBool}
)

// Record declares a structured type.
func Record(name string, fields ...Field) Type {
	return Type{Kind: KindRecord, Name: name, Fields: fields}
}

// IsZero reports whether the type was never set.
func (t Type) IsZero() bool {
	return t.Kind == KindInvalid
}

func (t Type) String() string {
	if t.Kind == KindRecord {
		return t.Name
	}
	return t.Kind.String()
}

// XSD returns the qualified XML Schema name used in xsi:type attributes and in
// the contract document. Records live in the service namespace (tns).
func (t Type) XSD() string {
	switch t.Kind {
	case KindInt:
		return "xsd:int"
	case KindString:
		return "xsd:string"
	case KindFloat:
		return "xsd:double"
	case KindBool:
		return "xsd:boolean"
	case KindRecord:
		return "tns:" + t.Name
	default:
		return "xsd:anyType"
	}
}

// FieldValue is a named member of a record value.
type FieldValue struct {
	Name  string
	Value Value
}

// Value is a tagged variant over the supported wire types. The zero Value is
// invalid.
type Value struct {
	kind     Kind
	i        int64
	s        string
	f        float64
	b        bool
	typeName string
	fields   []FieldValue
}

func IntValue(v int64) Value     { return Value{kind: KindInt, i: v} }
func StringValue(v string) Value { return Value{kind: KindString, s: v} }
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }
func BoolValue(v bool) Value     { return Value{kind: KindBool, b: v} }

// RecordValue builds a structured value. typeName may be empty when the
// sender did not say which record type it meant.
func RecordValue(typeName string, fields ...FieldValue) Value {
	return Value{kind: KindRecord, typeName: typeName, fields: fields}
}

func (v Value) Kind() Kind           { return v.kind }
func (v Value) IsValid() bool        { return v.kind != KindInvalid }
func (v Value) Int() int64           { return v.i }
func (v Value) Str() string          { return v.s }
func (v Value) Float() float64       { return v.f }
func (v Value) Bool() bool           { return v.b }
func (v Value) TypeName() string     { return v.typeName }
func (v Value) Fields() []FieldValue { return v.fields }

// Field returns the named member of a record value.
func (v Value) Field(name string) (Value, bool) {
	for _, f := range v.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Conforms reports whether v can be passed where t is declared. Records must
// carry exactly the declared fields, in any order, each conforming to its
// declared type.
func (v Value) Conforms(t Type) bool {
	if v.kind != t.Kind {
		return false
	}
	if t.Kind != KindRecord {
		return true
	}
	if v.typeName != "" && v.typeName != t.Name {
		return false
	}
	if len(v.fields) != len(t.Fields) {
		return false
	}
	for _, decl := range t.Fields {
		fv, ok := v.Field(decl.Name)
		if !ok || !fv.Conforms(decl.Type) {
			return false
		}
	}
	return true
}

// Equal compares two values structurally. Record type names are ignored.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindString:
		return v.s == o.s
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindRecord:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Name != o.fields[i].Name || !v.fields[i].Value.Equal(o.fields[i].Value) {
				return false
			}
		}
		return true
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindRecord:
		parts := make([]string, len(v.fields))
		for i, f := range v.fields {
			parts[i] = f.Name + ": " + f.Value.String()
		}
		return v.typeName + "{" + strings.Join(parts, ", ") + "}"
	}
	return "<invalid>"
}
