package main

type SymbolKind string

const (
	StaticSymbol   SymbolKind = "static"
	FieldSymbol    SymbolKind = "field"
	ArgumentSymbol SymbolKind = "argument"
	LocalSymbol    SymbolKind = "local"
	NoSymbol       SymbolKind = ""
)

func (k SymbolKind) Scope() Scope {
	if k == StaticSymbol || k == FieldSymbol {
		return ClassScope
	}
	return FunctionScope
}

// Segment is the VM memory segment variables of this kind live in.
func (k SymbolKind) Segment() VMSegmentType {
	switch k {
	case StaticSymbol:
		return StaticVMSegment
	case FieldSymbol:
		return ThisVMSegment
	case ArgumentSymbol:
		return ArgumentVMSegment
	case LocalSymbol:
		return LocalVMSegment
	}
	return InvalidVMSegmentType
}

type Symbol struct {
	kind         SymbolKind
	variableType string
	index        int
}

// notFound is returned by lookups of undeclared names.
var notFound = Symbol{kind: NoSymbol, variableType: "", index: -1}

func (s Symbol) Kind() SymbolKind { return s.kind }

func (s Symbol) Type() string { return s.variableType }

func (s Symbol) Index() int { return s.index }

func isPrimitiveType(variableType string) bool {
	switch Keyword(variableType) {
	case IntKeyword, CharKeyword, BooleanKeyword, VoidKeyword:
		return true
	}
	return false
}
