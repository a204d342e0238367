package main

type Scope string

const (
	FunctionScope Scope = "FunctionScope"
	ClassScope    Scope = "ClassScope"
)

// SymbolTable resolves names in two scopes. Subroutine names shadow class
// names of the same spelling.
type SymbolTable struct {
	classScopeTable    map[string]Symbol
	functionScopeTable map[string]Symbol
	counts             map[SymbolKind]int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		classScopeTable:    make(map[string]Symbol),
		functionScopeTable: make(map[string]Symbol),
		counts:             make(map[SymbolKind]int),
	}
}

func (s *SymbolTable) table(kind SymbolKind) map[string]Symbol {
	if kind.Scope() == ClassScope {
		return s.classScopeTable
	}
	return s.functionScopeTable
}

// Define registers name with the next free index of kind.
func (s *SymbolTable) Define(name, variableType string, kind SymbolKind) Symbol {
	symbol := Symbol{kind: kind, variableType: variableType, index: s.counts[kind]}
	s.counts[kind]++
	s.table(kind)[name] = symbol
	return symbol
}

// DefinedInScope reports whether name already exists in the scope kind
// belongs to.
func (s *SymbolTable) DefinedInScope(name string, kind SymbolKind) bool {
	_, ok := s.table(kind)[name]
	return ok
}

// StartSubroutine drops the subroutine scope. Class scope is untouched.
func (s *SymbolTable) StartSubroutine() {
	s.functionScopeTable = make(map[string]Symbol)
	s.counts[ArgumentSymbol] = 0
	s.counts[LocalSymbol] = 0
}

func (s *SymbolTable) Lookup(name string) (Symbol, bool) {
	if symbol, ok := s.functionScopeTable[name]; ok {
		return symbol, true
	}
	if symbol, ok := s.classScopeTable[name]; ok {
		return symbol, true
	}
	return notFound, false
}

func (s *SymbolTable) KindOf(name string) SymbolKind {
	symbol, _ := s.Lookup(name)
	return symbol.kind
}

func (s *SymbolTable) TypeOf(name string) string {
	symbol, _ := s.Lookup(name)
	return symbol.variableType
}

func (s *SymbolTable) IndexOf(name string) int {
	symbol, _ := s.Lookup(name)
	return symbol.index
}

func (s *SymbolTable) VarCount(kind SymbolKind) int {
	return s.counts[kind]
}
