package main

import "fmt"

// LexicalError reports a lexeme the tokenizer cannot classify.
type LexicalError struct {
	Line   int
	Lexeme string
	Reason string
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Lexeme)
}

// SyntaxError reports a token that does not fit the grammar production being
// compiled.
type SyntaxError struct {
	Expected string
	Actual   Token
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: expected %s, got %s", e.Actual.line, e.Expected, e.Actual)
}

// SemanticError reports a well-formed construct that cannot be compiled, such
// as a method call on a primitive or an undeclared variable.
type SemanticError struct {
	Line   int
	Name   string
	Reason string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Name)
}
