package main

import (
	"fmt"
	"strconv"
)

// MaxIntegerConstant is the largest literal the target machine can push.
const MaxIntegerConstant = 32767

type TokenType string

const (
	InvalidToken    TokenType = ""
	KeywordToken    TokenType = "keyword"
	SymbolToken     TokenType = "symbol"
	IntegerConstant TokenType = "integerConstant"
	StringConstant  TokenType = "stringConstant"
	Identifier      TokenType = "identifier"
)

type Keyword string

const (
	InvalidKeyword     Keyword = ""
	ClassKeyword       Keyword = "class"
	ConstructorKeyword Keyword = "constructor"
	FunctionKeyword    Keyword = "function"
	MethodKeyword      Keyword = "method"
	FieldKeyword       Keyword = "field"
	StaticKeyword      Keyword = "static"
	VarKeyword         Keyword = "var"
	IntKeyword         Keyword = "int"
	CharKeyword        Keyword = "char"
	BooleanKeyword     Keyword = "boolean"
	VoidKeyword        Keyword = "void"
	TrueKeyword        Keyword = "true"
	FalseKeyword       Keyword = "false"
	NullKeyword        Keyword = "null"
	ThisKeyword        Keyword = "this"
	LetKeyword         Keyword = "let"
	DoKeyword          Keyword = "do"
	IfKeyword          Keyword = "if"
	ElseKeyword        Keyword = "else"
	WhileKeyword       Keyword = "while"
	ReturnKeyword      Keyword = "return"
)

var keywords = map[string]Keyword{}

func init() {
	for _, kw := range []Keyword{
		ClassKeyword, ConstructorKeyword, FunctionKeyword, MethodKeyword,
		FieldKeyword, StaticKeyword, VarKeyword, IntKeyword, CharKeyword,
		BooleanKeyword, VoidKeyword, TrueKeyword, FalseKeyword, NullKeyword,
		ThisKeyword, LetKeyword, DoKeyword, IfKeyword, ElseKeyword,
		WhileKeyword, ReturnKeyword,
	} {
		keywords[string(kw)] = kw
	}
}

// Token is a classified lexeme. String constants keep their surrounding
// quotes in terminal; StringVal strips them.
type Token struct {
	tokenType TokenType
	terminal  string
	line      int
}

func (t Token) Type() TokenType { return t.tokenType }

func (t Token) Line() int { return t.line }

func (t Token) String() string {
	if t.tokenType == InvalidToken {
		return "end of input"
	}
	return fmt.Sprintf("%s %q", t.tokenType, t.terminal)
}

func (t Token) mustBe(tokenType TokenType) {
	if t.tokenType != tokenType {
		panic(fmt.Sprintf("token %s accessed as %s", t, tokenType))
	}
}

func (t Token) Keyword() Keyword {
	t.mustBe(KeywordToken)
	return keywords[t.terminal]
}

func (t Token) Symbol() byte {
	t.mustBe(SymbolToken)
	return t.terminal[0]
}

func (t Token) Identifier() string {
	t.mustBe(Identifier)
	return t.terminal
}

// IntVal is only valid for integer constants, which the tokenizer has already
// range checked.
func (t Token) IntVal() int {
	t.mustBe(IntegerConstant)
	value, err := strconv.Atoi(t.terminal)
	if err != nil {
		panic(fmt.Sprintf("integer constant %q: %v", t.terminal, err))
	}
	return value
}

func (t Token) StringVal() string {
	t.mustBe(StringConstant)
	return t.terminal[1 : len(t.terminal)-1]
}

func (t Token) isSymbol(symbol byte) bool {
	return t.tokenType == SymbolToken && t.terminal[0] == symbol
}

func (t Token) isKeyword(candidates ...Keyword) bool {
	if t.tokenType != KeywordToken {
		return false
	}
	kw := keywords[t.terminal]
	for _, candidate := range candidates {
		if kw == candidate {
			return true
		}
	}
	return false
}
