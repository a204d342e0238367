package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog"
)

// JackCompiler parses one class and emits VM code in the same pass. There is
// no syntax tree: every production writes its code as soon as it is
// recognized.
type JackCompiler struct {
	tokens  *Tokenizer
	writer  *VMWriter
	symbols *SymbolTable
	logger  zerolog.Logger

	className      string
	subroutineName string
	labelCounter   int
}

func NewJackCompiler(tokens *Tokenizer, writer *VMWriter, logger zerolog.Logger) *JackCompiler {
	return &JackCompiler{
		tokens:  tokens,
		writer:  writer,
		symbols: NewSymbolTable(),
		logger:  logger,
	}
}

// CompileSource compiles the class read from r and writes its VM code to w.
func CompileSource(r io.Reader, w io.Writer, logger zerolog.Logger) (className string, err error) {
	tokens, err := NewTokenizer(r)
	if err != nil {
		return "", err
	}
	compiler := NewJackCompiler(tokens, NewVMWriter(w), logger)
	if err := compiler.Compile(); err != nil {
		return compiler.ClassName(), err
	}
	return compiler.ClassName(), nil
}

// ClassName is the name of the class being compiled, empty until the class
// header has been read.
func (c *JackCompiler) ClassName() string {
	return c.className
}

// Compile compiles the class and flushes the output. After a failure the
// output written so far is incomplete and should be discarded.
func (c *JackCompiler) Compile() error {
	if err := c.compileClass(); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *JackCompiler) trace(production string) {
	c.logger.Trace().Str("class", c.className).Str("production", production).Msg("compiling")
}

func (c *JackCompiler) newLabel() string {
	label := c.className + "_" + strconv.Itoa(c.labelCounter)
	c.labelCounter++
	return label
}

func (c *JackCompiler) syntaxError(expected string) error {
	return &SyntaxError{Expected: expected, Actual: c.tokens.Token()}
}

func (c *JackCompiler) semanticError(name, reason string) error {
	return &SemanticError{Line: c.tokens.Token().Line(), Name: name, Reason: reason}
}

func (c *JackCompiler) expectSymbol(symbol byte) error {
	if err := c.tokens.Advance(); err != nil {
		return err
	}
	if !c.tokens.Token().isSymbol(symbol) {
		return c.syntaxError(fmt.Sprintf("%q", symbol))
	}
	return nil
}

func (c *JackCompiler) expectKeyword(keyword Keyword) error {
	if err := c.tokens.Advance(); err != nil {
		return err
	}
	if !c.tokens.Token().isKeyword(keyword) {
		return c.syntaxError(fmt.Sprintf("keyword %q", keyword))
	}
	return nil
}

func (c *JackCompiler) expectIdentifier(what string) (string, error) {
	if err := c.tokens.Advance(); err != nil {
		return "", err
	}
	if c.tokens.Token().Type() != Identifier {
		return "", c.syntaxError(what)
	}
	return c.tokens.Token().Identifier(), nil
}

// define declares name in the scope of kind, refusing a second declaration
// in the same scope.
func (c *JackCompiler) define(name, variableType string, kind SymbolKind) error {
	if c.symbols.DefinedInScope(name, kind) {
		return c.semanticError(name, "duplicate declaration")
	}
	symbol := c.symbols.Define(name, variableType, kind)
	c.logger.Trace().Str("class", c.className).Str("name", name).Str("type", variableType).
		Str("kind", string(kind)).Int("index", symbol.Index()).Msg("declared")
	return nil
}

func (c *JackCompiler) resolveVariable(name string) (Symbol, error) {
	symbol, ok := c.symbols.Lookup(name)
	if !ok {
		return Symbol{}, c.semanticError(name, "undefined variable")
	}
	return symbol, nil
}

func (c *JackCompiler) pushVariable(symbol Symbol) {
	c.writer.WritePush(symbol.Kind().Segment(), symbol.Index())
}

// 'class' className '{' classVarDec* subroutineDec* '}'
func (c *JackCompiler) compileClass() error {
	c.trace("class")
	if err := c.expectKeyword(ClassKeyword); err != nil {
		return err
	}
	className, err := c.expectIdentifier("class name")
	if err != nil {
		return err
	}
	c.className = className

	if err := c.expectSymbol('{'); err != nil {
		return err
	}
	if err := c.compileClassVarDecs(); err != nil {
		return err
	}
	if err := c.compileSubroutines(); err != nil {
		return err
	}
	if err := c.expectSymbol('}'); err != nil {
		return err
	}

	if c.tokens.HasMoreTokens() {
		_ = c.tokens.Advance()
		return c.syntaxError("end of input")
	}
	return nil
}

// ('static' | 'field') type varName (',' varName)* ';'
func (c *JackCompiler) compileClassVarDecs() error {
	for {
		if err := c.tokens.Advance(); err != nil {
			return err
		}
		token := c.tokens.Token()
		if !token.isKeyword(StaticKeyword, FieldKeyword) {
			c.tokens.Unread()
			return nil
		}
		c.trace("classVarDec")

		kind := FieldSymbol
		if token.Keyword() == StaticKeyword {
			kind = StaticSymbol
		}
		variableType, err := c.compileType()
		if err != nil {
			return err
		}
		if err := c.compileVarNames(variableType, kind); err != nil {
			return err
		}
	}
}

// varName (',' varName)* ';'
func (c *JackCompiler) compileVarNames(variableType string, kind SymbolKind) error {
	for {
		name, err := c.expectIdentifier("variable name")
		if err != nil {
			return err
		}
		if err := c.define(name, variableType, kind); err != nil {
			return err
		}

		if err := c.tokens.Advance(); err != nil {
			return err
		}
		token := c.tokens.Token()
		switch {
		case token.isSymbol(';'):
			return nil
		case token.isSymbol(','):
			continue
		default:
			return c.syntaxError("',' or ';'")
		}
	}
}

// 'int' | 'char' | 'boolean' | className
func (c *JackCompiler) compileType() (string, error) {
	if err := c.tokens.Advance(); err != nil {
		return "", err
	}
	token := c.tokens.Token()
	if token.isKeyword(IntKeyword, CharKeyword, BooleanKeyword) {
		return string(token.Keyword()), nil
	}
	if token.Type() == Identifier {
		return token.Identifier(), nil
	}
	return "", c.syntaxError("type")
}

func (c *JackCompiler) compileSubroutines() error {
	for {
		if err := c.tokens.Advance(); err != nil {
			return err
		}
		token := c.tokens.Token()
		if token.isSymbol('}') {
			c.tokens.Unread()
			return nil
		}
		if !token.isKeyword(ConstructorKeyword, FunctionKeyword, MethodKeyword) {
			return c.syntaxError("'constructor', 'function', 'method' or '}'")
		}
		if err := c.compileSubroutine(token.Keyword()); err != nil {
			return err
		}
	}
}

// ('constructor' | 'function' | 'method') ('void' | type) subroutineName
// '(' parameterList ')' subroutineBody
func (c *JackCompiler) compileSubroutine(kind Keyword) error {
	c.trace("subroutineDec")
	c.symbols.StartSubroutine()
	if kind == MethodKeyword {
		c.symbols.Define("this", c.className, ArgumentSymbol)
	}

	if err := c.tokens.Advance(); err != nil {
		return err
	}
	if !c.tokens.Token().isKeyword(VoidKeyword) {
		c.tokens.Unread()
		if _, err := c.compileType(); err != nil {
			return err
		}
	}

	name, err := c.expectIdentifier("subroutine name")
	if err != nil {
		return err
	}
	c.subroutineName = name

	if err := c.expectSymbol('('); err != nil {
		return err
	}
	if err := c.compileParameterList(); err != nil {
		return err
	}
	if err := c.expectSymbol(')'); err != nil {
		return err
	}
	return c.compileSubroutineBody(kind)
}

// ((type varName) (',' type varName)*)?
func (c *JackCompiler) compileParameterList() error {
	c.trace("parameterList")
	if err := c.tokens.Advance(); err != nil {
		return err
	}
	if c.tokens.Token().isSymbol(')') {
		c.tokens.Unread()
		return nil
	}
	c.tokens.Unread()

	for {
		variableType, err := c.compileType()
		if err != nil {
			return err
		}
		name, err := c.expectIdentifier("parameter name")
		if err != nil {
			return err
		}
		if err := c.define(name, variableType, ArgumentSymbol); err != nil {
			return err
		}

		if err := c.tokens.Advance(); err != nil {
			return err
		}
		token := c.tokens.Token()
		switch {
		case token.isSymbol(','):
			continue
		case token.isSymbol(')'):
			c.tokens.Unread()
			return nil
		default:
			return c.syntaxError("',' or ')'")
		}
	}
}

// '{' varDec* statements '}'
func (c *JackCompiler) compileSubroutineBody(kind Keyword) error {
	if err := c.expectSymbol('{'); err != nil {
		return err
	}
	if err := c.compileVarDecs(); err != nil {
		return err
	}
	c.writeFunctionDec(kind)
	if err := c.compileStatements(); err != nil {
		return err
	}
	return c.expectSymbol('}')
}

// writeFunctionDec needs the local count, so it runs after the var
// declarations and before the first statement.
func (c *JackCompiler) writeFunctionDec(kind Keyword) {
	nlocals := c.symbols.VarCount(LocalSymbol)
	c.writer.WriteFunction(c.className+"."+c.subroutineName, nlocals)

	switch kind {
	case ConstructorKeyword:
		c.writer.WritePush(ConstVMSegment, c.symbols.VarCount(FieldSymbol))
		c.writer.WriteCall("Memory.alloc", 1)
		c.writer.WritePop(PointerVMSegment, 0)
	case MethodKeyword:
		c.writer.WritePush(ArgumentVMSegment, 0)
		c.writer.WritePop(PointerVMSegment, 0)
	}

	c.logger.Debug().Str("class", c.className).Str("subroutine", c.subroutineName).
		Str("kind", string(kind)).Int("locals", nlocals).Msg("compiling subroutine")
}

// ('var' type varName (',' varName)* ';')*
func (c *JackCompiler) compileVarDecs() error {
	for {
		if err := c.tokens.Advance(); err != nil {
			return err
		}
		if !c.tokens.Token().isKeyword(VarKeyword) {
			c.tokens.Unread()
			return nil
		}
		c.trace("varDec")

		variableType, err := c.compileType()
		if err != nil {
			return err
		}
		if err := c.compileVarNames(variableType, LocalSymbol); err != nil {
			return err
		}
	}
}

// Compiles statements up to, but not including, the closing '}'.
func (c *JackCompiler) compileStatements() error {
	for {
		if err := c.tokens.Advance(); err != nil {
			return err
		}
		token := c.tokens.Token()
		if token.isSymbol('}') {
			c.tokens.Unread()
			return nil
		}
		if !token.isKeyword(LetKeyword, IfKeyword, WhileKeyword, DoKeyword, ReturnKeyword) {
			return c.syntaxError("statement or '}'")
		}

		var err error
		switch token.Keyword() {
		case LetKeyword:
			err = c.compileLet()
		case IfKeyword:
			err = c.compileIf()
		case WhileKeyword:
			err = c.compileWhile()
		case DoKeyword:
			err = c.compileDo()
		case ReturnKeyword:
			err = c.compileReturn()
		}
		if err != nil {
			return err
		}
	}
}

// '{' statements '}'
func (c *JackCompiler) compileBlock() error {
	if err := c.expectSymbol('{'); err != nil {
		return err
	}
	if err := c.compileStatements(); err != nil {
		return err
	}
	return c.expectSymbol('}')
}

// '(' expression ')'
func (c *JackCompiler) compileCondition() error {
	if err := c.expectSymbol('('); err != nil {
		return err
	}
	if err := c.compileExpression(); err != nil {
		return err
	}
	return c.expectSymbol(')')
}

// 'let' varName ('[' expression ']')? '=' expression ';'
func (c *JackCompiler) compileLet() error {
	c.trace("letStatement")
	name, err := c.expectIdentifier("variable name")
	if err != nil {
		return err
	}
	target, err := c.resolveVariable(name)
	if err != nil {
		return err
	}

	if err := c.tokens.Advance(); err != nil {
		return err
	}
	token := c.tokens.Token()
	switch {
	case token.isSymbol('='):
		if err := c.compileExpression(); err != nil {
			return err
		}
		if err := c.expectSymbol(';'); err != nil {
			return err
		}
		c.writer.WritePop(target.Kind().Segment(), target.Index())
		return nil
	case token.isSymbol('['):
	default:
		return c.syntaxError("'[' or '='")
	}

	// The element address is computed before the right hand side, which may
	// itself use pointer 1.
	c.pushVariable(target)
	if err := c.compileExpression(); err != nil {
		return err
	}
	if err := c.expectSymbol(']'); err != nil {
		return err
	}
	c.writer.WriteArithmetic(AddVMOperation)

	if err := c.expectSymbol('='); err != nil {
		return err
	}
	if err := c.compileExpression(); err != nil {
		return err
	}
	if err := c.expectSymbol(';'); err != nil {
		return err
	}

	c.writer.WritePop(TempVMSegment, 0)
	c.writer.WritePop(PointerVMSegment, 1)
	c.writer.WritePush(TempVMSegment, 0)
	c.writer.WritePop(ThatVMSegment, 0)
	return nil
}

// 'if' '(' expression ')' '{' statements '}' ('else' '{' statements '}')?
func (c *JackCompiler) compileIf() error {
	c.trace("ifStatement")
	elseLabel := c.newLabel()
	endLabel := c.newLabel()

	if err := c.compileCondition(); err != nil {
		return err
	}
	c.writer.WriteArithmetic(NotVMOperation)
	c.writer.WriteIf(elseLabel)
	if err := c.compileBlock(); err != nil {
		return err
	}
	c.writer.WriteGoto(endLabel)
	c.writer.WriteLabel(elseLabel)

	if err := c.tokens.Advance(); err != nil {
		return err
	}
	if c.tokens.Token().isKeyword(ElseKeyword) {
		if err := c.compileBlock(); err != nil {
			return err
		}
	} else {
		c.tokens.Unread()
	}

	c.writer.WriteLabel(endLabel)
	return nil
}

// 'while' '(' expression ')' '{' statements '}'
func (c *JackCompiler) compileWhile() error {
	c.trace("whileStatement")
	topLabel := c.newLabel()
	bottomLabel := c.newLabel()

	c.writer.WriteLabel(topLabel)
	if err := c.compileCondition(); err != nil {
		return err
	}
	c.writer.WriteArithmetic(NotVMOperation)
	c.writer.WriteIf(bottomLabel)
	if err := c.compileBlock(); err != nil {
		return err
	}
	c.writer.WriteGoto(topLabel)
	c.writer.WriteLabel(bottomLabel)
	return nil
}

// 'do' subroutineCall ';'
func (c *JackCompiler) compileDo() error {
	c.trace("doStatement")
	name, err := c.expectIdentifier("subroutine, class or variable name")
	if err != nil {
		return err
	}
	if err := c.compileSubroutineCall(name); err != nil {
		return err
	}
	if err := c.expectSymbol(';'); err != nil {
		return err
	}
	// Every subroutine returns a value, void ones included.
	c.writer.WritePop(TempVMSegment, 0)
	return nil
}

// 'return' expression? ';'
func (c *JackCompiler) compileReturn() error {
	c.trace("returnStatement")
	if err := c.tokens.Advance(); err != nil {
		return err
	}
	if c.tokens.Token().isSymbol(';') {
		c.writer.WritePush(ConstVMSegment, 0)
	} else {
		c.tokens.Unread()
		if err := c.compileExpression(); err != nil {
			return err
		}
		if err := c.expectSymbol(';'); err != nil {
			return err
		}
	}
	c.writer.WriteReturn()
	return nil
}

// term (op term)*
//
// Operators have no precedence: each one is applied as soon as its right
// operand is on the stack, so a+b*c computes (a+b)*c.
func (c *JackCompiler) compileExpression() error {
	c.trace("expression")
	if err := c.compileTerm(); err != nil {
		return err
	}
	for {
		if err := c.tokens.Advance(); err != nil {
			return err
		}
		token := c.tokens.Token()
		if token.Type() != SymbolToken {
			c.tokens.Unread()
			return nil
		}
		operation, ok := binaryOperations[token.Symbol()]
		if !ok {
			c.tokens.Unread()
			return nil
		}
		if err := c.compileTerm(); err != nil {
			return err
		}
		c.writer.WriteArithmetic(operation)
	}
}

func (c *JackCompiler) compileTerm() error {
	c.trace("term")
	if err := c.tokens.Advance(); err != nil {
		return err
	}
	token := c.tokens.Token()

	switch token.Type() {
	case IntegerConstant:
		c.writer.WritePush(ConstVMSegment, token.IntVal())
		return nil
	case StringConstant:
		c.writer.WriteStringConstant(token.StringVal())
		return nil
	case KeywordToken:
		return c.compileKeywordConstant(token)
	case Identifier:
		return c.compileIdentifierTerm(token.Identifier())
	case SymbolToken:
		switch token.Symbol() {
		case '(':
			if err := c.compileExpression(); err != nil {
				return err
			}
			return c.expectSymbol(')')
		case '-':
			if err := c.compileTerm(); err != nil {
				return err
			}
			c.writer.WriteArithmetic(NegVMOperation)
			return nil
		case '~':
			if err := c.compileTerm(); err != nil {
				return err
			}
			c.writer.WriteArithmetic(NotVMOperation)
			return nil
		}
	}
	return c.syntaxError("term")
}

// 'true' | 'false' | 'null' | 'this'
func (c *JackCompiler) compileKeywordConstant(token Token) error {
	switch token.Keyword() {
	case TrueKeyword:
		c.writer.WritePush(ConstVMSegment, 1)
		c.writer.WriteArithmetic(NegVMOperation)
	case FalseKeyword, NullKeyword:
		c.writer.WritePush(ConstVMSegment, 0)
	case ThisKeyword:
		c.writer.WritePush(PointerVMSegment, 0)
	default:
		return c.syntaxError("keyword constant")
	}
	return nil
}

// varName | varName '[' expression ']' | subroutineCall
func (c *JackCompiler) compileIdentifierTerm(name string) error {
	if err := c.tokens.Advance(); err != nil {
		return err
	}
	token := c.tokens.Token()

	switch {
	case token.isSymbol('['):
		symbol, err := c.resolveVariable(name)
		if err != nil {
			return err
		}
		c.pushVariable(symbol)
		if err := c.compileExpression(); err != nil {
			return err
		}
		if err := c.expectSymbol(']'); err != nil {
			return err
		}
		c.writer.WriteArithmetic(AddVMOperation)
		c.writer.WritePop(PointerVMSegment, 1)
		c.writer.WritePush(ThatVMSegment, 0)
		return nil
	case token.isSymbol('('), token.isSymbol('.'):
		c.tokens.Unread()
		return c.compileSubroutineCall(name)
	}

	c.tokens.Unread()
	symbol, err := c.resolveVariable(name)
	if err != nil {
		return err
	}
	c.pushVariable(symbol)
	return nil
}

// subroutineName '(' expressionList ')' |
// (className | varName) '.' subroutineName '(' expressionList ')'
//
// name has already been consumed.
func (c *JackCompiler) compileSubroutineCall(name string) error {
	c.trace("subroutineCall")
	if err := c.tokens.Advance(); err != nil {
		return err
	}
	token := c.tokens.Token()

	var (
		function string
		nargs    int
	)
	switch {
	case token.isSymbol('('):
		// Implicit receiver: a method of the current class.
		c.writer.WritePush(PointerVMSegment, 0)
		function = c.className + "." + name
		nargs = 1
		c.tokens.Unread()
	case token.isSymbol('.'):
		subroutineName, err := c.expectIdentifier("subroutine name")
		if err != nil {
			return err
		}
		symbol, ok := c.symbols.Lookup(name)
		switch {
		case !ok:
			function = name + "." + subroutineName
		case isPrimitiveType(symbol.Type()):
			return c.semanticError(name, fmt.Sprintf("cannot call %q on a value of primitive type %s", subroutineName, symbol.Type()))
		default:
			c.pushVariable(symbol)
			function = symbol.Type() + "." + subroutineName
			nargs = 1
		}
	default:
		return c.syntaxError("'(' or '.'")
	}

	if err := c.expectSymbol('('); err != nil {
		return err
	}
	count, err := c.compileExpressionList()
	if err != nil {
		return err
	}
	if err := c.expectSymbol(')'); err != nil {
		return err
	}
	c.writer.WriteCall(function, nargs+count)
	return nil
}

// (expression (',' expression)*)?
func (c *JackCompiler) compileExpressionList() (int, error) {
	c.trace("expressionList")
	if err := c.tokens.Advance(); err != nil {
		return 0, err
	}
	if c.tokens.Token().isSymbol(')') {
		c.tokens.Unread()
		return 0, nil
	}
	c.tokens.Unread()

	count := 0
	for {
		if err := c.compileExpression(); err != nil {
			return 0, err
		}
		count++

		if err := c.tokens.Advance(); err != nil {
			return 0, err
		}
		if !c.tokens.Token().isSymbol(',') {
			c.tokens.Unread()
			return count, nil
		}
	}
}
