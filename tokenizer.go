package main

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	keywordRegex         = regexp.MustCompile(`^(class|constructor|function|method|field|static|var|int|char|boolean|void|true|false|null|this|let|do|if|else|while|return)`)
	symbolRegex          = regexp.MustCompile(`^[\{\}\[\]\(\)\.\,\;\+\-\*\/\&\|\<\>\=\~]`)
	integerConstantRegex = regexp.MustCompile(`^\d+`)
	stringConstantRegex  = regexp.MustCompile(`^"[^"\n]*"`)
	identifierRegex      = regexp.MustCompile(`^[a-zA-Z_]\w*`)
	// Order matters: on equal match length the earlier regex wins, so
	// keywords beat identifiers of the same spelling.
	regexes = []*regexp.Regexp{keywordRegex, symbolRegex, integerConstantRegex, stringConstantRegex, identifierRegex}

	regexTokenTypeMapping = map[*regexp.Regexp]TokenType{
		keywordRegex:         KeywordToken,
		symbolRegex:          SymbolToken,
		integerConstantRegex: IntegerConstant,
		stringConstantRegex:  StringConstant,
		identifierRegex:      Identifier,
	}
)

func init() {
	for _, regex := range regexes {
		regex.Longest()
	}
}

// stripComments blanks out line and block comments. Newlines inside block
// comments are kept so token line numbers stay correct, and comment markers
// inside string constants are left alone.
func stripComments(source string) (string, error) {
	var (
		out      strings.Builder
		line     = 1
		inString bool
	)
	out.Grow(len(source))

	for i := 0; i < len(source); i++ {
		char := source[i]
		if char == '\n' {
			line++
			inString = false
			out.WriteByte(char)
			continue
		}
		if inString {
			if char == '"' {
				inString = false
			}
			out.WriteByte(char)
			continue
		}
		if char == '"' {
			inString = true
			out.WriteByte(char)
			continue
		}
		if char != '/' || i+1 >= len(source) {
			out.WriteByte(char)
			continue
		}

		switch source[i+1] {
		case '/':
			// Discard until newline character
			end := strings.IndexByte(source[i:], '\n')
			if end < 0 {
				return out.String(), nil
			}
			out.WriteByte(' ')
			i += end - 1
		case '*':
			end := strings.Index(source[i+2:], "*/")
			if end < 0 {
				return "", &LexicalError{Line: line, Lexeme: "/*", Reason: "unclosed comment"}
			}
			comment := source[i : i+2+end+2]
			newlines := strings.Count(comment, "\n")
			line += newlines
			out.WriteByte(' ')
			out.WriteString(strings.Repeat("\n", newlines))
			i += len(comment) - 1
		default:
			out.WriteByte(char)
		}
	}

	return out.String(), nil
}

func matchToken(rest string) (*regexp.Regexp, string) {
	var (
		bestRegex *regexp.Regexp
		best      string
	)
	for _, regex := range regexes {
		if match := regex.FindString(rest); len(match) > len(best) {
			bestRegex = regex
			best = match
		}
	}
	return bestRegex, best
}

// unknownLexeme returns the run of non-space characters starting rest, for
// error messages.
func unknownLexeme(rest string) string {
	end := strings.IndexAny(rest, " \t\r\n")
	if end < 0 {
		return rest
	}
	return rest[:end]
}

func inWordRange(integer string) bool {
	value, err := strconv.Atoi(integer)
	return err == nil && value <= MaxIntegerConstant
}

// Tokenize classifies the complete source in one go.
func Tokenize(source string) ([]Token, error) {
	filtered, err := stripComments(source)
	if err != nil {
		return nil, err
	}

	var tokens []Token
	line := 1
	for pos := 0; pos < len(filtered); {
		switch filtered[pos] {
		case '\n':
			line++
			pos++
			continue
		case ' ', '\t', '\r', '\f', '\v':
			pos++
			continue
		}

		rest := filtered[pos:]
		regex, match := matchToken(rest)
		if regex == nil {
			lexeme := unknownLexeme(rest)
			reason := "unknown token"
			if rest[0] == '"' {
				reason = "unterminated string constant"
			}
			return nil, &LexicalError{Line: line, Lexeme: lexeme, Reason: reason}
		}

		token := Token{tokenType: regexTokenTypeMapping[regex], terminal: match, line: line}
		if token.tokenType == IntegerConstant && !inWordRange(match) {
			return nil, &LexicalError{
				Line:   line,
				Lexeme: match,
				Reason: fmt.Sprintf("integer constant out of range 0..%d", MaxIntegerConstant),
			}
		}
		tokens = append(tokens, token)
		pos += len(match)
	}

	return tokens, nil
}

// Tokenizer is a cursor over the token stream with a put-back buffer of
// depth one.
type Tokenizer struct {
	tokens  []Token
	next    int
	current Token
	putBack bool
}

func NewTokenizer(r io.Reader) (*Tokenizer, error) {
	source, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	tokens, err := Tokenize(string(source))
	if err != nil {
		return nil, err
	}
	return &Tokenizer{tokens: tokens}, nil
}

func (t *Tokenizer) HasMoreTokens() bool {
	return t.next < len(t.tokens)
}

// Advance makes the next token current. Running past the end of the input is
// a syntax error: the grammar always expected something.
func (t *Tokenizer) Advance() error {
	if !t.HasMoreTokens() {
		last := Token{line: 1}
		if len(t.tokens) > 0 {
			last.line = t.tokens[len(t.tokens)-1].line
		}
		return &SyntaxError{Expected: "more tokens", Actual: last}
	}
	t.current = t.tokens[t.next]
	t.next++
	t.putBack = false
	return nil
}

// Unread re-presents the current token on the next Advance.
func (t *Tokenizer) Unread() {
	if t.putBack || t.next == 0 {
		panic("tokenizer: Unread without a preceding Advance")
	}
	t.next--
	t.putBack = true
	if t.next > 0 {
		t.current = t.tokens[t.next-1]
	} else {
		t.current = Token{}
	}
}

func (t *Tokenizer) Token() Token {
	return t.current
}

func (t *Tokenizer) Tokens() []Token {
	return t.tokens
}
