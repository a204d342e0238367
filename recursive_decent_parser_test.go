package main

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, source string) []string {
	t.Helper()
	var out strings.Builder
	_, err := CompileSource(strings.NewReader(source), &out, zerolog.Nop())
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
}

func compileError(t *testing.T, source string) error {
	t.Helper()
	var out strings.Builder
	_, err := CompileSource(strings.NewReader(source), &out, zerolog.Nop())
	require.Error(t, err)
	return err
}

// inMain wraps declarations and statements in "function void main()" of
// class Main.
func inMain(varDecs, statements string) string {
	return "class Main {\n  function void main() {\n" + varDecs + "\n" + statements + "\n  return;\n  }\n}\n"
}

// mainBody returns the code between the function header and the trailing
// void return.
func mainBody(t *testing.T, lines []string) []string {
	t.Helper()
	require.GreaterOrEqual(t, len(lines), 3)
	require.True(t, strings.HasPrefix(lines[0], "function Main.main "), lines[0])
	require.Equal(t, []string{"push constant 0", "return"}, lines[len(lines)-2:])
	return lines[1 : len(lines)-2]
}

func TestCompileClassStructure(t *testing.T) {

	t.Run("empty class", func(t *testing.T) {
		var out strings.Builder
		className, err := CompileSource(strings.NewReader("class Empty { }"), &out, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, "Empty", className)
		assert.Empty(t, out.String())
	})

	t.Run("function header counts locals", func(t *testing.T) {
		lines := compile(t, inMain("var int a, b; var char c;", ""))
		assert.Equal(t, "function Main.main 3", lines[0])
	})

	t.Run("subroutines compile in order", func(t *testing.T) {
		lines := compile(t, `class A {
			function void f() { return; }
			function int g() { return 1; }
		}`)
		assert.Equal(t, []string{
			"function A.f 0",
			"push constant 0",
			"return",
			"function A.g 0",
			"push constant 1",
			"return",
		}, lines)
	})
}

func TestCompilerClassName(t *testing.T) {
	var out strings.Builder
	tokens, err := NewTokenizer(strings.NewReader("class Square { }"))
	require.NoError(t, err)

	compiler := NewJackCompiler(tokens, NewVMWriter(&out), zerolog.Nop())
	assert.Empty(t, compiler.ClassName())
	require.NoError(t, compiler.Compile())
	assert.Equal(t, "Square", compiler.ClassName())

	className, err := CompileSource(strings.NewReader("class Square { }"), &out, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "Square", className)

	className, err = CompileSource(strings.NewReader("class Broken {"), &out, zerolog.Nop())
	assert.Error(t, err)
	assert.Equal(t, "Broken", className)
}

func TestCompilePrologues(t *testing.T) {

	t.Run("constructor allocates its fields", func(t *testing.T) {
		lines := compile(t, `class Point {
			field int x, y;
			field int z;
			static int count;
			constructor Point new() {
				return this;
			}
		}`)
		assert.Equal(t, []string{
			"function Point.new 0",
			"push constant 3",
			"call Memory.alloc 1",
			"pop pointer 0",
			"push pointer 0",
			"return",
		}, lines)
	})

	t.Run("method binds its receiver", func(t *testing.T) {
		lines := compile(t, `class Point {
			field int x;
			method int plus(int a, int b) {
				var int sum;
				let sum = a + b + x;
				return sum;
			}
		}`)
		assert.Equal(t, []string{
			"function Point.plus 1",
			"push argument 0",
			"pop pointer 0",
			"push argument 1",
			"push argument 2",
			"add",
			"push this 0",
			"add",
			"pop local 0",
			"push local 0",
			"return",
		}, lines)
	})

	t.Run("function has no prologue", func(t *testing.T) {
		lines := compile(t, `class Util {
			function int id(int a) { return a; }
		}`)
		assert.Equal(t, []string{
			"function Util.id 0",
			"push argument 0",
			"return",
		}, lines)
	})
}

func TestCompileExpressions(t *testing.T) {

	t.Run("operators apply left to right without precedence", func(t *testing.T) {
		lines := compile(t, `class Main { function int f() { return 2+3*4; } }`)
		assert.Equal(t, []string{
			"function Main.f 0",
			"push constant 2",
			"push constant 3",
			"add",
			"push constant 4",
			"call Math.multiply 2",
			"return",
		}, lines)
	})

	t.Run("parentheses group", func(t *testing.T) {
		lines := compile(t, `class Main { function int f() { return 2+(3*4); } }`)
		assert.Equal(t, []string{
			"function Main.f 0",
			"push constant 2",
			"push constant 3",
			"push constant 4",
			"call Math.multiply 2",
			"add",
			"return",
		}, lines)
	})

	testCases := []struct {
		expression string
		code       []string
	}{
		{"x - 1", []string{"push local 0", "push constant 1", "sub"}},
		{"x / 2", []string{"push local 0", "push constant 2", "call Math.divide 2"}},
		{"x & b", []string{"push local 0", "push local 1", "and"}},
		{"x | b", []string{"push local 0", "push local 1", "or"}},
		{"x < 1", []string{"push local 0", "push constant 1", "lt"}},
		{"x > 1", []string{"push local 0", "push constant 1", "gt"}},
		{"x = 1", []string{"push local 0", "push constant 1", "eq"}},
		{"-x", []string{"push local 0", "neg"}},
		{"~(x = 1)", []string{"push local 0", "push constant 1", "eq", "not"}},
		{"-x + 1", []string{"push local 0", "neg", "push constant 1", "add"}},
		{"true", []string{"push constant 1", "neg"}},
		{"false", []string{"push constant 0"}},
		{"null", []string{"push constant 0"}},
		{`"ok"`, []string{
			"push constant 2", "call String.new 1",
			"push constant 111", "call String.appendChar 2",
			"push constant 107", "call String.appendChar 2",
		}},
		{"a[x]", []string{"push local 2", "push local 0", "add", "pop pointer 1", "push that 0"}},
		{"a[a[x]]", []string{
			"push local 2",
			"push local 2", "push local 0", "add", "pop pointer 1", "push that 0",
			"add", "pop pointer 1", "push that 0",
		}},
		{"Math.max(x, 3)", []string{"push local 0", "push constant 3", "call Math.max 2"}},
		{"Keyboard.keyPressed()", []string{"call Keyboard.keyPressed 0"}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.expression, func(t *testing.T) {
			lines := compile(t, inMain("var int x; var boolean b; var Array a;", "let x = "+testCase.expression+";"))
			body := mainBody(t, lines)

			expected := append(append([]string{}, testCase.code...), "pop local 0")
			assert.Equal(t, expected, body)
		})
	}

	t.Run("this", func(t *testing.T) {
		lines := compile(t, `class Node { field Node next; method Node self() { return this; } }`)
		assert.Equal(t, []string{
			"function Node.self 0",
			"push argument 0",
			"pop pointer 0",
			"push pointer 0",
			"return",
		}, lines)
	})

	t.Run("variables resolve to their segments", func(t *testing.T) {
		lines := compile(t, `class Main {
			static int s;
			field int f;
			method int get(int a) {
				var int l;
				return s + f + a + l;
			}
		}`)
		assert.Equal(t, []string{
			"function Main.get 1",
			"push argument 0",
			"pop pointer 0",
			"push static 0",
			"push this 0",
			"add",
			"push argument 1",
			"add",
			"push local 0",
			"add",
			"return",
		}, lines)
	})
}

func TestCompileCalls(t *testing.T) {

	t.Run("method call on a field injects the receiver", func(t *testing.T) {
		lines := compile(t, `class Game {
			field Point p;
			method void step() {
				do p.move(5);
				return;
			}
		}`)
		assert.Equal(t, []string{
			"function Game.step 0",
			"push argument 0",
			"pop pointer 0",
			"push this 0",
			"push constant 5",
			"call Point.move 2",
			"pop temp 0",
			"push constant 0",
			"return",
		}, lines)
	})

	t.Run("method call on a local", func(t *testing.T) {
		body := mainBody(t, compile(t, inMain("var int n; var Point p;", "let n = p.distance(1, 2);")))
		assert.Equal(t, []string{
			"push local 1",
			"push constant 1",
			"push constant 2",
			"call Point.distance 3",
			"pop local 0",
		}, body)
	})

	t.Run("unresolved qualifier is a class name", func(t *testing.T) {
		body := mainBody(t, compile(t, inMain("", "do Output.printInt(5);")))
		assert.Equal(t, []string{
			"push constant 5",
			"call Output.printInt 1",
			"pop temp 0",
		}, body)
	})

	t.Run("implicit receiver call", func(t *testing.T) {
		lines := compile(t, `class Square {
			method void redraw() {
				do erase();
				do draw(1, 2);
				return;
			}
		}`)
		assert.Equal(t, []string{
			"function Square.redraw 0",
			"push argument 0",
			"pop pointer 0",
			"push pointer 0",
			"call Square.erase 1",
			"pop temp 0",
			"push pointer 0",
			"push constant 1",
			"push constant 2",
			"call Square.draw 3",
			"pop temp 0",
			"push constant 0",
			"return",
		}, lines)
	})

	t.Run("call arguments are full expressions", func(t *testing.T) {
		body := mainBody(t, compile(t, inMain("var int x;", "do Screen.drawPixel(x + 1, (x * 2) - 3);")))
		assert.Equal(t, []string{
			"push local 0",
			"push constant 1",
			"add",
			"push local 0",
			"push constant 2",
			"call Math.multiply 2",
			"push constant 3",
			"sub",
			"call Screen.drawPixel 2",
			"pop temp 0",
		}, body)
	})
}

func TestCompileStatements(t *testing.T) {

	t.Run("let", func(t *testing.T) {
		body := mainBody(t, compile(t, inMain("var int x, y;", "let y = x;")))
		assert.Equal(t, []string{"push local 0", "pop local 1"}, body)
	})

	t.Run("let array element", func(t *testing.T) {
		body := mainBody(t, compile(t, inMain("var Array a; var int i, x;", "let a[i] = x;")))
		assert.Equal(t, []string{
			"push local 0",
			"push local 1",
			"add",
			"push local 2",
			"pop temp 0",
			"pop pointer 1",
			"push temp 0",
			"pop that 0",
		}, body)
	})

	t.Run("let array element from array element", func(t *testing.T) {
		body := mainBody(t, compile(t, inMain("var Array a, b; var int i;", "let a[i] = b[i + 1];")))
		assert.Equal(t, []string{
			"push local 0",
			"push local 2",
			"add",
			"push local 1",
			"push local 2",
			"push constant 1",
			"add",
			"add",
			"pop pointer 1",
			"push that 0",
			"pop temp 0",
			"pop pointer 1",
			"push temp 0",
			"pop that 0",
		}, body)
	})

	t.Run("while", func(t *testing.T) {
		body := mainBody(t, compile(t, inMain("var int i;", "while (i < 10) { let i = i + 1; }")))
		assert.Equal(t, []string{
			"label Main_0",
			"push local 0",
			"push constant 10",
			"lt",
			"not",
			"if-goto Main_1",
			"push local 0",
			"push constant 1",
			"add",
			"pop local 0",
			"goto Main_0",
			"label Main_1",
		}, body)
	})

	t.Run("if else", func(t *testing.T) {
		body := mainBody(t, compile(t, inMain("var boolean b; var int y;", "if (b) { let y = 1; } else { let y = 2; }")))
		assert.Equal(t, []string{
			"push local 0",
			"not",
			"if-goto Main_0",
			"push constant 1",
			"pop local 1",
			"goto Main_1",
			"label Main_0",
			"push constant 2",
			"pop local 1",
			"label Main_1",
		}, body)
	})

	t.Run("if without else", func(t *testing.T) {
		body := mainBody(t, compile(t, inMain("var boolean b; var int y;", "if (b) { let y = 1; } let y = 3;")))
		assert.Equal(t, []string{
			"push local 0",
			"not",
			"if-goto Main_0",
			"push constant 1",
			"pop local 1",
			"goto Main_1",
			"label Main_0",
			"label Main_1",
			"push constant 3",
			"pop local 1",
		}, body)
	})

	t.Run("nested blocks", func(t *testing.T) {
		body := mainBody(t, compile(t, inMain("var int i;", "while (true) { if (i) { } }")))
		assert.Equal(t, []string{
			"label Main_0",
			"push constant 1",
			"neg",
			"not",
			"if-goto Main_1",
			"push local 0",
			"not",
			"if-goto Main_2",
			"goto Main_3",
			"label Main_2",
			"label Main_3",
			"goto Main_0",
			"label Main_1",
		}, body)
	})

	t.Run("labels of separate loops differ", func(t *testing.T) {
		lines := compile(t, inMain("var int i;", `
			while (i < 3) { let i = i + 1; }
			while (i > 0) { let i = i - 1; }
		`))

		seen := map[string]bool{}
		for _, line := range lines {
			if label, ok := strings.CutPrefix(line, "label "); ok {
				assert.False(t, seen[label], "label %s minted twice", label)
				seen[label] = true
			}
		}
		assert.Len(t, seen, 4)
	})

	t.Run("labels keep counting across subroutines", func(t *testing.T) {
		lines := compile(t, `class Loop {
			function void a() { while (true) { } return; }
			function void b() { while (true) { } return; }
		}`)
		assert.Contains(t, lines, "label Loop_0")
		assert.Contains(t, lines, "label Loop_2")
	})

	t.Run("return with value", func(t *testing.T) {
		lines := compile(t, `class Main { function int f(int a) { return a * 2; } }`)
		assert.Equal(t, []string{
			"function Main.f 0",
			"push argument 0",
			"push constant 2",
			"call Math.multiply 2",
			"return",
		}, lines)
	})

	t.Run("statics and shadowing", func(t *testing.T) {
		lines := compile(t, `class Counter {
			static int count;
			field int x;
			method void tick() {
				var int x;
				let x = 1;
				let count = count + x;
				return;
			}
		}`)
		assert.Equal(t, []string{
			"function Counter.tick 1",
			"push argument 0",
			"pop pointer 0",
			"push constant 1",
			"pop local 0",
			"push static 0",
			"push local 0",
			"add",
			"pop static 0",
			"push constant 0",
			"return",
		}, lines)
	})
}

func TestCompileErrors(t *testing.T) {

	t.Run("missing semicolon", func(t *testing.T) {
		err := compileError(t, "class Main {\n function void f() {\n  var int x;\n  let x = 1\n }\n}")

		var syntaxErr *SyntaxError
		require.True(t, errors.As(err, &syntaxErr), err.Error())
		assert.Equal(t, "';'", syntaxErr.Expected)
		assert.Equal(t, "}", syntaxErr.Actual.terminal)
		assert.Equal(t, 5, syntaxErr.Actual.Line())
	})

	syntaxCases := []struct {
		name     string
		source   string
		expected string
	}{
		{"missing class keyword", "Main { }", `keyword "class"`},
		{"class name", "class 1 { }", "class name"},
		{"bad class member", "class Main { var int x; }", "'constructor', 'function', 'method' or '}'"},
		{"bad type", "class Main { field void x; }", "type"},
		{"declaration after statements", inMain("var int x;", "let x = 1; var int y;"), "statement or '}'"},
		{"bad let target", inMain("var int x;", "let x x;"), "'[' or '='"},
		{"bad term", inMain("var int x;", "let x = ;"), "term"},
		{"bad call", inMain("", "do Output;"), "'(' or '.'"},
		{"keyword is not a term", inMain("var int x;", "let x = while;"), "keyword constant"},
		{"trailing tokens", "class A { } class B { }", "end of input"},
		{"unexpected end", "class A {", "more tokens"},
		{"missing else block", inMain("var int x;", "if (x) { } else let x = 1;"), "'{'"},
	}

	for _, testCase := range syntaxCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := compileError(t, testCase.source)

			var syntaxErr *SyntaxError
			require.True(t, errors.As(err, &syntaxErr), err.Error())
			assert.Equal(t, testCase.expected, syntaxErr.Expected)
		})
	}

	semanticCases := []struct {
		name       string
		source     string
		symbolName string
	}{
		{"method on primitive", inMain("var int n;", "do n.foo();"), "n"},
		{"method on primitive field", "class A { field boolean b; method void f() { do b.g(); return; } }", "b"},
		{"unresolved assignment target", inMain("", "let y = 1;"), "y"},
		{"unresolved array assignment target", inMain("", "let y[0] = 1;"), "y"},
		{"unresolved variable", inMain("var int x;", "let x = y + 1;"), "y"},
		{"unresolved array", inMain("var int x;", "let x = y[0];"), "y"},
		{"duplicate local", inMain("var int x, x;", ""), "x"},
		{"duplicate field", "class A { field int a; static int a; }", "a"},
		{"duplicate parameter", "class A { function void f(int a, char a) { return; } }", "a"},
	}

	for _, testCase := range semanticCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := compileError(t, testCase.source)

			var semanticErr *SemanticError
			require.True(t, errors.As(err, &semanticErr), err.Error())
			assert.Equal(t, testCase.symbolName, semanticErr.Name)
		})
	}

	t.Run("lexical errors surface", func(t *testing.T) {
		err := compileError(t, inMain("", "let x = $;"))

		var lexicalErr *LexicalError
		require.True(t, errors.As(err, &lexicalErr), err.Error())
	})

	t.Run("parameters may shadow fields", func(t *testing.T) {
		compile(t, "class A { field int a; method void f(int a) { return; } }")
	})
}

// stackEffect returns how a VM command changes the operand stack depth.
func stackEffect(t *testing.T, line string) int {
	t.Helper()
	fields := strings.Fields(line)
	switch fields[0] {
	case "push":
		return 1
	case "pop", "add", "sub", "and", "or", "eq", "gt", "lt", "if-goto":
		return -1
	case "neg", "not", "label", "goto", "function":
		return 0
	case "call":
		nargs, err := strconv.Atoi(fields[2])
		require.NoError(t, err)
		return 1 - nargs
	case "return":
		return -1
	}
	t.Fatalf("unknown VM command %q", line)
	return 0
}

// checkStackBalance walks the code linearly. Labels, jumps and function
// boundaries only ever occur between statements, where the stack must be
// empty; return must find exactly the return value.
func checkStackBalance(t *testing.T, lines []string) {
	t.Helper()
	depth := 0
	for i, line := range lines {
		command := strings.Fields(line)[0]
		switch command {
		case "function", "label":
			require.Equal(t, 0, depth, "line %d %q", i, line)
		case "return":
			require.Equal(t, 1, depth, "line %d %q", i, line)
		}

		depth += stackEffect(t, line)
		require.GreaterOrEqual(t, depth, 0, "line %d %q", i, line)

		switch command {
		case "goto", "if-goto":
			require.Equal(t, 0, depth, "line %d %q", i, line)
		}
	}
	assert.Equal(t, 0, depth)
}

const squareSource = `
// Square with a bit of everything.
class Square {
    static int count;
    field int x, y;
    field int size;
    field Array cells;

    /** Builds a square. */
    constructor Square new(int ax, int ay, int asize) {
        let x = ax;
        let y = ay;
        let size = asize;
        let cells = Array.new(size);
        let count = count + 1;
        do draw();
        return this;
    }

    method void dispose() {
        do cells.dispose();
        do Memory.deAlloc(this);
        return;
    }

    method void draw() {
        var int i;
        let i = 0;
        while (i < size) {
            let cells[i] = i * 2;
            if (~(cells[i] = 0) & (i > 1)) {
                do Screen.drawRectangle(x, y, x + size, y + size);
            } else {
                do Output.printString("empty");
            }
            let i = i + 1;
        }
        return;
    }

    function int total(Square a, Square b) {
        var boolean done;
        let done = false;
        if (a = null) {
            return -1;
        }
        return a.size() + b.size();
    }

    method int size() {
        return size;
    }
}
`

func TestStackBalance(t *testing.T) {

	t.Run("program", func(t *testing.T) {
		lines := compile(t, squareSource)
		checkStackBalance(t, lines)
		assert.Equal(t, "function Square.new 0", lines[0])
	})

	expressions := []string{
		"1",
		"x + y * 2 - 1",
		"-(x)",
		"~(x < y) | (x = 1)",
		"a[x + a[y]]",
		"Math.abs(x - y)",
		"p.distance(Math.min(x, y), 4)",
		`"text"`,
		"Util.id(Util.id(Util.id(1)))",
	}
	for _, expression := range expressions {
		t.Run(expression, func(t *testing.T) {
			body := mainBody(t, compile(t, inMain("var int x, y, r; var Array a; var Point p;", "let r = "+expression+";")))
			require.Equal(t, "pop local 2", body[len(body)-1])

			depth := 0
			for _, line := range body[:len(body)-1] {
				depth += stackEffect(t, line)
			}
			assert.Equal(t, 1, depth)
		})
	}
}
