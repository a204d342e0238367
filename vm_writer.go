package main

import (
	"bufio"
	"io"
	"strconv"
)

type VMSegmentType string

const (
	InvalidVMSegmentType VMSegmentType = ""
	ConstVMSegment       VMSegmentType = "constant"
	ArgumentVMSegment    VMSegmentType = "argument"
	LocalVMSegment       VMSegmentType = "local"
	StaticVMSegment      VMSegmentType = "static"
	ThisVMSegment        VMSegmentType = "this"
	ThatVMSegment        VMSegmentType = "that"
	PointerVMSegment     VMSegmentType = "pointer"
	TempVMSegment        VMSegmentType = "temp"
)

type VMOperation string

const (
	InvalidVMOperation VMOperation = ""
	AddVMOperation     VMOperation = "add"
	SubVMOperation     VMOperation = "sub"
	NegVMOperation     VMOperation = "neg"
	EqVMOperation      VMOperation = "eq"
	GtVMOperation      VMOperation = "gt"
	LtVMOperation      VMOperation = "lt"
	AndVMOperation     VMOperation = "and"
	OrVMOperation      VMOperation = "or"
	NotVMOperation     VMOperation = "not"
	// The VM has no multiply or divide; they lower to OS calls.
	MulVMOperation VMOperation = "mul"
	DivVMOperation VMOperation = "div"
)

var binaryOperations = map[byte]VMOperation{
	'+': AddVMOperation,
	'-': SubVMOperation,
	'*': MulVMOperation,
	'/': DivVMOperation,
	'&': AndVMOperation,
	'|': OrVMOperation,
	'<': LtVMOperation,
	'>': GtVMOperation,
	'=': EqVMOperation,
}

// VMWriter buffers VM commands, one per line. Write errors are sticky and
// surface from Flush.
type VMWriter struct {
	output *bufio.Writer
}

func NewVMWriter(w io.Writer) *VMWriter {
	return &VMWriter{output: bufio.NewWriter(w)}
}

func (w *VMWriter) WriteCommand(command string) {
	w.output.WriteString(command)
	w.output.WriteByte('\n')
}

func (w *VMWriter) WritePush(segment VMSegmentType, index int) {
	w.WriteCommand("push " + string(segment) + " " + strconv.Itoa(index))
}

func (w *VMWriter) WritePop(segment VMSegmentType, index int) {
	w.WriteCommand("pop " + string(segment) + " " + strconv.Itoa(index))
}

// WriteStringConstant leaves a new String object holding constant on the
// stack. String.appendChar returns its receiver, so the pointer is threaded
// through the calls without touching temp.
func (w *VMWriter) WriteStringConstant(constant string) {
	w.WritePush(ConstVMSegment, len(constant))
	w.WriteCall("String.new", 1)
	for i := 0; i < len(constant); i++ {
		w.WritePush(ConstVMSegment, int(constant[i]))
		w.WriteCall("String.appendChar", 2)
	}
}

func (w *VMWriter) WriteArithmetic(operation VMOperation) {
	switch operation {
	case DivVMOperation:
		w.WriteCall("Math.divide", 2)
	case MulVMOperation:
		w.WriteCall("Math.multiply", 2)
	default:
		w.WriteCommand(string(operation))
	}
}

func (w *VMWriter) WriteLabel(label string) {
	w.WriteCommand("label " + label)
}

func (w *VMWriter) WriteGoto(label string) {
	w.WriteCommand("goto " + label)
}

func (w *VMWriter) WriteIf(label string) {
	w.WriteCommand("if-goto " + label)
}

func (w *VMWriter) WriteCall(name string, nargs int) {
	w.WriteCommand("call " + name + " " + strconv.Itoa(nargs))
}

func (w *VMWriter) WriteFunction(name string, nlocals int) {
	w.WriteCommand("function " + name + " " + strconv.Itoa(nlocals))
}

func (w *VMWriter) WriteReturn() {
	w.WriteCommand("return")
}

func (w *VMWriter) Flush() error {
	return w.output.Flush()
}
