package brainfrick

import (
	"bufio"
	"context"
	"io"
	"os"
	"runtime"
	"unicode/utf8"

	"github.com/joomcode/errorx"
	"golang.org/x/exp/constraints"
)

// DefaultTapeSize is the number of cells allocated when no size is configured.
const DefaultTapeSize = 30000

// how often Run looks at the context
const ctxCheckInterval = 1 << 12

type opCode byte

const (
	opIncPtr  opCode = '>'
	opDecPtr  opCode = '<'
	opIncData opCode = '+'
	opDecData opCode = '-'
	opOutput  opCode = '.'
	opInput   opCode = ','
	opOpen    opCode = '['
	opClose   opCode = ']'
)

type VM struct {
	tape  []byte        // fixed size, zero filled
	d     uint          // data pointer, wraps at word width
	prog  []byte        // program with leading sentinel
	pc    uint          // program counter
	exit  bool          // set once pc runs off the program
	jumps map[uint]uint // matching brackets, nil unless requested and balanced

	in  io.ByteReader
	out io.Writer

	useJumps  bool
	stepLimit uint64
	steps     uint64
}

type Option func(vm *VM)

// WithTapeSize sets the number of cells. A non-positive n keeps
// DefaultTapeSize.
func WithTapeSize(n int) Option {
	return func(vm *VM) {
		if n <= 0 {
			return
		}
		vm.tape = make([]byte, n)
	}
}

func WithInput(r io.Reader) Option {
	return func(vm *VM) {
		if br, ok := r.(io.ByteReader); ok {
			vm.in = br
			return
		}
		vm.in = bufio.NewReader(r)
	}
}

func WithOutput(w io.Writer) Option {
	return func(vm *VM) {
		vm.out = w
	}
}

// WithJumpTable precomputes bracket targets at load time instead of scanning
// on every loop entry and exit.
func WithJumpTable() Option {
	return func(vm *VM) {
		vm.useJumps = true
	}
}

// WithStepLimit makes Run give up after n steps. Zero means no limit.
func WithStepLimit(n uint64) Option {
	return func(vm *VM) {
		vm.stepLimit = n
	}
}

func NewVM(opts ...Option) *VM {
	vm := &VM{
		tape: make([]byte, DefaultTapeSize),
		prog: []byte{0},
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.in == nil {
		vm.in = bufio.NewReader(os.Stdin)
	}
	if vm.out == nil {
		vm.out = os.Stdout
	}
	return vm
}

// Load appends program to the instruction buffer. No validation is done.
func (v *VM) Load(program []byte) {
	v.prog = append(v.prog, program...)
	if v.useJumps {
		v.jumps, _ = jumpTable(v.prog)
	}
}

func (v *VM) Halted() bool {
	return v.exit
}

func (v *VM) DataPointer() uint {
	return v.d
}

func (v *VM) PC() uint {
	return v.pc
}

func (v *VM) Cell(i uint) byte {
	return v.tape[i]
}

func (v *VM) TapeSize() int {
	return len(v.tape)
}

// Steps reports how many instructions Run has evaluated.
func (v *VM) Steps() uint64 {
	return v.steps
}

// Eval executes the instruction under the program counter and advances it.
// Out of range tape or program access panics.
func (v *VM) Eval() {
	switch opCode(v.prog[v.pc]) {
	case opIncPtr:
		v.d = wrapInc(v.d)
	case opDecPtr:
		v.d = wrapDec(v.d)
	case opIncData:
		v.tape[v.d] = wrapInc(v.tape[v.d])
	case opDecData:
		v.tape[v.d] = wrapDec(v.tape[v.d])
	case opOutput:
		v.output()
	case opInput:
		v.input()
	case opOpen:
		v.open()
	case opClose:
		v.close()
	}
	v.pc++

	if v.pc >= uint(len(v.prog)) {
		v.exit = true
	}
}

// output writes the cell as the character U+0000-U+00FF, UTF-8 encoded, so
// cells above 0x7f produce two bytes.
func (v *VM) output() {
	if _, err := v.out.Write(utf8.AppendRune(nil, rune(v.tape[v.d]))); err != nil {
		errorx.Panic(OutputFailed.Wrap(err, "write cell %d", v.d))
	}
}

// input leaves the cell untouched when nothing can be read.
func (v *VM) input() {
	b, err := v.in.ReadByte()
	if err != nil {
		return
	}
	v.tape[v.d] = b
}

func (v *VM) open() {
	if v.tape[v.d] != 0 {
		return
	}
	if v.jumps != nil {
		v.pc = v.jumps[v.pc]
		return
	}
	balance := 1
	for balance != 0 {
		v.pc++
		switch opCode(v.prog[v.pc]) {
		case opOpen:
			balance++
		case opClose:
			balance--
		}
	}
}

// close always jumps back so the matching '[' re-tests the cell.
func (v *VM) close() {
	if v.jumps != nil {
		v.pc = v.jumps[v.pc] - 1
		return
	}
	balance := 0
	for {
		switch opCode(v.prog[v.pc]) {
		case opClose:
			balance++
		case opOpen:
			balance--
		}
		v.pc--
		if balance == 0 {
			break
		}
	}
}

// Run evaluates until the program halts. Faults raised by Eval are returned as
// errors instead of unwinding the caller.
func (v *VM) Run(ctx context.Context) (errRes error) {
	defer func() {
		err := recover()
		if err == nil {
			return
		}
		errRes = v.fault(err)
	}()

	for !v.exit {
		if v.stepLimit > 0 && v.steps >= v.stepLimit {
			return StepLimitExceeded.New("no halt after %d steps", v.steps).
				WithProperty(errProgramCounterProperty, v.pc)
		}
		if v.steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Cancelled.Wrap(err, "stopped after %d steps", v.steps)
			}
		}
		v.steps++
		v.Eval()
	}
	return nil
}

func (v *VM) fault(rec any) error {
	err, ok := errorx.ErrorFromPanic(rec)
	if !ok {
		return errorx.Decorate(errorx.IllegalState.New("%v", rec), "VM instruction: %v", v.pc)
	}
	switch e := err.(type) {
	case *errorx.Error:
	case runtime.Error:
		if v.pc >= uint(len(v.prog)) {
			err = ProgramIndexOutOfRange.Wrap(e, "program counter %d, program length %d", v.pc, len(v.prog))
		} else {
			err = TapeIndexOutOfRange.Wrap(e, "data pointer %d, tape size %d", v.d, len(v.tape))
		}
	default:
		err = errorx.IllegalState.Wrap(e, "vm fault")
	}
	return errorx.Decorate(err, "VM instruction: %v", v.pc)
}

func wrapInc[T constraints.Unsigned](x T) T {
	return x + 1
}

func wrapDec[T constraints.Unsigned](x T) T {
	return x - 1
}
