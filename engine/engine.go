// Package engine tree-walks an optimized token stream against an
// operand stack and two control stacks, dispatching Name tokens through
// the inliner and reporting diagnostics on first error.
package engine

import (
	"strconv"

	"github.com/jcorbin/catforth/inliner"
	"github.com/jcorbin/catforth/internal/flushio"
	"github.com/jcorbin/catforth/internal/panicerr"
	"github.com/jcorbin/catforth/internal/runeio"
	"github.com/jcorbin/catforth/parser"
	"github.com/jcorbin/catforth/token"
	"github.com/jcorbin/catforth/word"
)

// maxIfDepth bounds how many nested If/NotIf frames may be open at once,
// catching runaway or malformed control flow before it exhausts memory.
const maxIfDepth = 1000

// LoopFrame is one activation of a DO ... LOOP or DO ... +LOOP, tracking
// the loop index, its exclusive limit, and where execution resumes for
// another iteration.
type LoopFrame struct {
	Index     int64
	Limit     int64
	LoopStart int
}

// VM holds the interpreter's mutable state across lines: the operand
// stack, the loop and if control stacks, the name environment shared
// with the inliner, and the output sink quoted text and numbers are
// written to.
type VM struct {
	Stack  []int64
	Loops  []LoopFrame
	Ifs    []bool
	Env    *word.Environment
	Out    flushio.WriteFlusher
	Trace  func(format string, args ...interface{})
	Diag   func(tok token.Token, stack []int64, err error)
	format [24]byte
}

// New returns a VM with a fresh environment, configured by opts.
// Without a WithOutput option, output is discarded.
func New(opts ...VMOption) *VM {
	vm := &VM{Env: word.NewEnvironment()}
	VMOptions(defaultOptions, VMOptions(opts...)).apply(vm)
	return vm
}

// Execute parses a single input line and dispatches it against vm,
// wrapping the walk in a panic recovery so a bug in a primitive surfaces
// as an error for this line rather than crashing the process. The
// output sink is flushed before returning, win or lose.
func (vm *VM) Execute(line string) error {
	toks, err := parser.Parse(line)
	if err != nil {
		return ParseError{Err: err}
	}
	err = panicerr.Recover("engine", func() error {
		return vm.exec(toks)
	})
	if ferr := vm.Out.Flush(); err == nil {
		err = ferr
	}
	return err
}

// Exec dispatches an already-parsed token body against vm directly,
// bypassing Execute's parse step and panic recovery. Tooling that needs
// the parsed tokens before dispatch, such as the C++ emitter's
// word-resolution pass, calls this instead of Execute.
func (vm *VM) Exec(toks []token.Token) error {
	return vm.exec(toks)
}

// Reset implements the Reset primitive's contract: clear the operand
// stack, the name environment's variables, and both control stacks.
// Defined words are left untouched.
func (vm *VM) Reset() {
	vm.Stack = nil
	vm.Env.ResetVariables()
	vm.Loops = nil
	vm.Ifs = nil
}

func (vm *VM) exec(toks []token.Token) error {
	i := 0
	for i < len(toks) {
		tok := toks[i]
		if vm.Trace != nil {
			vm.Trace("%v stack=%v", tok, vm.Stack)
		}
		next, err := vm.step(toks, i)
		if err != nil {
			if vm.Diag != nil {
				vm.Diag(tok, vm.Stack, err)
			}
			return err
		}
		i = next
	}
	return nil
}

// step dispatches the single token at i and returns the index execution
// should resume at. Most tokens simply return i+1; control-flow tokens
// return the jump target or loop restart point instead.
func (vm *VM) step(toks []token.Token, i int) (int, error) {
	tok := toks[i]
	switch tok.Kind {
	case token.Integer:
		vm.push(tok.Value)

	case token.Quote:
		vm.writeString(tok.Text)

	case token.Plus:
		b, a, err := vm.pop2()
		if err != nil {
			return 0, err
		}
		vm.push(a + b)

	case token.Mult:
		b, a, err := vm.pop2()
		if err != nil {
			return 0, err
		}
		vm.push(a * b)

	case token.Mod:
		b, a, err := vm.pop2()
		if err != nil {
			return 0, err
		}
		vm.push(a % b)

	case token.MultDivide:
		c, b, a, err := vm.pop3()
		if err != nil {
			return 0, err
		}
		vm.push((a * b) / c)

	case token.Equal:
		b, a, err := vm.pop2()
		if err != nil {
			return 0, err
		}
		vm.push(boolInt(a == b))

	case token.Greater:
		b, a, err := vm.pop2()
		if err != nil {
			return 0, err
		}
		vm.push(boolInt(a < b))

	case token.Less:
		b, a, err := vm.pop2()
		if err != nil {
			return 0, err
		}
		vm.push(boolInt(a > b))

	case token.Dup:
		v, err := vm.peek()
		if err != nil {
			return 0, err
		}
		vm.push(v)

	case token.Drop:
		if _, err := vm.pop(); err != nil {
			return 0, err
		}

	case token.Swap:
		b, a, err := vm.pop2()
		if err != nil {
			return 0, err
		}
		vm.push(b)
		vm.push(a)

	case token.Rot:
		c, b, a, err := vm.pop3()
		if err != nil {
			return 0, err
		}
		vm.push(b)
		vm.push(c)
		vm.push(a)

	case token.DoubleRot:
		c, b, a, err := vm.pop3()
		if err != nil {
			return 0, err
		}
		vm.push(c)
		vm.push(a)
		vm.push(b)

	case token.At:
		k, err := vm.pop()
		if err != nil {
			return 0, err
		}
		v, err := vm.at(k, "@")
		if err != nil {
			return 0, err
		}
		vm.push(v)

	case token.Exclamation:
		k, v, err := vm.pop2()
		if err != nil {
			return 0, err
		}
		if k < 0 || int(k) >= len(vm.Stack) {
			return 0, AddressingError{Op: "!", Addr: k}
		}
		vm.Stack[k] = v

	case token.Dot:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		vm.writeInt(v)

	case token.Cr:
		vm.writeByte('\n')

	case token.DotCr:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		vm.writeInt(v)
		vm.writeByte('\n')

	case token.DupModConst:
		v, err := vm.peek()
		if err != nil {
			return 0, err
		}
		vm.push(v % tok.Value)

	case token.EqZero:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		vm.push(boolInt(v == 0))

	case token.OnePlus:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		vm.push(v + 1)

	case token.UDotR:
		// no-op: its intended formatting behavior was never specified.

	case token.Reset:
		vm.Reset()

	case token.I:
		if len(vm.Loops) < 1 {
			return 0, StackUnderflowError{Op: "i"}
		}
		vm.push(vm.Loops[len(vm.Loops)-1].Index)

	case token.J:
		if len(vm.Loops) < 2 {
			return 0, StackUnderflowError{Op: "j"}
		}
		vm.push(vm.Loops[len(vm.Loops)-2].Index)

	case token.Do:
		idx, limit, err := vm.pop2()
		if err != nil {
			return 0, err
		}
		vm.Loops = append(vm.Loops, LoopFrame{Index: idx, Limit: limit, LoopStart: i + 1})
		return i + 1, nil

	case token.Loop:
		return vm.endLoop(i, 1)

	case token.PlusLoop:
		step, err := vm.pop()
		if err != nil {
			return 0, err
		}
		return vm.endLoop(i, step)

	case token.If:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		return vm.branch(i, tok, v != 0)

	case token.NotIf:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		return vm.branch(i, tok, v == 0)

	case token.Else:
		if len(vm.Ifs) == 0 {
			return 0, StackUnderflowError{Op: "else"}
		}
		if vm.Ifs[len(vm.Ifs)-1] {
			return i + 1 + tok.Jump, nil
		}

	case token.Then:
		if len(vm.Ifs) == 0 {
			return 0, StackUnderflowError{Op: "then"}
		}
		vm.Ifs = vm.Ifs[:len(vm.Ifs)-1]

	case token.Function:
		return vm.defineFunction(toks, i)

	case token.Variable:
		if len(vm.Stack) == 0 {
			vm.Stack = append(vm.Stack, 0)
		}
		vm.Env.Values[tok.Name] = int64(len(vm.Stack) - 1)

	case token.Constant:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		vm.Env.Values[tok.Name] = v

	case token.Name:
		return i + 1, vm.call(tok.Name)

	default:
		return 0, UnsupportedTokenError{Kind: tok.Kind}
	}
	return i + 1, nil
}

// branch records the taken/not-taken outcome of an If or NotIf onto the
// if-stack and, when not taken, jumps to the matching Else or Then.
func (vm *VM) branch(i int, tok token.Token, taken bool) (int, error) {
	if len(vm.Ifs) >= maxIfDepth {
		return 0, ControlStackOverflowError{}
	}
	vm.Ifs = append(vm.Ifs, taken)
	if !taken {
		return i + 1 + tok.Jump, nil
	}
	return i + 1, nil
}

// endLoop advances the innermost loop frame by step, resuming at its
// body start if the index is still below the limit, otherwise popping
// the frame and falling through past the Loop/+Loop token.
func (vm *VM) endLoop(i int, step int64) (int, error) {
	if len(vm.Loops) == 0 {
		return 0, StackUnderflowError{Op: "loop"}
	}
	top := len(vm.Loops) - 1
	frame := vm.Loops[top]
	frame.Index += step
	if frame.Index < frame.Limit {
		vm.Loops[top] = frame
		return frame.LoopStart, nil
	}
	vm.Loops = vm.Loops[:top]
	return i + 1, nil
}

// defineFunction scans forward for the first EndFunction, installs the
// tokens between as the named word's body, and invalidates any prior
// dependents of a redefinition under the same name.
func (vm *VM) defineFunction(toks []token.Token, i int) (int, error) {
	name := toks[i].Name
	j := i + 1
	for j < len(toks) && toks[j].Kind != token.EndFunction {
		j++
	}
	body := append([]token.Token(nil), toks[i+1:j]...)
	vm.Env.Define(name, body)
	inliner.Invalidate(name, vm.Env.Words)
	if j < len(toks) {
		return j + 1, nil
	}
	return j, nil
}

// call resolves a Name token: a defined word is inlined against its
// dependencies (with any resulting change propagated to its own
// dependents) and then executed; a variable or constant pushes its
// bound value; anything else is an unrecognized word.
func (vm *VM) call(name string) error {
	if w, ok := vm.Env.Words[name]; ok {
		if inliner.Inline(name, w, vm.Env.Words) {
			inliner.Invalidate(name, vm.Env.Words)
		}
		return vm.exec(w.CurrentBody)
	}
	if v, ok := vm.Env.Values[name]; ok {
		vm.push(v)
		return nil
	}
	return UnrecognizedWordError{Name: name}
}

func (vm *VM) at(k int64, op string) (int64, error) {
	if k < 0 || int(k) >= len(vm.Stack) {
		return 0, AddressingError{Op: op, Addr: k}
	}
	return vm.Stack[k], nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (vm *VM) push(v int64) {
	vm.Stack = append(vm.Stack, v)
}

func (vm *VM) pop() (int64, error) {
	n := len(vm.Stack)
	if n == 0 {
		return 0, StackUnderflowError{}
	}
	v := vm.Stack[n-1]
	vm.Stack = vm.Stack[:n-1]
	return v, nil
}

func (vm *VM) peek() (int64, error) {
	n := len(vm.Stack)
	if n == 0 {
		return 0, StackUnderflowError{}
	}
	return vm.Stack[n-1], nil
}

// pop2 pops the top two operands, returning the former top (b) and the
// value below it (a), the b, a order the binary primitives in step name
// their operands in. On underflow the stack is left unchanged.
func (vm *VM) pop2() (b, a int64, err error) {
	n := len(vm.Stack)
	if n < 2 {
		return 0, 0, StackUnderflowError{}
	}
	b, a = vm.Stack[n-1], vm.Stack[n-2]
	vm.Stack = vm.Stack[:n-2]
	return b, a, nil
}

// pop3 pops the top three operands, top first; on underflow the stack
// is left unchanged.
func (vm *VM) pop3() (c, b, a int64, err error) {
	n := len(vm.Stack)
	if n < 3 {
		return 0, 0, 0, StackUnderflowError{}
	}
	c, b, a = vm.Stack[n-1], vm.Stack[n-2], vm.Stack[n-3]
	vm.Stack = vm.Stack[:n-3]
	return c, b, a, nil
}

func (vm *VM) writeString(s string) {
	_, _ = runeio.WriteANSIString(vm.Out, s)
}

func (vm *VM) writeByte(b byte) {
	_, _ = vm.Out.Write([]byte{b})
}

func (vm *VM) writeInt(v int64) {
	b := strconv.AppendInt(vm.format[:0], v, 10)
	_, _ = vm.Out.Write(b)
}
