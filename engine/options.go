package engine

import (
	"io"

	"github.com/jcorbin/catforth/internal/flushio"
	"github.com/jcorbin/catforth/token"
)

// VMOption configures a VM at construction time via New.
type VMOption interface{ apply(vm *VM) }

var defaultOptions = VMOptions(
	WithOutput(flushio.NewWriteFlusher(io.Discard)),
)

// VMOptions flattens a list of options into one, dropping nils and
// folding any nested option lists so New only ever applies a single
// combined value.
func VMOptions(opts ...VMOption) VMOption {
	var res options
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noption:
		case options:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	switch len(res) {
	case 0:
		return noption{}
	case 1:
		return res[0]
	default:
		return res
	}
}

type noption struct{}

func (noption) apply(*VM) {}

type options []VMOption

func (opts options) apply(vm *VM) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(vm)
		}
	}
}

type outputOption struct{ out flushio.WriteFlusher }

// WithOutput sets the sink that Quote, Dot and Cr write to.
func WithOutput(w flushio.WriteFlusher) VMOption { return outputOption{w} }

func (o outputOption) apply(vm *VM) { vm.Out = o.out }

type traceOption func(format string, args ...interface{})

// WithTrace installs a callback invoked before each token dispatches,
// receiving the token and current stack formatted as a message.
func WithTrace(fn func(format string, args ...interface{})) VMOption { return traceOption(fn) }

func (fn traceOption) apply(vm *VM) { vm.Trace = fn }

type diagOption func(tok token.Token, stack []int64, err error)

// WithDiag installs a callback invoked with the offending token, the
// operand stack, and the error, immediately before a failing primitive
// aborts the current line.
func WithDiag(fn func(tok token.Token, stack []int64, err error)) VMOption { return diagOption(fn) }

func (fn diagOption) apply(vm *VM) { vm.Diag = fn }
