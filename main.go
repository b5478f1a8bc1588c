// Command catforth interprets a small Forth-like concatenative
// language one input line at a time, optionally emitting a standalone
// C++ translation of the first user word it fully resolves.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jcorbin/catforth/emitter"
	"github.com/jcorbin/catforth/engine"
	"github.com/jcorbin/catforth/inliner"
	"github.com/jcorbin/catforth/internal/flushio"
	"github.com/jcorbin/catforth/internal/lineinput"
	"github.com/jcorbin/catforth/internal/logio"
	"github.com/jcorbin/catforth/internal/panicerr"
	"github.com/jcorbin/catforth/parser"
	"github.com/jcorbin/catforth/token"
)

func main() {
	var (
		trace   bool
		timeout time.Duration
	)
	flag.BoolVar(&trace, "trace", false, "log each dispatched token and the operand stack")
	flag.DurationVar(&timeout, "timeout", 0, "abort the run after the given duration")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stderr)
	defer func() { os.Exit(log.ExitCode()) }()

	args := flag.Args()
	if len(args) < 1 {
		log.Errorf("usage: catforth <path|-> [emit]")
		return
	}

	in, err := openInput(args[0])
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	defer in.Close()

	emit := len(args) >= 2

	ctx := context.Background()
	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	eg.Go(func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		}
	})

	var runErr error
	eg.Go(func() error {
		defer close(done)
		var opts []engine.VMOption
		if trace {
			opts = append(opts, engine.WithTrace(log.Leveledf("TRACE")))
		}
		if emit {
			runErr = runEmit(ctx, in, args[0], os.Stdout, opts)
		} else {
			opts = append(opts, engine.WithOutput(flushio.NewWriteFlusher(os.Stdout)))
			runErr = runRepl(ctx, in, args[0], os.Stdout, opts)
		}
		return runErr
	})

	if err := eg.Wait(); err != nil && runErr == nil {
		log.Errorf("%v", err)
		return
	}
	log.ErrorIf(runErr)
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// runRepl is the normal harness loop: every successfully executed line
// is followed by a literal " OK" and a newline; any error is fatal.
func runRepl(ctx context.Context, in io.Reader, name string, out io.Writer, opts []engine.VMOption) error {
	q := lineinput.NewQueue()
	q.Add(name, in)

	vm := engine.New(opts...)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, loc, ok := q.Next()
		if !ok {
			return q.Err()
		}
		if err := vm.Execute(line); err != nil {
			return fmt.Errorf("%v: %w", loc, err)
		}
		if _, err := fmt.Fprint(out, " OK\n"); err != nil {
			return err
		}
	}
}

// runEmit executes lines normally until the first one that defines a
// user word, then inlines that word to a fixpoint and emits a
// standalone C++ translation of its resolved body to out, writing none
// of the interpreter's own output.
func runEmit(ctx context.Context, in io.Reader, name string, out io.Writer, opts []engine.VMOption) error {
	q := lineinput.NewQueue()
	q.Add(name, in)

	vm := engine.New(opts...)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, loc, ok := q.Next()
		if !ok {
			return fmt.Errorf("no user word definition found in %s", name)
		}

		toks, err := parser.Parse(line)
		if err != nil {
			return fmt.Errorf("%v: %w", loc, err)
		}

		var wordName string
		for _, tok := range toks {
			if tok.Kind == token.Function {
				wordName = tok.Name
				break
			}
		}

		if err := panicerr.Recover("engine", func() error {
			return vm.Exec(toks)
		}); err != nil {
			return fmt.Errorf("%v: %w", loc, err)
		}

		if wordName == "" {
			continue
		}

		w := vm.Env.Words[wordName]
		for inliner.Inline(wordName, w, vm.Env.Words) {
		}
		return emitter.Emit(out, w.CurrentBody)
	}
}
