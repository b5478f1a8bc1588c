// Package emitter translates a fully-resolved, already-optimized token
// body into a standalone C++ translation unit, one statement at a time.
package emitter

import (
	"fmt"
	"io"

	"github.com/jcorbin/catforth/token"
)

const header = `#include <iostream>
#include <vector>
#define int64 int64_t

int64 pop(std::vector<int64> *stack) {
    int64 x = stack->back();
    stack->pop_back();
    return x;
}

int main() {
std::vector<int64> stack = {};

`

const footer = `std::cout << " OK\n";
}
`

// ErrUnsupportedToken reports a token with no C++ mapping at all: the
// emitter has no seam to fall back to for it the way an unmapped token
// in an interpreted context has an UnrecognizedWordError to fall to.
type ErrUnsupportedToken struct {
	Kind token.Kind
}

func (e ErrUnsupportedToken) Error() string {
	return fmt.Sprintf("emitter: unsupported token %v", e.Kind)
}

// Emit writes a compilable C++ program to w that, once built and run,
// reproduces the effect of interpreting body: one emitted statement per
// token, framed by a header that declares the stack and a pop helper
// and a footer that prints " OK" with a trailing newline.
func Emit(w io.Writer, body []token.Token) error {
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	for _, tok := range body {
		if err := emitOne(w, tok); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, footer)
	return err
}

func emitOne(w io.Writer, tok token.Token) error {
	switch tok.Kind {
	case token.Integer:
		return fprintf(w, "stack.push_back(%d);\n", tok.Value)

	case token.Dup:
		return puts(w, "stack.push_back(stack.back());\n")

	case token.Drop:
		return puts(w, "stack.pop_back();\n")

	case token.Swap:
		return puts(w, "{int64 n=stack.size(); std::swap(stack[n-1], stack[n-2]);}\n")

	case token.Rot:
		return puts(w, "{int64 n=stack.size(); int64 a=stack[n-3], b=stack[n-2], c=stack[n-1]; "+
			"stack[n-3]=b; stack[n-2]=c; stack[n-1]=a;}\n")

	case token.DoubleRot:
		return puts(w, "{int64 n=stack.size(); int64 a=stack[n-3], b=stack[n-2], c=stack[n-1]; "+
			"stack[n-3]=c; stack[n-2]=a; stack[n-1]=b;}\n")

	case token.Plus:
		return puts(w, "{int64 b=pop(&stack); stack.back()+=b;}\n")

	case token.Mod:
		return puts(w, "{int64 two = pop(&stack); int64 one = pop(&stack); stack.push_back(one % two);}\n")

	case token.OnePlus:
		return puts(w, "stack.back()+=1;\n")

	case token.EqZero:
		return puts(w, "stack.back() = (stack.back() == 0) ? 1 : 0;\n")

	case token.Dot:
		return puts(w, `printf("%ld", pop(&stack));`+"\n")

	case token.DotCr:
		return puts(w, `printf("%ld\n", pop(&stack));`+"\n")

	case token.Cr:
		return puts(w, "std::cout << '\\n';\n")

	case token.Quote:
		return fprintf(w, "std::cout << %q;\n", tok.Text)

	case token.I:
		return puts(w, "stack.push_back(i);\n")

	case token.Do:
		return puts(w, "{int64 index=pop(&stack); int64 limit=pop(&stack); "+
			"for(int64 i=index;i<limit;i++){\n")

	case token.Loop:
		return puts(w, "}}\n")

	case token.If:
		return puts(w, "if (pop(&stack) != 0) {\n")

	case token.NotIf:
		return puts(w, "if (pop(&stack) == 0) {\n")

	case token.Else:
		return puts(w, "} else {\n")

	case token.Then:
		return puts(w, "}\n")

	case token.Equal:
		return puts(w, "{int64 b=pop(&stack); int64 a=pop(&stack); stack.push_back(a==b?1:0);}\n")

	case token.DupModConst:
		return fprintf(w, "stack.push_back(stack.back() %% %d);\n", tok.Value)

	default:
		return ErrUnsupportedToken{Kind: tok.Kind}
	}
}

func puts(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}

func fprintf(w io.Writer, format string, args ...interface{}) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
