// Package inliner folds already-defined word bodies into a calling
// word's body, memoizing the result and tracking the dependency edges
// needed to invalidate it when one of its dependencies changes.
package inliner

import (
	"github.com/jcorbin/catforth/parser"
	"github.com/jcorbin/catforth/token"
	"github.com/jcorbin/catforth/word"
)

// MaxIterations bounds how many times a word's body is re-substituted,
// capping both the work done per call and the blow-up from mutually
// referencing definitions.
const MaxIterations = 16

// Inline substitutes named references in w's CurrentBody with the
// current bodies of the words they resolve to, re-runs the peephole
// optimizer over the result so fusions can span the new boundary, and
// memoizes onto w: once a pass leaves the body length unchanged, w is
// marked FullyInlined and further calls are a no-op. Reports whether
// w.CurrentBody actually changed, which the caller uses to decide
// whether to invalidate w's own dependents.
func Inline(name string, w *word.Word, words map[string]*word.Word) bool {
	if w.FullyInlined || w.Iterations >= MaxIterations {
		return false
	}

	body, deps := substitute(name, w.CurrentBody, words)
	body = parser.Optimize(body)
	w.Iterations++

	if len(body) == len(w.CurrentBody) {
		w.FullyInlined = true
		return false
	}

	if w.Dependencies == nil {
		w.Dependencies = make(map[string]struct{}, len(deps))
	}
	for dep := range deps {
		w.Dependencies[dep] = struct{}{}
	}
	w.CurrentBody = body
	return true
}

// substitute implements the substitution rule: a Name token equal to
// the calling word's own name passes through unfolded (self-recursion
// is never unrolled); a Name resolving to another defined word is
// replaced by that word's current body, recording the dependency; every
// other token passes through unchanged.
func substitute(name string, body []token.Token, words map[string]*word.Word) ([]token.Token, map[string]struct{}) {
	out := make([]token.Token, 0, len(body))
	deps := make(map[string]struct{})
	for _, tok := range body {
		if tok.Kind != token.Name || tok.Name == name {
			out = append(out, tok)
			continue
		}
		if callee, ok := words[tok.Name]; ok {
			out = append(out, callee.CurrentBody...)
			deps[tok.Name] = struct{}{}
			continue
		}
		out = append(out, tok)
	}
	return out, deps
}

// Invalidate resets every word (other than changed itself) whose
// dependency set contains changed back to its OriginalBody, then
// recurses on each word it just reset so the cascade reaches
// transitive dependents, without ever resetting changed due to its own
// change.
func Invalidate(changed string, words map[string]*word.Word) {
	for name, w := range words {
		if name == changed {
			continue
		}
		if _, depends := w.Dependencies[changed]; depends {
			w.Reset()
			Invalidate(name, words)
		}
	}
}
