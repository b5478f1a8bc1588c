// Package parser lexes a single input line into tokens, resolves
// control-flow jump offsets and definer names, then runs the peephole
// optimizer over the result.
package parser

import (
	"fmt"
	"strings"

	"github.com/jcorbin/catforth/token"
)

// Parse runs the parser's three passes over a single input line: lexing
// (including quote-scanning and comment truncation), structural
// resolution of If/Else/Then jumps and Function/Variable/Constant names,
// and the peephole optimizer.
func Parse(line string) ([]token.Token, error) {
	toks, err := lex(line)
	if err != nil {
		return nil, err
	}
	toks, err = resolveStructure(toks)
	if err != nil {
		return nil, err
	}
	return Optimize(toks), nil
}

// lex splits a line on whitespace, lower-cases each word outside of
// quoted text before keyword matching, truncates at a `\` comment, and
// folds `."  ..."` spans into a single Quote token carrying the
// space-joined, case-preserved payload between them.
func lex(line string) ([]token.Token, error) {
	words := strings.Fields(line)
	var toks []token.Token
	for i := 0; i < len(words); i++ {
		w := words[i]
		if w == `\` {
			break
		}

		lw := strings.ToLower(w)
		if lw == `."` {
			j := i + 1
			for j < len(words) && words[j] != `"` {
				j++
			}
			end := j
			if end > len(words) {
				end = len(words)
			}
			payload := strings.Join(words[i+1:end], " ")
			toks = append(toks, token.Token{Kind: token.Quote, Text: payload})
			i = j
			continue
		}

		tok, err := token.Decode(lw)
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
	return toks, nil
}

// resolveStructure is the parser's second pass: it resolves If and Else
// jump offsets against their matching Else/Then, and absorbs the Name
// token following a Function, Variable or Constant definer into that
// definer's own Name field.
func resolveStructure(toks []token.Token) ([]token.Token, error) {
	for i := 0; i < len(toks); i++ {
		switch toks[i].Kind {
		case token.If:
			target, err := scanTo(toks, i, true)
			if err != nil {
				return nil, err
			}
			toks[i].Jump = target - i - 1

		case token.Else:
			target, err := scanTo(toks, i, false)
			if err != nil {
				return nil, err
			}
			toks[i].Jump = target - i - 1

		case token.Function, token.Variable, token.Constant:
			if i+1 >= len(toks) || toks[i+1].Kind != token.Name {
				return nil, fmt.Errorf("expected word after %v", toks[i].Kind)
			}
			toks[i].Name = toks[i+1].Name
			toks = removeAt(toks, i+1)
		}
	}
	return toks, nil
}

// scanTo finds the index of the Else/Then (or just Then, for an Else's
// own search) that matches the If or Else at index i, tracking nesting
// depth of intervening If...Then pairs. stopAtElse controls whether an
// Else at the current depth also terminates the scan (true for If,
// false for Else, which may only be closed by a Then).
func scanTo(toks []token.Token, i int, stopAtElse bool) (int, error) {
	nested := 0
	for j := i + 1; j < len(toks); j++ {
		switch toks[j].Kind {
		case token.If:
			nested++
		case token.Else:
			if nested == 0 && stopAtElse {
				return j, nil
			}
		case token.Then:
			if nested == 0 {
				return j, nil
			}
			nested--
		}
	}
	return 0, fmt.Errorf("no closing else or then")
}

func removeAt(toks []token.Token, i int) []token.Token {
	return append(toks[:i], toks[i+1:]...)
}

// Optimize runs the peephole pass once, left to right, fusing idiomatic
// token sequences into single fused opcodes: Rot Rot, 0 = (optionally
// followed by If), Dup <n> Mod, and Dot Cr. It is exported separately
// from Parse because the inliner re-runs it over a word's body after
// substitution, so that fusions spanning an inlining boundary are still
// recognized.
func Optimize(toks []token.Token) []token.Token {
	for i := 0; i < len(toks); i++ {
		switch toks[i].Kind {
		case token.Rot:
			if i+1 < len(toks) && toks[i+1].Kind == token.Rot {
				toks[i] = token.Token{Kind: token.DoubleRot}
				toks = removeAt(toks, i+1)
			}

		case token.Integer:
			if toks[i].Value != 0 || i+1 >= len(toks) || toks[i+1].Kind != token.Equal {
				continue
			}
			if i+2 < len(toks) && toks[i+2].Kind == token.If {
				toks[i] = token.Token{Kind: token.NotIf, Jump: toks[i+2].Jump}
				toks = removeAt(toks, i+1)
				toks = removeAt(toks, i+1)
			} else {
				toks[i] = token.Token{Kind: token.EqZero}
				toks = removeAt(toks, i+1)
			}

		case token.Dup:
			if i+1 < len(toks) && toks[i+1].Kind == token.Integer &&
				i+2 < len(toks) && toks[i+2].Kind == token.Mod {
				toks[i] = token.Token{Kind: token.DupModConst, Value: toks[i+1].Value}
				toks = removeAt(toks, i+1)
				toks = removeAt(toks, i+1)
			}

		case token.Dot:
			if i+1 < len(toks) && toks[i+1].Kind == token.Cr {
				toks[i] = token.Token{Kind: token.DotCr}
				toks = removeAt(toks, i+1)
			}
		}
	}
	return toks
}
