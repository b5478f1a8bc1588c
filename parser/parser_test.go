package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/catforth/parser"
	"github.com/jcorbin/catforth/token"
)

func TestParseArithmetic(t *testing.T) {
	toks, err := parser.Parse("1 2 + .")
	require.NoError(t, err)
	assert.Equal(t, []token.Token{
		{Kind: token.Integer, Value: 1},
		{Kind: token.Integer, Value: 2},
		{Kind: token.Plus},
		{Kind: token.Dot},
	}, toks)
}

func TestParseQuote(t *testing.T) {
	toks, err := parser.Parse(`."  hello world "`)
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.Equal(t, token.Quote, toks[0].Kind)
	assert.Equal(t, "hello world", toks[0].Text)
}

func TestParseQuotePreservesCase(t *testing.T) {
	toks, err := parser.Parse(`." Hello There "`)
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.Equal(t, "Hello There", toks[0].Text)
}

func TestParseCaseInsensitiveKeywords(t *testing.T) {
	toks, err := parser.Parse("1 1 DUP Drop SWAP")
	require.NoError(t, err)
	assert.Equal(t, []token.Token{
		{Kind: token.Integer, Value: 1},
		{Kind: token.Integer, Value: 1},
		{Kind: token.Dup},
		{Kind: token.Drop},
		{Kind: token.Swap},
	}, toks)
}

func TestParseComment(t *testing.T) {
	toks, err := parser.Parse(`1 2 + \ this is dropped`)
	require.NoError(t, err)
	assert.Equal(t, []token.Token{
		{Kind: token.Integer, Value: 1},
		{Kind: token.Integer, Value: 2},
		{Kind: token.Plus},
	}, toks)
}

func TestParseIfThenJump(t *testing.T) {
	toks, err := parser.Parse("1 IF 2 THEN")
	require.NoError(t, err)
	require.Len(t, toks, 4)
	assert.Equal(t, token.If, toks[1].Kind)
	assert.Equal(t, 1, toks[1].Jump)
	assert.Equal(t, token.Then, toks[1+1+toks[1].Jump].Kind)
}

func TestParseIfElseThenJumps(t *testing.T) {
	toks, err := parser.Parse("1 IF 2 ELSE 3 THEN")
	require.NoError(t, err)

	ifIdx := 1
	require.Equal(t, token.If, toks[ifIdx].Kind)
	elseIdx := ifIdx + 1 + toks[ifIdx].Jump
	require.Equal(t, token.Else, toks[elseIdx].Kind)

	thenIdx := elseIdx + 1 + toks[elseIdx].Jump
	require.Equal(t, token.Then, toks[thenIdx].Kind)
	assert.Equal(t, len(toks)-1, thenIdx)
}

func TestParseNestedIfJumps(t *testing.T) {
	// 1 IF 1 IF 2 THEN ELSE 3 THEN
	toks, err := parser.Parse("1 IF 1 IF 2 THEN ELSE 3 THEN")
	require.NoError(t, err)

	outerIf := 1
	require.Equal(t, token.If, toks[outerIf].Kind)
	outerElse := outerIf + 1 + toks[outerIf].Jump
	require.Equal(t, token.Else, toks[outerElse].Kind)

	innerIf := outerIf + 2
	require.Equal(t, token.If, toks[innerIf].Kind)
	innerThen := innerIf + 1 + toks[innerIf].Jump
	require.Equal(t, token.Then, toks[innerThen].Kind)
	require.Equal(t, innerThen, outerElse-1)

	outerThen := outerElse + 1 + toks[outerElse].Jump
	require.Equal(t, token.Then, toks[outerThen].Kind)
	assert.Equal(t, len(toks)-1, outerThen)
}

func TestParseMissingThen(t *testing.T) {
	_, err := parser.Parse("1 IF 2")
	assert.ErrorContains(t, err, "no closing else or then")
}

func TestParseDefiner(t *testing.T) {
	toks, err := parser.Parse(": square dup * ;")
	require.NoError(t, err)
	require.Len(t, toks, 4)
	assert.Equal(t, token.Token{Kind: token.Function, Name: "square"}, toks[0])
	assert.Equal(t, token.Dup, toks[1].Kind)
	assert.Equal(t, token.Mult, toks[2].Kind)
	assert.Equal(t, token.EndFunction, toks[3].Kind)
}

func TestParseDefinerMissingName(t *testing.T) {
	_, err := parser.Parse(": + ;")
	assert.ErrorContains(t, err, "expected word after :")
}

func TestOptimizeFusions(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   []token.Token
		want []token.Token
	}{
		{
			name: "double rot",
			in:   []token.Token{{Kind: token.Rot}, {Kind: token.Rot}},
			want: []token.Token{{Kind: token.DoubleRot}},
		},
		{
			name: "eq zero",
			in:   []token.Token{{Kind: token.Integer, Value: 0}, {Kind: token.Equal}},
			want: []token.Token{{Kind: token.EqZero}},
		},
		{
			name: "not if",
			in:   []token.Token{{Kind: token.Integer, Value: 0}, {Kind: token.Equal}, {Kind: token.If, Jump: 5}},
			want: []token.Token{{Kind: token.NotIf, Jump: 5}},
		},
		{
			name: "dup mod const",
			in:   []token.Token{{Kind: token.Dup}, {Kind: token.Integer, Value: 3}, {Kind: token.Mod}},
			want: []token.Token{{Kind: token.DupModConst, Value: 3}},
		},
		{
			name: "dot cr",
			in:   []token.Token{{Kind: token.Dot}, {Kind: token.Cr}},
			want: []token.Token{{Kind: token.DotCr}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := parser.Optimize(append([]token.Token(nil), tc.in...))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOptimizeIdempotent(t *testing.T) {
	toks, err := parser.Parse("16 1 DO I DUP 3 MOD 0 = IF DROP THEN LOOP")
	require.NoError(t, err)
	once := parser.Optimize(append([]token.Token(nil), toks...))
	twice := parser.Optimize(append([]token.Token(nil), once...))
	assert.Equal(t, once, twice)
}
