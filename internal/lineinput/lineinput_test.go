package lineinput_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/catforth/internal/lineinput"
)

func TestQueueSingleSource(t *testing.T) {
	q := lineinput.NewQueue()
	q.Add("a.4th", strings.NewReader("1 2 +\n3 4 +\n"))

	line, loc, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "1 2 +", line)
	assert.Equal(t, "a.4th", loc.Name)
	assert.Equal(t, 1, loc.Line)

	line, loc, ok = q.Next()
	require.True(t, ok)
	assert.Equal(t, "3 4 +", line)
	assert.Equal(t, 2, loc.Line)

	_, _, ok = q.Next()
	assert.False(t, ok)
	assert.NoError(t, q.Err())
}

func TestQueueMultipleSources(t *testing.T) {
	q := lineinput.NewQueue()
	q.Add("first", strings.NewReader("a\nb\n"))
	q.Add("second", strings.NewReader("c\n"))

	var got []string
	for {
		line, _, ok := q.Next()
		if !ok {
			break
		}
		got = append(got, line)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestQueueLocationResetsPerSource(t *testing.T) {
	q := lineinput.NewQueue()
	q.Add("first", strings.NewReader("a\nb\n"))
	q.Add("second", strings.NewReader("c\n"))

	var locs []lineinput.Location
	for {
		_, loc, ok := q.Next()
		if !ok {
			break
		}
		locs = append(locs, loc)
	}
	require.Len(t, locs, 3)
	assert.Equal(t, lineinput.Location{Name: "second", Line: 1}, locs[2])
}
