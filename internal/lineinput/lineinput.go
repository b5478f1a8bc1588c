// Package lineinput feeds the harness one input line at a time from a
// queue of named sources, tracking the current location for
// diagnostics.
package lineinput

import (
	"bufio"
	"fmt"
	"io"
)

// Location names a line within one of the queue's sources.
type Location struct {
	Name string
	Line int
}

func (loc Location) String() string { return fmt.Sprintf("%v:%v", loc.Name, loc.Line) }

type source struct {
	name string
	r    io.Reader
}

// Queue reads lines sequentially out of one or more sources, advancing
// to the next queued source once the current one is exhausted.
type Queue struct {
	sources []source
	cur     *bufio.Scanner
	loc     Location
	err     error
}

// NewQueue returns an empty Queue; sources are appended with Add.
func NewQueue() *Queue {
	return &Queue{}
}

// Add appends a named source to the end of the queue.
func (q *Queue) Add(name string, r io.Reader) {
	q.sources = append(q.sources, source{name: name, r: r})
}

// Next returns the next line, with its terminator stripped, and the
// Location it came from. ok is false once every queued source is
// exhausted; callers should then consult Err.
func (q *Queue) Next() (line string, loc Location, ok bool) {
	for {
		if q.cur == nil && !q.advance() {
			return "", Location{}, false
		}
		if q.cur.Scan() {
			q.loc.Line++
			return q.cur.Text(), q.loc, true
		}
		if err := q.cur.Err(); err != nil && q.err == nil {
			q.err = err
		}
		q.cur = nil
	}
}

// Err returns the first non-EOF error encountered while scanning, or
// nil if every source was read to completion cleanly.
func (q *Queue) Err() error { return q.err }

func (q *Queue) advance() bool {
	if len(q.sources) == 0 {
		return false
	}
	s := q.sources[0]
	q.sources = q.sources[1:]
	q.cur = bufio.NewScanner(s.r)
	q.cur.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	q.loc = Location{Name: s.name, Line: 0}
	return true
}
