package control

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Poller yields pending lines without blocking.
type Poller interface {
	Poll() (string, bool)
}

// Source scans lines from a reader on its own goroutine.
type Source struct {
	lines chan string
}

// NewSource starts scanning r. The scanning goroutine ends at EOF or on a
// read error.
func NewSource(r io.Reader) *Source {
	s := &Source{lines: make(chan string, 64)}
	go func() {
		defer close(s.lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			s.lines <- strings.TrimSpace(sc.Text())
		}
	}()
	return s
}

// Poll returns the next pending line, if any.
func (s *Source) Poll() (string, bool) {
	select {
	case line, ok := <-s.lines:
		return line, ok
	default:
		return "", false
	}
}

// ReadLine blocks until a line arrives. It returns io.EOF once the reader is
// exhausted.
func (s *Source) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

// Discard drops the lines already pending.
func (s *Source) Discard() {
	for {
		if _, ok := s.Poll(); !ok {
			return
		}
	}
}
