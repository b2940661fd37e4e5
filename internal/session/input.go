package session

import (
	"bufio"
	"context"
	"io"
	"os"
)

// StdinReader reads operator commands line by line from an input stream.
// Reads block without honoring ctx cancellation mid-read; the surrounding
// loop checks the stop signal before every prompt.
type StdinReader struct {
	sc *bufio.Scanner
}

func NewStdinReader() *StdinReader { return NewLineReader(os.Stdin) }

func NewLineReader(r io.Reader) *StdinReader {
	return &StdinReader{sc: bufio.NewScanner(r)}
}

func (r *StdinReader) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}
