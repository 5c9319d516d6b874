// Package labels maps model class indices to human-readable names.
package labels

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNoLabels reports a label source that yielded zero entries.
var ErrNoLabels = errors.New("no labels parsed")

const (
	// MaxLabels is the most entries a table retains; lines past the cap
	// are discarded silently.
	MaxLabels = 1000
	// MaxBufferBytes caps the staging buffer a labels file is read into.
	MaxBufferBytes = 100000
)

// Table is an ordered class-index-to-name mapping. Entries alias the
// parsed buffer; At copies the selected entry out so the buffer can be
// dropped before the result is.
type Table struct {
	entries [][]byte
}

// Parse splits buf on line breaks into at most max entries. Blank lines
// are skipped. A buffer yielding zero entries is an error: classification
// cannot proceed without a label universe.
func Parse(buf []byte, max int) (*Table, error) {
	t := &Table{}
	for len(buf) > 0 && len(t.entries) < max {
		line := buf
		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			line = buf[:i]
			buf = buf[i+1:]
		} else {
			buf = nil
		}
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 {
			continue
		}
		t.entries = append(t.entries, line)
	}
	if len(t.entries) == 0 {
		return nil, ErrNoLabels
	}
	return t, nil
}

// Load reads at most MaxBufferBytes from the file at path and parses it
// with the MaxLabels cap.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, MaxBufferBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read labels file: %w", err)
	}
	table, err := Parse(buf[:n], MaxLabels)
	if err != nil {
		return nil, fmt.Errorf("parse labels file %s: %w", path, err)
	}
	return table, nil
}

// Len returns the number of retained entries.
func (t *Table) Len() int { return len(t.entries) }

// At returns an independently owned copy of the entry at class index i.
func (t *Table) At(i int) (string, error) {
	if i < 0 || i >= len(t.entries) {
		return "", fmt.Errorf("class index %d out of range, table has %d labels", i, len(t.entries))
	}
	return string(t.entries[i]), nil
}
