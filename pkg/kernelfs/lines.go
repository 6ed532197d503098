package kernelfs

import (
	"bufio"
	"io"
	"strings"

	"github.com/google/lmctfy-sub002/pkg/status"
)

// LineIterator walks the lines of a file lazily. It is restartable: a new
// LineIterator obtained from Interface.ReadLines re-opens the underlying
// file, because cgroup stat files can mutate between reads.
type LineIterator struct {
	scanner *bufio.Scanner
	closer  io.Closer
	err     *status.Status
}

// newLineIterator wraps an already-open reader. If closer is non-nil it is
// closed when Close is called.
func newLineIterator(r io.Reader, closer io.Closer) *LineIterator {
	return &LineIterator{scanner: bufio.NewScanner(r), closer: closer}
}

// newLineIteratorFromString builds an iterator over an in-memory string,
// used by Fake.
func newLineIteratorFromString(contents string) *LineIterator {
	return newLineIterator(strings.NewReader(contents), nil)
}

// Next advances to the next line and reports whether one was available.
func (it *LineIterator) Next() (string, bool) {
	if it.scanner.Scan() {
		return it.scanner.Text(), true
	}
	if err := it.scanner.Err(); err != nil {
		it.err = status.Wrap(status.Internal, err, "read line")
	}
	return "", false
}

// Err returns any error encountered during iteration, after Next has
// returned false.
func (it *LineIterator) Err() *status.Status {
	return it.err
}

// Close releases the underlying file descriptor, if any.
func (it *LineIterator) Close() *status.Status {
	if it.closer == nil {
		return nil
	}
	if err := it.closer.Close(); err != nil {
		return status.Wrap(status.Internal, err, "close")
	}
	return nil
}
